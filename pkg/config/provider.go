package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSite() (*SiteData, error)
	GetStorageConfig() (*StorageData, error)
	GetRESTServer() (*RESTServerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration of a recharge estimation
type ConfigData struct {
	Site       SiteData        `json:"site" yaml:"site"`
	Inputs     InputsData      `json:"inputs" yaml:"inputs"`
	MRC        MRCData         `json:"mrc" yaml:"mrc"`
	Simulation SimulationData  `json:"simulation" yaml:"simulation"`
	GLUE       GLUEData        `json:"glue" yaml:"glue"`
	Storage    StorageData     `json:"storage,omitempty" yaml:"storage,omitempty"`
	REST       *RESTServerData `json:"rest,omitempty" yaml:"rest,omitempty"`
}

// SiteData describes the monitored well
type SiteData struct {
	Name     string  `json:"name" yaml:"name"`
	Latitude float64 `json:"latitude" yaml:"latitude"`

	// DepthBelowSurface marks water levels recorded as depth to water; they are
	// negated on load so that a recession is a decline.
	DepthBelowSurface bool `json:"depth_below_surface,omitempty" yaml:"depth_below_surface,omitempty"`

	// SpecificYield fixes the aquifer specific yield when the GLUE section neither
	// samples nor fixes it.
	SpecificYield float64 `json:"specific_yield,omitempty" yaml:"specific_yield,omitempty"`
}

// InputsData names the observation files and the optional analysis window
type InputsData struct {
	Precipitation string `json:"precipitation" yaml:"precipitation"`
	Temperature   string `json:"temperature" yaml:"temperature"`
	WaterLevel    string `json:"water_level" yaml:"water_level"`
	From          string `json:"from,omitempty" yaml:"from,omitempty"`
	To            string `json:"to,omitempty" yaml:"to,omitempty"`
}

// MRCData holds the recession segment selection and model family
type MRCData struct {
	Model           string      `json:"model,omitempty" yaml:"model,omitempty"`
	MinDays         int         `json:"min_days,omitempty" yaml:"min_days,omitempty"`
	Tolerance       *float64    `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	RainThresholdMM *float64    `json:"rain_threshold_mm,omitempty" yaml:"rain_threshold_mm,omitempty"`
	Manual          []RangeData `json:"manual,omitempty" yaml:"manual,omitempty"`
}

// RangeData is an inclusive date range, dates formatted as 2006-01-02
type RangeData struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// SimulationData holds the non-sampled bucket model settings
type SimulationData struct {
	MaxGapDays             *int     `json:"max_gap_days,omitempty" yaml:"max_gap_days,omitempty"`
	InitialStorageFraction *float64 `json:"initial_storage_fraction,omitempty" yaml:"initial_storage_fraction,omitempty"`
	LevelUnitsPerMM        float64  `json:"level_units_per_mm,omitempty" yaml:"level_units_per_mm,omitempty"`
}

// GLUEData holds the ensemble settings
type GLUEData struct {
	Samples     int                  `json:"samples" yaml:"samples"`
	Seed        int64                `json:"seed" yaml:"seed"`
	Threshold   float64              `json:"threshold" yaml:"threshold"`
	Likelihood  string               `json:"likelihood,omitempty" yaml:"likelihood,omitempty"`
	Sampler     string               `json:"sampler,omitempty" yaml:"sampler,omitempty"`
	Workers     int                  `json:"workers,omitempty" yaml:"workers,omitempty"`
	Percentiles []float64            `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`
	Parameters  []ParameterRangeData `json:"parameters" yaml:"parameters"`
	Fixed       map[string]float64   `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	KeepSeries  bool                 `json:"keep_series,omitempty" yaml:"keep_series,omitempty"`
}

// ParameterRangeData is the prescribed sampling range of one parameter
type ParameterRangeData struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Log  bool    `json:"log,omitempty" yaml:"log,omitempty"`
}

// StorageData holds the configuration for the run stores. Every configured store
// receives each finished run.
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
	Msgpack     *MsgpackData     `json:"msgpack,omitempty" yaml:"msgpack,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

type MsgpackData struct {
	Directory string `json:"directory" yaml:"directory"`
}

type RESTServerData struct {
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}
