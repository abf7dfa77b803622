package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads, defaults and validates the configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := Parse(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}
	config.ResolvePaths(filepath.Dir(y.filename))

	y.config = config
	return config, nil
}

// Parse decodes a YAML document, fills defaults and validates the result.
// Unknown keys are rejected.
func Parse(doc []byte) (*ConfigData, error) {
	config := &ConfigData{}
	if err := yaml.UnmarshalStrict(doc, config); err != nil {
		return nil, err
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ResolvePaths makes the file paths of the configuration absolute, relative to dir
func (c *ConfigData) ResolvePaths(dir string) {
	for _, p := range []*string{&c.Inputs.Precipitation, &c.Inputs.Temperature, &c.Inputs.WaterLevel} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	if s := c.Storage.SQLite; s != nil && !filepath.IsAbs(s.Path) {
		s.Path = filepath.Join(dir, s.Path)
	}
	if s := c.Storage.Msgpack; s != nil && !filepath.IsAbs(s.Directory) {
		s.Directory = filepath.Join(dir, s.Directory)
	}
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		return y.LoadConfig()
	}
	return y.config, nil
}

// GetSite returns the site configuration
func (y *YAMLProvider) GetSite() (*SiteData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Site, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Storage, nil
}

// GetRESTServer returns the REST server configuration, or nil when it is disabled
func (y *YAMLProvider) GetRESTServer() (*RESTServerData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return c.REST, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
