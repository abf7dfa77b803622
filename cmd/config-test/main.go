// config-test loads a wellrecharge configuration, reports the effective settings
// and checks that every observation file can be read.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/wellrecharge/internal/ingest"
	"github.com/chrissnell/wellrecharge/pkg/config"
)

func main() {
	yamlFile := flag.String("yaml", "", "Path to YAML configuration file")
	flag.Parse()

	if *yamlFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <wellrecharge.yaml>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Test")
	fmt.Println("==================")

	filename, _ := filepath.Abs(*yamlFile)
	fmt.Printf("Loading YAML configuration: %s\n", filename)
	provider := config.NewYAMLProvider(filename)
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Configuration is invalid:\n  %v\n", err)
		os.Exit(2)
	}
	fmt.Println("✓ Configuration is valid")

	fmt.Printf("\nSite: %s (latitude %.4f)\n", cfg.Site.Name, cfg.Site.Latitude)

	failed := false
	fmt.Println("\nObservation files:")
	for _, f := range []struct{ label, path string }{
		{"precipitation", cfg.Inputs.Precipitation},
		{"temperature", cfg.Inputs.Temperature},
		{"water level", cfg.Inputs.WaterLevel},
	} {
		obs, err := ingest.ReadFile(f.path)
		if err != nil {
			fmt.Printf("✗ %s: %v\n", f.label, err)
			failed = true
			continue
		}
		if len(obs) == 0 {
			fmt.Printf("✗ %s: %s has no readings\n", f.label, f.path)
			failed = true
			continue
		}
		first, last := obs[0].Time, obs[0].Time
		for _, o := range obs[1:] {
			if o.Time.Before(first) {
				first = o.Time
			}
			if o.Time.After(last) {
				last = o.Time
			}
		}
		fmt.Printf("✓ %s: %d readings from %s to %s\n", f.label, len(obs),
			first.Format(config.DateLayout), last.Format(config.DateLayout))
	}

	fmt.Println("\nRecession curve:")
	if len(cfg.MRC.Manual) > 0 {
		fmt.Printf("  %s model on %d manual ranges\n", cfg.MRC.Model, len(cfg.MRC.Manual))
	} else {
		fmt.Printf("  %s model, segments of at least %d days, tolerance %g, rain threshold %g mm\n",
			cfg.MRC.Model, cfg.MRC.MinDays, *cfg.MRC.Tolerance, *cfg.MRC.RainThresholdMM)
	}

	fmt.Println("\nEnsemble:")
	fmt.Printf("  %d %s samples, seed %d, %s likelihood, threshold %g\n",
		cfg.GLUE.Samples, cfg.GLUE.Sampler, cfg.GLUE.Seed, cfg.GLUE.Likelihood, cfg.GLUE.Threshold)
	for _, p := range cfg.GLUE.Parameters {
		scale := "linear"
		if p.Log {
			scale = "log"
		}
		fmt.Printf("  sampled %-18s [%g, %g] %s\n", p.Name, p.Min, p.Max, scale)
	}
	for name, v := range cfg.GLUE.Fixed {
		fmt.Printf("  fixed   %-18s %g\n", name, v)
	}

	fmt.Println("\nStorage:")
	stores := 0
	if s := cfg.Storage.SQLite; s != nil {
		fmt.Printf("✓ SQLite: %s\n", s.Path)
		stores++
	}
	if s := cfg.Storage.TimescaleDB; s != nil {
		fmt.Println("✓ TimescaleDB configured")
		stores++
	}
	if s := cfg.Storage.Msgpack; s != nil {
		fmt.Printf("✓ msgpack files: %s\n", s.Directory)
		stores++
	}
	if stores == 0 {
		fmt.Println("  none; runs will not be saved")
	}
	if cfg.REST != nil {
		fmt.Printf("✓ REST server on %s:%d\n", cfg.REST.ListenAddr, cfg.REST.Port)
	}

	if failed {
		fmt.Println("\nTest failed!")
		os.Exit(1)
	}
	fmt.Println("\nTest completed!")
}
