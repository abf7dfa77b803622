package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/wellrecharge/internal/app"
	"github.com/chrissnell/wellrecharge/internal/constants"
	"github.com/chrissnell/wellrecharge/internal/log"
	"github.com/chrissnell/wellrecharge/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "wellrecharge.yaml", "Path to the YAML configuration file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	serve := flag.Bool("serve", false, "After estimating, keep serving stored runs over the REST API")
	serveOnly := flag.Bool("serve-only", false, "Serve stored runs without estimating")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wellrecharge %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgData, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		log.Sync()
		os.Exit(app.ExitCode(err))
	}

	application := app.New(cfgData, log.Named("wellrecharge"))
	if *serveOnly {
		err = application.Serve(context.Background())
	} else {
		err = application.Run(context.Background(), *serve)
	}
	if err != nil {
		log.Errorf("Application error: %v", err)
		log.Sync()
		os.Exit(app.ExitCode(err))
	}
}

func loadConfig(cfgFile string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	provider := config.NewYAMLProvider(filename)
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfgData, nil
}
