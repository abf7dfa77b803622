// mrc-fit fits every recession model family to a configured well and reports which
// one describes its recession limbs best.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrissnell/wellrecharge/internal/app"
	"github.com/chrissnell/wellrecharge/internal/log"
	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/pkg/config"
)

func main() {
	var (
		cfgFile   = flag.String("config", "wellrecharge.yaml", "Path to the YAML configuration file")
		debug     = flag.Bool("debug", false, "Turn on debugging output")
		csvOutput = flag.String("csv", "", "Optional CSV output file for the segment residuals of the best model")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename, _ := filepath.Abs(*cfgFile)
	provider := config.NewYAMLProvider(filename)
	cfgData, err := provider.LoadConfig()
	provider.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(app.ExitCode(err))
	}

	cmp, segs, err := app.New(cfgData, log.Named("mrc-fit")).Recessions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Sync()
		os.Exit(app.ExitCode(err))
	}

	fmt.Printf("Master Recession Curve Comparison\n")
	fmt.Printf("=================================\n\n")
	fmt.Printf("Site: %s\n", cfgData.Site.Name)
	fmt.Printf("Recession segments: %d\n\n", len(segs))
	for i, s := range segs {
		fmt.Printf("  %2d. %s to %s, %d readings, decline %.3f\n",
			i+1, s.Start.Format(config.DateLayout), s.End.Format(config.DateLayout), s.Len(), s.Decline())
	}
	fmt.Println()

	displayComparison(cmp)
	displayModel(cmp.BestByAIC)

	if *csvOutput != "" {
		if err := exportCSV(*csvOutput, segs, cmp.BestByAIC); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nResiduals exported to: %s\n", *csvOutput)
	}
}

func displayComparison(c mrc.Comparison) {
	fmt.Printf("%-12s | %8s | %10s | %10s | %10s\n", "Model", "R²", "RMSE", "AIC", "BIC")
	fmt.Printf("-------------+----------+------------+------------+------------\n")
	for _, m := range c.Models {
		marker := ""
		if m.Kind == c.BestByAIC.Kind {
			marker = " *"
		}
		fmt.Printf("%-12s | %8.4f | %10.5f | %10.2f | %10.2f%s\n",
			m.Kind, m.RSquared, m.RMSE, m.AIC(), m.BIC(), marker)
	}

	fmt.Printf("\nBest model by AIC: %s\n", c.BestByAIC.Kind)
	if c.BestByBIC.Kind != c.BestByAIC.Kind {
		fmt.Printf("Best model by BIC: %s (penalizes extra coefficients more)\n", c.BestByBIC.Kind)
	}
	fmt.Printf("Set mrc.model in the configuration to choose a family explicitly.\n\n")
}

func displayModel(m mrc.Model) {
	fmt.Printf("Best Model Details (%s)\n", m.Kind)
	fmt.Printf("=======================\n\n")

	terms := make([]string, len(m.Coefficients))
	for k, c := range m.Coefficients {
		switch k {
		case 0:
			terms[k] = fmt.Sprintf("%.6g", c)
		case 1:
			terms[k] = fmt.Sprintf("%.6g × h", c)
		default:
			terms[k] = fmt.Sprintf("%.6g × h^%d", c, k)
		}
	}
	fmt.Printf("  dh/dt = %s\n", strings.Join(terms, " + "))
	if m.Kind == mrc.Exponential {
		fmt.Printf("  decay = %.5f per day, asymptote = %.4f\n", m.DecayPerDay, m.Asymptote)
	}
	fmt.Printf("  fitted on %d daily changes from %d segments\n", m.Points, m.Segments)
}

func exportCSV(filename string, segs []mrc.Segment, m mrc.Model) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"segment", "date", "level", "predicted", "residual"}); err != nil {
		return err
	}
	for i, s := range segs {
		if s.Len() == 0 {
			continue
		}
		pred := m.Predict(s.Levels[0], int(s.Times[len(s.Times)-1])+1)
		for k, h := range s.Levels {
			p := pred[int(s.Times[k])]
			record := []string{
				fmt.Sprintf("%d", i+1),
				s.Start.AddDate(0, 0, int(s.Times[k])).Format(config.DateLayout),
				fmt.Sprintf("%.4f", h),
				fmt.Sprintf("%.4f", p),
				fmt.Sprintf("%.4f", h-p),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
