// estimate-photo runs one full ensemble estimation over load photos
// given on the command line and prints the aggregated result. It uses
// the same configuration file as the service, so a run from the shell
// exercises exactly the path a camera capture takes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/YuujiKamura/tonsuu-checker/internal/ai"
	"github.com/YuujiKamura/tonsuu-checker/internal/calc"
	"github.com/YuujiKamura/tonsuu-checker/internal/config"
	"github.com/YuujiKamura/tonsuu-checker/internal/ensemble"
	"github.com/YuujiKamura/tonsuu-checker/internal/grade"
	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
	"github.com/YuujiKamura/tonsuu-checker/internal/refdata"
)

func main() {
	var (
		configPath   string
		count        int
		capacityHint float64
		feedback     string
		asJSON       bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.IntVar(&count, "count", 0, "Samples per run (0 uses the configured default)")
	flag.Float64Var(&capacityHint, "capacity", 0, "Known max capacity in tonnes (0 lets the model estimate it)")
	flag.StringVar(&feedback, "feedback", "", "Operator feedback passed to the model")
	flag.BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: estimate-photo [flags] photo.jpg [photo2.jpg ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  "warn",
		Format: "text",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var tables *refdata.Tables
	if cfg.App.SpecsFile != "" {
		tables, err = refdata.LoadFile(cfg.App.SpecsFile)
	} else {
		tables, err = refdata.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load reference tables: %v\n", err)
		os.Exit(1)
	}

	var images [][]byte
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
			os.Exit(1)
		}
		images = append(images, data)
	}

	provider := ai.NewClient(ai.ClientConfig{
		ServiceURL: cfg.Provider.ServiceURL,
		Model:      cfg.Provider.Model,
		APIKey:     cfg.Provider.APIKey,
		Timeout:    cfg.Provider.Timeout,
	}, tables, log)
	runner := ensemble.NewRunner(provider, log)
	aggregator := ensemble.NewAggregator(calc.New(tables), log)
	classifier := grade.New(tables)

	if count <= 0 {
		count = cfg.Ensemble.Count
	}

	fmt.Printf("Running %d-sample estimation over %d photo(s)...\n", count, len(images))

	run := runner.Start(context.Background(), ensemble.Request{
		ProviderRequest: ensemble.ProviderRequest{
			Images:       images,
			CapacityHint: capacityHint,
			Feedback:     feedback,
		},
		Count: count,
	})

	for update := range run.Updates() {
		if update.Err != nil {
			fmt.Printf("  sample %d: failed: %v\n", update.Index+1, update.Err)
			continue
		}
		fmt.Printf("  sample %d: %s %s height=%.2fm\n",
			update.Index+1,
			update.Sample.TruckClass,
			update.Sample.MaterialType,
			update.Sample.Height,
		)
	}

	samples, err := run.Wait()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Estimation failed: %v\n", err)
		os.Exit(1)
	}

	agg, err := aggregator.Aggregate(samples, run.Attempted())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Aggregation failed: %v\n", err)
		os.Exit(1)
	}

	if asJSON {
		out, _ := json.MarshalIndent(agg, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Println()
	if !agg.IsTargetDetected {
		fmt.Println("No dump truck detected.")
		return
	}

	maxCap := agg.EstimatedMaxCapacity
	if capacityHint > 0 {
		maxCap = capacityHint
	}
	if maxCap <= 0 {
		spec, _ := tables.TruckSpecFor(agg.TruckClass)
		maxCap = spec.MaxCapacity
	}

	fmt.Printf("Truck class:   %s\n", agg.TruckClass)
	fmt.Printf("Material:      %s\n", agg.MaterialType)
	fmt.Printf("Volume:        %.3f m3\n", agg.VolumeM3)
	fmt.Printf("Tonnage:       %.2f t\n", agg.Tonnage)
	fmt.Printf("Max capacity:  %.2f t\n", maxCap)
	if g, err := classifier.ClassifyLoad(agg.Tonnage, maxCap); err == nil {
		fmt.Printf("Load grade:    %s\n", g.Name)
	}
	fmt.Printf("Samples:       %d valid of %d attempted\n", agg.ValidCount, agg.EnsembleCount)
	fmt.Printf("Confidence:    %.2f\n", agg.ConfidenceScore)
	if agg.Reasoning != "" {
		fmt.Println()
		fmt.Println(strings.TrimSpace(agg.Reasoning))
	}
}
