// analyze runs the offline analysis pipeline over a training CSV or a raw
// serial capture and writes a report plus plots.
package main

import (
	"flag"
	"log"
	"time"

	"elephant-logger/analysis"
)

func main() {
	opts := analysis.DefaultOptions()

	input := flag.String("input", "", "Training CSV or serial capture to analyze")
	flag.StringVar(&opts.OutputDir, "out", opts.OutputDir, "Output directory")
	flag.StringVar(&opts.PositiveLabel, "label", opts.PositiveLabel, "Label counted as a detection")
	flag.Float64Var(&opts.CorrelationThreshold, "corr", opts.CorrelationThreshold, "Threshold for the strong-correlation list")
	flag.BoolVar(&opts.SkipPlots, "no-plots", false, "Only write the text report")
	flag.Parse()

	if *input == "" {
		log.Fatal("pass -input with a training CSV or serial capture")
	}

	started := time.Now()
	samples, err := analysis.Load(*input)
	if err != nil {
		log.Fatalf("failed to load %s: %v", *input, err)
	}
	log.Printf("Loaded %d samples from %s", len(samples), *input)

	report, err := analysis.Run(samples, opts)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	log.Printf("Analyzed %d samples (%d detections, %.1f%% rate) in %s",
		report.Samples, report.Detections.Detections, report.Detections.Rate*100,
		time.Since(started).Round(time.Millisecond))
}
