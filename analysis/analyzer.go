package analysis

import (
	"fmt"
	"log"
	"path/filepath"

	"elephant-logger/models"
)

// Options configures one analysis run.
type Options struct {
	// OutputDir receives the report and plot files.
	OutputDir string
	// PositiveLabel marks which label counts as a detection.
	PositiveLabel string
	// CorrelationThreshold is the |r| floor for the strong-correlation list.
	CorrelationThreshold float64
	// SkipPlots limits the run to the text report.
	SkipPlots bool
}

// DefaultOptions mirrors the usual desktop analyzer settings.
func DefaultOptions() Options {
	return Options{
		OutputDir:            "analysis_output",
		PositiveLabel:        "elephant",
		CorrelationThreshold: 0.7,
	}
}

// Run executes the complete analysis over the samples and writes all outputs
// into opts.OutputDir. PCA is skipped (with a log line) when there are too few
// samples for a meaningful decomposition.
func Run(samples []models.LabeledSample, opts Options) (Report, error) {
	if len(samples) == 0 {
		return Report{}, fmt.Errorf("no samples to analyze")
	}

	features, err := Summarize(samples)
	if err != nil {
		return Report{}, err
	}
	matrix := CorrelationMatrix(samples)
	report := Report{
		Samples:    len(samples),
		Detections: SummarizeDetections(samples, opts.PositiveLabel),
		Features:   features,
		Strong:     StrongCorrelations(matrix, opts.CorrelationThreshold),
	}

	pca, err := RunPCA(samples)
	if err != nil {
		log.Printf("skipping PCA: %v", err)
	} else {
		report.PCA = pca
	}

	path, err := WriteReportFile(opts.OutputDir, report)
	if err != nil {
		return Report{}, err
	}
	log.Printf("report written to %s", path)

	if opts.SkipPlots {
		return report, nil
	}

	plots := []struct {
		name string
		run  func(string) error
	}{
		{"feature_timeseries.png", func(p string) error {
			return PlotFeatureTimeseries(samples, opts.PositiveLabel, p)
		}},
		{"correlation_matrix.png", func(p string) error {
			return PlotCorrelationHeatmap(matrix, p)
		}},
		{"detection_analysis.png", func(p string) error {
			return PlotDetectionAnalysis(samples, report.Detections, opts.PositiveLabel, p)
		}},
	}
	if report.PCA != nil {
		plots = append(plots, struct {
			name string
			run  func(string) error
		}{"pca_analysis.png", func(p string) error {
			return PlotPCA(samples, report.PCA, opts.PositiveLabel, p)
		}})
	}

	for _, plot := range plots {
		path := filepath.Join(opts.OutputDir, plot.name)
		if err := plot.run(path); err != nil {
			return Report{}, fmt.Errorf("plot %s: %w", plot.name, err)
		}
		log.Printf("plot written to %s", path)
	}

	return report, nil
}
