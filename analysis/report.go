package analysis

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"elephant-logger/dataset"
	"elephant-logger/utils"
)

// Report bundles the outputs of one analysis run.
type Report struct {
	Samples    int
	Detections DetectionSummary
	Features   []FeatureSummary
	Strong     []CorrelationPair
	PCA        *PCAResult
}

// WriteReport renders the text summary.
func WriteReport(w io.Writer, report Report) error {
	var b strings.Builder

	b.WriteString("ELEPHANT DETECTION SYSTEM - DATA ANALYSIS REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Analysis Date: %s\n", time.Now().Format(dataset.TimestampLayout))
	fmt.Fprintf(&b, "Data Points: %d\n", report.Samples)
	if report.Samples > 0 {
		fmt.Fprintf(&b, "Time Range: %s to %s\n",
			report.Detections.FirstTimestamp.Format(dataset.TimestampLayout),
			report.Detections.LastTimestamp.Format(dataset.TimestampLayout))
	}
	b.WriteString("\n")

	b.WriteString("DETECTION SUMMARY:\n")
	b.WriteString(strings.Repeat("-", 20) + "\n")
	fmt.Fprintf(&b, "Total Detections: %d\n", report.Detections.Detections)
	fmt.Fprintf(&b, "Detection Rate: %.2f%%\n", report.Detections.Rate*100)
	if report.Detections.Detections > 0 {
		fmt.Fprintf(&b, "Average Confidence: %.3f\n", report.Detections.AvgConfidence)
	}
	b.WriteString("\n")

	b.WriteString("FEATURE STATISTICS:\n")
	b.WriteString(strings.Repeat("-", 20) + "\n")
	fmt.Fprintf(&b, "%-20s %10s %10s %10s %10s %10s %8s\n",
		"feature", "mean", "median", "stddev", "min", "max", "skew")
	for _, fs := range report.Features {
		fmt.Fprintf(&b, "%-20s %10.4f %10.4f %10.4f %10.4f %10.4f %8.3f\n",
			fs.Name, fs.Mean, fs.Median, fs.StdDev, fs.Min, fs.Max, fs.Skewness)
	}
	b.WriteString("\n")

	if len(report.Strong) > 0 {
		b.WriteString("STRONG CORRELATIONS:\n")
		b.WriteString(strings.Repeat("-", 20) + "\n")
		for _, pair := range report.Strong {
			fmt.Fprintf(&b, "%s / %s: r = %.3f\n", pair.FeatureA, pair.FeatureB, pair.R)
		}
		b.WriteString("\n")
	}

	if report.PCA != nil {
		b.WriteString("PCA ANALYSIS:\n")
		b.WriteString(strings.Repeat("-", 15) + "\n")
		for i, ratio := range report.PCA.VarianceRatios {
			fmt.Fprintf(&b, "PC%d: %.1f%% variance explained\n", i+1, ratio*100)
		}
		fmt.Fprintf(&b, "\nFirst 2 components explain: %.1f%% of variance\n", report.PCA.CumulativeVariance(2)*100)
		fmt.Fprintf(&b, "First 3 components explain: %.1f%% of variance\n", report.PCA.CumulativeVariance(3)*100)
		b.WriteString("\n")
	}

	b.WriteString(strings.Repeat("=", 50) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteReportFile writes the text summary into dir as analysis_report.txt.
func WriteReportFile(dir string, report Report) (string, error) {
	if err := utils.CreateFolder(dir); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, "analysis_report.txt")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteReport(f, report); err != nil {
		return "", err
	}
	return path, f.Close()
}
