package analysis

import (
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"elephant-logger/models"
)

// FeatureSummary describes the distribution of one feature column.
type FeatureSummary struct {
	Name     string
	Mean     float64
	Median   float64
	StdDev   float64
	Min      float64
	Max      float64
	P25      float64
	P75      float64
	Skewness float64
	Kurtosis float64
}

// Summarize computes per-feature distribution summaries.
func Summarize(samples []models.LabeledSample) ([]FeatureSummary, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to summarize")
	}

	names := models.FeatureNames()
	summaries := make([]FeatureSummary, len(names))

	for i, name := range names {
		col := Column(samples, i)
		data := stats.Float64Data(col)

		mean, err := data.Mean()
		if err != nil {
			return nil, fmt.Errorf("mean of %s: %w", name, err)
		}
		median, err := data.Median()
		if err != nil {
			return nil, fmt.Errorf("median of %s: %w", name, err)
		}
		stdDev, err := data.StandardDeviation()
		if err != nil {
			return nil, fmt.Errorf("stddev of %s: %w", name, err)
		}
		min, err := data.Min()
		if err != nil {
			return nil, fmt.Errorf("min of %s: %w", name, err)
		}
		max, err := data.Max()
		if err != nil {
			return nil, fmt.Errorf("max of %s: %w", name, err)
		}
		p25, err := data.Percentile(25)
		if err != nil {
			return nil, fmt.Errorf("p25 of %s: %w", name, err)
		}
		p75, err := data.Percentile(75)
		if err != nil {
			return nil, fmt.Errorf("p75 of %s: %w", name, err)
		}

		summaries[i] = FeatureSummary{
			Name:     name,
			Mean:     mean,
			Median:   median,
			StdDev:   stdDev,
			Min:      min,
			Max:      max,
			P25:      p25,
			P75:      p75,
			Skewness: stat.Skew(col, nil),
			Kurtosis: stat.ExKurtosis(col, nil),
		}
	}

	return summaries, nil
}

// CorrelationMatrix returns the Pearson correlation between every feature pair.
func CorrelationMatrix(samples []models.LabeledSample) [][]float64 {
	n := len(models.FeatureNames())
	cols := make([][]float64, n)
	for i := range cols {
		cols[i] = Column(samples, i)
	}

	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		for j := range matrix[i] {
			if i == j {
				matrix[i][j] = 1
				continue
			}
			matrix[i][j] = stat.Correlation(cols[i], cols[j], nil)
		}
	}
	return matrix
}

// CorrelationPair is a feature pair whose correlation magnitude crossed the
// reporting threshold.
type CorrelationPair struct {
	FeatureA string
	FeatureB string
	R        float64
}

// StrongCorrelations lists feature pairs with |r| >= threshold.
func StrongCorrelations(matrix [][]float64, threshold float64) []CorrelationPair {
	names := models.FeatureNames()
	var pairs []CorrelationPair
	for i := range matrix {
		for j := i + 1; j < len(matrix[i]); j++ {
			r := matrix[i][j]
			if r >= threshold || r <= -threshold {
				pairs = append(pairs, CorrelationPair{FeatureA: names[i], FeatureB: names[j], R: r})
			}
		}
	}
	return pairs
}

// DetectionSummary aggregates the labeled positives of a recording.
type DetectionSummary struct {
	Total          int
	Detections     int
	Rate           float64
	AvgConfidence  float64
	ByHour         [24]int
	FirstTimestamp time.Time
	LastTimestamp  time.Time
}

// SummarizeDetections reports positive-label counts, their mean confidence and
// the hour-of-day distribution.
func SummarizeDetections(samples []models.LabeledSample, positiveLabel string) DetectionSummary {
	summary := DetectionSummary{Total: len(samples)}
	if len(samples) == 0 {
		return summary
	}

	summary.FirstTimestamp = samples[0].Timestamp
	summary.LastTimestamp = samples[0].Timestamp

	var confidenceSum float64
	for _, sample := range samples {
		if sample.Timestamp.Before(summary.FirstTimestamp) {
			summary.FirstTimestamp = sample.Timestamp
		}
		if sample.Timestamp.After(summary.LastTimestamp) {
			summary.LastTimestamp = sample.Timestamp
		}
		if sample.Label != positiveLabel {
			continue
		}
		summary.Detections++
		confidenceSum += sample.Confidence
		summary.ByHour[sample.Timestamp.Hour()]++
	}

	summary.Rate = float64(summary.Detections) / float64(summary.Total)
	if summary.Detections > 0 {
		summary.AvgConfidence = confidenceSum / float64(summary.Detections)
	}
	return summary
}
