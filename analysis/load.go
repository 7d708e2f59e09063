// Package analysis runs offline statistics, PCA and plotting over recorded
// feature data, either exported CSV or a raw serial capture.
package analysis

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"elephant-logger/dataset"
	"elephant-logger/models"
	"elephant-logger/telemetry"
)

// Load reads labeled samples from path. Files with a CSV header are treated as
// exported training data; anything else is parsed as a raw serial capture.
func Load(path string) ([]models.LabeledSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	head, err := reader.Peek(len("timestamp,"))
	if err == nil && strings.HasPrefix(string(head), "timestamp,") {
		return dataset.Read(reader)
	}
	return parseSerialCapture(reader)
}

// parseSerialCapture replays protocol lines out of a logged serial session.
// Lines that do not decode to a feature frame are skipped; captures carry
// no wall clock, so rows get artificial one-second timestamps.
func parseSerialCapture(reader *bufio.Reader) ([]models.LabeledSample, error) {
	var samples []models.LabeledSample

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		at := base.Add(time.Duration(len(samples)) * time.Second)
		msg, err := telemetry.Decode(line, at)
		if err != nil || msg.Kind != telemetry.KindFeatures {
			continue
		}
		obs := msg.Observation
		if obs.Features == nil {
			continue
		}
		samples = append(samples, models.LabeledSample{
			Timestamp:  at,
			Features:   *obs.Features,
			Label:      obs.Label,
			Confidence: obs.Confidence,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no feature frames found in capture")
	}
	return samples, nil
}

// FeatureMatrix lays the samples out as rows of the eight feature columns.
func FeatureMatrix(samples []models.LabeledSample) [][]float64 {
	rows := make([][]float64, len(samples))
	for i, sample := range samples {
		rows[i] = sample.Features.Values()
	}
	return rows
}

// Column extracts one feature column by index.
func Column(samples []models.LabeledSample, idx int) []float64 {
	col := make([]float64, len(samples))
	for i, sample := range samples {
		col[i] = sample.Features.Values()[idx]
	}
	return col
}
