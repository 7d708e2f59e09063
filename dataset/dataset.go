// Package dataset collects operator-labeled feature frames and moves them in
// and out of the CSV training-data format.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"elephant-logger/models"
)

// TimestampLayout is the timestamp column format of exported training data.
const TimestampLayout = "2006-01-02 15:04:05"

// Buffer accumulates labeled samples during a live session. Safe for
// concurrent use: the session goroutine appends while export handlers read.
type Buffer struct {
	mu      sync.RWMutex
	samples []models.LabeledSample
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Add appends one labeled sample.
func (b *Buffer) Add(sample models.LabeledSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, sample)
}

// Len reports the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Samples returns a copy of the buffered samples.
func (b *Buffer) Samples() []models.LabeledSample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.LabeledSample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Reset drops all buffered samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}

// Header returns the CSV column names: timestamp, the eight feature columns,
// label and confidence.
func Header() []string {
	header := append([]string{"timestamp"}, models.FeatureNames()...)
	return append(header, "label", "confidence")
}

// Write exports samples as CSV with a header row.
func Write(w io.Writer, samples []models.LabeledSample) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, 0, 11)
	for i, sample := range samples {
		record = record[:0]
		record = append(record, sample.Timestamp.Format(TimestampLayout))
		for _, v := range sample.Features.Values() {
			record = append(record, strconv.FormatFloat(v, 'f', 6, 64))
		}
		record = append(record, sample.Label, strconv.FormatFloat(sample.Confidence, 'f', 3, 64))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile exports samples to a CSV file.
func WriteFile(path string, samples []models.LabeledSample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := Write(f, samples); err != nil {
		return err
	}
	return f.Close()
}

// Read loads labeled samples from CSV produced by Write (or by the analyzer's
// sample-data generator). The header row is required.
func Read(r io.Reader) ([]models.LabeledSample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 11 {
		return nil, fmt.Errorf("expected 11 columns, got %d", len(header))
	}

	var samples []models.LabeledSample
	for lineNo := 2; ; lineNo++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if len(record) < 11 {
			return nil, fmt.Errorf("line %d: expected 11 columns, got %d", lineNo, len(record))
		}

		ts, err := time.Parse(TimestampLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d timestamp: %w", lineNo, err)
		}

		values := make([]float64, 8)
		for i := 0; i < 8; i++ {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", lineNo, header[i+1], err)
			}
			values[i] = v
		}

		confidence, err := strconv.ParseFloat(record[10], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d confidence: %w", lineNo, err)
		}

		samples = append(samples, models.LabeledSample{
			Timestamp: ts,
			Features: models.FeatureFrame{
				RMS: values[0], SpectralCentroid: values[1], InfrasoundEnergy: values[2],
				LowBandEnergy: values[3], MidBandEnergy: values[4], DominantFreq: values[5],
				TemporalEnvelope: values[6], SpectralFlux: values[7],
			},
			Label:      record[9],
			Confidence: confidence,
		})
	}

	return samples, nil
}

// ReadFile loads labeled samples from a CSV file.
func ReadFile(path string) ([]models.LabeledSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
