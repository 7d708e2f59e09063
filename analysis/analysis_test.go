package analysis

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"elephant-logger/dataset"
	"elephant-logger/models"
)

// syntheticSamples builds a recording with a deterministic structure: rms and
// low_band_energy move together while spectral_flux moves against them, and
// every tenth sample is an elephant.
func syntheticSamples(n int) []models.LabeledSample {
	base := time.Date(2025, 9, 14, 6, 0, 0, 0, time.UTC)
	samples := make([]models.LabeledSample, n)
	for i := range samples {
		v := 0.2 + 0.1*math.Sin(float64(i)/7)
		label, confidence := "not_elephant", 0.2
		if i%10 == 0 {
			label, confidence = "elephant", 0.85
		}
		samples[i] = models.LabeledSample{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Features: models.FeatureFrame{
				RMS:              v,
				SpectralCentroid: 40 + float64(i%13),
				InfrasoundEnergy: 0.5 + 0.05*math.Cos(float64(i)/5),
				LowBandEnergy:    2 * v,
				MidBandEnergy:    0.1 + 0.01*float64(i%7),
				DominantFreq:     20 + float64(i%5),
				TemporalEnvelope: 0.3 + 0.02*float64(i%3),
				SpectralFlux:     1 - v,
			},
			Label:      label,
			Confidence: confidence,
		}
	}
	return samples
}

func TestSummarizeMatchesKnownColumn(t *testing.T) {
	t.Parallel()

	samples := syntheticSamples(50)
	summaries, err := Summarize(samples)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(summaries) != 8 {
		t.Fatalf("summaries = %d, want 8", len(summaries))
	}

	rms := summaries[0]
	if rms.Name != "rms" {
		t.Fatalf("first summary is %q, want rms", rms.Name)
	}
	if rms.Min < 0.1 || rms.Max > 0.3 {
		t.Fatalf("rms range [%v, %v] outside the synthetic bounds", rms.Min, rms.Max)
	}
	if rms.P25 > rms.Median || rms.Median > rms.P75 {
		t.Fatalf("quartiles out of order: %+v", rms)
	}
}

func TestCorrelationMatrixStructure(t *testing.T) {
	t.Parallel()

	samples := syntheticSamples(100)
	matrix := CorrelationMatrix(samples)

	// rms (0) and low_band_energy (3) are constructed perfectly correlated,
	// spectral_flux (7) perfectly anti-correlated.
	if r := matrix[0][3]; r < 0.999 {
		t.Fatalf("rms/low_band correlation = %v, want ~1", r)
	}
	if r := matrix[0][7]; r > -0.999 {
		t.Fatalf("rms/spectral_flux correlation = %v, want ~-1", r)
	}
	for i := range matrix {
		if matrix[i][i] != 1 {
			t.Fatalf("diagonal[%d] = %v", i, matrix[i][i])
		}
		for j := range matrix[i] {
			if math.Abs(matrix[i][j]-matrix[j][i]) > 1e-12 {
				t.Fatalf("matrix not symmetric at (%d,%d)", i, j)
			}
		}
	}

	strong := StrongCorrelations(matrix, 0.9)
	found := false
	for _, pair := range strong {
		if pair.FeatureA == "rms" && pair.FeatureB == "low_band_energy" {
			found = true
		}
	}
	if !found {
		t.Fatalf("strong correlations missed rms/low_band_energy: %+v", strong)
	}
}

func TestSummarizeDetections(t *testing.T) {
	t.Parallel()

	samples := syntheticSamples(100)
	summary := SummarizeDetections(samples, "elephant")

	if summary.Total != 100 || summary.Detections != 10 {
		t.Fatalf("summary = %+v", summary)
	}
	if math.Abs(summary.Rate-0.1) > 1e-9 {
		t.Fatalf("rate = %v, want 0.1", summary.Rate)
	}
	if math.Abs(summary.AvgConfidence-0.85) > 1e-9 {
		t.Fatalf("avg confidence = %v", summary.AvgConfidence)
	}
	if summary.ByHour[6] != 10 {
		t.Fatalf("hour histogram = %v", summary.ByHour)
	}
}

func TestRunPCA(t *testing.T) {
	t.Parallel()

	samples := syntheticSamples(120)
	result, err := RunPCA(samples)
	if err != nil {
		t.Fatalf("RunPCA: %v", err)
	}

	var total float64
	for i, ratio := range result.VarianceRatios {
		if ratio < 0 {
			t.Fatalf("negative variance ratio at %d", i)
		}
		if i > 0 && ratio > result.VarianceRatios[i-1]+1e-9 {
			t.Fatalf("variance ratios not descending: %v", result.VarianceRatios)
		}
		total += ratio
	}
	if math.Abs(total-1) > 1e-6 {
		t.Fatalf("variance ratios sum to %v", total)
	}

	rows, _ := result.Scores.Dims()
	if rows != len(samples) {
		t.Fatalf("scores rows = %d, want %d", rows, len(samples))
	}

	if _, err := RunPCA(samples[:5]); err == nil {
		t.Fatal("expected error for too few samples")
	}
}

func TestLoadDispatchesOnFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	csvPath := filepath.Join(dir, "training.csv")
	if err := dataset.WriteFile(csvPath, syntheticSamples(5)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fromCSV, err := Load(csvPath)
	if err != nil {
		t.Fatalf("Load csv: %v", err)
	}
	if len(fromCSV) != 5 {
		t.Fatalf("csv samples = %d, want 5", len(fromCSV))
	}

	capture := strings.Join([]string{
		"# capture of serial session",
		"ESP32_NOISE_LOGGER_READY",
		"FEATURES:0.45,38.2,0.81,0.55,0.18,22.5,0.44,0.22",
		"STATUS:10,1000,45000",
		"FEATURES:0.50,39.0,0.80,0.60,0.20,23.0,0.45,0.25,elephant,0.9",
		"garbage line",
	}, "\n")
	logPath := filepath.Join(dir, "capture.log")
	if err := os.WriteFile(logPath, []byte(capture), 0644); err != nil {
		t.Fatalf("write capture: %v", err)
	}

	fromLog, err := Load(logPath)
	if err != nil {
		t.Fatalf("Load capture: %v", err)
	}
	if len(fromLog) != 2 {
		t.Fatalf("capture samples = %d, want 2", len(fromLog))
	}
	if fromLog[1].Label != "elephant" || fromLog[1].Features.DominantFreq != 23.0 {
		t.Fatalf("second capture sample = %+v", fromLog[1])
	}
	if !fromLog[1].Timestamp.After(fromLog[0].Timestamp) {
		t.Fatal("artificial timestamps must ascend")
	}
}

func TestRunWritesReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.SkipPlots = true

	report, err := Run(syntheticSamples(60), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.PCA == nil {
		t.Fatal("expected PCA result for 60 samples")
	}

	data, err := os.ReadFile(filepath.Join(dir, "analysis_report.txt"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	text := string(data)
	for _, want := range []string{"DETECTION SUMMARY", "FEATURE STATISTICS", "PCA ANALYSIS", "rms"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q", want)
		}
	}
}
