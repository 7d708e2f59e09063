package dataset

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"elephant-logger/models"
)

func sampleFixture(label string, confidence float64, minute int) models.LabeledSample {
	return models.LabeledSample{
		Timestamp: time.Date(2025, 9, 14, 7, minute, 0, 0, time.UTC),
		Features: models.FeatureFrame{
			RMS: 0.45, SpectralCentroid: 38.2, InfrasoundEnergy: 0.81,
			LowBandEnergy: 0.55, MidBandEnergy: 0.18, DominantFreq: 22.5,
			TemporalEnvelope: 0.44, SpectralFlux: 0.22,
		},
		Label:      label,
		Confidence: confidence,
	}
}

func TestBufferCollectsSamples(t *testing.T) {
	t.Parallel()

	buf := NewBuffer()
	buf.Add(sampleFixture("elephant", 0.9, 1))
	buf.Add(sampleFixture("not_elephant", 0.7, 2))

	if buf.Len() != 2 {
		t.Fatalf("Len = %d, want 2", buf.Len())
	}

	samples := buf.Samples()
	samples[0].Label = "mutated"
	if buf.Samples()[0].Label != "elephant" {
		t.Fatal("Samples must return a copy")
	}

	buf.Reset()
	if buf.Len() != 0 {
		t.Fatalf("Len after reset = %d", buf.Len())
	}
}

func TestCSVRoundTrip(t *testing.T) {
	t.Parallel()

	in := []models.LabeledSample{
		sampleFixture("elephant", 0.912, 1),
		sampleFixture("not_elephant", 0.64, 2),
	}

	var out bytes.Buffer
	if err := Write(&out, in); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "timestamp,rms,") {
		t.Fatalf("unexpected header: %s", lines[0])
	}

	got, err := Read(strings.NewReader(out.String()))
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("round trip count = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i].Label != in[i].Label {
			t.Errorf("sample %d label = %q, want %q", i, got[i].Label, in[i].Label)
		}
		if !got[i].Timestamp.Equal(in[i].Timestamp) {
			t.Errorf("sample %d timestamp = %v, want %v", i, got[i].Timestamp, in[i].Timestamp)
		}
		if math.Abs(got[i].Features.InfrasoundEnergy-in[i].Features.InfrasoundEnergy) > 1e-6 {
			t.Errorf("sample %d infrasound drifted: %v", i, got[i].Features.InfrasoundEnergy)
		}
		if math.Abs(got[i].Confidence-in[i].Confidence) > 1e-3 {
			t.Errorf("sample %d confidence drifted: %v", i, got[i].Confidence)
		}
	}
}

func TestReadRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing columns": "timestamp,rms\n2025-09-14 07:01:00,0.1\n",
		"bad timestamp":   strings.Join(Header(), ",") + "\nnot-a-time,0,0,0,0,0,0,0,0,elephant,0.5\n",
		"bad feature":     strings.Join(Header(), ",") + "\n2025-09-14 07:01:00,x,0,0,0,0,0,0,0,elephant,0.5\n",
	}
	for name, input := range cases {
		if _, err := Read(strings.NewReader(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
