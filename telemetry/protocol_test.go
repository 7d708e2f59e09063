package telemetry

import (
	"math"
	"testing"
	"time"

	"elephant-logger/models"
)

var now = time.Date(2025, 9, 14, 6, 30, 0, 0, time.UTC)

func TestDecodeFeaturesWithClassification(t *testing.T) {
	t.Parallel()

	line := "FEATURES:0.4521,38.2,0.8134,0.5520,0.1801,22.5,0.4410,0.2203,elephant,0.912"
	msg, err := Decode(line, now)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if msg.Kind != KindFeatures {
		t.Fatalf("expected KindFeatures, got %v", msg.Kind)
	}

	obs := msg.Observation
	if obs == nil || obs.Features == nil {
		t.Fatal("observation or feature frame missing")
	}
	if obs.Label != "elephant" {
		t.Errorf("label = %q, want elephant", obs.Label)
	}
	if math.Abs(obs.Confidence-0.912) > 1e-9 {
		t.Errorf("confidence = %v, want 0.912", obs.Confidence)
	}
	if math.Abs(obs.Features.InfrasoundEnergy-0.8134) > 1e-9 {
		t.Errorf("infrasound = %v, want 0.8134", obs.Features.InfrasoundEnergy)
	}
	if math.Abs(obs.Features.DominantFreq-22.5) > 1e-9 {
		t.Errorf("dominant freq = %v, want 22.5", obs.Features.DominantFreq)
	}
	if !obs.ReceivedAt.Equal(now) {
		t.Errorf("receivedAt = %v, want %v", obs.ReceivedAt, now)
	}
}

func TestDecodeFeatureOnlyForm(t *testing.T) {
	t.Parallel()

	msg, err := Decode("FEATURES:0.05,0.8,0.12,0.08,85.2,95.1,0.15,0.22", now)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if msg.Observation.Label != "" || msg.Observation.Confidence != 0 {
		t.Fatalf("feature-only line should carry no classification, got %+v", msg.Observation)
	}
}

func TestDecodeClassification(t *testing.T) {
	t.Parallel()

	msg, err := Decode("CLASSIFICATION:elephant,0.78", now)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if msg.Kind != KindClassification {
		t.Fatalf("expected KindClassification, got %v", msg.Kind)
	}
	if msg.Observation.Label != "elephant" || math.Abs(msg.Observation.Confidence-0.78) > 1e-9 {
		t.Fatalf("unexpected observation: %+v", msg.Observation)
	}
	if msg.Observation.Features != nil {
		t.Fatal("classification line must not fabricate a feature frame")
	}
}

func TestDecodeStatusAndDataset(t *testing.T) {
	t.Parallel()

	msg, err := Decode("STATUS:512,60000,45000", now)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	want := models.DeviceStatus{SampleCount: 512, UptimeMs: 60000, FreeMemory: 45000, ReceivedAt: now}
	if *msg.Status != want {
		t.Fatalf("status = %+v, want %+v", *msg.Status, want)
	}

	msg, err = Decode("DATASET:40,15,25", now)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if msg.Dataset.Total != 40 || msg.Dataset.Elephant != 15 || msg.Dataset.NotElephant != 25 {
		t.Fatalf("dataset = %+v", msg.Dataset)
	}
}

func TestDecodeAcknowledgements(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line string
		kind Kind
		text string
	}{
		{"ERROR:SPIFFS initialization failed", KindError, "SPIFFS initialization failed"},
		{"OK:data saved", KindOK, "data saved"},
		{"DEBUG:frame ready", KindDebug, "frame ready"},
		{ReadyBanner, KindReady, ""},
		{"Setup complete - ready for operation", KindUnknown, "Setup complete - ready for operation"},
	}
	for _, tc := range cases {
		msg, err := Decode(tc.line, now)
		if err != nil {
			t.Fatalf("Decode(%q) returned error: %v", tc.line, err)
		}
		if msg.Kind != tc.kind {
			t.Errorf("Decode(%q) kind = %v, want %v", tc.line, msg.Kind, tc.kind)
		}
		if msg.Text != tc.text {
			t.Errorf("Decode(%q) text = %q, want %q", tc.line, msg.Text, tc.text)
		}
	}
}

func TestDecodeLabeled(t *testing.T) {
	t.Parallel()

	msg, err := Decode("LABELED:elephant,17", now)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if msg.Label != "elephant" || msg.LabelCount != 17 {
		t.Fatalf("labeled = %q/%d", msg.Label, msg.LabelCount)
	}
}

func TestDecodeMalformedLines(t *testing.T) {
	t.Parallel()

	malformed := []string{
		"FEATURES:0.1,0.2,0.3",
		"FEATURES:a,b,c,d,e,f,g,h",
		"CLASSIFICATION:elephant",
		"CLASSIFICATION:,0.5",
		"CLASSIFICATION:elephant,very",
		"STATUS:512,60000",
		"DATASET:40,fifteen,25",
	}
	for _, line := range malformed {
		if _, err := Decode(line, now); err == nil {
			t.Errorf("Decode(%q) should fail", line)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	frame := models.FeatureFrame{
		RMS: 0.4521, SpectralCentroid: 38.2, InfrasoundEnergy: 0.8134,
		LowBandEnergy: 0.552, MidBandEnergy: 0.1801, DominantFreq: 22.5,
		TemporalEnvelope: 0.441, SpectralFlux: 0.2203,
	}
	line := EncodeFeatures(frame, "elephant", 0.912)

	msg, err := Decode(line, now)
	if err != nil {
		t.Fatalf("Decode(encoded) returned error: %v", err)
	}
	if msg.Observation.Label != "elephant" {
		t.Fatalf("round-trip label = %q", msg.Observation.Label)
	}
	if math.Abs(msg.Observation.Features.RMS-frame.RMS) > 1e-4 {
		t.Fatalf("round-trip rms = %v", msg.Observation.Features.RMS)
	}
}

func TestEncodeLabelCommand(t *testing.T) {
	t.Parallel()

	cmd, err := EncodeLabelCommand("elephant")
	if err != nil {
		t.Fatalf("EncodeLabelCommand returned error: %v", err)
	}
	if cmd != "LABEL:elephant" {
		t.Fatalf("cmd = %q", cmd)
	}

	for _, bad := range []string{"", " ", "a,b", "x\ny"} {
		if _, err := EncodeLabelCommand(bad); err == nil {
			t.Errorf("EncodeLabelCommand(%q) should fail", bad)
		}
	}
}
