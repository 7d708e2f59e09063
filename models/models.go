package models

import (
	"time"
)

// FeatureFrame holds one frame of audio features extracted on the device.
// Field order matches the FEATURES line of the serial protocol.
type FeatureFrame struct {
	RMS              float64 `json:"rms"`
	SpectralCentroid float64 `json:"spectralCentroid"`
	InfrasoundEnergy float64 `json:"infrasoundEnergy"`
	LowBandEnergy    float64 `json:"lowBandEnergy"`
	MidBandEnergy    float64 `json:"midBandEnergy"`
	DominantFreq     float64 `json:"dominantFreq"`
	TemporalEnvelope float64 `json:"temporalEnvelope"`
	SpectralFlux     float64 `json:"spectralFlux"`
}

// Values returns the frame as a vector in protocol order.
func (f FeatureFrame) Values() []float64 {
	return []float64{
		f.RMS, f.SpectralCentroid, f.InfrasoundEnergy, f.LowBandEnergy,
		f.MidBandEnergy, f.DominantFreq, f.TemporalEnvelope, f.SpectralFlux,
	}
}

// FeatureNames lists the feature columns in protocol order.
func FeatureNames() []string {
	return []string{
		"rms", "spectral_centroid", "infrasound_energy", "low_band_energy",
		"mid_band_energy", "dominant_freq", "temporal_envelope", "spectral_flux",
	}
}

// Observation is one classification sample decoded from the device stream.
type Observation struct {
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Features   *FeatureFrame `json:"features,omitempty"`
	ReceivedAt time.Time     `json:"receivedAt"`
}

// DeviceStatus mirrors the periodic STATUS line from the device.
type DeviceStatus struct {
	SampleCount int       `json:"sampleCount"`
	UptimeMs    int64     `json:"uptimeMs"`
	FreeMemory  int       `json:"freeMemory"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// DatasetInfo mirrors the DATASET line reporting labeled sample counts on the device.
type DatasetInfo struct {
	Total       int `json:"total"`
	Elephant    int `json:"elephant"`
	NotElephant int `json:"notElephant"`
}

// Detection records a completed alert transition for later review.
type Detection struct {
	ID         int64         `json:"id" bson:"id"`
	SessionID  string        `json:"sessionId" bson:"sessionId"`
	Timestamp  time.Time     `json:"timestamp" bson:"timestamp"`
	Tier       string        `json:"tier" bson:"tier"`
	Label      string        `json:"label" bson:"label"`
	Confidence float64       `json:"confidence" bson:"confidence"`
	Features   *FeatureFrame `json:"features,omitempty" bson:"features,omitempty"`
}

// LabeledSample is one operator-labeled feature frame destined for training data.
type LabeledSample struct {
	Timestamp  time.Time    `json:"timestamp" bson:"timestamp"`
	Features   FeatureFrame `json:"features" bson:"features"`
	Label      string       `json:"label" bson:"label"`
	Confidence float64      `json:"confidence" bson:"confidence"`
}
