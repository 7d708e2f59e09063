// gen_sample_data writes a synthetic labeled training CSV for exercising the
// analyzer without a live recording session.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"time"

	"elephant-logger/dataset"
	"elephant-logger/models"
)

func main() {
	samples := flag.Int("samples", 2000, "Number of samples to generate")
	rate := flag.Float64("rate", 0.05, "Fraction of samples labeled as detections")
	output := flag.String("output", "sample_data.csv", "Output CSV path")
	seed := flag.Int64("seed", 42, "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	start := time.Now().Add(-time.Duration(*samples) * time.Second).Truncate(time.Second)

	log.Printf("Generating %d samples with %.1f%% detection rate...", *samples, *rate*100)
	data := generate(rng, *samples, *rate, start)

	if err := dataset.WriteFile(*output, data); err != nil {
		log.Fatalf("failed to write %s: %v", *output, err)
	}

	detections := 0
	for _, s := range data {
		if s.Label == "elephant" {
			detections++
		}
	}
	log.Printf("Wrote %d samples (%d detections) to %s", len(data), detections, *output)
}

func generate(rng *rand.Rand, n int, rate float64, start time.Time) []models.LabeledSample {
	samples := make([]models.LabeledSample, n)

	// Background forest ambience.
	for i := range samples {
		samples[i] = models.LabeledSample{
			Timestamp: start.Add(time.Duration(i) * time.Second),
			Features: models.FeatureFrame{
				RMS:              lognormal(rng, math.Log(0.08), 0.5),
				SpectralCentroid: gamma(rng, 2, 40),
				InfrasoundEnergy: clamp(rng.NormFloat64()*0.1+0.25, 0, 1),
				LowBandEnergy:    clamp(rng.NormFloat64()*0.1+0.3, 0, 1),
				MidBandEnergy:    clamp(rng.NormFloat64()*0.12+0.35, 0, 1),
				DominantFreq:     gamma(rng, 3, 30),
				TemporalEnvelope: clamp(rng.NormFloat64()*0.1+0.3, 0, 1),
				SpectralFlux:     clamp(rng.NormFloat64()*0.08+0.2, 0, 1),
			},
			Label:      "not_elephant",
			Confidence: 0.5 + rng.Float64()*0.35,
		}
	}

	// Inject detection events with temporal spreading: a rumble lasts several
	// seconds and fades out.
	events := int(float64(n) * rate)
	for e := 0; e < events; e++ {
		idx := rng.Intn(n)
		f := &samples[idx].Features
		f.RMS *= uniform(rng, 2.5, 5.0)
		f.InfrasoundEnergy = clamp(f.InfrasoundEnergy+uniform(rng, 0.35, 0.6), 0, 1)
		f.LowBandEnergy = clamp(f.LowBandEnergy+uniform(rng, 0.2, 0.4), 0, 1)
		f.SpectralCentroid *= uniform(rng, 0.2, 0.5)
		f.DominantFreq = uniform(rng, 12, 45)
		f.TemporalEnvelope = clamp(f.TemporalEnvelope+uniform(rng, 0.1, 0.3), 0, 1)
		samples[idx].Label = "elephant"
		samples[idx].Confidence = uniform(rng, 0.6, 0.95)

		spread := 5
		if idx+spread >= n {
			spread = n - idx - 1
		}
		for offset := 1; offset < spread; offset++ {
			if rng.Float64() >= 0.6 {
				continue
			}
			fade := 1.0 - float64(offset)/float64(spread)
			g := &samples[idx+offset].Features
			g.RMS *= 1 + fade*1.5
			g.InfrasoundEnergy = clamp(g.InfrasoundEnergy+fade*0.3, 0, 1)
			g.SpectralCentroid *= 1 - fade*0.3
			if rng.Float64() < 0.4 && samples[idx+offset].Label == "not_elephant" {
				samples[idx+offset].Label = "elephant"
				samples[idx+offset].Confidence = samples[idx].Confidence * fade
			}
		}
	}

	return samples
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func lognormal(rng *rand.Rand, mu, sigma float64) float64 {
	return math.Exp(rng.NormFloat64()*sigma + mu)
}

// gamma draws from a gamma distribution by summing shape exponentials; shape
// is small and integral here.
func gamma(rng *rand.Rand, shape int, scale float64) float64 {
	var sum float64
	for i := 0; i < shape; i++ {
		sum += rng.ExpFloat64()
	}
	return sum * scale
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
