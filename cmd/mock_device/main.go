// mock_device emulates the ESP32 noise logger over a TCP socket or stdout so
// the gateway can be exercised without hardware. The feature distributions
// follow field recordings: elephant rumbles push infrasound energy up and the
// dominant frequency down.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"elephant-logger/models"
	"elephant-logger/telemetry"
)

type config struct {
	addr      string
	rateHz    int
	burstProb float64
	seed      int64
}

func main() {
	cfg := config{}
	flag.StringVar(&cfg.addr, "addr", "", "TCP address to listen on (empty writes to stdout)")
	flag.IntVar(&cfg.rateHz, "rate", 10, "Feature frames per second")
	flag.Float64Var(&cfg.burstProb, "burst", 0.3, "Probability of an elephant burst per 3s window")
	flag.Int64Var(&cfg.seed, "seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	if cfg.seed == 0 {
		cfg.seed = time.Now().UnixNano()
	}

	if cfg.addr == "" {
		log.Println("Streaming to stdout; press Ctrl-C to stop")
		run(os.Stdout, nil, cfg)
		return
	}

	listener, err := net.Listen("tcp", cfg.addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", cfg.addr, err)
	}
	log.Printf("Mock noise logger listening on %s", cfg.addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Fatalf("accept: %v", err)
		}
		log.Printf("Gateway connected from %s", conn.RemoteAddr())
		go func() {
			defer conn.Close()
			run(conn, conn, cfg)
			log.Printf("Connection from %s closed", conn.RemoteAddr())
		}()
	}
}

// run streams protocol lines to w and, when r is non-nil, answers inbound
// commands the way the firmware does.
func run(w io.Writer, r io.Reader, cfg config) {
	rng := rand.New(rand.NewSource(cfg.seed))
	out := bufio.NewWriter(w)
	lines := make(chan string, 16)
	done := make(chan struct{})

	dataset := models.DatasetInfo{}

	if r != nil {
		go func() {
			defer close(done)
			scanner := bufio.NewScanner(r)
			for scanner.Scan() {
				cmd := strings.TrimSpace(scanner.Text())
				switch {
				case strings.HasPrefix(cmd, "LABEL:"):
					label := strings.TrimPrefix(cmd, "LABEL:")
					dataset.Total++
					if label == "elephant" {
						dataset.Elephant++
					} else {
						dataset.NotElephant++
					}
					lines <- fmt.Sprintf("LABELED:%s,%d", label, dataset.Total)
				case cmd == telemetry.CommandSaveData:
					lines <- fmt.Sprintf("OK:SAVED,%d", dataset.Total)
					lines <- fmt.Sprintf("DATASET:%d,%d,%d", dataset.Total, dataset.Elephant, dataset.NotElephant)
				case cmd == telemetry.CommandClearData:
					dataset = models.DatasetInfo{}
					lines <- "OK:CLEARED"
				case cmd == telemetry.CommandGetStatus:
					lines <- "STATUS_REQUESTED"
				case cmd != "":
					lines <- "ERROR:unknown command " + cmd
				}
			}
		}()
	} else {
		close(done)
	}

	write := func(line string) bool {
		if _, err := out.WriteString(line + "\n"); err != nil {
			return false
		}
		return out.Flush() == nil
	}

	if !write(telemetry.ReadyBanner) {
		return
	}

	interval := time.Second / time.Duration(cfg.rateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	counter := 0
	burst := false
	statusRequested := false

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "STATUS_REQUESTED" {
				statusRequested = true
				continue
			}
			if !write(line) {
				return
			}

		case <-done:
			if r != nil {
				return
			}
			done = nil

		case <-ticker.C:
			// Re-roll the burst state every 3 seconds; a burst holds for
			// the first second of its window.
			window := counter % (3 * cfg.rateHz)
			if window == 0 {
				burst = rng.Float64() < cfg.burstProb
			}
			active := burst && window < cfg.rateHz

			frame, label, confidence := sampleFrame(rng, active)
			if !write(telemetry.EncodeFeatures(frame, label, confidence)) {
				return
			}

			if statusRequested || counter%(5*cfg.rateHz) == 0 {
				statusRequested = false
				status := models.DeviceStatus{
					SampleCount: counter * 10,
					UptimeMs:    time.Since(start).Milliseconds(),
					FreeMemory:  40000 + rng.Intn(10000),
				}
				if !write(telemetry.EncodeStatus(status)) {
					return
				}
			}
			counter++
		}
	}
}

func sampleFrame(rng *rand.Rand, elephant bool) (models.FeatureFrame, string, float64) {
	uniform := func(lo, hi float64) float64 {
		return lo + rng.Float64()*(hi-lo)
	}

	if elephant {
		return models.FeatureFrame{
			RMS:              uniform(0.4, 0.9),
			SpectralCentroid: uniform(25, 60),
			InfrasoundEnergy: uniform(0.6, 0.95),
			LowBandEnergy:    uniform(0.4, 0.8),
			MidBandEnergy:    uniform(0.1, 0.3),
			DominantFreq:     uniform(12, 45),
			TemporalEnvelope: uniform(0.3, 0.7),
			SpectralFlux:     uniform(0.1, 0.4),
		}, "elephant", uniform(0.75, 0.95)
	}
	return models.FeatureFrame{
		RMS:              uniform(0.05, 0.4),
		SpectralCentroid: uniform(45, 150),
		InfrasoundEnergy: uniform(0.1, 0.5),
		LowBandEnergy:    uniform(0.1, 0.5),
		MidBandEnergy:    uniform(0.1, 0.6),
		DominantFreq:     uniform(30, 180),
		TemporalEnvelope: uniform(0.1, 0.5),
		SpectralFlux:     uniform(0.05, 0.3),
	}, "not_elephant", uniform(0.5, 0.85)
}
