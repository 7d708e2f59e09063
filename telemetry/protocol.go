// Package telemetry decodes the line-oriented text protocol spoken by the
// ESP32 noise logger over its USB serial link, and encodes the commands the
// host may send back. One line is one message; fields are comma separated.
package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"elephant-logger/models"
)

// ReadyBanner is printed by the firmware once its setup completes.
const ReadyBanner = "ESP32_NOISE_LOGGER_READY"

// Line prefixes understood by the decoder.
const (
	prefixFeatures       = "FEATURES:"
	prefixClassification = "CLASSIFICATION:"
	prefixStatus         = "STATUS:"
	prefixDataset        = "DATASET:"
	prefixLabeled        = "LABELED:"
	prefixError          = "ERROR:"
	prefixOK             = "OK:"
	prefixDebug          = "DEBUG:"
)

// Commands accepted by the firmware.
const (
	CommandSaveData    = "SAVE_DATA"
	CommandClearData   = "CLEAR_DATA"
	CommandGetStatus   = "GET_STATUS"
	CommandGetFeatures = "GET_FEATURES"
)

// Kind discriminates decoded messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindReady
	KindFeatures
	KindClassification
	KindStatus
	KindDataset
	KindLabeled
	KindError
	KindOK
	KindDebug
)

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindFeatures:
		return "features"
	case KindClassification:
		return "classification"
	case KindStatus:
		return "status"
	case KindDataset:
		return "dataset"
	case KindLabeled:
		return "labeled"
	case KindError:
		return "error"
	case KindOK:
		return "ok"
	case KindDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Message is one decoded protocol line. Only the fields matching Kind are set.
type Message struct {
	Kind        Kind
	Raw         string
	Observation *models.Observation
	Status      *models.DeviceStatus
	Dataset     *models.DatasetInfo
	Label       string // LABELED: confirmation
	LabelCount  int
	Text        string // ERROR/OK/DEBUG payload, or the raw line for KindUnknown
}

// Decode parses one stripped protocol line. Lines that carry no prefix are
// returned as KindUnknown with Text set; firmware boot chatter falls in this
// bucket and is only worth logging.
func Decode(line string, now time.Time) (Message, error) {
	line = strings.TrimSpace(line)

	switch {
	case line == ReadyBanner:
		return Message{Kind: KindReady, Raw: line}, nil

	case strings.HasPrefix(line, prefixFeatures):
		obs, err := decodeFeatures(line[len(prefixFeatures):], now)
		if err != nil {
			return Message{}, fmt.Errorf("features line: %w", err)
		}
		return Message{Kind: KindFeatures, Raw: line, Observation: obs}, nil

	case strings.HasPrefix(line, prefixClassification):
		obs, err := decodeClassification(line[len(prefixClassification):], now)
		if err != nil {
			return Message{}, fmt.Errorf("classification line: %w", err)
		}
		return Message{Kind: KindClassification, Raw: line, Observation: obs}, nil

	case strings.HasPrefix(line, prefixStatus):
		status, err := decodeStatus(line[len(prefixStatus):], now)
		if err != nil {
			return Message{}, fmt.Errorf("status line: %w", err)
		}
		return Message{Kind: KindStatus, Raw: line, Status: status}, nil

	case strings.HasPrefix(line, prefixDataset):
		info, err := decodeDataset(line[len(prefixDataset):])
		if err != nil {
			return Message{}, fmt.Errorf("dataset line: %w", err)
		}
		return Message{Kind: KindDataset, Raw: line, Dataset: info}, nil

	case strings.HasPrefix(line, prefixLabeled):
		label, count, err := decodeLabeled(line[len(prefixLabeled):])
		if err != nil {
			return Message{}, fmt.Errorf("labeled line: %w", err)
		}
		return Message{Kind: KindLabeled, Raw: line, Label: label, LabelCount: count}, nil

	case strings.HasPrefix(line, prefixError):
		return Message{Kind: KindError, Raw: line, Text: line[len(prefixError):]}, nil

	case strings.HasPrefix(line, prefixOK):
		return Message{Kind: KindOK, Raw: line, Text: line[len(prefixOK):]}, nil

	case strings.HasPrefix(line, prefixDebug):
		return Message{Kind: KindDebug, Raw: line, Text: line[len(prefixDebug):]}, nil

	default:
		return Message{Kind: KindUnknown, Raw: line, Text: line}, nil
	}
}

// decodeFeatures handles the long FEATURES form:
// rms,centroid,infrasound,low_band,mid_band,dominant_freq,envelope,flux,label,confidence
// The trailing label+confidence pair is optional; the firmware's older
// feature-only form has just the 8 floats.
func decodeFeatures(payload string, now time.Time) (*models.Observation, error) {
	parts := strings.Split(payload, ",")
	if len(parts) < 8 {
		return nil, fmt.Errorf("expected at least 8 fields, got %d", len(parts))
	}

	values := make([]float64, 8)
	for i := 0; i < 8; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		values[i] = v
	}

	obs := &models.Observation{
		ReceivedAt: now,
		Features: &models.FeatureFrame{
			RMS:              values[0],
			SpectralCentroid: values[1],
			InfrasoundEnergy: values[2],
			LowBandEnergy:    values[3],
			MidBandEnergy:    values[4],
			DominantFreq:     values[5],
			TemporalEnvelope: values[6],
			SpectralFlux:     values[7],
		},
	}

	if len(parts) >= 10 {
		obs.Label = strings.TrimSpace(parts[8])
		confidence, err := strconv.ParseFloat(strings.TrimSpace(parts[9]), 64)
		if err != nil {
			return nil, fmt.Errorf("confidence: %w", err)
		}
		obs.Confidence = confidence
	}

	return obs, nil
}

// decodeClassification handles "label,confidence" with optional trailing fields.
func decodeClassification(payload string, now time.Time) (*models.Observation, error) {
	parts := strings.Split(payload, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("expected label and confidence, got %d fields", len(parts))
	}

	label := strings.TrimSpace(parts[0])
	if label == "" {
		return nil, fmt.Errorf("empty label")
	}

	confidence, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("confidence: %w", err)
	}

	return &models.Observation{
		Label:      label,
		Confidence: confidence,
		ReceivedAt: now,
	}, nil
}

func decodeStatus(payload string, now time.Time) (*models.DeviceStatus, error) {
	parts := strings.Split(payload, ",")
	if len(parts) < 3 {
		return nil, fmt.Errorf("expected 3 fields, got %d", len(parts))
	}

	samples, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("sample count: %w", err)
	}
	uptime, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("uptime: %w", err)
	}
	freeMem, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, fmt.Errorf("free memory: %w", err)
	}

	return &models.DeviceStatus{
		SampleCount: samples,
		UptimeMs:    uptime,
		FreeMemory:  freeMem,
		ReceivedAt:  now,
	}, nil
}

func decodeDataset(payload string) (*models.DatasetInfo, error) {
	parts := strings.Split(payload, ",")
	if len(parts) < 3 {
		return nil, fmt.Errorf("expected 3 fields, got %d", len(parts))
	}

	values := make([]int, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		values[i] = v
	}

	return &models.DatasetInfo{Total: values[0], Elephant: values[1], NotElephant: values[2]}, nil
}

func decodeLabeled(payload string) (string, int, error) {
	parts := strings.Split(payload, ",")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("expected label and count, got %d fields", len(parts))
	}
	count, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", 0, fmt.Errorf("count: %w", err)
	}
	return strings.TrimSpace(parts[0]), count, nil
}

// EncodeLabelCommand builds a LABEL command line (without newline).
func EncodeLabelCommand(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("label must not be empty")
	}
	if strings.ContainsAny(label, ",\r\n") {
		return "", fmt.Errorf("label %q contains protocol delimiters", label)
	}
	return "LABEL:" + label, nil
}

// EncodeFeatures renders a full FEATURES line the way the firmware does;
// the simulator uses it to replay realistic traffic.
func EncodeFeatures(frame models.FeatureFrame, label string, confidence float64) string {
	return fmt.Sprintf("FEATURES:%.4f,%.1f,%.4f,%.4f,%.4f,%.1f,%.4f,%.4f,%s,%.3f",
		frame.RMS, frame.SpectralCentroid, frame.InfrasoundEnergy, frame.LowBandEnergy,
		frame.MidBandEnergy, frame.DominantFreq, frame.TemporalEnvelope, frame.SpectralFlux,
		label, confidence)
}

// EncodeStatus renders a STATUS line.
func EncodeStatus(status models.DeviceStatus) string {
	return fmt.Sprintf("STATUS:%d,%d,%d", status.SampleCount, status.UptimeMs, status.FreeMemory)
}
