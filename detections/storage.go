// Package detections keeps an append-only JSON log of alert episodes so a
// session history survives gateway restarts even without a database configured.
package detections

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"elephant-logger/models"
	"elephant-logger/utils"
)

var (
	detectionsFile = "detections.json"
	mu             sync.RWMutex
)

// filePath resolves the log location, overridable for tests and deployments.
func filePath() string {
	dir := utils.GetEnv("DETECTIONS_DIR", "data")
	return filepath.Join(dir, detectionsFile)
}

// loadDetectionsInternal loads all detections from the JSON file (without lock)
func loadDetectionsInternal() ([]models.Detection, error) {
	path := filePath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return []models.Detection{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading detections file: %v", err)
	}

	if len(data) == 0 {
		return []models.Detection{}, nil
	}

	var detections []models.Detection
	if err := json.Unmarshal(data, &detections); err != nil {
		return nil, fmt.Errorf("error unmarshaling detections: %v", err)
	}

	return detections, nil
}

// LoadDetections loads all detections from the JSON file
func LoadDetections() ([]models.Detection, error) {
	mu.RLock()
	defer mu.RUnlock()
	return loadDetectionsInternal()
}

// SaveDetection appends a new detection to the JSON file
func SaveDetection(detection *models.Detection) error {
	mu.Lock()
	defer mu.Unlock()

	detections, err := loadDetectionsInternal()
	if err != nil {
		return err
	}

	if detection.ID == 0 {
		detection.ID = time.Now().UnixNano()
	}
	if detection.Timestamp.IsZero() {
		detection.Timestamp = time.Now()
	}

	detections = append(detections, *detection)

	path := filePath()
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("error creating directory: %v", err)
		}
	}

	data, err := json.MarshalIndent(detections, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling detections: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing detections file: %v", err)
	}

	return nil
}

// LoadSessionDetections returns the detections recorded under one session ID.
func LoadSessionDetections(sessionID string) ([]models.Detection, error) {
	all, err := LoadDetections()
	if err != nil {
		return nil, err
	}
	var out []models.Detection
	for _, d := range all {
		if d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	return out, nil
}
