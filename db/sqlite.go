package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"elephant-logger/dataset"
	"elephant-logger/models"
	"elephant-logger/utils"
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %s", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %s", err)
	}

	err = createTables(db)
	if err != nil {
		return nil, fmt.Errorf("error creating tables: %s", err)
	}

	return &SQLiteClient{db: db}, nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createDetectionsTable := `
    CREATE TABLE IF NOT EXISTS detections (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        tier TEXT NOT NULL,
        label TEXT NOT NULL,
        confidence REAL NOT NULL DEFAULT 0,
        features TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections(timestamp);
    CREATE INDEX IF NOT EXISTS idx_detections_session ON detections(session_id);
    `

	createLabeledSamplesTable := `
    CREATE TABLE IF NOT EXISTS labeled_samples (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL,
        label TEXT NOT NULL,
        confidence REAL NOT NULL DEFAULT 0,
        features TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_labeled_samples_label ON labeled_samples(label);
    `

	_, err := db.Exec(createDetectionsTable)
	if err != nil {
		return fmt.Errorf("error creating detections table: %s", err)
	}

	_, err = db.Exec(createLabeledSamplesTable)
	if err != nil {
		return fmt.Errorf("error creating labeled_samples table: %s", err)
	}

	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// StoreDetection stores a detection in the database
func (db *SQLiteClient) StoreDetection(detection *models.Detection) error {
	var featuresJSON *string
	if detection.Features != nil {
		featureBytes, err := json.Marshal(detection.Features)
		if err != nil {
			return fmt.Errorf("error marshaling features: %s", err)
		}
		featuresStr := string(featureBytes)
		featuresJSON = &featuresStr
	}

	result, err := db.db.Exec(`
		INSERT INTO detections (session_id, timestamp, tier, label, confidence, features)
		VALUES (?, ?, ?, ?, ?, ?)`,
		detection.SessionID,
		detection.Timestamp,
		detection.Tier,
		detection.Label,
		detection.Confidence,
		featuresJSON,
	)
	if err != nil {
		return fmt.Errorf("error storing detection: %s", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		detection.ID = id
	}
	return nil
}

func (db *SQLiteClient) queryDetections(query string, args ...interface{}) ([]models.Detection, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying detections: %s", err)
	}
	defer rows.Close()

	var detections []models.Detection
	for rows.Next() {
		var d models.Detection
		var featuresJSON *string

		err := rows.Scan(
			&d.ID,
			&d.SessionID,
			&d.Timestamp,
			&d.Tier,
			&d.Label,
			&d.Confidence,
			&featuresJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning detection: %s", err)
		}

		if featuresJSON != nil {
			var frame models.FeatureFrame
			if err := json.Unmarshal([]byte(*featuresJSON), &frame); err != nil {
				return nil, fmt.Errorf("error unmarshaling features: %s", err)
			}
			d.Features = &frame
		}

		detections = append(detections, d)
	}

	return detections, rows.Err()
}

// GetAllDetections retrieves all detections from the database
func (db *SQLiteClient) GetAllDetections() ([]models.Detection, error) {
	return db.queryDetections(`
		SELECT id, session_id, timestamp, tier, label, confidence, features
		FROM detections
		ORDER BY timestamp DESC
	`)
}

// GetRecentDetections retrieves the newest detections up to limit
func (db *SQLiteClient) GetRecentDetections(limit int) ([]models.Detection, error) {
	return db.queryDetections(`
		SELECT id, session_id, timestamp, tier, label, confidence, features
		FROM detections
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
}

// GetDetectionsBySession retrieves the detections of one monitoring session
func (db *SQLiteClient) GetDetectionsBySession(sessionID string) ([]models.Detection, error) {
	return db.queryDetections(`
		SELECT id, session_id, timestamp, tier, label, confidence, features
		FROM detections
		WHERE session_id = ?
		ORDER BY timestamp ASC
	`, sessionID)
}

// StoreLabeledSamples stores a batch of labeled training samples
func (db *SQLiteClient) StoreLabeledSamples(samples []models.LabeledSample) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %s", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO labeled_samples (timestamp, label, confidence, features)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %s", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		featureBytes, err := json.Marshal(sample.Features)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error marshaling features: %s", err)
		}
		ts := sample.Timestamp.Format(dataset.TimestampLayout)
		if _, err := stmt.Exec(ts, sample.Label, sample.Confidence, string(featureBytes)); err != nil {
			tx.Rollback()
			return fmt.Errorf("error executing statement: %s", err)
		}
	}

	return tx.Commit()
}

// GetLabeledSamples retrieves all labeled training samples
func (db *SQLiteClient) GetLabeledSamples() ([]models.LabeledSample, error) {
	rows, err := db.db.Query(`
		SELECT timestamp, label, confidence, features
		FROM labeled_samples
		ORDER BY timestamp ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("error querying labeled samples: %s", err)
	}
	defer rows.Close()

	var samples []models.LabeledSample
	for rows.Next() {
		var sample models.LabeledSample
		var featuresJSON string

		if err := rows.Scan(&sample.Timestamp, &sample.Label, &sample.Confidence, &featuresJSON); err != nil {
			return nil, fmt.Errorf("error scanning labeled sample: %s", err)
		}
		if err := json.Unmarshal([]byte(featuresJSON), &sample.Features); err != nil {
			return nil, fmt.Errorf("error unmarshaling features: %s", err)
		}

		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

func (db *SQLiteClient) TotalLabeledSamples() (int, error) {
	var count int
	err := db.db.QueryRow("SELECT COUNT(*) FROM labeled_samples").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting labeled samples: %s", err)
	}
	return count, nil
}

// DeleteCollection deletes a collection (table) from the database
func (db *SQLiteClient) DeleteCollection(collectionName string) error {
	_, err := db.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", collectionName))
	if err != nil {
		return fmt.Errorf("error deleting collection: %v", err)
	}
	return nil
}
