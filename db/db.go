package db

import (
	"fmt"

	"elephant-logger/models"
	"elephant-logger/utils"
)

// DBClient persists detections and labeled training samples. Two backends are
// available: SQLite for single-station deployments and MongoDB when several
// gateways report to one store.
type DBClient interface {
	Close() error

	StoreDetection(detection *models.Detection) error
	GetAllDetections() ([]models.Detection, error)
	GetRecentDetections(limit int) ([]models.Detection, error)
	GetDetectionsBySession(sessionID string) ([]models.Detection, error)

	StoreLabeledSamples(samples []models.LabeledSample) error
	GetLabeledSamples() ([]models.LabeledSample, error)
	TotalLabeledSamples() (int, error)

	DeleteCollection(collectionName string) error
}

// NewDBClient builds the client selected by the DB_TYPE environment variable
// ("sqlite" or "mongo", sqlite by default).
func NewDBClient() (DBClient, error) {
	dbType := utils.GetEnv("DB_TYPE", "sqlite")

	switch dbType {
	case "sqlite":
		dbPath := utils.GetEnv("SQLITE_DB_PATH", "data/elephant-logger.db")
		return NewSQLiteClient(dbPath)
	case "mongo":
		dbURI := utils.GetEnv("DB_URI", "mongodb://localhost:27017")
		dbName := utils.GetEnv("DB_NAME", "elephant-logger")
		return NewMongoClient(dbURI, dbName)
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", dbType)
	}
}
