package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"elephant-logger/models"
)

type MongoClient struct {
	client *mongo.Client
	dbName string
}

func NewMongoClient(uri, dbName string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %s", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error pinging MongoDB: %s", err)
	}

	return &MongoClient{client: client, dbName: dbName}, nil
}

func (m *MongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoClient) detections() *mongo.Collection {
	return m.client.Database(m.dbName).Collection("detections")
}

func (m *MongoClient) labeledSamples() *mongo.Collection {
	return m.client.Database(m.dbName).Collection("labeled_samples")
}

// StoreDetection stores a detection in the database
func (m *MongoClient) StoreDetection(detection *models.Detection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if detection.ID == 0 {
		detection.ID = time.Now().UnixNano()
	}

	_, err := m.detections().InsertOne(ctx, detection)
	if err != nil {
		return fmt.Errorf("error storing detection: %s", err)
	}
	return nil
}

func (m *MongoClient) findDetections(filter bson.M, opts *options.FindOptions) ([]models.Detection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := m.detections().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying detections: %s", err)
	}
	defer cursor.Close(ctx)

	var detections []models.Detection
	if err := cursor.All(ctx, &detections); err != nil {
		return nil, fmt.Errorf("error decoding detections: %s", err)
	}
	return detections, nil
}

// GetAllDetections retrieves all detections from the database
func (m *MongoClient) GetAllDetections() ([]models.Detection, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return m.findDetections(bson.M{}, opts)
}

// GetRecentDetections retrieves the newest detections up to limit
func (m *MongoClient) GetRecentDetections(limit int) ([]models.Detection, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	return m.findDetections(bson.M{}, opts)
}

// GetDetectionsBySession retrieves the detections of one monitoring session
func (m *MongoClient) GetDetectionsBySession(sessionID string) ([]models.Detection, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	return m.findDetections(bson.M{"sessionId": sessionID}, opts)
}

// StoreLabeledSamples stores a batch of labeled training samples
func (m *MongoClient) StoreLabeledSamples(samples []models.LabeledSample) error {
	if len(samples) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docs := make([]interface{}, len(samples))
	for i, sample := range samples {
		docs[i] = sample
	}

	_, err := m.labeledSamples().InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("error storing labeled samples: %s", err)
	}
	return nil
}

// GetLabeledSamples retrieves all labeled training samples
func (m *MongoClient) GetLabeledSamples() ([]models.LabeledSample, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := m.labeledSamples().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying labeled samples: %s", err)
	}
	defer cursor.Close(ctx)

	var samples []models.LabeledSample
	if err := cursor.All(ctx, &samples); err != nil {
		return nil, fmt.Errorf("error decoding labeled samples: %s", err)
	}
	return samples, nil
}

func (m *MongoClient) TotalLabeledSamples() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.labeledSamples().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("error counting labeled samples: %s", err)
	}
	return int(count), nil
}

// DeleteCollection deletes a collection from the database
func (m *MongoClient) DeleteCollection(collectionName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.client.Database(m.dbName).Collection(collectionName).Drop(ctx); err != nil {
		return fmt.Errorf("error deleting collection: %v", err)
	}
	return nil
}
