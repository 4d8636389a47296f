package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rvallee/meteo-collector/internal/collect"
)

const (
	runCollection    = "weather_data"
	latestCollection = "latest_weather"
	currentDocID     = "current"
)

// MongoSink writes the projected client view to a document store: one
// immutable per-run document keyed by the run timestamp, plus an overwritten
// "current" singleton, mirroring the local file layout.
type MongoSink struct {
	client *mongo.Client
	dbName string
}

// NewMongoSink connects and pings the document store. A misconfigured store
// fails here, before the sink is ever registered.
func NewMongoSink(ctx context.Context, uri, dbName string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to document store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("pinging document store: %w", err)
	}

	log.Printf("INFO: document store sink connected (%s)", dbName)
	return &MongoSink{client: client, dbName: dbName}, nil
}

func (s *MongoSink) Name() string {
	return "document_store"
}

// Save recomputes the projection and upserts both the per-run document and
// the current pointer.
func (s *MongoSink) Save(ctx context.Context, doc *collect.CollectionDocument) error {
	projected := collect.Project(doc)
	db := s.client.Database(s.dbName)
	opts := options.Replace().SetUpsert(true)

	if _, err := db.Collection(runCollection).ReplaceOne(ctx, bson.M{"_id": doc.FileStamp()}, projected, opts); err != nil {
		return fmt.Errorf("writing run document: %w", err)
	}

	if _, err := db.Collection(latestCollection).ReplaceOne(ctx, bson.M{"_id": currentDocID}, projected, opts); err != nil {
		return fmt.Errorf("writing current document: %w", err)
	}

	return nil
}

// GetCurrent reads back the current projected document, nil if never written.
func (s *MongoSink) GetCurrent(ctx context.Context) (*collect.ProjectedDocument, error) {
	var projected collect.ProjectedDocument
	err := s.client.Database(s.dbName).Collection(latestCollection).
		FindOne(ctx, bson.M{"_id": currentDocID}).Decode(&projected)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &projected, nil
}

func (s *MongoSink) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Ping(pingCtx, nil)
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
