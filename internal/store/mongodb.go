// internal/store/mongodb.go
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valpere/ProxyRotexter/internal/proxy"
	"github.com/valpere/ProxyRotexter/internal/utils"
)

var mongoLogger = utils.NewComponentLogger("mongodb-store")

// mongoDocument is the stored shape of one proxy entry.
type mongoDocument struct {
	URL            string    `bson:"url"`
	CountryCode    string    `bson:"country_code"`
	Region         string    `bson:"region"`
	CostPerRequest float64   `bson:"cost_per_request"`
	Source         string    `bson:"source"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// MongoStore persists entries in a MongoDB collection keyed by URL.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the unique URL index.
func NewMongoStore(ctx context.Context, config Config) (*MongoStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("mongodb store DSN is required")
	}

	database := config.Database
	if database == "" {
		database = "proxyrotexter"
	}
	collection := config.Collection
	if collection == "" {
		collection = tableName(config)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.DSN))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(connectCtx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(connectCtx)
		return nil, fmt.Errorf("creating url index: %w", err)
	}

	mongoLogger.Debugf("mongodb store ready, collection %s.%s", database, collection)
	return &MongoStore{client: client, collection: coll}, nil
}

// Save upserts entries with one ReplaceOne model per entry.
func (s *MongoStore) Save(ctx context.Context, entries []proxy.ProxyEntry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(entries))
	for _, entry := range entries {
		key, err := normalizeKey(entry.URL)
		if err != nil {
			return err
		}
		doc := mongoDocument{
			URL:            key,
			CountryCode:    entry.CountryCode,
			Region:         entry.Region,
			CostPerRequest: entry.CostPerRequest,
			Source:         entry.Source,
			UpdatedAt:      now,
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"url": key}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	_, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("bulk upsert: %w", err)
	}
	return nil
}

// Load returns every stored entry, oldest first.
func (s *MongoStore) Load(ctx context.Context) ([]proxy.ProxyEntry, error) {
	cursor, err := s.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []proxy.ProxyEntry
	for cursor.Next(ctx) {
		var doc mongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		entries = append(entries, proxy.ProxyEntry{
			URL:            doc.URL,
			CountryCode:    doc.CountryCode,
			Region:         doc.Region,
			CostPerRequest: doc.CostPerRequest,
			Source:         doc.Source,
		})
	}
	return entries, cursor.Err()
}

// Remove deletes one entry by URL.
func (s *MongoStore) Remove(ctx context.Context, rawURL string) error {
	key, err := normalizeKey(rawURL)
	if err != nil {
		return err
	}
	_, err = s.collection.DeleteOne(ctx, bson.M{"url": key})
	return err
}

// Clear drops every document in the collection.
func (s *MongoStore) Clear(ctx context.Context) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{})
	return err
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
