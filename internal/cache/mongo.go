package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the shared external cache backend. Entries carry a
// fetched_at timestamp covered by a TTL index, so expiry is native to
// the store; reads additionally filter on the timestamp because the
// TTL monitor only sweeps periodically.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	ttl        time.Duration
	logger     *slog.Logger
}

type mongoEntry struct {
	Key       string    `bson:"_id"`
	HTML      string    `bson:"html"`
	FetchedAt time.Time `bson:"fetched_at"`
}

// NewMongoStore connects to MongoDB and prepares the cache collection,
// including its TTL index.
func NewMongoStore(uri, database, collection string, ttl time.Duration, logger *slog.Logger) (*MongoStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "fetched_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("mongodb ttl index: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: coll,
		ttl:        ttl,
		logger:     logger.With("component", "mongo_cache"),
	}, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"_id":        key,
		"fetched_at": bson.M{"$gt": time.Now().Add(-s.ttl)},
	}

	var entry mongoEntry
	err := s.collection.FindOne(ctx, filter).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mongodb find: %w", err)
	}
	return entry.HTML, true, nil
}

func (s *MongoStore) Set(ctx context.Context, key, html string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	entry := mongoEntry{Key: key, HTML: html, FetchedAt: time.Now()}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, entry, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb replace: %w", err)
	}

	s.logger.Debug("entry stored", "key", key, "bytes", len(html))
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
