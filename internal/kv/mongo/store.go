package mongo

import (
	"context"
	"regexp"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"logsync/internal/kv"
)

// Config holds the configurations for the MongoDB key-value store.
type Config struct {
	URI        string `default:"mongodb://localhost:27017"`
	Database   string `default:"logsync"`
	Collection string `default:"kv_store"`

	// ConnectTimeout bounds the initial connect and ping.
	ConnectTimeout time.Duration `default:"10s"`
}

func DefaultConfig() (config Config) {
	defaults.SetDefaults(&config)
	return
}

// document is the stored shape. The value is kept as a JSON string so that
// every backend returns byte-identical documents.
type document struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store is a kv.Store on one MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewStore connects to the server and verifies it with a ping.
func NewStore(ctx context.Context, config Config) (*Store, error) {
	defaults.SetDefaults(&config)
	if err := kv.ValidateTableName(config.Collection); err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to connect mongodb")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.WithMessage(err, "Failed to ping mongodb")
	}

	return &Store{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WithMessagef(err, "Failed to get key %v", key)
	}
	return []byte(doc.Value), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	doc := document{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return errors.WithMessagef(err, "Failed to put key %v", key)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": key})
	return errors.WithMessagef(err, "Failed to delete key %v", key)
}

func (s *Store) Scan(ctx context.Context, prefix string, fn func(kv.Entry) error) error {
	filter := bson.M{}
	if prefix != "" {
		filter = bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	}

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return errors.WithMessagef(err, "Failed to scan prefix %v", prefix)
	}

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return errors.WithMessage(err, "Failed to read cursor")
	}

	for _, doc := range docs {
		if err := fn(kv.Entry{Key: doc.Key, Value: []byte(doc.Value)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}
