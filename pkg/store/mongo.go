package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mtxerrors "github.com/matzehuels/mtxlayout/pkg/errors"
)

// Default mongo locations.
const (
	DefaultMongoDatabase   = "mtxlayout"
	DefaultMongoCollection = "checkpoints"
)

// checkpointDoc is the document stored per layout. The name is the _id, so
// the collection's built-in unique index enforces write-once.
type checkpointDoc struct {
	Name      string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	Size      int       `bson:"size"`
	Digest    string    `bson:"digest"`
	RunID     string    `bson:"run_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStore keeps snappy-compressed checkpoints as documents.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to the mongodb:// URL and pings the primary. Empty
// database or collection names use the defaults.
func NewMongoStore(ctx context.Context, rawURL, database, collection string) (*MongoStore, error) {
	if err := mtxerrors.ValidateURL(rawURL, "mongodb", "mongodb+srv"); err != nil {
		return nil, err
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(rawURL))
	if err != nil {
		return nil, mtxerrors.Wrap(mtxerrors.ErrCodeInvalidConfig, err, "mongo url")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, mtxerrors.Wrap(mtxerrors.ErrCodeStoreUnavailable, err, "failed to reach mongo")
	}
	return &MongoStore{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// Save inserts the checkpoint document. A duplicate _id means the layout
// is already stored.
func (s *MongoStore) Save(ctx context.Context, name string, data []byte) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	doc := checkpointDoc{
		Name:      name,
		Data:      compress(data),
		Size:      len(data),
		Digest:    Digest(data),
		RunID:     RunID(ctx),
		CreatedAt: time.Now().UTC(),
	}
	var written bool
	err := RetryWithBackoff(ctx, func() error {
		_, err := s.coll.InsertOne(ctx, doc)
		switch {
		case err == nil:
			written = true
			return nil
		case mongo.IsDuplicateKeyError(err):
			return nil
		case mongo.IsNetworkError(err) || mongo.IsTimeout(err):
			return Retryable(err)
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("save %s: %w", name, err)
	}
	return written, nil
}

// Load fetches the document and verifies its digest.
func (s *MongoStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	var doc checkpointDoc
	err := RetryWithBackoff(ctx, func() error {
		err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return ErrNotFound
		case err != nil && (mongo.IsNetworkError(err) || mongo.IsTimeout(err)):
			return Retryable(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	data, err := decompress(doc.Data)
	if err != nil {
		return nil, err
	}
	if doc.Digest != "" && Digest(data) != doc.Digest {
		return nil, mtxerrors.New(mtxerrors.ErrCodeMalformedCheckpoint, "%s: digest mismatch", name)
	}
	return data, nil
}

// List returns the document IDs.
func (s *MongoStore) List(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer cur.Close(ctx)

	var names []string
	for cur.Next(ctx) {
		var doc struct {
			Name string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode checkpoint id: %w", err)
		}
		names = append(names, doc.Name)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return names, nil
}

// Delete removes the document.
func (s *MongoStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": name}); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
