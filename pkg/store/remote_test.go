package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Remote backends need live services. Set MTXLAYOUT_MONGO_URI or
// MTXLAYOUT_S3_BUCKET (with AWS credentials in the environment) to run them.

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MTXLAYOUT_MONGO_URI")
	if uri == "" {
		t.Skip("MTXLAYOUT_MONGO_URI not set")
	}
	ctx := context.Background()
	coll := "test_" + uuid.NewString()[:8]

	s, err := NewMongoStore(ctx, uri, DefaultMongoDatabase, coll)
	require.NoError(t, err)
	defer func() {
		_ = s.coll.Drop(ctx)
		s.Close()
	}()

	runStoreTests(t, s)
}

func TestS3Store(t *testing.T) {
	bucket := os.Getenv("MTXLAYOUT_S3_BUCKET")
	if bucket == "" {
		t.Skip("MTXLAYOUT_S3_BUCKET not set")
	}
	ctx := context.Background()

	s, err := NewS3Store(ctx, S3Config{
		Bucket:   bucket,
		Prefix:   "mtxlayout-test/" + uuid.NewString(),
		Region:   os.Getenv("AWS_REGION"),
		Endpoint: os.Getenv("MTXLAYOUT_S3_ENDPOINT"),
	})
	require.NoError(t, err)
	defer func() {
		names, _ := s.List(ctx)
		for _, name := range names {
			_ = s.Delete(ctx, name)
		}
	}()

	runStoreTests(t, s)
}
