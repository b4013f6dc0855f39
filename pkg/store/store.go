// Package store persists solved layout checkpoints.
//
// # Overview
//
// A checkpoint is written once under a layout name and never overwritten:
// [Store.Save] reports false, without error, when the name is taken. That
// makes persistence idempotent, and a second solve of the same matrix a
// no-op unless the caller deletes the old checkpoint first.
//
// # Backends
//
//   - file: one <name>.mtxs file per layout under a directory (the default)
//   - redis: SETNX on a key per layout, snappy-compressed
//   - mongo: one document per layout keyed by name, snappy-compressed
//   - s3: one object per layout written with If-None-Match, snappy-compressed
//   - null: accepts and discards everything
//
// Use [Open] to build a store from [Options]:
//
//	s, err := store.Open(ctx, store.Options{Backend: store.BackendRedis, URL: "redis://localhost:6379/0"})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	written, err := s.Save(ctx, "can_229", data)
//
// Names are validated with errors.ValidateLayoutName and may contain
// slash-separated segments.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mtxerrors "github.com/matzehuels/mtxlayout/pkg/errors"
	"github.com/matzehuels/mtxlayout/pkg/observability"
)

// Extension is the file extension of solved checkpoints.
const Extension = ".mtxs"

// ErrNotFound is returned by Load when no checkpoint exists under a name.
var ErrNotFound = errors.New("checkpoint not found")

// Store is the interface checkpoint backends implement.
type Store interface {
	// Save stores data under name unless a checkpoint already exists there.
	// It reports whether data was written.
	Save(ctx context.Context, name string, data []byte) (bool, error)

	// Load returns the checkpoint stored under name, or ErrNotFound.
	Load(ctx context.Context, name string) ([]byte, error)

	// List returns the stored names in lexical order.
	List(ctx context.Context) ([]string, error)

	// Delete removes the checkpoint under name. Deleting a missing name is
	// not an error.
	Delete(ctx context.Context, name string) error

	// Close releases the backend's connections.
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// Backend names a checkpoint store implementation.
type Backend string

const (
	BackendFile  Backend = "file"
	BackendRedis Backend = "redis"
	BackendMongo Backend = "mongo"
	BackendS3    Backend = "s3"
	BackendNull  Backend = "null"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendFile, BackendRedis, BackendMongo, BackendS3, BackendNull}

// Options selects and configures a backend.
type Options struct {
	Backend Backend

	// Dir is the file backend's root. Empty uses DefaultDir.
	Dir string

	// URL is the redis:// or mongodb:// connection string.
	URL string

	// Database and Collection locate mongo documents.
	Database   string
	Collection string

	// Bucket, Prefix, Region and Endpoint locate s3 objects. Endpoint is
	// only needed for S3-compatible services.
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// DefaultDir returns the default checkpoint directory
// (~/.cache/mtxlayout/checkpoints on Linux).
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("user cache dir: %w", err)
	}
	return filepath.Join(base, "mtxlayout", "checkpoints"), nil
}

// Open creates the store selected by opts, wrapped so every save and load
// is reported to the registered observability hooks.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case BackendFile, "":
		dir := opts.Dir
		if dir == "" {
			if dir, err = DefaultDir(); err != nil {
				return nil, err
			}
		}
		s, err = NewFileStore(dir)
	case BackendRedis:
		s, err = NewRedisStore(ctx, opts.URL)
	case BackendMongo:
		s, err = NewMongoStore(ctx, opts.URL, opts.Database, opts.Collection)
	case BackendS3:
		s, err = NewS3Store(ctx, S3Config{
			Bucket:   opts.Bucket,
			Prefix:   opts.Prefix,
			Region:   opts.Region,
			Endpoint: opts.Endpoint,
		})
	case BackendNull:
		s = NewNullStore()
	default:
		return nil, mtxerrors.New(mtxerrors.ErrCodeUnsupported, "unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	backend := opts.Backend
	if backend == "" {
		backend = BackendFile
	}
	return Instrument(s, string(backend)), nil
}

// =============================================================================
// Run IDs
// =============================================================================

type runIDKey struct{}

// WithRunID attaches the ID of the solve producing a checkpoint. Backends
// that keep metadata record it next to the data.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the ID attached with WithRunID, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// =============================================================================
// Instrumentation
// =============================================================================

type instrumented struct {
	Store
	backend string
}

// Instrument wraps s so saves and loads are reported to
// observability.Store() under the given backend label.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

func (s *instrumented) Save(ctx context.Context, name string, data []byte) (bool, error) {
	start := time.Now()
	written, err := s.Store.Save(ctx, name, data)
	observability.Store().OnSave(ctx, s.backend, written, len(data), time.Since(start), err)
	return written, err
}

func (s *instrumented) Load(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	data, err := s.Store.Load(ctx, name)
	found := err == nil
	if errors.Is(err, ErrNotFound) {
		observability.Store().OnFetch(ctx, s.backend, false, time.Since(start), nil)
		return nil, err
	}
	observability.Store().OnFetch(ctx, s.backend, found, time.Since(start), err)
	return data, err
}

func checkName(name string) error {
	return mtxerrors.ValidateLayoutName(name)
}
