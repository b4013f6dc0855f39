package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	mtxerrors "github.com/matzehuels/mtxlayout/pkg/errors"
	"github.com/matzehuels/mtxlayout/pkg/observability"
)

// runStoreTests exercises the contract shared by every persistent backend.
func runStoreTests(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("SaveOnce", func(t *testing.T) {
		written, err := s.Save(ctx, "can_229", []byte("3 0\n"))
		if err != nil || !written {
			t.Fatalf("Save() = %v, %v; want true, nil", written, err)
		}
		written, err = s.Save(ctx, "can_229", []byte("changed"))
		if err != nil || written {
			t.Fatalf("second Save() = %v, %v; want false, nil", written, err)
		}
		data, err := s.Load(ctx, "can_229")
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "3 0\n" {
			t.Errorf("Load() = %q, checkpoint was overwritten", data)
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("NestedNamesAndList", func(t *testing.T) {
		for _, name := range []string{"sub/b", "sub/a"} {
			if _, err := s.Save(ctx, name, []byte(name)); err != nil {
				t.Fatal(err)
			}
		}
		names, err := s.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"can_229", "sub/a", "sub/b"}
		if !slices.Equal(names, want) {
			t.Errorf("List() = %v, want %v", names, want)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete(ctx, "sub/a"); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, "sub/a"); err != nil {
			t.Errorf("deleting a missing name: %v", err)
		}
		if _, err := s.Load(ctx, "sub/a"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load after Delete error = %v", err)
		}
		written, err := s.Save(ctx, "sub/a", []byte("again"))
		if err != nil || !written {
			t.Errorf("Save after Delete = %v, %v", written, err)
		}
	})

	t.Run("InvalidName", func(t *testing.T) {
		for _, name := range []string{"", "../escape", "/abs", "a\\b"} {
			if _, err := s.Save(ctx, name, nil); !mtxerrors.Is(err, mtxerrors.ErrCodeInvalidName) {
				t.Errorf("Save(%q) error = %v, want INVALID_NAME", name, err)
			}
		}
	})
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runStoreTests(t, s)

	if got := s.Path("sub/a"); got != filepath.Join(s.Dir(), "sub", "a"+Extension) {
		t.Errorf("Path() = %q", got)
	}
	if _, err := os.Stat(s.Path("can_229")); err != nil {
		t.Errorf("checkpoint file missing: %v", err)
	}
}

func TestNullStore(t *testing.T) {
	ctx := context.Background()
	s := NewNullStore()
	defer s.Close()

	written, err := s.Save(ctx, "x", []byte("data"))
	if err != nil || !written {
		t.Errorf("Save() = %v, %v", written, err)
	}
	if _, err := s.Load(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
	if names, _ := s.List(ctx); len(names) != 0 {
		t.Errorf("List() = %v, want empty", names)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendFile, Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, Options{Backend: BackendNull})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	_, err = Open(ctx, Options{Backend: "tape"})
	if !mtxerrors.Is(err, mtxerrors.ErrCodeUnsupported) {
		t.Errorf("Open(tape) error = %v, want UNSUPPORTED", err)
	}

	_, err = Open(ctx, Options{Backend: BackendRedis, URL: "http://localhost"})
	if !mtxerrors.Is(err, mtxerrors.ErrCodeInvalidInput) && !mtxerrors.Is(err, mtxerrors.ErrCodeInvalidConfig) {
		t.Errorf("Open(redis, http url) error = %v, want a validation error", err)
	}

	_, err = Open(ctx, Options{Backend: BackendS3})
	if !mtxerrors.Is(err, mtxerrors.ErrCodeInvalidConfig) {
		t.Errorf("Open(s3 without bucket) error = %v, want INVALID_CONFIG", err)
	}
}

type recordingHooks struct {
	observability.NoopStoreHooks
	saves   []bool
	fetches []bool
	sizes   []int
}

func (h *recordingHooks) OnSave(_ context.Context, backend string, written bool, size int, _ time.Duration, _ error) {
	h.saves = append(h.saves, written)
	h.sizes = append(h.sizes, size)
}

func (h *recordingHooks) OnFetch(_ context.Context, backend string, found bool, _ time.Duration, _ error) {
	h.fetches = append(h.fetches, found)
}

func TestInstrument(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetStoreHooks(hooks)
	defer observability.Reset()

	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := Instrument(fs, "file")

	s.Save(ctx, "a", []byte("12345"))
	s.Save(ctx, "a", []byte("12345"))
	s.Load(ctx, "a")
	s.Load(ctx, "b")

	if !slices.Equal(hooks.saves, []bool{true, false}) {
		t.Errorf("saves = %v, want [true false]", hooks.saves)
	}
	if !slices.Equal(hooks.sizes, []int{5, 5}) {
		t.Errorf("sizes = %v, want [5 5]", hooks.sizes)
	}
	if !slices.Equal(hooks.fetches, []bool{true, false}) {
		t.Errorf("fetches = %v, want [true false]", hooks.fetches)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	old := retryDelay
	retryDelay = time.Millisecond
	defer func() { retryDelay = old }()
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("connection reset"))
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("retryable: err=%v calls=%d, want nil after 3", err, calls)
	}

	calls = 0
	permanent := errors.New("denied")
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("permanent: err=%v calls=%d, want denied after 1", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return Retryable(permanent)
	})
	if !errors.Is(err, permanent) || !IsRetryable(err) || calls != 3 {
		t.Errorf("exhausted: err=%v calls=%d", err, calls)
	}

	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	data := []byte("4 2\n0 0 .500 .500 .000\n1 1 .000 .000 .000\n")
	got, err := decompress(compress(data))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Errorf("decompress(compress()) = %q", got)
	}
	if _, err := decompress([]byte("not snappy")); err == nil {
		t.Error("decompress of garbage should fail")
	}
}

func TestDigest(t *testing.T) {
	if Digest([]byte("a")) == Digest([]byte("b")) {
		t.Error("different inputs share a digest")
	}
	if len(Digest(nil)) != 64 {
		t.Errorf("digest length = %d, want 64", len(Digest(nil)))
	}
}

func TestRunID(t *testing.T) {
	ctx := context.Background()
	if RunID(ctx) != "" {
		t.Error("RunID of bare context should be empty")
	}
	if got := RunID(WithRunID(ctx, "abc")); got != "abc" {
		t.Errorf("RunID() = %q, want abc", got)
	}
}
