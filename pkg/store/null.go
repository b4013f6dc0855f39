package store

import (
	"context"
	"fmt"
)

// NullStore accepts every checkpoint and keeps none.
// Useful for benchmarking solves or when persistence should be disabled.
type NullStore struct{}

// NewNullStore creates a null store.
func NewNullStore() *NullStore {
	return &NullStore{}
}

// Save discards data and reports it as written.
func (s *NullStore) Save(ctx context.Context, name string, data []byte) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	return true, nil
}

// Load always returns ErrNotFound.
func (s *NullStore) Load(ctx context.Context, name string) ([]byte, error) {
	return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
}

// List returns no names.
func (s *NullStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

// Delete does nothing.
func (s *NullStore) Delete(ctx context.Context, name string) error {
	return nil
}

// Close does nothing.
func (s *NullStore) Close() error {
	return nil
}

// Ensure NullStore implements Store.
var _ Store = (*NullStore)(nil)
