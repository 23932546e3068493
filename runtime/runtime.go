// Package runtime holds the host-side dependencies of the pdffs services:
// where outputs are stored and where job status lives.
package runtime

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Get when a key does not exist
var ErrNotFound = errors.New("not found")

// Storage abstracts output storage (local filesystem, S3)
type Storage interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string, delimiter string) (*ListResult, error)
	Delete(ctx context.Context, key string) error
}

// ListResult holds storage listing results
type ListResult struct {
	Keys              []string
	DelimitedPrefixes []string
}

// KVStore abstracts key-value storage. A zero ttl keeps the value forever.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Runtime holds the backends chosen at startup
type Runtime struct {
	OutputStorage Storage
	KVStore       KVStore
}

// Output returns the output storage, or one that discards writes
func (r *Runtime) Output() Storage {
	if r == nil || r.OutputStorage == nil {
		return noopStorage{}
	}
	return r.OutputStorage
}

// KV returns the KV store, or one that forgets everything
func (r *Runtime) KV() KVStore {
	if r == nil || r.KVStore == nil {
		return noopKV{}
	}
	return r.KVStore
}

// Jobs returns a job store backed by the KV store
func (r *Runtime) Jobs(ttl time.Duration) *JobStore {
	return NewJobStore(r.KV(), ttl)
}

type noopStorage struct{}

func (noopStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, ErrNotFound
}

func (noopStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return nil
}

func (noopStorage) List(ctx context.Context, prefix string, delimiter string) (*ListResult, error) {
	return &ListResult{}, nil
}

func (noopStorage) Delete(ctx context.Context, key string) error {
	return nil
}

type noopKV struct{}

func (noopKV) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrNotFound
}

func (noopKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (noopKV) Delete(ctx context.Context, key string) error {
	return nil
}
