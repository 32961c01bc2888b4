// Package kvstore provides the string key-value capability evidence and
// staged task records are persisted through.
//
// Two implementations are available: Memory for tests and single-process
// use, and Redis for shared deployments. Both store opaque string values;
// callers own the encoding.
package kvstore

import (
	"context"
	"errors"
)

// Common errors.
var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
	// ErrConflict is returned when Update keeps losing to concurrent writers.
	ErrConflict = errors.New("concurrent update conflict")
)

// UpdateFunc computes the next value of a key from its current value; ok
// is false when the key is missing. Returning remove deletes the key. An
// error aborts the update and is returned by Update unchanged.
type UpdateFunc func(current string, ok bool) (next string, remove bool, err error)

// Store is a flat string key-value store.
//
// Get reports ok=false for a missing key. Remove of a missing key is not
// an error. Update is an atomic read-modify-write of one key: no other
// write to the key lands between the read fn sees and the write it returns.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}
