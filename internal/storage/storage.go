// Package storage defines the durable record store behind the transcript
// cache. Implementations live in the sqldb and memory subpackages.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// RecordStore persists one opaque record per key. Save replaces any
// existing record for the key in a single atomic write.
type RecordStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, record []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
