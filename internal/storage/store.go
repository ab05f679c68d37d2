package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a key has no stored artifact.
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidKey rejects keys that are not a single path element.
	ErrInvalidKey = errors.New("invalid artifact key")
)

// Store is the artifact store contract consumed by the pipeline and intake API.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
	// SignedLink does not check that key exists.
	SignedLink(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Error describes a failed store operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Key: key, Err: err}
}
