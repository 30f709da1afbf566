// Package storage provides the key-value persistence port behind the
// history store, with memory, file, sqlite and redis backends.
package storage

import (
	"context"

	"codeberg.org/mutker/vitalsd/internal/errors"
)

// Storage is a flat key-value medium holding whole documents.
type Storage interface {
	// Get returns the value stored under key. A missing key is reported
	// with ok == false and a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	Close() error
}

// Swapper is implemented by backends that can replace a value atomically.
type Swapper interface {
	// CompareAndSwap stores next under key only if the current value is
	// equal to prev. A nil prev requires the key to be absent. It reports
	// whether the swap happened.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error)
}

// Open builds the backend selected by cfg.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(nil, cfg.Dir)
	case BackendSQLite:
		return NewSQLite(ctx, cfg.Path)
	case BackendRedis:
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	case BackendNone:
		return Unavailable{}, nil
	}

	return nil, errFactory.WithData(ErrInvalidConfig, cfg.Backend)
}

// Unavailable stands in for a missing persistence medium: reads miss and
// writes are dropped.
type Unavailable struct{}

func (Unavailable) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Unavailable) Set(context.Context, string, []byte) error         { return nil }
func (Unavailable) Remove(context.Context, string) error              { return nil }
func (Unavailable) Close() error                                      { return nil }
