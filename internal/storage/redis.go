package storage

import (
	"bytes"
	"context"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"github.com/redis/go-redis/v9"
)

// Redis keeps documents as plain string keys in a redis database.
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	errFactory := errors.New()

	if addr == "" {
		return nil, errFactory.New(ErrInvalidRedisAddr)
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Addr  string
			Error string
		}{
			Phase: "ping",
			Addr:  addr,
			Error: err.Error(),
		})
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New().Wrap(ErrStorageAccess, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	return nil
}

// CompareAndSwap watches key and commits only if nobody wrote it between
// the read and the MULTI/EXEC.
func (r *Redis) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	swapped := false

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if prev != nil {
				return nil
			}
		case err != nil:
			return err
		default:
			if prev == nil || !bytes.Equal(cur, prev) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, errors.New().Wrap(ErrStorageAccess, err)
	}
	return swapped, nil
}

func (r *Redis) Close() error {
	if err := r.client.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}
