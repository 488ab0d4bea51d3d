package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"stockwidget/internal/breaker"
)

// BlobStore keeps one opaque blob under a single Redis key.
// Every Save replaces the value wholesale.
type BlobStore struct {
	rdb *goredis.Client
	key string
	cb  *breaker.Breaker
}

// NewCacheStore returns the store holding the widget's daily cache blob for
// source. A window is only valid for the variable it was built from.
func NewCacheStore(rdb *goredis.Client, widgetID, source string, cb *breaker.Breaker) *BlobStore {
	return &BlobStore{rdb: rdb, key: cacheKey(widgetID, source), cb: cb}
}

// NewSettingsStore returns the store holding the last applied widget settings.
func NewSettingsStore(rdb *goredis.Client, widgetID string, cb *breaker.Breaker) *BlobStore {
	return &BlobStore{rdb: rdb, key: settingsKey(widgetID), cb: cb}
}

// Key returns the Redis key backing the store.
func (s *BlobStore) Key() string { return s.key }

// Load returns the stored blob, or nil, nil when the key does not exist.
func (s *BlobStore) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.exec(func() error {
		b, err := s.rdb.Get(ctx, s.key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		data = b
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return data, nil
}

// Save overwrites the blob. SET replaces atomically, readers never see a partial value.
func (s *BlobStore) Save(ctx context.Context, data []byte) error {
	err := s.exec(func() error {
		return s.rdb.Set(ctx, s.key, data, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Delete removes the blob.
func (s *BlobStore) Delete(ctx context.Context) error {
	err := s.exec(func() error {
		return s.rdb.Del(ctx, s.key).Err()
	})
	if err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

func (s *BlobStore) exec(fn func() error) error {
	if s.cb == nil {
		return fn()
	}
	return s.cb.Execute(fn)
}
