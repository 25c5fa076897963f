// Package redisdb keeps the document as one string value under a single Redis key.
// SET replaces the value in one step, which gives the same all-or-nothing
// visibility the file backend gets from rename.
package redisdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/patric-chuzhbe/shopdoc/internal/db/storage"
	"github.com/patric-chuzhbe/shopdoc/internal/models"
)

// DefaultKey is used when no key is configured.
const DefaultKey = "shopdoc:document"

type RedisDB struct {
	client *redis.Client
	key    string
}

// New connects to addr, which may be a redis:// URL or a plain host:port,
// and stores an empty document under key unless something is already there.
func New(ctx context.Context, addr, key string, connectionTimeout time.Duration) (*RedisDB, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{
			Addr:        addr,
			DialTimeout: connectionTimeout,
		}
	}

	if key == "" {
		key = DefaultKey
	}

	db := &RedisDB{
		client: redis.NewClient(opts),
		key:    key,
	}

	initCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.client.SetNX(initCtx, db.key, storage.EmptyDocument, 0).Err(); err != nil {
		_ = db.client.Close()
		return nil, fmt.Errorf("in internal/db/redisdb/redisdb.go/New(): error while `SetNX()` calling: %w", err)
	}

	return db, nil
}

func (db *RedisDB) Load(ctx context.Context) (*models.Document, error) {
	data, err := db.client.Get(ctx, db.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: redis key %s", storage.ErrNotFound, db.key)
		}
		return nil, fmt.Errorf("redis GET %s: %w", db.key, err)
	}

	return storage.Decode(data)
}

func (db *RedisDB) Save(ctx context.Context, doc *models.Document) error {
	data, err := storage.Encode(doc)
	if err != nil {
		return err
	}

	if err := db.client.Set(ctx, db.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis SET %s: %w", storage.ErrWrite, db.key, err)
	}

	return nil
}

func (db *RedisDB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx).Err()
}

func (db *RedisDB) Close() error {
	return db.client.Close()
}
