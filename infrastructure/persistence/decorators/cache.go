// Package decorators layers cross-cutting concerns over a ports.BoardStore.
package decorators

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachingConfig configures the read-through cache
type CachingConfig struct {
	Prefix string
	TTL    time.Duration
}

// DefaultCachingConfig returns sensible defaults
func DefaultCachingConfig() CachingConfig {
	return CachingConfig{Prefix: "flowboard:", TTL: 5 * time.Minute}
}

// genTTL keeps a generation counter around far longer than any read
const genTTL = time.Hour

// CachingBoardStore caches Load and List results in Redis. Every write
// invalidates the affected keys after the base store succeeds and bumps
// their generation, and a read only fills the cache if the generation it
// saw before reading the base store is still current. Redis failures are
// logged and the base store is used directly.
type CachingBoardStore struct {
	base   ports.BoardStore
	client redis.UniversalClient
	config CachingConfig
	logger *zap.Logger
}

// NewCachingBoardStore wraps base with a Redis cache
func NewCachingBoardStore(base ports.BoardStore, client redis.UniversalClient, config CachingConfig, logger *zap.Logger) *CachingBoardStore {
	if config.TTL <= 0 {
		config.TTL = DefaultCachingConfig().TTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingBoardStore{base: base, client: client, config: config, logger: logger}
}

// Keys carry a hash tag so an entry and its generation share a cluster slot.
func (c *CachingBoardStore) boardKey(userID string, id valueobjects.BoardID) string {
	return c.config.Prefix + "board:{" + userID + ":" + id.String() + "}"
}

func (c *CachingBoardStore) listKey(userID string) string {
	return c.config.Prefix + "boards:{" + userID + "}"
}

func genKey(key string) string {
	return key + ":gen"
}

// Create implements ports.BoardStore
func (c *CachingBoardStore) Create(ctx context.Context, board ports.StoredBoard) error {
	if err := c.base.Create(ctx, board); err != nil {
		return err
	}
	c.invalidate(ctx, c.listKey(board.UserID))
	return nil
}

// Load implements ports.BoardStore
func (c *CachingBoardStore) Load(ctx context.Context, userID string, id valueobjects.BoardID) (*ports.StoredBoard, error) {
	key := c.boardKey(userID, id)
	var cached ports.StoredBoard
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}
	gen, genOK := c.generation(ctx, key)

	board, err := c.base.Load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if genOK {
		c.fill(ctx, key, gen, board)
	}
	return board, nil
}

// Save implements ports.BoardStore
func (c *CachingBoardStore) Save(ctx context.Context, userID string, id valueobjects.BoardID, content string) error {
	// Drop the entry first so a failed save never leaves it stale.
	c.invalidate(ctx, c.boardKey(userID, id))
	if err := c.base.Save(ctx, userID, id, content); err != nil {
		return err
	}
	c.invalidate(ctx, c.boardKey(userID, id), c.listKey(userID))
	return nil
}

// List implements ports.BoardStore
func (c *CachingBoardStore) List(ctx context.Context, userID string) ([]ports.BoardSummary, error) {
	key := c.listKey(userID)
	var cached []ports.BoardSummary
	if c.get(ctx, key, &cached) {
		return cached, nil
	}
	gen, genOK := c.generation(ctx, key)

	boards, err := c.base.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if genOK {
		c.fill(ctx, key, gen, boards)
	}
	return boards, nil
}

// Delete implements ports.BoardStore
func (c *CachingBoardStore) Delete(ctx context.Context, userID string, id valueobjects.BoardID) error {
	if err := c.base.Delete(ctx, userID, id); err != nil {
		return err
	}
	c.invalidate(ctx, c.boardKey(userID, id), c.listKey(userID))
	return nil
}

func (c *CachingBoardStore) get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("Discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		c.invalidate(ctx, key)
		return false
	}
	return true
}

// generation reads the write counter of key. ok is false when Redis
// cannot be read, in which case the result must not be cached.
func (c *CachingBoardStore) generation(ctx context.Context, key string) (gen int64, ok bool) {
	gen, err := c.client.Get(ctx, genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", genKey(key)), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// fill caches value unless key was written since gen was read
func (c *CachingBoardStore) fill(ctx context.Context, key string, gen int64, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey(key)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.config.TTL)
			return nil
		})
		return err
	}, genKey(key))

	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("Skipping cache fill after concurrent write", zap.String("key", key))
	default:
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var errStaleRead = errors.New("cache entry written since read")

// invalidate drops keys and bumps their generations so reads that started
// before the write do not put the old value back.
func (c *CachingBoardStore) invalidate(ctx context.Context, keys ...string) {
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, key)
			pipe.Incr(ctx, genKey(key))
			pipe.Expire(ctx, genKey(key), genTTL)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
