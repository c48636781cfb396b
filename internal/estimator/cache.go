package estimator

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/obeyhq/backend/domain"
)

// Cached memoizes estimates in Redis keyed by (rank, text). Estimates are
// deterministic enough to reuse, commentary on completions is not, so only
// Estimate goes through the cache. Cache trouble is never an error: the
// inner estimator answers and the miss is logged.
type Cached struct {
	inner  Estimator
	client *redislib.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps inner with a Redis-backed estimate cache.
func NewCached(inner Estimator, client *redislib.Client, ttl time.Duration, logger *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

var _ Estimator = (*Cached)(nil)

func (c *Cached) Estimate(ctx context.Context, text string, rank int) (*Result, error) {
	key := c.key(text, rank)

	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		var cached Result
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}
	} else if err != redislib.Nil {
		c.logger.Debug("estimate cache read failed", zap.Error(err))
	}

	result, err := c.inner.Estimate(ctx, text, rank)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(result); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Debug("estimate cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (c *Cached) CompletionComment(ctx context.Context, task *domain.Task, report string, rank int) (string, error) {
	return c.inner.CompletionComment(ctx, task, report, rank)
}

func (c *Cached) key(text string, rank int) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("estimate:%d:%x", rank, sum[:16])
}
