// Package cache memoises analysis results in Redis. Keys are content hashes
// of the inputs, so equal requests share an entry regardless of who sent
// them. Redis is optional at runtime: failures trip a circuit breaker and the
// caller falls back to computing directly.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/resilience"
)

const (
	keyPrefix = "dispersion:"
	keyFormat = "v1"
)

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Errors  int64  `json:"errors"`
	Breaker string `json:"breaker"`
}

type Cache struct {
	backend   Backend
	ttl       time.Duration
	opTimeout time.Duration
	group     singleflight.Group
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
	errors    atomic.Int64
}

// New wraps backend. m may be nil.
func New(backend Backend, cfg config.RedisConfig, m *metrics.Metrics) *Cache {
	c := &Cache{
		backend:   backend,
		ttl:       cfg.CacheTTL,
		opTimeout: 250 * time.Millisecond,
		metrics:   m,
		logger:    slog.Default().With("component", "result-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// GetOrCompute returns the cached value for key, or runs compute, stores its
// result and returns it. Concurrent callers with the same key share a single
// compute. The boolean reports a cache hit. With a nil cache compute is
// called directly.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error)) (T, bool, error) {
	if c == nil {
		v, err := compute(ctx)
		return v, false, err
	}
	if v, ok := lookup[T](ctx, c, key); ok {
		return v, true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := lookup[T](ctx, c, key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	data, ok := c.get(ctx, key)
	if !ok {
		c.recordMiss()
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		c.recordMiss()
		return zero, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return v, true
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := resilience.Bounded(ctx, c.opTimeout, "cache get", func(ctx context.Context) ([]byte, error) {
			return c.backend.Get(ctx, key)
		})
		if pkgredis.IsNilError(err) {
			return nil
		}
		data = v
		return err
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Debug("cache get failed", "key", key, "error", err)
		return nil, false
	}
	return data, data != nil
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Within(ctx, c.opTimeout, "cache set", func(ctx context.Context) error {
			return c.backend.Set(ctx, key, data, c.ttl)
		})
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Invalidate removes every entry written by this cache.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		n, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
		deleted = n
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Breaker: c.breaker.State().String(),
	}
}

// Key derives the cache key of an analysis from its exact inputs. The index
// list is order-insensitive; numeric inputs are hashed bit for bit.
func Key(kind string, sizes []float64, words []batch.WordInput, indices []dispersion.Index) string {
	h := sha256.New()
	writeString(h, keyFormat)
	writeString(h, kind)
	writeFloats(h, sizes)
	writeUint(h, uint64(len(words)))
	for _, w := range words {
		writeString(h, w.Word)
		writeFloats(h, w.Frequencies)
	}
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	writeUint(h, uint64(len(sorted)))
	for _, idx := range sorted {
		writeString(h, string(idx))
	}
	return keyPrefix + kind + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

func writeUint(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeFloats(h hash.Hash, xs []float64) {
	writeUint(h, uint64(len(xs)))
	for _, x := range xs {
		writeUint(h, math.Float64bits(x))
	}
}
