// Package cache implements the TTL response cache used for expensive,
// slowly-changing upstream resources. TTLs come from a fixed resource-class
// table rather than ad hoc durations. The service is constructed once at
// startup and injected; concurrent misses for the same key are coalesced
// into one upstream fetch.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Class is a cache resource class with its fixed TTL.
type Class struct {
	Name string
	TTL  time.Duration
}

// The resource-class table. Anything not listed here is not cache-eligible.
var (
	ClassDailyPrices  = Class{Name: "daily-prices", TTL: 24 * time.Hour}
	ClassLiveQuote    = Class{Name: "live-quote", TTL: time.Second}
	ClassValidatorDir = Class{Name: "validator-directory", TTL: 24 * time.Hour}
)

// Store is the backing entry store. The in-memory store serves a single
// instance; the redis store shares entries across instances.
type Store interface {
	// Get returns the stored value and whether a fresh entry exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set replaces the entry atomically with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anthem_cache_hits_total",
		Help: "Cache reads served without an upstream fetch, by resource class.",
	}, []string{"class"})
	missesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anthem_cache_misses_total",
		Help: "Cache reads that triggered an upstream fetch, by resource class.",
	}, []string{"class"})
)

// Service is the injectable cache service.
type Service struct {
	store Store
	log   *zap.Logger
	group singleflight.Group
}

// New returns a cache service over the given store.
func New(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// GetOrFetch returns the cached value for key within its class TTL, or calls
// fn, stores the result and returns it. Concurrent calls for the same cold
// key share one fn invocation.
func (s *Service) GetOrFetch(ctx context.Context, key string, class Class, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	full := class.Name + ":" + key

	if val, ok, err := s.store.Get(ctx, full); err != nil {
		s.log.Warn("cache read failed, fetching upstream", zap.String("key", full), zap.Error(err))
	} else if ok {
		hitsTotal.WithLabelValues(class.Name).Inc()

		return val, nil
	}

	missesTotal.WithLabelValues(class.Name).Inc()

	val, err, _ := s.group.Do(full, func() (interface{}, error) {
		b, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		if err := s.store.Set(ctx, full, b, class.TTL); err != nil {
			s.log.Warn("cache write failed", zap.String("key", full), zap.Error(err))
		}

		return b, nil
	})
	if err != nil {
		return nil, err
	}

	return val.([]byte), nil
}

// Fetch is a typed convenience over GetOrFetch: values pass through the cache
// as JSON so any Store backend can hold them.
func Fetch[T any](ctx context.Context, s *Service, key string, class Class, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	b, err := s.GetOrFetch(ctx, key, class, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, err
	}

	return out, nil
}
