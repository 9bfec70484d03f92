package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/somatic-tier-classifier/internal/domain"
)

// cachedPayload is what the collector stores in the payload cache.
type cachedPayload struct {
	Payload   json.RawMessage `json:"payload"`
	KBVersion string          `json:"kb_version"`
	CachedAt  time.Time       `json:"cached_at"`
}

// Collector queries every configured knowledge base for one variant and turns
// each answer into a RawLookup. Each source sits behind its own circuit breaker.
type Collector struct {
	fetchers []domain.EvidenceFetcher
	breakers map[domain.EvidenceSource]*gobreaker.CircuitBreaker
	cache    domain.PayloadCache
	logger   *logrus.Logger
}

// NewCollector wraps fetchers with breakers built from config. cache may be nil.
func NewCollector(fetchers []domain.EvidenceFetcher, cache domain.PayloadCache, config domain.BreakerConfig, logger *logrus.Logger) *Collector {
	c := &Collector{
		fetchers: fetchers,
		breakers: make(map[domain.EvidenceSource]*gobreaker.CircuitBreaker, len(fetchers)),
		cache:    cache,
		logger:   logger,
	}
	for _, f := range fetchers {
		c.breakers[f.Source()] = newBreaker(string(f.Source()), config, logger)
	}
	return c
}

func newBreaker(name string, config domain.BreakerConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A source that answers "no record" is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"source": name,
				"from":   from.String(),
				"to":     to.String(),
			}).Warn("Knowledge base circuit breaker changed state")
		},
	})
}

// Sources lists the sources the collector queries.
func (c *Collector) Sources() []domain.EvidenceSource {
	sources := make([]domain.EvidenceSource, 0, len(c.fetchers))
	for _, f := range c.fetchers {
		sources = append(sources, f.Source())
	}
	return sources
}

// Collect fetches from every source concurrently. Per-source failures become
// ERROR lookups; only cancellation of ctx fails the call.
func (c *Collector) Collect(ctx context.Context, variant domain.VariantContext) ([]domain.RawLookup, error) {
	lookups := make([]domain.RawLookup, len(c.fetchers))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range c.fetchers {
		g.Go(func() error {
			lookups[i] = c.lookup(gctx, f, variant)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collecting evidence for %s: %w", variant.VariantID, err)
	}

	c.logger.WithFields(logrus.Fields{
		"variant_id": variant.VariantID,
		"sources":    len(lookups),
		"found":      countFound(lookups),
	}).Debug("Knowledge base lookups collected")
	return lookups, nil
}

func (c *Collector) lookup(ctx context.Context, f domain.EvidenceFetcher, variant domain.VariantContext) domain.RawLookup {
	source := f.Source()
	key := payloadKey(source, variant)

	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, key); ok {
			var cached cachedPayload
			if err := json.Unmarshal(raw, &cached); err == nil {
				return domain.RawLookup{
					Source:    source,
					Status:    domain.LOOKUP_FOUND,
					Payload:   cached.Payload,
					KBVersion: cached.KBVersion,
				}
			}
		}
	}

	result, err := c.breakers[source].Execute(func() (interface{}, error) {
		payload, version, err := f.Fetch(ctx, variant)
		if err != nil {
			return nil, err
		}
		return cachedPayload{Payload: payload, KBVersion: version, CachedAt: time.Now().UTC()}, nil
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.RawLookup{Source: source, Status: domain.LOOKUP_NOT_FOUND}
	case err != nil:
		c.logger.WithFields(logrus.Fields{
			"source":     source,
			"variant_id": variant.VariantID,
		}).WithError(err).Warn("Knowledge base lookup failed")
		return domain.RawLookup{Source: source, Status: domain.LOOKUP_ERROR, Error: err.Error()}
	}

	fetched := result.(cachedPayload)
	if c.cache != nil {
		if raw, err := json.Marshal(fetched); err == nil {
			if err := c.cache.Set(ctx, key, raw); err != nil {
				c.logger.WithError(err).WithField("source", source).Debug("Failed to cache knowledge base payload")
			}
		}
	}
	return domain.RawLookup{
		Source:    source,
		Status:    domain.LOOKUP_FOUND,
		Payload:   fetched.Payload,
		KBVersion: fetched.KBVersion,
	}
}

func countFound(lookups []domain.RawLookup) int {
	n := 0
	for _, l := range lookups {
		if l.Status == domain.LOOKUP_FOUND {
			n++
		}
	}
	return n
}

// BuildFetchers assembles fetchers from configuration. HTTP sources take
// precedence over the snapshot for the same source.
func BuildFetchers(config domain.KnowledgeBasesConfig) ([]domain.EvidenceFetcher, error) {
	bySource := make(map[domain.EvidenceSource]domain.EvidenceFetcher)

	if config.SnapshotPath != "" {
		snap, err := LoadSnapshot(config.SnapshotPath)
		if err != nil {
			return nil, err
		}
		for _, f := range snap.Fetchers() {
			bySource[f.Source()] = f
		}
	}

	names := make([]string, 0, len(config.Sources))
	for name := range config.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		source := domain.EvidenceSource(strings.ToUpper(name))
		f, err := NewHTTPFetcher(source, config.Sources[name])
		if err != nil {
			return nil, err
		}
		bySource[source] = f
	}

	var fetchers []domain.EvidenceFetcher
	for _, source := range domain.AllEvidenceSources() {
		if f, ok := bySource[source]; ok {
			fetchers = append(fetchers, f)
		}
	}
	return fetchers, nil
}

// NewPayloadCache builds the memory cache and, when a Redis URL is configured,
// layers the shared Redis cache behind it. The returned close func releases Redis.
func NewPayloadCache(config domain.CacheConfig) (domain.PayloadCache, func() error, error) {
	memory := NewMemoryCache(config)
	if config.RedisURL == "" {
		return memory, func() error { return nil }, nil
	}
	shared, err := NewRedisCache(config)
	if err != nil {
		return nil, nil, err
	}
	return NewTieredCache(memory, shared), shared.Close, nil
}
