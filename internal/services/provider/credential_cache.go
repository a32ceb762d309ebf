package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	adapterports "github.com/kevin07696/smilepay-service/internal/adapters/ports"
	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/internal/domain/ports"
)

var (
	// No labels on hits: this is on the notification hot path
	providerCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smilepay_provider_cache_hits_total",
		Help: "Total number of provider credential cache hits",
	})

	providerCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smilepay_provider_cache_misses_total",
		Help: "Total number of provider credential cache misses",
	}, []string{"reason"}) // expired, not_found, error

	providerCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smilepay_provider_cache_size",
		Help: "Current number of providers in cache",
	})

	providerCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smilepay_provider_cache_evictions_total",
		Help: "Total number of cache evictions due to size limit",
	})
)

// providerSecret is the JSON document stored at Provider.SecretPath
type providerSecret struct {
	VerifyKey        string `json:"verify_key"`
	VerificationSeed string `json:"verification_seed"`
}

// cachedProvider holds a fully resolved provider configuration
type cachedProvider struct {
	provider   domain.Provider
	expiresAt  time.Time
	lastAccess time.Time
}

// CredentialCache resolves provider configurations, merging secrets from the
// secret manager, and caches the result for ttl. At most maxSize providers are
// kept; the least recently used are evicted first.
type CredentialCache struct {
	mu        sync.Mutex
	entries   map[string]*cachedProvider
	providers ports.ProviderRepository
	secretMgr adapterports.SecretManagerAdapter
	logger    *zap.Logger

	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// NewCredentialCache creates a provider credential cache. secretMgr may be nil
// when no provider uses SecretPath.
func NewCredentialCache(
	providers ports.ProviderRepository,
	secretMgr adapterports.SecretManagerAdapter,
	logger *zap.Logger,
	ttl time.Duration,
	maxSize int,
) *CredentialCache {
	return &CredentialCache{
		entries:   make(map[string]*cachedProvider),
		providers: providers,
		secretMgr: secretMgr,
		logger:    logger,
		ttl:       ttl,
		maxSize:   maxSize,
		now:       time.Now,
	}
}

// Get returns a copy of the resolved provider configuration
func (c *CredentialCache) Get(ctx context.Context, providerID string) (*domain.Provider, error) {
	now := c.now()

	c.mu.Lock()
	if entry, ok := c.entries[providerID]; ok {
		if now.Before(entry.expiresAt) {
			entry.lastAccess = now
			p := entry.provider
			c.mu.Unlock()
			providerCacheHits.Inc()
			return &p, nil
		}
		delete(c.entries, providerID)
		providerCacheMisses.WithLabelValues("expired").Inc()
	} else {
		providerCacheMisses.WithLabelValues("not_found").Inc()
	}
	c.mu.Unlock()

	return c.fetchAndCache(ctx, providerID)
}

func (c *CredentialCache) fetchAndCache(ctx context.Context, providerID string) (*domain.Provider, error) {
	provider, err := c.providers.Get(ctx, providerID)
	if err != nil {
		providerCacheMisses.WithLabelValues("error").Inc()
		return nil, err
	}

	if provider.SecretPath != "" {
		if err := c.mergeSecret(ctx, provider); err != nil {
			providerCacheMisses.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	now := c.now()
	c.mu.Lock()
	c.entries[providerID] = &cachedProvider{
		provider:   *provider,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
	c.evictIfNeeded()
	providerCacheSize.Set(float64(len(c.entries)))
	c.mu.Unlock()

	c.logger.Debug("Cached provider credentials",
		zap.String("provider_id", providerID),
		zap.Bool("from_secret_manager", provider.SecretPath != ""),
		zap.Duration("ttl", c.ttl),
	)

	return provider, nil
}

// mergeSecret overlays non-empty secret fields onto provider
func (c *CredentialCache) mergeSecret(ctx context.Context, provider *domain.Provider) error {
	if c.secretMgr == nil {
		return domain.NewDomainError(domain.ErrorCodeConfigIncomplete, "provider references a secret but no secret manager is configured").
			WithDetail("provider_id", provider.ID)
	}

	secret, err := c.secretMgr.GetSecret(ctx, provider.SecretPath)
	if err != nil {
		return fmt.Errorf("failed to fetch provider secret: %w", err)
	}

	var data providerSecret
	if err := json.Unmarshal([]byte(secret.Value), &data); err != nil {
		return domain.WrapError(domain.ErrorCodeConfigIncomplete, "provider secret is not valid JSON", err).
			WithDetail("provider_id", provider.ID)
	}
	if data.VerifyKey != "" {
		provider.VerifyKey = data.VerifyKey
	}
	if data.VerificationSeed != "" {
		provider.VerificationSeed = data.VerificationSeed
	}
	return nil
}

// Invalidate removes a provider from the cache. Call after configuration changes.
func (c *CredentialCache) Invalidate(providerID string) {
	c.mu.Lock()
	delete(c.entries, providerID)
	providerCacheSize.Set(float64(len(c.entries)))
	c.mu.Unlock()

	c.logger.Info("Invalidated provider cache entry", zap.String("provider_id", providerID))
}

// InvalidateAll clears the entire cache
func (c *CredentialCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*cachedProvider)
	providerCacheSize.Set(0)
	c.mu.Unlock()
}

// evictIfNeeded drops least recently used entries beyond maxSize, plus 10% headroom
// to reduce churn. Caller holds c.mu.
func (c *CredentialCache) evictIfNeeded() {
	if c.maxSize <= 0 || len(c.entries) <= c.maxSize {
		return
	}

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return c.entries[ids[i]].lastAccess.Before(c.entries[ids[j]].lastAccess)
	})

	evict := len(c.entries) - c.maxSize + c.maxSize/10
	for i := 0; i < evict && i < len(ids); i++ {
		delete(c.entries, ids[i])
		providerCacheEvictions.Inc()
	}
}

// size returns the number of cached providers
func (c *CredentialCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
