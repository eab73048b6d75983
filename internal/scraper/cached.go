package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/cartsmith/internal/cache"
	"github.com/maltedev/cartsmith/internal/models"
)

// CachedExtractor serves repeat extractions from a cache. URLs are classified
// before the cache is consulted, and only successes are stored.
type CachedExtractor struct {
	service *Service
	cache   cache.Cache
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCachedExtractor(service *Service, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedExtractor {
	return &CachedExtractor{
		service: service,
		cache:   c,
		ttl:     ttl,
		logger:  logger.With("component", "extract-cache"),
	}
}

func (c *CachedExtractor) Extract(ctx context.Context, rawURL string) (*models.ExtractedProduct, error) {
	m, err := c.service.Classify(rawURL)
	if err != nil {
		return nil, err
	}

	key := CacheKey(m)

	data, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var product models.ExtractedProduct
		if jsonErr := json.Unmarshal(data, &product); jsonErr == nil && product.Complete() {
			c.logger.Debug("cache hit", "key", key)
			return &product, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "key", key)
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn("cache lookup failed", "key", key, "error", err)
	}

	product, err := c.service.ExtractMarketplace(ctx, m)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("cache store failed", "key", key, "error", err)
		}
	}

	return product, nil
}

func (c *CachedExtractor) ExtractFromURL(ctx context.Context, rawURL string) models.ExtractionResult {
	product, err := c.Extract(ctx, rawURL)
	return Result(rawURL, product, err)
}

// CacheKey identifies a product page independent of fragment and host case.
func CacheKey(m Marketplace) string {
	u := *m.URL
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return m.ID + "|" + u.String()
}
