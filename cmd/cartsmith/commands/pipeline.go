package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/cartsmith/internal/cache"
	"github.com/maltedev/cartsmith/internal/config"
	"github.com/maltedev/cartsmith/internal/parser"
	"github.com/maltedev/cartsmith/internal/price"
	"github.com/maltedev/cartsmith/internal/ratelimit"
	"github.com/maltedev/cartsmith/internal/scraper"
)

const hostLimiterIdle = 10 * time.Minute

// newService assembles classifier, fetcher and parser. The host limiter, when
// configured, is pruned until ctx is done.
func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) *scraper.Service {
	fetcher := scraper.NewHTTPFetcher(scraper.FetcherConfig{
		Timeout:      cfg.Scraper.FetchTimeout,
		MaxRedirects: cfg.Scraper.MaxRedirects,
		UserAgent:    cfg.Scraper.UserAgent,
	}, logger)

	if cfg.Scraper.HostPerMinute > 0 {
		limiter := ratelimit.New(cfg.Scraper.HostPerMinute, 1, hostLimiterIdle)
		go limiter.Run(ctx, time.Minute)
		fetcher.WithHostLimiter(limiter)
	}

	p := parser.NewMarketplaceParser(parser.DefaultSites(), price.NewNormalizer(cfg.Scraper.USDToINRRate), logger)

	return scraper.NewService(scraper.NewClassifier(cfg.Scraper.Marketplaces), fetcher, p, logger)
}

// newExtractor puts the configured extraction cache in front of service. The
// returned close func releases the cache.
func newExtractor(ctx context.Context, cfg *config.Config, service *scraper.Service, logger *slog.Logger) (scraper.Extractor, func(), error) {
	var c cache.Cache

	switch cfg.Cache.Type {
	case "none":
		return service, func() {}, nil
	case "memory":
		c = cache.NewMemoryCache(time.Minute)
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis cache: %w", err)
		}
		c = rc
	default:
		return nil, nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}

	logger.Info("extraction cache enabled", "type", cfg.Cache.Type, "ttl", cfg.Cache.TTL)

	closeCache := func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}
	return scraper.NewCachedExtractor(service, c, cfg.Cache.TTL, logger), closeCache, nil
}
