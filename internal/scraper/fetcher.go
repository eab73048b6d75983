package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type FetcherConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
}

// HostLimiter spaces out requests to the same marketplace host.
type HostLimiter interface {
	Wait(ctx context.Context, host string) error
}

// HTTPFetcher downloads product pages. The first attempt presents a full
// desktop browser header set; a 403 or 429 gets exactly one more attempt with
// a reduced header set over a transport with a different TLS fingerprint.
type HTTPFetcher struct {
	primary   *resty.Client
	alternate *resty.Client
	userAgent string
	limiter   HostLimiter
	logger    *slog.Logger
}

func NewHTTPFetcher(cfg FetcherConfig, logger *slog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	alternate := newRestyClient(cfg)
	alternate.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(
		alternate.GetClient().Transport,
		cloudflarebp.Options{AddMissingHeaders: false},
	)

	return &HTTPFetcher{
		primary:   newRestyClient(cfg),
		alternate: alternate,
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "fetcher"),
	}
}

// WithHostLimiter makes every attempt wait for a token for its host.
func (f *HTTPFetcher) WithHostLimiter(l HostLimiter) *HTTPFetcher {
	f.limiter = l
	return f
}

func (f *HTTPFetcher) wait(ctx context.Context, host string) error {
	if f.limiter == nil {
		return nil
	}
	if err := f.limiter.Wait(ctx, host); err != nil {
		return networkError(host, err)
	}
	return nil
}

func newRestyClient(cfg FetcherConfig) *resty.Client {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects))
	return client
}

func (f *HTTPFetcher) browserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                f.userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9,hi;q=0.8",
		"Accept-Encoding":           "gzip",
		"Cache-Control":             "max-age=0",
		"Sec-Ch-Ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"Windows"`,
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
		"Connection":                "keep-alive",
	}
}

func (f *HTTPFetcher) reducedHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                f.userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	host := displayHost(rawURL)

	if err := f.wait(ctx, host); err != nil {
		return "", err
	}

	res, err := f.primary.R().
		SetContext(ctx).
		SetHeaders(f.browserHeaders()).
		Get(rawURL)
	if err != nil {
		return "", networkError(host, err)
	}

	if res.StatusCode() == http.StatusForbidden || res.StatusCode() == http.StatusTooManyRequests {
		f.logger.Info("retrying with alternate headers", "host", host, "status", res.StatusCode())

		if err := f.wait(ctx, host); err != nil {
			return "", err
		}

		res, err = f.alternate.R().
			SetContext(ctx).
			SetHeaders(f.reducedHeaders()).
			Get(rawURL)
		if err != nil {
			return "", networkError(host, err)
		}
	}

	if !res.IsSuccess() {
		f.logger.Warn("fetch failed", "host", host, "status", res.StatusCode())
		return "", statusError(host, res.StatusCode(), res.Status())
	}

	return res.String(), nil
}

func statusError(host string, code int, status string) *Error {
	switch code {
	case http.StatusForbidden:
		e := newError(KindBlocked, nil,
			"Access blocked by %s. This site has anti-bot protection. Please try:\n"+
				"1. Copy the product title and price manually\n"+
				"2. Use the manual entry option\n"+
				"3. Try a different product URL from the same site", host)
		e.StatusCode = code
		return e
	case http.StatusTooManyRequests:
		e := newError(KindRateLimited, nil,
			"Rate limited by %s. Please wait a few minutes and try again.", host)
		e.StatusCode = code
		return e
	}

	e := newError(KindFetchFailed, nil, "Failed to fetch page: %d %s", code, statusText(code, status))
	e.StatusCode = code
	return e
}

func networkError(host string, err error) *Error {
	return newError(KindNetwork, err, "Failed to fetch page from %s: %v", host, err)
}

// statusText drops the numeric prefix resty keeps in Status().
func statusText(code int, status string) string {
	if i := strings.IndexByte(status, ' '); i >= 0 {
		return status[i+1:]
	}
	if status != "" {
		return status
	}
	return http.StatusText(code)
}

func displayHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
