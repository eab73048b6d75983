package scraper

import (
	"net/url"
	"strings"
)

var DefaultMarketplaces = []string{
	"amazon.in",
	"amazon.com",
	"flipkart.com",
	"myntra.com",
	"nykaa.com",
	"ajio.com",
	"meesho.com",
	"shopclues.com",
	"snapdeal.com",
	"ebay.com",
}

// Marketplace is the result of classifying a product URL.
type Marketplace struct {
	// ID is the allow-list entry that matched, e.g. "amazon.in".
	ID string
	// Host is the request hostname with any leading "www." removed.
	Host string
	URL  *url.URL
}

type Classifier struct {
	marketplaces []string
}

func NewClassifier(marketplaces []string) *Classifier {
	if len(marketplaces) == 0 {
		marketplaces = DefaultMarketplaces
	}
	list := make([]string, 0, len(marketplaces))
	for _, m := range marketplaces {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			list = append(list, m)
		}
	}
	return &Classifier{marketplaces: list}
}

func (c *Classifier) Marketplaces() []string {
	out := make([]string, len(c.marketplaces))
	copy(out, c.marketplaces)
	return out
}

// Classify validates rawURL and matches its host against the allow-list.
// Matching is by substring, so "m.flipkart.com" and "amazon.com.evil.net"
// both match; entries are checked in allow-list order.
func (c *Classifier) Classify(rawURL string) (Marketplace, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return Marketplace{}, newError(KindInvalidURL, nil, "URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return Marketplace{}, newError(KindInvalidURL, err, "Invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Marketplace{}, newError(KindInvalidURL, nil, "Invalid URL format")
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	for _, m := range c.marketplaces {
		if strings.Contains(host, m) {
			return Marketplace{ID: m, Host: host, URL: u}, nil
		}
	}

	return Marketplace{}, newError(KindUnsupportedDomain, nil,
		"Unsupported domain: %s. Supported sites: %s", host, strings.Join(c.marketplaces, ", "))
}
