package parser

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/cartsmith/internal/models"
	"github.com/maltedev/cartsmith/internal/price"
)

var (
	genericTitle = texts(`h1`, `[data-testid*="title"]`, `[data-testid*="name"]`, `[class*="title"]`, `[class*="name"]`, `[class*="product-title"]`)
	genericPrice = texts(`[data-testid*="price"]`, `[class*="price"]`, `[class*="current"]`, `span[class*="rs"]`, `span[class*="rupee"]`)
	genericImage = srcs(`img[alt*="product"]`, `img[class*="product"]`, `img[data-testid*="image"]`, `main img`, `img[src*="product"]`)

	priceLike = regexp.MustCompile(`[₹$\d,.]`)
)

const minGenericTitleLen = 5

// MarketplaceParser extracts products using per-marketplace selector tables
// and a generic fallback shared by every site.
type MarketplaceParser struct {
	sites      map[string]Site
	normalizer *price.Normalizer
	logger     *slog.Logger
}

func NewMarketplaceParser(sites []Site, normalizer *price.Normalizer, logger *slog.Logger) *MarketplaceParser {
	bySite := make(map[string]Site, len(sites))
	for _, s := range sites {
		bySite[strings.ToLower(s.Marketplace)] = s
	}
	return &MarketplaceParser{
		sites:      bySite,
		normalizer: normalizer,
		logger:     logger.With("component", "parser"),
	}
}

func (p *MarketplaceParser) HasSite(marketplace string) bool {
	_, ok := p.sites[strings.ToLower(marketplace)]
	return ok
}

func (p *MarketplaceParser) ParseSite(doc *goquery.Document, marketplace, host string) (*models.ExtractedProduct, error) {
	site, ok := p.sites[strings.ToLower(marketplace)]
	if !ok {
		return p.ParseGeneric(doc, host)
	}

	root := doc.Selection
	field := func(f Field) string {
		return resolve(root, site.Fields[f], nonEmpty)
	}

	rawPrice := field(FieldPrice)
	product := &models.ExtractedProduct{
		Title:        field(FieldTitle),
		ImageURL:     field(FieldImage),
		StoreDomain:  site.store(host),
		Color:        field(FieldColor),
		Size:         field(FieldSize),
		Availability: field(FieldAvailability),
	}
	if rawPrice != "" {
		product.Price = p.normalizer.Normalize(rawPrice, price.Options{Convert: site.Currency.convert(rawPrice)})
	}

	if err := missing(site.Marketplace, product); err != nil {
		p.logger.Debug("site selectors came up short", "marketplace", site.Marketplace, "error", err)
		return nil, err
	}

	return product, nil
}

func (p *MarketplaceParser) ParseGeneric(doc *goquery.Document, host string) (*models.ExtractedProduct, error) {
	root := doc.Selection

	rawPrice := resolve(root, genericPrice, priceLike.MatchString)
	product := &models.ExtractedProduct{
		Title: resolve(root, genericTitle, func(s string) bool {
			return utf8.RuneCountInString(s) > minGenericTitleLen
		}),
		ImageURL: resolve(root, genericImage, func(s string) bool {
			return strings.HasPrefix(s, "http") || strings.HasPrefix(s, "//")
		}),
		StoreDomain: host,
	}
	if rawPrice != "" {
		product.Price = p.normalizer.Normalize(rawPrice, price.Options{})
	}

	if err := missing("generic", product); err != nil {
		return nil, err
	}

	return product, nil
}
