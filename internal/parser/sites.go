package parser

import (
	"strings"

	"github.com/maltedev/cartsmith/internal/price"
)

// Currency decides whether a scraped price is USD that needs converting.
type Currency int

const (
	// CurrencyINR prices are displayed as scraped.
	CurrencyINR Currency = iota
	// CurrencyUSDUnlessMarked converts when the text shows "$" or no currency
	// symbol at all.
	CurrencyUSDUnlessMarked
	// CurrencyUSDUnlessRupee converts unless the text already shows "₹".
	CurrencyUSDUnlessRupee
)

func (c Currency) convert(raw string) bool {
	switch c {
	case CurrencyUSDUnlessMarked:
		return strings.Contains(raw, "$") || !price.HasCurrencySymbol(raw)
	case CurrencyUSDUnlessRupee:
		return !strings.Contains(raw, "₹")
	}
	return false
}

// Site is the selector table for one marketplace.
type Site struct {
	Marketplace string
	// StoreLabel replaces the hostname as storeDomain when set.
	StoreLabel string
	Currency   Currency
	Fields     map[Field][]Selector
}

func (s Site) store(host string) string {
	if s.StoreLabel != "" {
		return s.StoreLabel
	}
	return host
}

var amazonFields = map[Field][]Selector{
	FieldTitle:        texts(`#productTitle`, `h1.a-size-large`, `[data-feature-name="title"] h1`),
	FieldPrice:        texts(`.a-price-whole`, `.a-price .a-offscreen`, `#priceblock_dealprice`, `#priceblock_ourprice`),
	FieldImage:        srcs(`#landingImage`, `.a-dynamic-image`, `#imgTagWrapperId img`),
	FieldAvailability: texts(`#availability span`, `.a-color-state`),
	FieldColor: {
		text(`#variation_color_name .selection`),
		attr(`.swatches-container .swatch.selected`, "title"),
	},
	FieldSize: texts(`#variation_size_name .selection`, `.size-selections .selected`),
}

var fashionColorSize = map[Field][]Selector{
	FieldColor: texts(`span[class*="color"]`, `.selected-color`),
	FieldSize:  texts(`span[class*="size"]`, `.selected-size`),
}

func with(base map[Field][]Selector, extra map[Field][]Selector) map[Field][]Selector {
	out := make(map[Field][]Selector, len(base)+len(extra))
	for f, s := range base {
		out[f] = s
	}
	for f, s := range extra {
		out[f] = s
	}
	return out
}

// DefaultSites returns the selector tables for the built-in marketplaces.
func DefaultSites() []Site {
	return []Site{
		{
			Marketplace: "amazon.in",
			StoreLabel:  "Amazon India",
			Fields:      amazonFields,
		},
		{
			Marketplace: "amazon.com",
			StoreLabel:  "Amazon US",
			Currency:    CurrencyUSDUnlessMarked,
			Fields:      amazonFields,
		},
		{
			Marketplace: "flipkart.com",
			Fields: map[Field][]Selector{
				FieldTitle:        texts(`h1 span`, `.B_NuCI`, `._35KyD6`, `h1[class*="title"]`, `span[class*="title"]`, `h1`),
				FieldPrice:        texts(`._30jeq3._16Jk6d`, `._30jeq3`, `._1_WHN1`, `div[class*="price"] span`, `span[class*="price"]`),
				FieldImage:        srcs(`._396cs4 img`, `._2r_T1I img`, `._3li7GG img`, `img[class*="product"]`, `img[alt*="product"]`),
				FieldAvailability: texts(`._16FRp0`, `._3xgqrA`, `div[class*="stock"]`),
				FieldColor:        texts(`div[class*="color"] span`, `.selected-color`),
				FieldSize:         texts(`div[class*="size"] span`, `.selected-size`),
			},
		},
		{
			Marketplace: "myntra.com",
			Fields: with(fashionColorSize, map[Field][]Selector{
				FieldTitle: texts(`h1.pdp-title`, `.pdp-name`, `h1[class*="title"]`, `h1`),
				FieldPrice: texts(`.pdp-price strong`, `.price-current`, `span[class*="price"]`, `div[class*="price"] span`),
				FieldImage: srcs(`.image-grid-image`, `.pdp-img`, `img[class*="image"]`, `img[alt*="product"]`),
			}),
		},
		{
			Marketplace: "nykaa.com",
			Fields: map[Field][]Selector{
				FieldTitle: texts(`h1[data-testid="pdp_product_name"]`, `.product-title`, `h1[class*="product"]`, `h1[class*="title"]`, `h1`),
				FieldPrice: texts(`[data-testid="pdp_product_price"]`, `.price`, `span[class*="price"]`, `div[class*="price"] span`),
				FieldImage: srcs(`[data-testid="pdp_product_image"] img`, `.product-image img`, `img[class*="product"]`, `img[alt*="product"]`),
				FieldColor: texts(`span[class*="color"]`, `div[class*="shade"]`, `.selected-color`),
				FieldSize:  texts(`span[class*="size"]`, `.selected-size`),
			},
		},
		{
			Marketplace: "ajio.com",
			Fields: with(fashionColorSize, map[Field][]Selector{
				FieldTitle: texts(`h1.pdp-product-name`, `.product-name`, `h1[class*="product"]`, `h1[class*="title"]`, `h1`),
				FieldPrice: texts(`.pdp-price .price-value`, `.current-price`, `span[class*="price"]`, `.price`, `div[class*="price"] span`),
				FieldImage: srcs(`.pdp-image img`, `.product-image img`, `img[class*="product"]`, `img[alt*="product"]`),
			}),
		},
		{
			Marketplace: "meesho.com",
			Fields: map[Field][]Selector{
				FieldTitle:        texts(`h1[class*="product"]`, `.product-title`, `h1[class*="title"]`, `h1`),
				FieldPrice:        texts(`span[class*="price"]`, `.price`, `div[class*="price"] span`, `span[class*="rs"]`),
				FieldImage:        srcs(`img[class*="product"]`, `.product-image img`, `img[alt*="product"]`, `img`),
				FieldAvailability: texts(`span[class*="stock"]`, `div[class*="available"]`),
			},
		},
		{
			Marketplace: "shopclues.com",
			Fields: map[Field][]Selector{
				FieldTitle:        texts(`h1.prd_name`, `.product-title`, `h1[class*="product"]`, `h1`),
				FieldPrice:        texts(`.prd_price`, `.price`, `span[class*="price"]`, `div[class*="price"] span`),
				FieldImage:        srcs(`.prd_img img`, `.product-image img`, `img[class*="product"]`, `img[alt*="product"]`),
				FieldAvailability: texts(`span[class*="stock"]`, `.availability`),
			},
		},
		{
			Marketplace: "snapdeal.com",
			Fields: map[Field][]Selector{
				FieldTitle:        texts(`h1[itemprop="name"]`, `.pdp-product-name`, `h1[class*="product"]`, `h1`),
				FieldPrice:        texts(`span[itemprop="price"]`, `.payBlkBig`, `.price`, `span[class*="price"]`),
				FieldImage:        srcs(`img[itemprop="image"]`, `.cloudzoom`, `.product-image img`, `img[class*="product"]`),
				FieldAvailability: texts(`div[class*="stock"]`, `.availability-status`),
			},
		},
		{
			Marketplace: "ebay.com",
			StoreLabel:  "eBay",
			Currency:    CurrencyUSDUnlessRupee,
			Fields: map[Field][]Selector{
				FieldTitle:        texts(`h1[data-testid="x-item-title-label"]`, `.x-item-title-label`, `#iti-title`, `h1[class*="notranslate"]`, `h1`),
				FieldPrice:        texts(`[data-testid="notranslate"]`, `.display-price`, `[class*="price"]`, `.u-flL.condText`, `#prcIsum`),
				FieldImage:        srcs(`#icImg`, `[data-testid="ux-image-carousel-item"] img`, `.ux-image-carousel-item img`, `img[alt*="Picture"]`, `img`),
				FieldAvailability: texts(`[data-testid="u-bold"]`, `.u-flL.condText`, `[class*="available"]`),
			},
		},
	}
}
