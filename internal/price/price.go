// Package price turns scraped price text into display and storage forms.
package price

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const DefaultUSDToINR = 83.0

var (
	ErrNoAmount = errors.New("no numeric amount in price")

	keepDisplay   = regexp.MustCompile(`[^\d,.]`)
	amountPattern = regexp.MustCompile(`\d[\d,.]*`)
)

// Normalizer converts raw price strings. The zero value uses DefaultUSDToINR.
type Normalizer struct {
	Rate float64

	printer *message.Printer
}

type Options struct {
	// Convert treats the amount as USD and renders it in INR.
	Convert bool
}

func NewNormalizer(rate float64) *Normalizer {
	if rate <= 0 {
		rate = DefaultUSDToINR
	}
	return &Normalizer{
		Rate:    rate,
		printer: message.NewPrinter(language.English),
	}
}

// Strip keeps digits, commas and periods only. Thousands separators survive;
// separators dangling at either end ("Rs. 799.") are dropped.
func Strip(raw string) string {
	return strings.Trim(keepDisplay.ReplaceAllString(raw, ""), ".,")
}

// Normalize returns the stripped price, or the converted INR amount when
// opts.Convert is set. If conversion cannot parse an amount the raw text is
// returned unchanged.
func (n *Normalizer) Normalize(raw string, opts Options) string {
	if !opts.Convert {
		return Strip(raw)
	}

	amount, err := parseAmount(raw)
	if err != nil {
		return raw
	}

	return n.printerOrDefault().Sprintf("₹%.2f", amount*n.rate())
}

func (n *Normalizer) rate() float64 {
	if n == nil || n.Rate <= 0 {
		return DefaultUSDToINR
	}
	return n.Rate
}

func (n *Normalizer) printerOrDefault() *message.Printer {
	if n == nil || n.printer == nil {
		return message.NewPrinter(language.English)
	}
	return n.printer
}

// Decimal converts display text such as "₹2,074.17" or "1,999" into a plain
// two-place decimal string suitable for a numeric column.
func Decimal(s string) (string, error) {
	amount, err := parseAmount(s)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(amount, 'f', 2, 64), nil
}

// HasCurrencySymbol reports whether s contains any Unicode currency symbol.
func HasCurrencySymbol(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Sc, r) {
			return true
		}
	}
	return strings.Contains(s, "Rs")
}

// parseAmount reads the first number in raw. It starts at a digit so the
// period in "Rs. 799" is not taken as a decimal point.
func parseAmount(raw string) (float64, error) {
	match := amountPattern.FindString(raw)
	if match == "" {
		return 0, ErrNoAmount
	}
	digits := strings.ReplaceAll(strings.TrimRight(match, ".,"), ",", "")

	amount, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}

	return amount, nil
}
