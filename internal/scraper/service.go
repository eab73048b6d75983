package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/cartsmith/internal/models"
	"github.com/maltedev/cartsmith/internal/parser"
)

// Service runs the extraction pipeline: classify, fetch, parse with the
// marketplace selectors, fall back to the generic selectors.
type Service struct {
	classifier *Classifier
	fetcher    Fetcher
	parser     parser.Parser
	logger     *slog.Logger
}

func NewService(classifier *Classifier, fetcher Fetcher, p parser.Parser, logger *slog.Logger) *Service {
	return &Service{
		classifier: classifier,
		fetcher:    fetcher,
		parser:     p,
		logger:     logger.With("component", "scraper"),
	}
}

func (s *Service) Classify(rawURL string) (Marketplace, error) {
	return s.classifier.Classify(rawURL)
}

func (s *Service) Extract(ctx context.Context, rawURL string) (*models.ExtractedProduct, error) {
	m, err := s.classifier.Classify(rawURL)
	if err != nil {
		s.logger.Info("rejected url", "url", rawURL, "error", err)
		return nil, err
	}
	return s.ExtractMarketplace(ctx, m)
}

// ExtractFromURL never returns an error; failures are folded into the result.
func (s *Service) ExtractFromURL(ctx context.Context, rawURL string) models.ExtractionResult {
	product, err := s.Extract(ctx, rawURL)
	return Result(rawURL, product, err)
}

// ExtractMarketplace fetches and parses a URL that has already been classified.
func (s *Service) ExtractMarketplace(ctx context.Context, m Marketplace) (product *models.ExtractedProduct, err error) {
	rawURL := m.URL.String()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("extraction panicked", "url", rawURL, "panic", r)
			product = nil
			err = newError(KindUnknown, nil, "Failed to extract product: %v", r)
		}
	}()

	s.logger.Info("extracting product", "url", rawURL, "marketplace", m.ID)

	html, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, e
		}
		return nil, newError(KindNetwork, err, "Failed to fetch page: %v", err)
	}

	doc, err := parser.ParseHTML(html)
	if err != nil {
		return nil, newError(KindUnknown, err, "Failed to extract product: %v", err)
	}

	if !s.parser.HasSite(m.ID) {
		product, err = s.parser.ParseGeneric(doc, m.Host)
		if err != nil {
			return nil, missingFields(err, "")
		}
		return product, nil
	}

	product, siteErr := s.parser.ParseSite(doc, m.ID, m.Host)
	if siteErr == nil {
		return product, nil
	}

	s.logger.Info("site extractor failed, trying generic", "url", rawURL, "error", siteErr)

	product, genericErr := s.parser.ParseGeneric(doc, m.Host)
	if genericErr == nil {
		return product, nil
	}

	return nil, missingFields(siteErr, genericErr.Error())
}

func missingFields(err error, fallback string) *Error {
	msg := err.Error()
	if fallback != "" {
		msg = fmt.Sprintf("%s (fallback: %s)", msg, fallback)
	}

	var mf *parser.MissingFieldsError
	if errors.As(err, &mf) {
		return newError(KindMissingRequiredFields, err, "%s", msg)
	}
	return newError(KindUnknown, err, "%s", msg)
}

// Result folds a pipeline outcome into an ExtractionResult.
func Result(rawURL string, product *models.ExtractedProduct, err error) models.ExtractionResult {
	if err == nil && product.Complete() {
		return models.Succeeded(product)
	}
	if err == nil {
		err = newError(KindMissingRequiredFields, nil, "Extraction returned no title or price")
	}
	return models.Failed(string(KindOf(err)), err.Error(), rawURL)
}
