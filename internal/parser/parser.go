package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/cartsmith/internal/models"
)

type Parser interface {
	HasSite(marketplace string) bool
	ParseSite(doc *goquery.Document, marketplace, host string) (*models.ExtractedProduct, error)
	ParseGeneric(doc *goquery.Document, host string) (*models.ExtractedProduct, error)
}

// MissingFieldsError reports required fields no selector could fill.
type MissingFieldsError struct {
	Source string
	Fields []Field
}

func (e *MissingFieldsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s extraction failed: could not find %s on the page", e.Source, strings.Join(names, " and "))
}

func ParseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func missing(source string, p *models.ExtractedProduct) error {
	var fields []Field
	if p.Title == "" {
		fields = append(fields, FieldTitle)
	}
	if p.Price == "" {
		fields = append(fields, FieldPrice)
	}
	if len(fields) == 0 {
		return nil
	}
	return &MissingFieldsError{Source: source, Fields: fields}
}
