package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/cartsmith/internal/models"
)

type ErrorKind string

const (
	KindInvalidURL            ErrorKind = "INVALID_URL"
	KindUnsupportedDomain     ErrorKind = "UNSUPPORTED_DOMAIN"
	KindNetwork               ErrorKind = "NETWORK_ERROR"
	KindBlocked               ErrorKind = "BLOCKED"
	KindRateLimited           ErrorKind = "RATE_LIMITED"
	KindFetchFailed           ErrorKind = "FETCH_FAILED"
	KindMissingRequiredFields ErrorKind = "MISSING_REQUIRED_FIELDS"
	KindUnknown               ErrorKind = "UNKNOWN_EXTRACTION_ERROR"
)

// Sentinels for errors.Is. A *Error matches the sentinel of its kind.
var (
	ErrInvalidURL            = errors.New("invalid url")
	ErrUnsupportedDomain     = errors.New("unsupported domain")
	ErrNetwork               = errors.New("network error")
	ErrBlocked               = errors.New("blocked by anti-bot protection")
	ErrRateLimited           = errors.New("rate limited")
	ErrFetchFailed           = errors.New("fetch failed")
	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrUnknown               = errors.New("unknown extraction error")
)

var sentinels = map[ErrorKind]error{
	KindInvalidURL:            ErrInvalidURL,
	KindUnsupportedDomain:     ErrUnsupportedDomain,
	KindNetwork:               ErrNetwork,
	KindBlocked:               ErrBlocked,
	KindRateLimited:           ErrRateLimited,
	KindFetchFailed:           ErrFetchFailed,
	KindMissingRequiredFields: ErrMissingRequiredFields,
	KindUnknown:               ErrUnknown,
}

// Error is returned by every pipeline stage. Message is safe to show to users.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Extractor is the pipeline as seen by callers such as the HTTP API and CLI.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (*models.ExtractedProduct, error)
	ExtractFromURL(ctx context.Context, rawURL string) models.ExtractionResult
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}
