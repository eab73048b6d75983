package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maltedev/cartsmith/internal/models"
	"github.com/maltedev/cartsmith/internal/ratelimit"
	"github.com/maltedev/cartsmith/internal/scraper"
	"github.com/maltedev/cartsmith/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	product *models.ExtractedProduct
	err     error
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context, rawURL string) (*models.ExtractedProduct, error) {
	f.calls++
	return f.product, f.err
}

func (f *fakeExtractor) ExtractFromURL(ctx context.Context, rawURL string) models.ExtractionResult {
	p, err := f.Extract(ctx, rawURL)
	return scraper.Result(rawURL, p, err)
}

type fakeOutbox struct {
	pending, deadLetter int64
}

func (f fakeOutbox) PendingCount(ctx context.Context) (int64, error)    { return f.pending, nil }
func (f fakeOutbox) DeadLetterCount(ctx context.Context) (int64, error) { return f.deadLetter, nil }

type testServer struct {
	handler   http.Handler
	store     *storage.MemoryStore
	extractor *fakeExtractor
}

func newTestServer(t *testing.T, limiter *ratelimit.KeyedLimiter) *testServer {
	t.Helper()

	store, err := storage.NewMemoryStore("")
	require.NoError(t, err)

	extractor := &fakeExtractor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandlers(extractor, store, nil, logger)

	return &testServer{
		handler: NewRouter(h, RouterConfig{
			AllowedOrigins: []string{"http://localhost:*"},
			RequestTimeout: 5 * time.Second,
			ExtractLimiter: limiter,
		}),
		store:     store,
		extractor: extractor,
	}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRequireUser(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		user string
		want int
	}{
		{name: "missing header", user: "", want: http.StatusUnauthorized},
		{name: "whitespace in id", user: "user one", want: http.StatusUnauthorized},
		{name: "valid id", user: "user-1", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/products", tt.user, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Store)
	assert.Nil(t, resp.Outbox)
}

func TestHealthOutbox(t *testing.T) {
	store, err := storage.NewMemoryStore("")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		outbox     fakeOutbox
		wantCode   int
		wantStatus string
	}{
		{name: "healthy", outbox: fakeOutbox{pending: 3}, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "backlog", outbox: fakeOutbox{pending: 1001}, wantCode: http.StatusOK, wantStatus: "warning"},
		{name: "dead letters", outbox: fakeOutbox{deadLetter: 101}, wantCode: http.StatusServiceUnavailable, wantStatus: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(&fakeExtractor{}, store, tt.outbox, logger)
			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decode[HealthResponse](t, rec)
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.NotNil(t, resp.Outbox)
			assert.Equal(t, tt.outbox.pending, resp.Outbox.Pending)
			assert.Equal(t, tt.outbox.deadLetter, resp.Outbox.DeadLetter)
		})
	}
}
