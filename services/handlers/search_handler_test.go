package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encorelab/encore-api/dto"
	"github.com/encorelab/encore-api/shared"
)

type stubCatalog struct {
	results []dto.SearchResult
	terms   []string
}

func (s *stubCatalog) Search(ctx context.Context, term string) ([]dto.SearchResult, error) {
	s.terms = append(s.terms, term)
	return s.results, nil
}

type stubRateLimiter struct {
	decision *dto.RateLimitDecision
	recorded []string
}

func (s *stubRateLimiter) Check(identifier, kind string) (*dto.RateLimitDecision, error) {
	return s.decision, nil
}

func (s *stubRateLimiter) Record(identifier, kind string) error {
	s.recorded = append(s.recorded, kind)
	return nil
}

func (s *stubRateLimiter) RateLimitExceeded(kind string, decision *dto.RateLimitDecision) error {
	return shared.NewRateLimitError("Too many searches. Wait a moment.", decision.RetryAfterSeconds, nil)
}

func (s *stubRateLimiter) Stats() (map[string]interface{}, error) { return nil, nil }

func (s *stubRateLimiter) Reset(identifier, kind string) error { return nil }

type stubIdentity struct{}

func (s *stubIdentity) ClientKey(c *fiber.Ctx) string { return "cid:test" }

func newSearchApp(catalog *stubCatalog, limiter *stubRateLimiter) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := shared.GetAppError(err); ok {
				return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
			}
			return shared.ResponseInternalError(c)
		},
	})

	handler := NewSearchHandler(catalog, limiter, &stubIdentity{})
	app.Get("/search", handler.Search)
	return app
}

func TestSearchHandlerHappyPath(t *testing.T) {
	catalog := &stubCatalog{results: []dto.SearchResult{
		{TrackName: "Bohemian Rhapsody", ArtistName: "Queen"},
	}}
	limiter := &stubRateLimiter{decision: &dto.RateLimitDecision{Allowed: true, Remaining: 29}}
	app := newSearchApp(catalog, limiter)

	resp, err := app.Test(httptest.NewRequest("GET", "/search?q=queen", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Bohemian Rhapsody")

	assert.Equal(t, []string{"queen"}, catalog.terms)
	assert.Equal(t, []string{shared.LimitSearch}, limiter.recorded)
}

func TestSearchHandlerShortTermSkipsQuota(t *testing.T) {
	catalog := &stubCatalog{}
	limiter := &stubRateLimiter{decision: &dto.RateLimitDecision{Allowed: true, Remaining: 29}}
	app := newSearchApp(catalog, limiter)

	resp, err := app.Test(httptest.NewRequest("GET", "/search?q=q", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	// No upstream call, no quota consumed
	assert.Empty(t, catalog.terms)
	assert.Empty(t, limiter.recorded)
}

func TestSearchHandlerRateLimited(t *testing.T) {
	catalog := &stubCatalog{}
	limiter := &stubRateLimiter{decision: &dto.RateLimitDecision{Allowed: false, RetryAfterSeconds: 17}}
	app := newSearchApp(catalog, limiter)

	resp, err := app.Test(httptest.NewRequest("GET", "/search?q=queen", nil))
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)

	assert.Empty(t, catalog.terms)
	assert.Empty(t, limiter.recorded)
}
