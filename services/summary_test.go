package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSummaryService(upstream http.HandlerFunc) (*SummaryService, *httptest.Server) {
	ts := httptest.NewServer(upstream)
	svc := &SummaryService{
		client: openai.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(ts.URL),
			option.WithMaxRetries(0),
		),
		model:   summaryDefaultModel,
		enabled: true,
	}
	return svc, ts
}

func TestSummaryDisabledReturnsEmpty(t *testing.T) {
	svc := &SummaryService{}

	summary, err := svc.GenerateFunnySummary(context.Background(), "some lyrics")
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.False(t, svc.Enabled())
}

func TestSummaryEmptyLyricsSkipped(t *testing.T) {
	svc, ts := newTestSummaryService(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no upstream call expected")
	})
	defer ts.Close()

	summary, err := svc.GenerateFunnySummary(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestSummaryGeneration(t *testing.T) {
	svc, ts := newTestSummaryService(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama-3.1-8b-instant",
			"choices": [
				{"index": 0, "message": {"role": "assistant", "content": "  A man argues with gravity and loses, melodically.  "}, "finish_reason": "stop"}
			]
		}`))
	})
	defer ts.Close()

	summary, err := svc.GenerateFunnySummary(context.Background(), "I'm falling again...")
	require.NoError(t, err)
	assert.Equal(t, "A man argues with gravity and loses, melodically.", summary)
}

func TestSummaryOutputCapped(t *testing.T) {
	long := strings.Repeat("ha ", 400)
	svc, ts := newTestSummaryService(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"model": "llama-3.1-8b-instant",
			"choices": [
				{"index": 0, "message": {"role": "assistant", "content": "` + long + `"}, "finish_reason": "stop"}
			]
		}`))
	})
	defer ts.Close()

	summary, err := svc.GenerateFunnySummary(context.Background(), "lyrics")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(summary), summaryOutputMaxChars)
}

func TestSummaryUpstreamErrorSurfaces(t *testing.T) {
	svc, ts := newTestSummaryService(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer ts.Close()

	_, err := svc.GenerateFunnySummary(context.Background(), "lyrics")
	assert.Error(t, err)
}
