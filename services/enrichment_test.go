package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encorelab/encore-api/model"
	"github.com/encorelab/encore-api/shared"
)

type stubLyrics struct {
	lyrics string
	err    error
}

func (s *stubLyrics) Fetch(ctx context.Context, artist, songName string) (string, error) {
	return s.lyrics, s.err
}

type stubSummary struct {
	enabled bool
	summary string
	err     error
	calls   int
}

func (s *stubSummary) Enabled() bool { return s.enabled }

func (s *stubSummary) GenerateFunnySummary(ctx context.Context, lyrics string) (string, error) {
	s.calls++
	return s.summary, s.err
}

type stubMarker struct {
	values map[string]string
}

func newStubMarker() *stubMarker {
	return &stubMarker{values: map[string]string{}}
}

func (s *stubMarker) Get(ctx context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *stubMarker) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.values[key] = value.(string)
	return nil
}

func (s *stubMarker) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

type stubMedia struct {
	enabled  bool
	mirrored []string
}

func (s *stubMedia) Enabled() bool { return s.enabled }

func (s *stubMedia) MirrorCover(ctx context.Context, entryID, coverURL string) (string, error) {
	s.mirrored = append(s.mirrored, entryID)
	return "covers/" + entryID + ".jpg", nil
}

func newTestEnrichmentService(t *testing.T, sqlSvc *SqlService, lyrics *stubLyrics, summary *stubSummary, media *stubMedia) *EnrichmentService {
	t.Helper()

	return &EnrichmentService{
		sqlSvc:  sqlSvc,
		lyrics:  lyrics,
		summary: summary,
		media:   media,
	}
}

func TestEnrichmentProcessFillsLyricsAndSummary(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	summary := &stubSummary{enabled: true, summary: "A man pleads with his mama over opera chords."}
	svc := newTestEnrichmentService(t, sqlSvc,
		&stubLyrics{lyrics: "Is this the real life?"}, summary, &stubMedia{})

	entries := seedQueue(t, sqlSvc, "Bohemian Rhapsody")

	require.NoError(t, svc.process(enrichmentTask{EntryID: entries[0].ID, Reason: "submitted", Attempt: 1}))

	entry, err := sqlSvc.GetQueueEntry(entries[0].ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Is this the real life?", entry.Lyrics)
	assert.Equal(t, summary.summary, entry.FunnySummary)
	assert.NotNil(t, entry.SummaryGeneratedAt)
}

func TestEnrichmentProcessSkipsSummaryBehindHead(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	summary := &stubSummary{enabled: true, summary: "should not appear"}
	svc := newTestEnrichmentService(t, sqlSvc,
		&stubLyrics{lyrics: "some lyrics"}, summary, &stubMedia{})

	entries := seedQueue(t, sqlSvc, "First", "Second")

	require.NoError(t, svc.process(enrichmentTask{EntryID: entries[1].ID, Reason: "submitted", Attempt: 1}))

	entry, err := sqlSvc.GetQueueEntry(entries[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "some lyrics", entry.Lyrics)
	assert.Empty(t, entry.FunnySummary)
	assert.Zero(t, summary.calls)
}

func TestEnrichmentProcessEntryGone(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	svc := newTestEnrichmentService(t, sqlSvc, &stubLyrics{}, &stubSummary{}, &stubMedia{})

	// Entry removed before the task ran: nothing to do, no error
	require.NoError(t, svc.process(enrichmentTask{EntryID: "gone", Reason: "submitted", Attempt: 1}))
}

func TestEnrichmentMirrorsCover(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	media := &stubMedia{enabled: true}
	svc := newTestEnrichmentService(t, sqlSvc, &stubLyrics{}, &stubSummary{}, media)

	entry := model.QueueEntry{
		SongName: "Covered",
		Artist:   "Artist",
		CoverURL: "https://is1-ssl.mzstatic.com/cover.jpg",
	}
	require.NoError(t, sqlSvc.CreateQueueEntry(&entry))

	require.NoError(t, svc.process(enrichmentTask{EntryID: entry.ID, Reason: "submitted", Attempt: 1}))
	assert.Equal(t, []string{entry.ID}, media.mirrored)
}

func TestNeedsSummary(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	summary := &stubSummary{enabled: true}
	svc := newTestEnrichmentService(t, sqlSvc, &stubLyrics{}, summary, &stubMedia{})

	// Empty queue
	status, err := svc.NeedsSummary()
	require.NoError(t, err)
	assert.False(t, status.NeedsSummary)

	entries := seedQueue(t, sqlSvc, "Head Song")

	status, err = svc.NeedsSummary()
	require.NoError(t, err)
	assert.True(t, status.NeedsSummary)
	assert.Equal(t, entries[0].ID, status.SongID)

	// Once the summary exists nothing more is needed
	require.NoError(t, sqlSvc.UpdateQueueEntrySummary(entries[0].ID, "done"))
	status, err = svc.NeedsSummary()
	require.NoError(t, err)
	assert.False(t, status.NeedsSummary)
}

func TestNeedsSummaryDetectsStaleMarker(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	marker := newStubMarker()
	svc := newTestEnrichmentService(t, sqlSvc, &stubLyrics{}, &stubSummary{enabled: true}, &stubMedia{})
	svc.marker = marker

	entries := seedQueue(t, sqlSvc, "Current Head")
	require.NoError(t, sqlSvc.UpdateQueueEntrySummary(entries[0].ID, "leftover summary"))

	// Marker pointing at a removed entry means the refresh never finished
	require.NoError(t, marker.Set(context.Background(), summaryHeadMarkerKey, "removed-entry-id", 0))

	status, err := svc.NeedsSummary()
	require.NoError(t, err)
	assert.True(t, status.NeedsSummary)
	assert.Equal(t, entries[0].ID, status.SongID)

	// The stale summary was cleared on detection
	entry, err := sqlSvc.GetQueueEntry(entries[0].ID)
	require.NoError(t, err)
	assert.Empty(t, entry.FunnySummary)
}

func TestNeedsSummaryTrustsMatchingMarker(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	marker := newStubMarker()
	svc := newTestEnrichmentService(t, sqlSvc, &stubLyrics{}, &stubSummary{enabled: true}, &stubMedia{})
	svc.marker = marker

	entries := seedQueue(t, sqlSvc, "Current Head")
	require.NoError(t, sqlSvc.UpdateQueueEntrySummary(entries[0].ID, "current summary"))
	svc.markHead(entries[0].ID)

	status, err := svc.NeedsSummary()
	require.NoError(t, err)
	assert.False(t, status.NeedsSummary)

	entry, err := sqlSvc.GetQueueEntry(entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "current summary", entry.FunnySummary)
}

func TestNeedsSummaryDisabledGenerator(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	svc := newTestEnrichmentService(t, sqlSvc, &stubLyrics{}, &stubSummary{enabled: false}, &stubMedia{})

	seedQueue(t, sqlSvc, "Head Song")

	status, err := svc.NeedsSummary()
	require.NoError(t, err)
	assert.False(t, status.NeedsSummary)
}

func TestGenerateHeadSummary(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	summary := &stubSummary{enabled: true, summary: "A funny take."}
	svc := newTestEnrichmentService(t, sqlSvc,
		&stubLyrics{lyrics: "words words words"}, summary, &stubMedia{})

	entries := seedQueue(t, sqlSvc, "Head Song", "Second Song")

	entry, err := svc.GenerateHeadSummary(context.Background(), entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "A funny take.", entry.FunnySummary)

	// Only the head qualifies
	_, err = svc.GenerateHeadSummary(context.Background(), entries[1].ID)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.StatusCode)

	// Unknown entries 404
	_, err = svc.GenerateHeadSummary(context.Background(), "missing")
	appErr, ok = shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.StatusCode)
}

func TestGenerateHeadSummaryNoLyrics(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	svc := newTestEnrichmentService(t, sqlSvc,
		&stubLyrics{lyrics: ""}, &stubSummary{enabled: true, summary: "x"}, &stubMedia{})

	entries := seedQueue(t, sqlSvc, "Instrumental")

	_, err := svc.GenerateHeadSummary(context.Background(), entries[0].ID)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.StatusCode)
}

func TestGenerateHeadSummaryProviderDown(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	svc := newTestEnrichmentService(t, sqlSvc,
		&stubLyrics{lyrics: "words"}, &stubSummary{enabled: true, err: errors.New("upstream down")}, &stubMedia{})

	entries := seedQueue(t, sqlSvc, "Head Song")

	_, err := svc.GenerateHeadSummary(context.Background(), entries[0].ID)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 503, appErr.StatusCode)
}

func TestRefreshHeadClearsStaleSummary(t *testing.T) {
	sqlSvc := newTestSqlService(t)
	marker := newStubMarker()
	svc := newTestEnrichmentService(t, sqlSvc,
		&stubLyrics{}, &stubSummary{enabled: true}, &stubMedia{})
	svc.marker = marker
	svc.tasks = make(chan enrichmentTask, 4)

	entries := seedQueue(t, sqlSvc, "New Head")
	require.NoError(t, sqlSvc.UpdateQueueEntrySummary(entries[0].ID, "stale summary"))
	svc.markHead("previous-head-id")

	svc.RefreshHead()

	entry, err := sqlSvc.GetQueueEntry(entries[0].ID)
	require.NoError(t, err)
	assert.Empty(t, entry.FunnySummary)
	assert.Empty(t, marker.values[summaryHeadMarkerKey])

	// And the regeneration task is queued
	select {
	case task := <-svc.tasks:
		assert.Equal(t, entries[0].ID, task.EntryID)
	default:
		t.Fatal("expected a queued enrichment task")
	}
}
