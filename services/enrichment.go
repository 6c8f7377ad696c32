package services

import (
	"context"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/encorelab/encore-api/dto"
	"github.com/encorelab/encore-api/model"
	"github.com/encorelab/encore-api/shared"
)

// lyricsFetcher, summaryGenerator and coverMirrorer are the seams between the
// enrichment pipeline and its upstream providers, so tests can stub them.
type lyricsFetcher interface {
	Fetch(ctx context.Context, artist, songName string) (string, error)
}

type summaryGenerator interface {
	Enabled() bool
	GenerateFunnySummary(ctx context.Context, lyrics string) (string, error)
}

type coverMirrorer interface {
	Enabled() bool
	MirrorCover(ctx context.Context, entryID, coverURL string) (string, error)
}

// headMarkerStore records which entry the latest summary was generated for,
// so a restart can tell a current summary from one inherited after a crash
// mid-refresh.
type headMarkerStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// EnrichmentService runs the background pipeline that decorates queue entries
// after submission: lyrics lookup, cover mirroring and the funny summary for
// whichever song currently sits at position one. Work flows through an
// explicit in-process task queue rather than fire-and-forget goroutines, so
// shutdown can drain cleanly and retries stay bounded.
type EnrichmentService struct {
	appContext.DefaultService

	tasks chan enrichmentTask
	stop  chan struct{}
	done  chan struct{}

	sqlSvc *SqlService
	marker headMarkerStore

	lyrics  lyricsFetcher
	summary summaryGenerator
	media   coverMirrorer
}

type enrichmentTask struct {
	EntryID string
	Reason  string
	Attempt int
}

const ENRICHMENT_SVC = "enrichment_svc"

const (
	enrichmentQueueSize   = 64
	enrichmentMaxAttempts = 3

	summaryHeadMarkerKey = "summary:current_head"
)

func (svc EnrichmentService) Id() string {
	return ENRICHMENT_SVC
}

func (svc *EnrichmentService) Configure(ctx *appContext.Context) error {
	svc.tasks = make(chan enrichmentTask, enrichmentQueueSize)
	svc.stop = make(chan struct{})
	svc.done = make(chan struct{})
	return svc.DefaultService.Configure(ctx)
}

func (svc *EnrichmentService) Start() error {
	svc.sqlSvc = svc.Service(SQL_SVC).(*SqlService)
	if svc.marker == nil {
		if redisSvc, ok := svc.Service(REDIS_SVC).(*RedisService); ok {
			svc.marker = redisSvc
		}
	}

	if svc.lyrics == nil {
		svc.lyrics = svc.Service(LYRICS_SVC).(*LyricsService)
	}
	if svc.summary == nil {
		svc.summary = svc.Service(SUMMARY_SVC).(*SummaryService)
	}
	if svc.media == nil {
		svc.media = svc.Service(MEDIA_SVC).(*MediaService)
	}

	go svc.worker()

	return nil
}

func (svc *EnrichmentService) Shutdown() {
	close(svc.stop)
	<-svc.done
}

// Enqueue schedules background enrichment for the entry. Never blocks the
// submission path; when the queue is full the task is dropped and the entry
// simply stays un-enriched.
func (svc *EnrichmentService) Enqueue(entryID, reason string) {
	task := enrichmentTask{EntryID: entryID, Reason: reason, Attempt: 1}

	select {
	case svc.tasks <- task:
	default:
		enrichmentTasksTotal.WithLabelValues("dropped").Inc()
		log.WithFields(log.Fields{"entry_id": entryID, "reason": reason}).
			Warn("Enrichment queue full, dropping task")
	}
}

// RefreshHead reacts to a new song reaching position one: its stale summary is
// cleared and the pipeline regenerates one for the new head.
func (svc *EnrichmentService) RefreshHead() {
	head, err := svc.sqlSvc.GetHeadEntry()
	if err != nil {
		log.WithError(err).Error("Failed to load queue head for refresh")
		return
	}
	if head == nil {
		svc.clearHeadMarker()
		return
	}

	if head.FunnySummary != "" {
		if err := svc.sqlSvc.ClearQueueEntrySummary(head.ID); err != nil {
			log.WithError(err).WithField("entry_id", head.ID).Error("Failed to clear stale summary")
		}
	}
	svc.clearHeadMarker()

	svc.Enqueue(head.ID, "head_changed")
}

// NeedsSummary reports whether the current head is missing its summary, along
// with the head's id when it is.
func (svc *EnrichmentService) NeedsSummary() (*dto.SummaryStatusResponse, error) {
	head, err := svc.sqlSvc.GetHeadEntry()
	if err != nil {
		return nil, err
	}
	if head == nil {
		return &dto.SummaryStatusResponse{NeedsSummary: false}, nil
	}

	if !svc.summary.Enabled() {
		return &dto.SummaryStatusResponse{NeedsSummary: false}, nil
	}

	if head.FunnySummary != "" {
		// A summary generated for a different entry means a refresh was
		// interrupted; the head is wearing a stale summary.
		if !svc.headSummaryStale(head.ID) {
			return &dto.SummaryStatusResponse{NeedsSummary: false}, nil
		}

		if err := svc.sqlSvc.ClearQueueEntrySummary(head.ID); err != nil {
			log.WithError(err).WithField("entry_id", head.ID).Error("Failed to clear stale summary")
		}
	}

	return &dto.SummaryStatusResponse{NeedsSummary: true, SongID: head.ID}, nil
}

// headSummaryStale reports whether the recorded marker points at a different
// entry than the current head. A missing or unreadable marker is treated as
// current so a Redis outage can't force regeneration loops.
func (svc *EnrichmentService) headSummaryStale(headID string) bool {
	if svc.marker == nil {
		return false
	}

	marker, err := svc.marker.Get(context.Background(), summaryHeadMarkerKey)
	if err != nil || marker == "" {
		return false
	}

	return marker != headID
}

// GenerateHeadSummary synchronously generates the summary for the entry,
// which must be the current queue head and must have lyrics on record.
func (svc *EnrichmentService) GenerateHeadSummary(ctx context.Context, entryID string) (*model.QueueEntry, error) {
	entry, err := svc.sqlSvc.GetQueueEntry(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, shared.NewNotFoundError(nil, "Song not found")
	}

	if entry.OrderNumber != 1 {
		return nil, shared.NewBadRequestError(nil, "Summaries are only generated for the song at the front of the queue")
	}

	if entry.Lyrics == "" {
		lyrics, err := svc.lyrics.Fetch(ctx, entry.Artist, entry.SongName)
		if err == nil && lyrics != "" {
			if err := svc.sqlSvc.UpdateQueueEntryLyrics(entry.ID, lyrics); err != nil {
				log.WithError(err).WithField("entry_id", entry.ID).Error("Failed to store lyrics")
			}
			entry.Lyrics = lyrics
		}
	}

	if entry.Lyrics == "" {
		return nil, shared.NewBadRequestError(nil, "No lyrics available for this song")
	}

	summary, err := svc.summary.GenerateFunnySummary(ctx, entry.Lyrics)
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Summary generation is temporarily unavailable")
	}
	if summary == "" {
		return nil, shared.NewServiceUnavailableError(nil, "Summary generation is temporarily unavailable")
	}

	if err := svc.sqlSvc.UpdateQueueEntrySummary(entry.ID, summary); err != nil {
		return nil, err
	}
	svc.markHead(entry.ID)

	entry.FunnySummary = summary
	now := time.Now()
	entry.SummaryGeneratedAt = &now

	return entry, nil
}

// ==================== WORKER ====================

func (svc *EnrichmentService) worker() {
	defer close(svc.done)

	for {
		select {
		case <-svc.stop:
			// Drain whatever is already queued before exiting
			for {
				select {
				case task := <-svc.tasks:
					svc.runTask(task)
				default:
					return
				}
			}
		case task := <-svc.tasks:
			svc.runTask(task)
		}
	}
}

func (svc *EnrichmentService) runTask(task enrichmentTask) {
	err := svc.process(task)
	if err == nil {
		enrichmentTasksTotal.WithLabelValues("completed").Inc()
		return
	}

	log.WithError(err).WithFields(log.Fields{
		"entry_id": task.EntryID,
		"reason":   task.Reason,
		"attempt":  task.Attempt,
	}).Warn("Enrichment task failed")

	if task.Attempt >= enrichmentMaxAttempts {
		enrichmentTasksTotal.WithLabelValues("failed").Inc()
		return
	}

	task.Attempt++
	time.Sleep(time.Duration(task.Attempt) * time.Second)

	select {
	case svc.tasks <- task:
	default:
	}
}

func (svc *EnrichmentService) process(task enrichmentTask) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry, err := svc.sqlSvc.GetQueueEntry(task.EntryID)
	if err != nil {
		return err
	}
	if entry == nil {
		// Removed from the queue before the task ran
		return nil
	}

	if entry.Lyrics == "" {
		lyrics, err := svc.lyrics.Fetch(ctx, entry.Artist, entry.SongName)
		if err != nil {
			return err
		}
		if lyrics != "" {
			if err := svc.sqlSvc.UpdateQueueEntryLyrics(entry.ID, lyrics); err != nil {
				return err
			}
			entry.Lyrics = lyrics
		}
	}

	if svc.media.Enabled() && entry.CoverURL != "" {
		if _, err := svc.media.MirrorCover(ctx, entry.ID, entry.CoverURL); err != nil {
			log.WithError(err).WithField("entry_id", entry.ID).Warn("Cover mirroring failed")
		}
	}

	if entry.OrderNumber == 1 && entry.Lyrics != "" && entry.FunnySummary == "" && svc.summary.Enabled() {
		summary, err := svc.summary.GenerateFunnySummary(ctx, entry.Lyrics)
		if err != nil {
			return err
		}
		if summary != "" {
			if err := svc.sqlSvc.UpdateQueueEntrySummary(entry.ID, summary); err != nil {
				return err
			}
			svc.markHead(entry.ID)
		}
	}

	return nil
}

// markHead records which entry the latest summary belongs to.
func (svc *EnrichmentService) markHead(entryID string) {
	if svc.marker == nil {
		return
	}
	if err := svc.marker.Set(context.Background(), summaryHeadMarkerKey, entryID, 0); err != nil {
		log.WithError(err).Debug("Failed to set head marker")
	}
}

func (svc *EnrichmentService) clearHeadMarker() {
	if svc.marker == nil {
		return
	}
	if err := svc.marker.Delete(context.Background(), summaryHeadMarkerKey); err != nil {
		log.WithError(err).Debug("Failed to clear head marker")
	}
}
