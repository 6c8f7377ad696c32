package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/encorelab/encore-api/dto"
	"github.com/encorelab/encore-api/model"
	"github.com/encorelab/encore-api/shared"
)

type trackMatcher interface {
	MatchTrack(ctx context.Context, songName, artist string) (bool, error)
}

type enrichmentScheduler interface {
	Enqueue(entryID, reason string)
	RefreshHead()
}

// QueueService owns the song queue: submissions, ordered listing and admin
// removal. Position numbers stay dense, covering exactly 1..N at all times;
// the storage layer enforces that with a single transaction per mutation.
type QueueService struct {
	appContext.DefaultService

	sqlSvc       *SqlService
	redisSvc     *RedisService
	rateLimitSvc *RateLimitService

	catalog    trackMatcher
	enrichment enrichmentScheduler
}

const QUEUE_SVC = "queue_svc"

const queuePausedKey = "queue:paused"

// Cover URLs must point at the catalog CDNs; anything else is rejected so the
// queue can't be used to host arbitrary images.
var allowedCoverHosts = []string{"mzstatic.com", "dzcdn.net"}

func (svc QueueService) Id() string {
	return QUEUE_SVC
}

func (svc *QueueService) Configure(ctx *appContext.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *QueueService) Start() error {
	svc.sqlSvc = svc.Service(SQL_SVC).(*SqlService)
	svc.redisSvc, _ = svc.Service(REDIS_SVC).(*RedisService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)

	if svc.catalog == nil {
		svc.catalog = svc.Service(CATALOG_SVC).(*CatalogService)
	}
	if svc.enrichment == nil {
		svc.enrichment = svc.Service(ENRICHMENT_SVC).(*EnrichmentService)
	}

	return nil
}

// Submit validates the request and appends the song at position count+1. The
// client's submission slot is only consumed after the song was actually
// created; a rejected request costs nothing.
func (svc *QueueService) Submit(ctx context.Context, clientKey string, req *dto.SubmitSongRequest) (*dto.QueueEntryResponse, error) {
	decision, err := svc.rateLimitSvc.Check(clientKey, shared.LimitSubmit)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		submissionsTotal.WithLabelValues("rate_limited").Inc()
		return nil, svc.rateLimitSvc.RateLimitExceeded(shared.LimitSubmit, decision)
	}

	if svc.Paused() {
		submissionsTotal.WithLabelValues("paused").Inc()
		return nil, shared.NewServiceUnavailableError(nil, "The queue is paused right now. Try again later.")
	}

	if err := svc.validateCoverURL(req.CoverURL); err != nil {
		submissionsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	matched, err := svc.catalog.MatchTrack(ctx, req.SongName, req.Artist)
	if err != nil {
		// Catalog down: let the song through rather than blocking the party
		log.WithError(err).Warn("Catalog verification unavailable, accepting submission")
	} else if !matched {
		submissionsTotal.WithLabelValues("rejected").Inc()
		return nil, shared.NewBadRequestError(nil, "We couldn't find that song. Pick one from the search results.")
	}

	entry := &model.QueueEntry{
		SongName: req.SongName,
		Artist:   req.Artist,
		CoverURL: req.CoverURL,
	}

	if err := svc.sqlSvc.CreateQueueEntry(entry); err != nil {
		return nil, err
	}

	if err := svc.rateLimitSvc.Record(clientKey, shared.LimitSubmit); err != nil {
		log.WithError(err).Error("Failed to record submission rate limit")
	}

	submissionsTotal.WithLabelValues("accepted").Inc()
	svc.enrichment.Enqueue(entry.ID, "submitted")

	resp := toQueueEntryResponse(entry)
	return &resp, nil
}

func (svc *QueueService) validateCoverURL(coverURL string) error {
	if coverURL == "" {
		return nil
	}

	parsed, err := url.Parse(coverURL)
	if err != nil || parsed.Scheme != "https" {
		return shared.NewBadRequestError(nil, "Invalid cover URL")
	}

	host := parsed.Hostname()
	for _, allowed := range allowedCoverHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}

	return shared.NewBadRequestError(nil, "Invalid cover URL")
}

// Remove deletes the entry and renumbers everything behind it one position
// forward, keeping the sequence dense.
func (svc *QueueService) Remove(id string) (*dto.RemoveSongResponse, error) {
	removed, err := svc.sqlSvc.DeleteQueueEntry(id)
	if err != nil {
		return nil, err
	}
	if removed == nil {
		return nil, shared.NewNotFoundError(nil, "Song not found")
	}

	if removed.OrderNumber == 1 {
		svc.enrichment.RefreshHead()
	}

	return &dto.RemoveSongResponse{Success: true}, nil
}

// List returns the queue in playing order.
func (svc *QueueService) List() ([]dto.QueueEntryResponse, error) {
	entries, err := svc.sqlSvc.ListQueueEntries()
	if err != nil {
		return nil, err
	}

	responses := make([]dto.QueueEntryResponse, 0, len(entries))
	for i := range entries {
		responses = append(responses, toQueueEntryResponse(&entries[i]))
	}

	return responses, nil
}

func toQueueEntryResponse(entry *model.QueueEntry) dto.QueueEntryResponse {
	return dto.QueueEntryResponse{
		ID:           entry.ID,
		SongName:     entry.SongName,
		Artist:       entry.Artist,
		CoverURL:     entry.CoverURL,
		OrderNumber:  entry.OrderNumber,
		FunnySummary: entry.FunnySummary,
		CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ==================== PAUSE ====================

// Paused reports whether submissions are currently blocked. Fails open so a
// Redis outage doesn't freeze the queue.
func (svc *QueueService) Paused() bool {
	if svc.redisSvc == nil {
		return false
	}

	exists, err := svc.redisSvc.Exists(context.Background(), queuePausedKey)
	if err != nil {
		log.WithError(err).Debug("Failed to read pause flag")
		return false
	}

	return exists
}

func (svc *QueueService) Pause() error {
	if svc.redisSvc == nil {
		return shared.NewServiceUnavailableError(nil, "Pause flag storage unavailable")
	}
	return svc.redisSvc.Set(context.Background(), queuePausedKey, "1", 0)
}

func (svc *QueueService) Resume() error {
	if svc.redisSvc == nil {
		return shared.NewServiceUnavailableError(nil, "Pause flag storage unavailable")
	}
	return svc.redisSvc.Delete(context.Background(), queuePausedKey)
}
