package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/encorelab/encore-api/dto"
	"github.com/encorelab/encore-api/model"
)

type QueueServiceInterface interface {
	Submit(ctx context.Context, clientKey string, req *dto.SubmitSongRequest) (*dto.QueueEntryResponse, error)
	Remove(id string) (*dto.RemoveSongResponse, error)
	List() ([]dto.QueueEntryResponse, error)
	Paused() bool
	Pause() error
	Resume() error
}

type EnrichmentServiceInterface interface {
	NeedsSummary() (*dto.SummaryStatusResponse, error)
	GenerateHeadSummary(ctx context.Context, entryID string) (*model.QueueEntry, error)
}

type CatalogServiceInterface interface {
	Search(ctx context.Context, term string) ([]dto.SearchResult, error)
}

type AdminAuthServiceInterface interface {
	Login(password string) (string, error)
	IsAdminRequest(c *fiber.Ctx) bool
	AdminCookie(token string) *fiber.Cookie
	ClearAdminCookie() *fiber.Cookie
}

type RateLimitServiceInterface interface {
	Check(identifier, kind string) (*dto.RateLimitDecision, error)
	Record(identifier, kind string) error
	RateLimitExceeded(kind string, decision *dto.RateLimitDecision) error
	Stats() (map[string]interface{}, error)
	Reset(identifier, kind string) error
}

type ClientIdentityInterface interface {
	ClientKey(c *fiber.Ctx) string
}
