package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/encorelab/encore-api/dto"
	"github.com/encorelab/encore-api/shared"
)

type SearchHandler struct {
	catalogSvc   CatalogServiceInterface
	rateLimitSvc RateLimitServiceInterface
	identitySvc  ClientIdentityInterface
}

func NewSearchHandler(catalogSvc CatalogServiceInterface, rateLimitSvc RateLimitServiceInterface, identitySvc ClientIdentityInterface) *SearchHandler {
	return &SearchHandler{
		catalogSvc:   catalogSvc,
		rateLimitSvc: rateLimitSvc,
		identitySvc:  identitySvc,
	}
}

// @Summary Search catalog
// @Description Search the song catalog by title or artist
// @Tags search
// @Accept json
// @Produce json
// @Param q query string true "Search term (at least 2 characters)"
// @Success 200 {object} shared.Response{data=[]dto.SearchResult}
// @Failure 429 {object} shared.Response
// @Router /api/v1/search [get]
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	clientKey := h.identitySvc.ClientKey(c)

	decision, err := h.rateLimitSvc.Check(clientKey, shared.LimitSearch)
	if err != nil {
		log.WithError(err).Error("Search rate limit check failed")
	} else if !decision.Allowed {
		return h.rateLimitSvc.RateLimitExceeded(shared.LimitSearch, decision)
	}

	term := strings.TrimSpace(c.Query("q"))

	// Too-short terms return empty without consuming the caller's quota
	if len(term) < 2 {
		return shared.ResponseJSON(c, fiber.StatusOK, "Search results", []dto.SearchResult{})
	}

	if err := h.rateLimitSvc.Record(clientKey, shared.LimitSearch); err != nil {
		log.WithError(err).Error("Search rate limit record failed")
	}

	results, err := h.catalogSvc.Search(c.UserContext(), term)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Search results", results)
}
