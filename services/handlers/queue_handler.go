package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/encorelab/encore-api/dto"
	"github.com/encorelab/encore-api/shared"
)

type QueueHandler struct {
	queueSvc      QueueServiceInterface
	enrichmentSvc EnrichmentServiceInterface
	identitySvc   ClientIdentityInterface
}

func NewQueueHandler(queueSvc QueueServiceInterface, enrichmentSvc EnrichmentServiceInterface, identitySvc ClientIdentityInterface) *QueueHandler {
	return &QueueHandler{
		queueSvc:      queueSvc,
		enrichmentSvc: enrichmentSvc,
		identitySvc:   identitySvc,
	}
}

// @Summary List queue
// @Description Get all songs in the queue in playing order
// @Tags queue
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=[]dto.QueueEntryResponse}
// @Router /api/v1/queue [get]
func (h *QueueHandler) ListQueue(c *fiber.Ctx) error {
	entries, err := h.queueSvc.List()
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Queue retrieved successfully", entries)
}

// @Summary Submit song
// @Description Add a song to the queue
// @Tags queue
// @Accept json
// @Produce json
// @Param submitRequest body dto.SubmitSongRequest true "Song to add"
// @Success 201 {object} shared.Response{data=dto.QueueEntryResponse}
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 429 {object} shared.Response
// @Router /api/v1/queue [post]
func (h *QueueHandler) SubmitSong(c *fiber.Ctx) error {
	var req dto.SubmitSongRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.CreateValidationErrorResponse(err))
	}

	clientKey := h.identitySvc.ClientKey(c)

	entry, err := h.queueSvc.Submit(c.UserContext(), clientKey, &req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Song added to queue", entry)
}

// @Summary Remove song (Admin)
// @Description Remove a song from the queue and close the gap
// @Tags queue
// @Accept json
// @Produce json
// @Param id path string true "Queue entry ID"
// @Success 200 {object} shared.Response{data=dto.RemoveSongResponse}
// @Failure 401 {object} shared.Response
// @Failure 404 {object} shared.Response
// @Router /api/v1/queue/{id} [delete]
func (h *QueueHandler) RemoveSong(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return shared.NewBadRequestError(nil, "Song ID is required")
	}

	result, err := h.queueSvc.Remove(id)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Song removed from queue", result)
}

// @Summary Summary status
// @Description Check whether the song at the front of the queue needs a summary
// @Tags queue
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.SummaryStatusResponse}
// @Router /api/v1/queue/summary-status [get]
func (h *QueueHandler) SummaryStatus(c *fiber.Ctx) error {
	status, err := h.enrichmentSvc.NeedsSummary()
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Summary status retrieved", status)
}

// @Summary Generate summary
// @Description Generate the funny summary for the song at the front of the queue
// @Tags queue
// @Accept json
// @Produce json
// @Param id path string true "Queue entry ID"
// @Success 200 {object} shared.Response{data=dto.GenerateSummaryResponse}
// @Failure 400 {object} shared.Response
// @Failure 404 {object} shared.Response
// @Failure 429 {object} shared.Response
// @Router /api/v1/queue/{id}/summary [post]
func (h *QueueHandler) GenerateSummary(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return shared.NewBadRequestError(nil, "Song ID is required")
	}

	entry, err := h.enrichmentSvc.GenerateHeadSummary(c.UserContext(), id)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Summary generated", dto.GenerateSummaryResponse{
		Success: true,
		Summary: entry.FunnySummary,
	})
}
