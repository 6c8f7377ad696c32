package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/encorelab/encore-api/dto"
	"github.com/encorelab/encore-api/shared"
)

type AdminHandler struct {
	authSvc      AdminAuthServiceInterface
	queueSvc     QueueServiceInterface
	rateLimitSvc RateLimitServiceInterface
}

func NewAdminHandler(authSvc AdminAuthServiceInterface, queueSvc QueueServiceInterface, rateLimitSvc RateLimitServiceInterface) *AdminHandler {
	return &AdminHandler{
		authSvc:      authSvc,
		queueSvc:     queueSvc,
		rateLimitSvc: rateLimitSvc,
	}
}

// @Summary Admin login
// @Description Exchange the admin password for a session cookie
// @Tags admin
// @Accept json
// @Produce json
// @Param loginRequest body dto.AdminLoginRequest true "Admin credentials"
// @Success 200 {object} shared.Response{data=dto.AdminLoginResponse}
// @Failure 401 {object} shared.Response
// @Failure 429 {object} shared.Response
// @Router /api/v1/admin/login [post]
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.CreateValidationErrorResponse(err))
	}

	token, err := h.authSvc.Login(req.Password)
	if err != nil {
		return err
	}

	c.Cookie(h.authSvc.AdminCookie(token))

	return shared.ResponseJSON(c, fiber.StatusOK, "Logged in", dto.AdminLoginResponse{Success: true})
}

// @Summary Admin logout
// @Description Clear the admin session cookie
// @Tags admin
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.AdminLoginResponse}
// @Router /api/v1/admin/logout [post]
func (h *AdminHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(h.authSvc.ClearAdminCookie())
	return shared.ResponseJSON(c, fiber.StatusOK, "Logged out", dto.AdminLoginResponse{Success: true})
}

// @Summary Admin session
// @Description Report whether the caller holds a valid admin session
// @Tags admin
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.AdminSessionResponse}
// @Router /api/v1/admin/session [get]
func (h *AdminHandler) Session(c *fiber.Ctx) error {
	return shared.ResponseJSON(c, fiber.StatusOK, "Session status", dto.AdminSessionResponse{
		Admin: h.authSvc.IsAdminRequest(c),
	})
}

// @Summary Pause queue (Admin)
// @Description Block new song submissions
// @Tags admin
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response
// @Failure 401 {object} shared.Response
// @Router /api/v1/admin/pause [post]
func (h *AdminHandler) Pause(c *fiber.Ctx) error {
	if err := h.queueSvc.Pause(); err != nil {
		return err
	}
	return shared.ResponseJSON(c, fiber.StatusOK, "Queue paused", fiber.Map{"paused": true})
}

// @Summary Resume queue (Admin)
// @Description Allow song submissions again
// @Tags admin
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response
// @Failure 401 {object} shared.Response
// @Router /api/v1/admin/resume [post]
func (h *AdminHandler) Resume(c *fiber.Ctx) error {
	if err := h.queueSvc.Resume(); err != nil {
		return err
	}
	return shared.ResponseJSON(c, fiber.StatusOK, "Queue resumed", fiber.Map{"paused": false})
}

// @Summary Rate limit stats (Admin)
// @Description Get rate limit configurations and record counts
// @Tags admin
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response
// @Failure 401 {object} shared.Response
// @Router /api/v1/admin/ratelimits/stats [get]
func (h *AdminHandler) RateLimitStats(c *fiber.Ctx) error {
	stats, err := h.rateLimitSvc.Stats()
	if err != nil {
		return err
	}
	return shared.ResponseJSON(c, fiber.StatusOK, "Rate limit stats", stats)
}

// @Summary Reset rate limit (Admin)
// @Description Clear the rate limit counter for one client and kind
// @Tags admin
// @Accept json
// @Produce json
// @Param identifier path string true "Client identifier"
// @Param kind path string true "Limit kind"
// @Success 200 {object} shared.Response
// @Failure 401 {object} shared.Response
// @Router /api/v1/admin/ratelimits/{identifier}/{kind} [delete]
func (h *AdminHandler) ResetRateLimit(c *fiber.Ctx) error {
	identifier := c.Params("identifier")
	kind := c.Params("kind")
	if identifier == "" || kind == "" {
		return shared.NewBadRequestError(nil, "Identifier and kind are required")
	}

	if err := h.rateLimitSvc.Reset(identifier, kind); err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Rate limit reset", fiber.Map{"success": true})
}
