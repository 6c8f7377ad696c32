package services

import (
	"fmt"
	"os"
	"strconv"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	log "github.com/sirupsen/logrus"

	"github.com/encorelab/encore-api/services/handlers"
	"github.com/encorelab/encore-api/shared"
)

const HTTP_SVC = "http_svc"
const DEFAULT_HTTP_PORT = 8000

// HttpService owns the public API surface. All handler errors funnel through
// errorHandler, which maps AppError to its status and hides everything else
// behind a generic 500.
type HttpService struct {
	appContext.DefaultService

	port   int
	server *fiber.App

	queueHandler  *handlers.QueueHandler
	searchHandler *handlers.SearchHandler
	adminHandler  *handlers.AdminHandler
}

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *appContext.Context) error {
	svc.port = DEFAULT_HTTP_PORT
	if portStr := os.Getenv("HTTP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			svc.port = port
		}
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	queueSvc := svc.Service(QUEUE_SVC).(*QueueService)
	enrichmentSvc := svc.Service(ENRICHMENT_SVC).(*EnrichmentService)
	catalogSvc := svc.Service(CATALOG_SVC).(*CatalogService)
	authSvc := svc.Service(ADMIN_AUTH_SVC).(*AdminAuthService)
	rateLimitSvc := svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	identitySvc := svc.Service(CLIENT_IDENTITY_SVC).(*ClientIdentityService)
	monitoringSvc := svc.Service(MONITORING_SVC).(*MonitoringService)

	svc.queueHandler = handlers.NewQueueHandler(queueSvc, enrichmentSvc, identitySvc)
	svc.searchHandler = handlers.NewSearchHandler(catalogSvc, rateLimitSvc, identitySvc)
	svc.adminHandler = handlers.NewAdminHandler(authSvc, queueSvc, rateLimitSvc)

	app := fiber.New(fiber.Config{
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		ErrorHandler: svc.errorHandler,
	})

	app.Use(recover.New())
	app.Use(svc.securityHeaders)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     os.Getenv("CORS_ORIGINS"),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(MonitoringMiddleware(monitoringSvc))

	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1")

	v1.Get("/queue", svc.queueHandler.ListQueue)
	v1.Post("/queue", svc.queueHandler.SubmitSong)
	v1.Delete("/queue/:id", authSvc.RequireAdmin(), svc.queueHandler.RemoveSong)
	v1.Get("/queue/summary-status", svc.queueHandler.SummaryStatus)
	v1.Post("/queue/:id/summary", rateLimitSvc.Limit(shared.LimitSummary), svc.queueHandler.GenerateSummary)

	v1.Get("/search", svc.searchHandler.Search)

	v1.Post("/admin/login", rateLimitSvc.Limit(shared.LimitAdminLogin), svc.adminHandler.Login)
	v1.Post("/admin/logout", svc.adminHandler.Logout)
	v1.Get("/admin/session", svc.adminHandler.Session)

	admin := v1.Group("/admin", authSvc.RequireAdmin())
	admin.Post("/pause", svc.adminHandler.Pause)
	admin.Post("/resume", svc.adminHandler.Resume)
	admin.Get("/ratelimits/stats", svc.adminHandler.RateLimitStats)
	admin.Delete("/ratelimits/:identifier/:kind", svc.adminHandler.ResetRateLimit)

	app.Use(func(c *fiber.Ctx) error {
		return shared.NewNotFoundError(nil, "Not Found")
	})

	svc.server = app

	log.WithField("port", svc.port).Info("HTTP server started")
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")
	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "pong")
}

func (svc *HttpService) securityHeaders(c *fiber.Ctx) error {
	c.Set("X-Frame-Options", "DENY")
	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
	return c.Next()
}

func (svc *HttpService) errorHandler(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		if appErr.StatusCode >= 500 {
			log.WithError(err).WithFields(log.Fields{
				"path":   c.Path(),
				"method": c.Method(),
			}).Error("Request failed")
		}

		if appErr.RetryAfterSeconds > 0 {
			c.Set("Retry-After", strconv.Itoa(appErr.RetryAfterSeconds))
		}

		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	if fiberErr, ok := err.(*fiber.Error); ok {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.WithError(err).WithFields(log.Fields{
		"path":   c.Path(),
		"method": c.Method(),
	}).Error("Unhandled error")

	return shared.ResponseInternalError(c)
}
