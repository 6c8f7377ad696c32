package main

import (
	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	_ "github.com/encorelab/encore-api/docs"
	"github.com/encorelab/encore-api/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Warn("No .env file loaded")
	}

	ctx, err := context.NewCtx(
		&services.SqlService{},
		&services.RedisService{},
		&services.ClientIdentityService{},
		&services.RateLimitService{},
		&services.AdminAuthService{},
		&services.CatalogService{},
		&services.LyricsService{},
		&services.SummaryService{},
		&services.MediaService{},
		&services.EnrichmentService{},
		&services.QueueService{},
		&services.MonitoringService{},

		&services.HttpService{},
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to build service context")
		return
	}

	if err := ctx.Run(); err != nil {
		log.WithError(err).Fatal("Service context exited")
		return
	}
}
