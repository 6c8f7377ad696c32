package services

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/encorelab/encore-api/dto"
	"github.com/encorelab/encore-api/model"
	"github.com/encorelab/encore-api/shared"
)

// RateLimitService computes allow/deny decisions from persisted per-client
// counters. Check and Record are deliberately separate: some endpoints count
// every arrival, others only consume a slot after the request passed business
// validation, so a rejected submission doesn't burn the caller's quota.
type RateLimitService struct {
	context.DefaultService

	configs map[string]*RateLimitConfig
	mutex   sync.RWMutex

	sqlSvc      *SqlService
	identitySvc *ClientIdentityService
}

type RateLimitConfig struct {
	Kind        string
	MaxRequests int
	WindowSize  time.Duration
	Description string
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc *RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *context.Context) error {
	svc.configs = make(map[string]*RateLimitConfig)
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	svc.sqlSvc = svc.Service(SQL_SVC).(*SqlService)
	svc.identitySvc = svc.Service(CLIENT_IDENTITY_SVC).(*ClientIdentityService)
	svc.initDefaultConfigs()

	go svc.startCleanupJob()

	return nil
}

func (svc *RateLimitService) initDefaultConfigs() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	svc.configs = map[string]*RateLimitConfig{
		shared.LimitSubmit: {
			Kind:        shared.LimitSubmit,
			MaxRequests: 1,
			WindowSize:  10 * time.Minute,
			Description: "Song submission rate limit",
		},
		shared.LimitSearch: {
			Kind:        shared.LimitSearch,
			MaxRequests: 30,
			WindowSize:  time.Minute,
			Description: "Catalog search rate limit",
		},
		shared.LimitAdminLogin: {
			Kind:        shared.LimitAdminLogin,
			MaxRequests: 5,
			WindowSize:  15 * time.Minute,
			Description: "Admin login attempts rate limit",
		},
		shared.LimitSummary: {
			Kind:        shared.LimitSummary,
			MaxRequests: 1,
			WindowSize:  10 * time.Second,
			Description: "Summary generation rate limit",
		},
	}
}

func (svc *RateLimitService) config(kind string) *RateLimitConfig {
	svc.mutex.RLock()
	defer svc.mutex.RUnlock()
	return svc.configs[kind]
}

// ==================== CORE RATE LIMITING LOGIC ====================

// Check reports whether the client may proceed. It never mutates the counter;
// callers decide if and when the attempt is recorded.
func (svc *RateLimitService) Check(identifier, kind string) (*dto.RateLimitDecision, error) {
	config := svc.config(kind)
	if config == nil {
		// Unknown kind, allow the request
		return &dto.RateLimitDecision{Allowed: true, Remaining: -1}, nil
	}

	now := time.Now()

	rateLimit, err := svc.sqlSvc.GetRateLimit(identifier, kind)
	if err != nil {
		return nil, err
	}

	// Missing or lapsed window: the next Record resets the counter.
	if rateLimit == nil || rateLimit.WindowStart.Before(now.Add(-config.WindowSize)) {
		resetTime := now.Add(config.WindowSize)
		return &dto.RateLimitDecision{
			Allowed:   true,
			Remaining: config.MaxRequests,
			ResetTime: &resetTime,
		}, nil
	}

	resetTime := rateLimit.WindowStart.Add(config.WindowSize)

	if rateLimit.Count >= config.MaxRequests {
		retryAfter := int(math.Ceil(time.Until(resetTime).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return &dto.RateLimitDecision{
			Allowed:           false,
			Remaining:         0,
			RetryAfterSeconds: retryAfter,
			ResetTime:         &resetTime,
		}, nil
	}

	return &dto.RateLimitDecision{
		Allowed:   true,
		Remaining: config.MaxRequests - rateLimit.Count,
		ResetTime: &resetTime,
	}, nil
}

// Record consumes one slot: resets the counter when the window lapsed,
// increments it in place otherwise.
func (svc *RateLimitService) Record(identifier, kind string) error {
	config := svc.config(kind)
	if config == nil {
		return nil
	}

	now := time.Now()

	rateLimit, err := svc.sqlSvc.GetRateLimit(identifier, kind)
	if err != nil {
		return err
	}

	if rateLimit == nil || rateLimit.WindowStart.Before(now.Add(-config.WindowSize)) {
		if rateLimit == nil {
			rateLimit = &model.RateLimit{
				Identifier: identifier,
				Kind:       kind,
			}
		}
		rateLimit.Count = 1
		rateLimit.WindowStart = now
		return svc.sqlSvc.SaveRateLimit(rateLimit)
	}

	rateLimit.Count++
	rateLimit.UpdatedAt = now
	return svc.sqlSvc.UpdateRateLimit(rateLimit)
}

// ==================== MIDDLEWARE ====================

// Limit checks and records in one step, for endpoints that count every
// arrival (login attempts, summary regeneration).
func (svc *RateLimitService) Limit(kind string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := svc.identitySvc.ClientKey(c)

		decision, err := svc.Check(identifier, kind)
		if err != nil {
			log.WithError(err).WithField("kind", kind).Error("Rate limit check failed")
			// Continue on store errors rather than locking everyone out
			return c.Next()
		}

		svc.addRateLimitHeaders(c, decision)

		if !decision.Allowed {
			return svc.RateLimitExceeded(kind, decision)
		}

		if err := svc.Record(identifier, kind); err != nil {
			log.WithError(err).WithField("kind", kind).Error("Rate limit record failed")
		}

		return c.Next()
	}
}

func (svc *RateLimitService) addRateLimitHeaders(c *fiber.Ctx, decision *dto.RateLimitDecision) {
	if decision == nil {
		return
	}

	if decision.Remaining >= 0 {
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
	}
	if decision.ResetTime != nil {
		c.Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetTime.Unix()))
	}
}

// RateLimitExceeded builds the 429 error for a denied decision. The Fiber
// error handler turns RetryAfterSeconds into the Retry-After header.
func (svc *RateLimitService) RateLimitExceeded(kind string, decision *dto.RateLimitDecision) error {
	rateLimitDenialsTotal.WithLabelValues(kind).Inc()
	return shared.NewRateLimitError(
		svc.rateLimitMessage(kind),
		decision.RetryAfterSeconds,
		fiber.Map{"retryAfterSeconds": decision.RetryAfterSeconds},
	)
}

func (svc *RateLimitService) rateLimitMessage(kind string) string {
	messages := map[string]string{
		shared.LimitSubmit:     "You can only add one song every 10 minutes",
		shared.LimitSearch:     "Too many searches. Wait a moment.",
		shared.LimitAdminLogin: "Too many login attempts. Please try again later.",
		shared.LimitSummary:    "Wait a few seconds before generating another summary",
	}

	if message, exists := messages[kind]; exists {
		return message
	}
	return "Too many requests. Please try again later."
}

// ==================== ADMIN ====================

func (svc *RateLimitService) Stats() (map[string]interface{}, error) {
	svc.mutex.RLock()
	configs := make(map[string]*RateLimitConfig, len(svc.configs))
	for k, v := range svc.configs {
		configs[k] = v
	}
	svc.mutex.RUnlock()

	totalRecords, err := svc.sqlSvc.CountRateLimits()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"configs":       configs,
		"total_records": totalRecords,
		"timestamp":     time.Now(),
	}, nil
}

// Reset clears the counter for one (identifier, kind) pair.
func (svc *RateLimitService) Reset(identifier, kind string) error {
	return svc.sqlSvc.DeleteRateLimit(identifier, kind)
}

// ==================== BACKGROUND JOBS ====================

func (svc *RateLimitService) startCleanupJob() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		if err := svc.sqlSvc.CleanupOldRateLimits(7 * 24 * time.Hour); err != nil {
			log.WithError(err).Error("Rate limit cleanup failed")
		}
	}
}
