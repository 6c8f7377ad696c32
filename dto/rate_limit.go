package dto

import "time"

type RateLimitDecision struct {
	Allowed           bool       `json:"allowed"`
	Remaining         int        `json:"remaining"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
	ResetTime         *time.Time `json:"reset_time,omitempty"`
}
