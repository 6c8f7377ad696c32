package model

import "time"

// QueueEntry is one submitted song request. OrderNumber values among live
// entries are always exactly {1..N}: appends take the next position and
// removals compact everything behind them.
type QueueEntry struct {
	ID          string `json:"id" gorm:"primaryKey;type:text;not null"`
	SongName    string `json:"song_name" gorm:"not null;size:200"`
	Artist      string `json:"artist" gorm:"not null;size:200"`
	CoverURL    string `json:"cover_url,omitempty" gorm:"size:2000"`
	OrderNumber int    `json:"order_number" gorm:"not null;index"`

	// Enrichment fields, filled in by the background worker after submission.
	Lyrics             string     `json:"-" gorm:"type:text"`
	FunnySummary       string     `json:"funny_summary,omitempty" gorm:"type:text"`
	SummaryGeneratedAt *time.Time `json:"summary_generated_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}
