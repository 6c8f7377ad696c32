package dto

import "strings"

type SubmitSongRequest struct {
	SongName string `json:"songName" validate:"required,max=200"`
	Artist   string `json:"artist" validate:"required,max=200"`
	CoverURL string `json:"coverUrl,omitempty" validate:"omitempty,url,max=2000"`
}

func (r *SubmitSongRequest) Validate() error {
	r.SongName = strings.TrimSpace(r.SongName)
	r.Artist = strings.TrimSpace(r.Artist)
	r.CoverURL = strings.TrimSpace(r.CoverURL)
	return GetValidator().Struct(r)
}

type QueueEntryResponse struct {
	ID           string `json:"id"`
	SongName     string `json:"songName"`
	Artist       string `json:"artist"`
	CoverURL     string `json:"coverUrl,omitempty"`
	OrderNumber  int    `json:"orderNumber"`
	FunnySummary string `json:"funnySummary,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

type RemoveSongResponse struct {
	Success bool `json:"success"`
}

type SummaryStatusResponse struct {
	NeedsSummary bool   `json:"needsSummary"`
	SongID       string `json:"songId,omitempty"`
}

type GenerateSummaryResponse struct {
	Success bool   `json:"success"`
	Summary string `json:"summary"`
}
