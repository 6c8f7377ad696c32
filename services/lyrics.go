package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
)

// LyricsService fetches plain-text lyrics from lyrics.ovh. Missing lyrics are
// not an error; the enrichment pipeline simply skips the summary step.
type LyricsService struct {
	appContext.DefaultService

	BaseURL string

	client *http.Client
}

type lyricsResponse struct {
	Lyrics string `json:"lyrics"`
}

const LYRICS_SVC = "lyrics_svc"

const lyricsMaxChars = 10000

func (svc LyricsService) Id() string {
	return LYRICS_SVC
}

func (svc *LyricsService) Configure(ctx *appContext.Context) error {
	svc.BaseURL = "https://api.lyrics.ovh/v1"
	svc.client = &http.Client{Timeout: 5 * time.Second}
	return svc.DefaultService.Configure(ctx)
}

func (svc *LyricsService) Start() error {
	return nil
}

// Fetch returns the lyrics for the song, capped at 10000 characters, or an
// empty string when the provider doesn't know the song or is unreachable.
func (svc *LyricsService) Fetch(ctx context.Context, artist, songName string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", svc.BaseURL, url.PathEscape(artist), url.PathEscape(songName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := svc.client.Do(req)
	if err != nil {
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	var payload lyricsResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", nil
	}

	return truncate(strings.TrimSpace(payload.Lyrics), lyricsMaxChars), nil
}
