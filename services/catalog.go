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
	log "github.com/sirupsen/logrus"

	"github.com/encorelab/encore-api/dto"
)

// CatalogService proxies song searches to the iTunes Search API so browser
// clients never talk to the upstream directly. Results are cached briefly in
// Redis keyed by the normalized term.
type CatalogService struct {
	appContext.DefaultService

	BaseURL string

	client   *http.Client
	redisSvc *RedisService
}

type itunesSearchResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []itunesResult `json:"results"`
}

type itunesResult struct {
	TrackName     string `json:"trackName"`
	ArtistName    string `json:"artistName"`
	ArtworkURL100 string `json:"artworkUrl100"`
}

const CATALOG_SVC = "catalog_svc"

const (
	catalogSearchMinChars = 2
	catalogSearchMaxChars = 100
	catalogResultLimit    = 10
	catalogCacheTTL       = 5 * time.Minute
)

func (svc CatalogService) Id() string {
	return CATALOG_SVC
}

func (svc *CatalogService) Configure(ctx *appContext.Context) error {
	svc.BaseURL = "https://itunes.apple.com/search"
	svc.client = &http.Client{Timeout: 5 * time.Second}
	return svc.DefaultService.Configure(ctx)
}

func (svc *CatalogService) Start() error {
	svc.redisSvc, _ = svc.Service(REDIS_SVC).(*RedisService)
	return nil
}

// Search returns up to 10 catalog matches for the term. Terms shorter than 2
// characters and upstream failures both yield an empty slice; the caller never
// sees an upstream error.
func (svc *CatalogService) Search(ctx context.Context, term string) ([]dto.SearchResult, error) {
	term = strings.TrimSpace(term)
	if len(term) < catalogSearchMinChars {
		return []dto.SearchResult{}, nil
	}
	term = truncate(term, catalogSearchMaxChars)

	cacheKey := "catalog:search:" + strings.ToLower(term)
	if svc.redisSvc != nil {
		var cached []dto.SearchResult
		if err := svc.redisSvc.GetJSON(ctx, cacheKey, &cached); err == nil && cached != nil {
			return cached, nil
		}
	}

	results, err := svc.fetch(ctx, term)
	if err != nil {
		log.WithError(err).WithField("term", term).Warn("Catalog search upstream failed")
		return []dto.SearchResult{}, nil
	}

	if svc.redisSvc != nil {
		if err := svc.redisSvc.Set(ctx, cacheKey, results, catalogCacheTTL); err != nil {
			log.WithError(err).Debug("Failed to cache catalog results")
		}
	}

	return results, nil
}

func (svc *CatalogService) fetch(ctx context.Context, term string) ([]dto.SearchResult, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", fmt.Sprintf("%d", catalogResultLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := svc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog upstream returned status %d", resp.StatusCode)
	}

	var payload itunesSearchResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	results := make([]dto.SearchResult, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.TrackName == "" || r.ArtistName == "" {
			continue
		}
		results = append(results, dto.SearchResult{
			TrackName:  r.TrackName,
			ArtistName: r.ArtistName,
			CoverURL:   r.ArtworkURL100,
		})
		if len(results) >= catalogResultLimit {
			break
		}
	}

	return results, nil
}

// MatchTrack reports whether the song exists in the catalog under that exact
// title and artist (case-insensitive). An error means the upstream could not
// be reached, not that the track is missing.
func (svc *CatalogService) MatchTrack(ctx context.Context, songName, artist string) (bool, error) {
	term := truncate(strings.TrimSpace(songName+" "+artist), catalogSearchMaxChars)

	results, err := svc.fetch(ctx, term)
	if err != nil {
		return false, err
	}

	for _, r := range results {
		if strings.EqualFold(r.TrackName, songName) && strings.EqualFold(r.ArtistName, artist) {
			return true, nil
		}
	}

	return false, nil
}
