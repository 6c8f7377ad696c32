package dto

type SearchResult struct {
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName"`
	CoverURL   string `json:"coverUrl"`
}
