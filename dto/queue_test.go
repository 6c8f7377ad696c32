package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubmitSongRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     SubmitSongRequest
		wantErr bool
	}{
		{
			"valid",
			SubmitSongRequest{SongName: "Bohemian Rhapsody", Artist: "Queen"},
			false,
		},
		{
			"valid with cover",
			SubmitSongRequest{SongName: "Song", Artist: "Artist", CoverURL: "https://is1-ssl.mzstatic.com/a.jpg"},
			false,
		},
		{
			"missing song name",
			SubmitSongRequest{Artist: "Queen"},
			true,
		},
		{
			"missing artist",
			SubmitSongRequest{SongName: "Song"},
			true,
		},
		{
			"whitespace only",
			SubmitSongRequest{SongName: "   ", Artist: "Queen"},
			true,
		},
		{
			"song name too long",
			SubmitSongRequest{SongName: strings.Repeat("a", 201), Artist: "Queen"},
			true,
		},
		{
			"cover not a url",
			SubmitSongRequest{SongName: "Song", Artist: "Artist", CoverURL: "not-a-url"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubmitSongRequestValidateTrims(t *testing.T) {
	req := SubmitSongRequest{SongName: "  Song  ", Artist: "  Artist  "}
	assert.NoError(t, req.Validate())
	assert.Equal(t, "Song", req.SongName)
	assert.Equal(t, "Artist", req.Artist)
}

func TestFormatValidationErrors(t *testing.T) {
	req := SubmitSongRequest{}
	err := req.Validate()
	assert.Error(t, err)

	formatted := FormatValidationErrors(err)
	assert.Len(t, formatted, 2)

	resp := CreateValidationErrorResponse(err)
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "Validation failed", resp.Message)
}
