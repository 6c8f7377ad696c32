package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	appContext "github.com/alphabatem/common/context"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	log "github.com/sirupsen/logrus"
)

// SummaryService generates the short comedic blurb shown next to the song at
// the head of the queue. It talks to Groq through the OpenAI-compatible chat
// completions endpoint. Without an API key the service is disabled and every
// call returns an empty summary.
type SummaryService struct {
	appContext.DefaultService

	client  openai.Client
	model   string
	enabled bool
}

const SUMMARY_SVC = "summary_svc"

const (
	summaryInputMaxChars  = 5000
	summaryOutputMaxChars = 500
	summaryDefaultModel   = "llama-3.1-8b-instant"
	summaryDefaultBaseURL = "https://api.groq.com/openai/v1"
)

func (svc SummaryService) Id() string {
	return SUMMARY_SVC
}

func (svc *SummaryService) Configure(ctx *appContext.Context) error {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		log.Warn("GROQ_API_KEY not set, summary generation disabled")
		return svc.DefaultService.Configure(ctx)
	}

	baseURL := os.Getenv("GROQ_BASE_URL")
	if baseURL == "" {
		baseURL = summaryDefaultBaseURL
	}

	svc.model = os.Getenv("GROQ_MODEL")
	if svc.model == "" {
		svc.model = summaryDefaultModel
	}

	svc.client = openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	svc.enabled = true

	return svc.DefaultService.Configure(ctx)
}

func (svc *SummaryService) Start() error {
	return nil
}

func (svc *SummaryService) Enabled() bool {
	return svc.enabled
}

// GenerateFunnySummary asks the model for a one-or-two sentence joke summary
// of the lyrics. Input is truncated to keep prompts cheap; output is capped so
// a rambling model can't overflow the card in the UI.
func (svc *SummaryService) GenerateFunnySummary(ctx context.Context, lyrics string) (string, error) {
	if !svc.enabled {
		return "", nil
	}

	lyrics = strings.TrimSpace(lyrics)
	if lyrics == "" {
		return "", nil
	}
	lyrics = truncate(lyrics, summaryInputMaxChars)

	prompt := fmt.Sprintf(
		"Summarize these song lyrics in one or two funny, slightly absurd sentences. "+
			"Be playful, never mean. Reply with the summary only.\n\nLyrics:\n%s",
		lyrics,
	)

	resp, err := svc.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(svc.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(150),
		Temperature: openai.Float(0.8),
	})
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return truncate(strings.TrimSpace(resp.Choices[0].Message.Content), summaryOutputMaxChars), nil
}
