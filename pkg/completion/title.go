package completion

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

const titlePrompt = "Write a short title (at most six words) for a conversation that starts with the following message. Reply with the title only, no quotes."

// TitleGenerator produces a conversation title from the first user message
// with a single non-streaming completion call.
type TitleGenerator struct {
	client *go_openai.Client
	model  string
}

func NewTitleGenerator(apiKey string, baseURL string, model string) *TitleGenerator {
	cfg := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = go_openai.GPT4oMini
	}
	return &TitleGenerator{
		client: go_openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (t *TitleGenerator) Title(ctx context.Context, firstUserText string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, go_openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []go_openai.ChatCompletionMessage{
			{Role: go_openai.ChatMessageRoleSystem, Content: titlePrompt},
			{Role: go_openai.ChatMessageRoleUser, Content: firstUserText},
		},
		MaxTokens: 32,
	})
	if err != nil {
		return "", errors.Wrap(err, "title completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("title completion returned no choices")
	}
	title := strings.TrimSpace(resp.Choices[0].Message.Content)
	title = strings.Trim(title, `"'`)
	if title == "" {
		return "", errors.New("title completion returned empty text")
	}
	log.Debug().Str("title", title).Msg("generated conversation title")
	return title, nil
}
