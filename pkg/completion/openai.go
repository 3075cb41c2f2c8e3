package completion

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/events"
)

// OpenAIService streams chat completions from an OpenAI-compatible endpoint.
// Reasoning deltas are published as thinking events, content deltas as
// partial completions; usage and stop reason are folded into the terminal
// event's metadata.
type OpenAIService struct {
	client       *go_openai.Client
	defaultModel string
}

type OpenAIOption func(*OpenAIService)

func WithDefaultModel(model string) OpenAIOption {
	return func(s *OpenAIService) {
		s.defaultModel = model
	}
}

func NewOpenAIService(apiKey string, baseURL string, options ...OpenAIOption) *OpenAIService {
	cfg := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	ret := &OpenAIService{
		client:       go_openai.NewClientWithConfig(cfg),
		defaultModel: go_openai.GPT4oMini,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *OpenAIService) Complete(ctx context.Context, req Request) error {
	model := req.ModelID
	if model == "" {
		model = s.defaultModel
	}

	metadata := events.EventMetadata{
		ID:             uuid.New(),
		ConversationID: req.ConversationID,
		TurnID:         req.TurnID,
		Model:          model,
	}

	chatReq := go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: historyToMessages(req.History),
		StreamOptions: &go_openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	log.Debug().
		Str("model", model).
		Int("num_messages", len(chatReq.Messages)).
		Bool("thinking", req.ThinkingEnabled).
		Msg("opening completion stream")

	events.PublishEventToContext(ctx, events.NewStartEvent(metadata))

	stream, err := s.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		log.Error().Err(err).Msg("streaming request failed")
		events.PublishEventToContext(ctx, events.NewErrorEvent(metadata, err))
		return err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close stream")
		}
	}()

	message := ""
	thinking := ""
	var stopReason *string
	var usage *events.Usage
	chunkCount := 0

	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("chunks_received", chunkCount).Msg("streaming cancelled by context")
			events.PublishEventToContext(ctx, events.NewInterruptEvent(metadata, message))
			return ctx.Err()

		default:
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				log.Debug().Int("chunks_received", chunkCount).Msg("stream completed")
				metadata.StopReason = stopReason
				metadata.Usage = usage
				events.PublishEventToContext(ctx, events.NewFinalEvent(metadata, message))
				return nil
			}
			if err != nil {
				log.Error().Err(err).Int("chunks_received", chunkCount).Msg("stream receive failed")
				events.PublishEventToContext(ctx, events.NewErrorEvent(metadata, err))
				return err
			}
			chunkCount++

			if response.Usage != nil {
				usage = &events.Usage{
					InputTokens:  response.Usage.PromptTokens,
					OutputTokens: response.Usage.CompletionTokens,
				}
			}

			if len(response.Choices) == 0 {
				continue
			}
			choice := response.Choices[0]
			if choice.FinishReason != "" {
				reason := string(choice.FinishReason)
				stopReason = &reason
			}

			if delta := choice.Delta.ReasoningContent; delta != "" && req.ThinkingEnabled {
				thinking += delta
				events.PublishEventToContext(ctx, events.NewThinkingPartialEvent(metadata, delta, thinking))
			}
			if delta := choice.Delta.Content; delta != "" {
				message += delta
				log.Trace().Int("chunk", chunkCount).Str("delta", delta).Int("total_length", len(message)).Msg("received chunk")
				events.PublishEventToContext(ctx, events.NewPartialCompletionEvent(metadata, delta, message))
			}
		}
	}
}

func historyToMessages(history []*conversation.Message) []go_openai.ChatCompletionMessage {
	ret := make([]go_openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		if msg.Streaming {
			continue
		}
		role := go_openai.ChatMessageRoleUser
		if msg.Role == conversation.RoleAssistant {
			role = go_openai.ChatMessageRoleAssistant
		}
		ret = append(ret, go_openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return ret
}

var _ Service = (*OpenAIService)(nil)
