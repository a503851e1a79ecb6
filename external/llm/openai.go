package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/foxseedlab/kotodama/internal/llm"
)

type OpenAIResponder struct {
	client oai.Client
	model  string
}

// NewOpenAIResponder talks to the OpenAI chat completions API, or any
// compatible endpoint when baseURL is set.
func NewOpenAIResponder(apiKey, baseURL, model string) (*OpenAIResponder, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIResponder{client: oai.NewClient(opts...), model: model}, nil
}

func (r *OpenAIResponder) Reply(ctx context.Context, messages []llm.Message) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(r.model),
		Messages: convertMessages(messages),
	}
	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func convertMessages(messages []llm.Message) []oai.ChatCompletionMessageParamUnion {
	out := make([]oai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, oai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, oai.AssistantMessage(m.Content))
		default:
			out = append(out, oai.UserMessage(m.Content))
		}
	}
	return out
}
