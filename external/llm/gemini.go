package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/foxseedlab/kotodama/internal/llm"
)

type GeminiResponder struct {
	client *genai.Client
	model  string
}

func NewGeminiResponder(ctx context.Context, apiKey, model string) (*GeminiResponder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiResponder{client: client, model: model}, nil
}

// Reply sends the last user turn through a chat seeded with the earlier turns.
// System messages become the model's system instruction.
func (r *GeminiResponder) Reply(ctx context.Context, messages []llm.Message) (string, error) {
	system, history, last := splitForGemini(messages)
	if last == "" {
		return "", errors.New("gemini: no user turn to answer")
	}

	model := r.client.GenerativeModel(r.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini: send message: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func (r *GeminiResponder) Close() error {
	return r.client.Close()
}

func splitForGemini(messages []llm.Message) (system string, history []*genai.Content, last string) {
	var systems []string
	var turns []llm.Message
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			systems = append(systems, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if n := len(turns); n > 0 && turns[n-1].Role == llm.RoleUser {
		last = turns[n-1].Content
		turns = turns[:n-1]
	}
	for _, m := range turns {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(systems, "\n\n"), history, last
}
