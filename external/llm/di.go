package llm

import (
	"context"
	"fmt"

	"github.com/foxseedlab/kotodama/internal/config"
	"github.com/foxseedlab/kotodama/internal/llm"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (llm.Responder, error) {
		c := do.MustInvoke[*config.Config](i)
		switch c.LLMProvider {
		case config.LLMProviderGemini:
			return NewGeminiResponder(context.Background(), c.GeminiAPIKey, c.GeminiModel)
		case config.LLMProviderOpenAI:
			return NewOpenAIResponder(c.OpenAIAPIKey, c.OpenAIBaseURL, c.OpenAIModel)
		default:
			return nil, fmt.Errorf("unknown llm provider %q", c.LLMProvider)
		}
	})
}
