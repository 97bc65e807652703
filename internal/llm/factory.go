package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/numbersense/internal/logging"
	"github.com/abhisek/numbersense/internal/store"
)

// NewProvider builds the configured backend wrapped as
// caller → timeout → retry → logging → backend. A disabled config returns
// ErrDisabled. sink may be nil.
func NewProvider(ctx context.Context, cfg Config, sink store.EventRepo, log *logging.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderNone:
		return nil, ErrDisabled
	case ProviderMock:
		base = NewMockProvider()
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	p := WithLogging(base, sink, log)
	p = WithRetry(p, cfg.Retry)
	return WithTimeout(p, cfg.Timeout), nil
}
