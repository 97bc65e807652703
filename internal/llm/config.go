package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderNone      = ""
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects the backend. Empty disables narratives.
	Provider string

	Anthropic ProviderConfig
	OpenAI    ProviderConfig
	Gemini    ProviderConfig
	Retry     RetryConfig

	// Timeout bounds a single Generate call including retries.
	Timeout time.Duration
}

// ProviderConfig is the per-backend credential and model. BaseURL is only
// honored by OpenAI-compatible endpoints.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a disabled Config with model defaults filled in.
func DefaultConfig() Config {
	return Config{
		Anthropic: ProviderConfig{Model: "claude-haiku"},
		OpenAI:    ProviderConfig{Model: "gpt-4o-mini"},
		Gemini:    ProviderConfig{Model: "gemini-flash"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// ConfigFromEnv reads NUMBERSENSE_LLM_* variables over the defaults. When
// no provider is named explicitly the standard vendor key variables are
// checked (see DiscoverConfig).
func ConfigFromEnv() Config {
	return configFromLookup(os.LookupEnv)
}

func configFromLookup(lookup func(string) (string, bool)) Config {
	get := func(k string) string {
		v, _ := lookup(k)
		return v
	}

	cfg := DefaultConfig()
	cfg.Provider = get("NUMBERSENSE_LLM_PROVIDER")

	setIf(&cfg.Anthropic.APIKey, get("NUMBERSENSE_ANTHROPIC_API_KEY"))
	setIf(&cfg.Anthropic.Model, get("NUMBERSENSE_ANTHROPIC_MODEL"))
	setIf(&cfg.OpenAI.APIKey, get("NUMBERSENSE_OPENAI_API_KEY"))
	setIf(&cfg.OpenAI.Model, get("NUMBERSENSE_OPENAI_MODEL"))
	setIf(&cfg.OpenAI.BaseURL, get("NUMBERSENSE_OPENAI_BASE_URL"))
	setIf(&cfg.Gemini.APIKey, get("NUMBERSENSE_GEMINI_API_KEY"))
	setIf(&cfg.Gemini.Model, get("NUMBERSENSE_GEMINI_MODEL"))

	if v := get("NUMBERSENSE_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	if cfg.Provider == ProviderNone {
		if found, ok := discover(cfg, get); ok {
			return found
		}
	}
	return cfg
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// DiscoverConfig checks the vendors' own API key variables in priority
// order (Anthropic, OpenAI, Gemini) and returns a Config for the first
// key found.
func DiscoverConfig() (Config, bool) {
	return discover(DefaultConfig(), os.Getenv)
}

func discover(cfg Config, get func(string) string) (Config, bool) {
	if k := get("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = ProviderAnthropic
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := get("OPENAI_API_KEY"); k != "" {
		cfg.Provider = ProviderOpenAI
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := get("GEMINI_API_KEY"); k != "" {
		cfg.Provider = ProviderGemini
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	return cfg, false
}

// Enabled reports whether a provider is selected.
func (c Config) Enabled() bool {
	return c.Provider != ProviderNone
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	var key, env string
	switch c.Provider {
	case ProviderNone, ProviderMock:
		return nil
	case ProviderAnthropic:
		key, env = c.Anthropic.APIKey, "NUMBERSENSE_ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		key, env = c.OpenAI.APIKey, "NUMBERSENSE_OPENAI_API_KEY"
	case ProviderGemini:
		key, env = c.Gemini.APIKey, "NUMBERSENSE_GEMINI_API_KEY"
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if key == "" {
		return fmt.Errorf("%s is required for the %s provider", env, c.Provider)
	}
	return nil
}
