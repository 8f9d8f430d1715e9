package models

import "time"

// ProviderKind names the concrete wire protocol a provider speaks.
type ProviderKind string

const (
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOpenAI    ProviderKind = "openai"
	ProviderBedrock   ProviderKind = "bedrock"
)

// ProviderConfig describes one LLM endpoint in the Router's provider set.
type ProviderConfig struct {
	Name        string        `yaml:"name" json:"name"`
	Kind        ProviderKind  `yaml:"kind" json:"kind"`
	Endpoint    string        `yaml:"endpoint" json:"endpoint"`
	Model       string        `yaml:"model" json:"model"`
	APIKey      string        `yaml:"api_key,omitempty" json:"-"`
	Priority    int           `yaml:"priority" json:"priority"`
	RPMLimit    float64       `yaml:"rpm_limit" json:"rpm_limit"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	RetryCount  int           `yaml:"retry_count" json:"retry_count"`
	ContextSize int           `yaml:"context_size" json:"context_size"`
	SupportsTools bool        `yaml:"supports_tools" json:"supports_tools"`
}

// DefaultProviderConfig fills in the defaults the Router relies on when a
// caller omits them in engagement configuration.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Priority:    100,
		RPMLimit:    60,
		MaxTokens:   4096,
		Temperature: 0.2,
		Timeout:     120 * time.Second,
		RetryCount:  3,
		ContextSize: 128_000,
	}
}
