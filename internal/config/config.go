// Package config loads and hot-reloads engagement configuration: the LLM
// provider set, Guardian safety policy, Team Lead concurrency bounds, and
// logging setup.
package config

import (
	"fmt"
	"time"

	"github.com/spark-corp/redshadow/internal/guardian"
	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/internal/logging"
	"github.com/spark-corp/redshadow/internal/teamlead"
	"github.com/spark-corp/redshadow/pkg/models"
)

// GuardianConfig is the YAML-serializable subset of guardian.Config — the
// Approve callback has no wire representation and is wired by the caller.
type GuardianConfig struct {
	Blocklist           []string      `yaml:"blocklist"`
	SuspiciousPatterns  []string      `yaml:"suspicious_patterns"`
	ScopeIncludeCIDRs   []string      `yaml:"scope_include_cidrs"`
	ScopeExcludeCIDRs   []string      `yaml:"scope_exclude_cidrs"`
	ScopeIncludeDomains []string      `yaml:"scope_include_domains"`
	ScopeExcludeDomains []string      `yaml:"scope_exclude_domains"`
	AlwaysAllowed       []string      `yaml:"always_allowed"`
	RateLimit           int           `yaml:"rate_limit"`
	ExploitKeywords     []string      `yaml:"exploit_keywords"`
	ScannerKeywords     []string      `yaml:"scanner_keywords"`
	PassiveKeywords     []string      `yaml:"passive_keywords"`
	StaleThreshold      time.Duration `yaml:"stale_threshold"`
}

// ToGuardianConfig builds a guardian.Config from the loaded fields, falling
// back to guardian.NewDefaultConfig for any list left empty in YAML.
func (g GuardianConfig) ToGuardianConfig() guardian.Config {
	d := guardian.NewDefaultConfig()
	cfg := guardian.Config{
		Blocklist:           orDefault(g.Blocklist, d.Blocklist),
		SuspiciousPatterns:  orDefault(g.SuspiciousPatterns, d.SuspiciousPatterns),
		ScopeIncludeCIDRs:   g.ScopeIncludeCIDRs,
		ScopeExcludeCIDRs:   g.ScopeExcludeCIDRs,
		ScopeIncludeDomains: g.ScopeIncludeDomains,
		ScopeExcludeDomains: g.ScopeExcludeDomains,
		AlwaysAllowed:       orDefault(g.AlwaysAllowed, d.AlwaysAllowed),
		RateLimit:           g.RateLimit,
		ExploitKeywords:     orDefault(g.ExploitKeywords, d.ExploitKeywords),
		ScannerKeywords:     orDefault(g.ScannerKeywords, d.ScannerKeywords),
		PassiveKeywords:     orDefault(g.PassiveKeywords, d.PassiveKeywords),
		StaleThreshold:      g.StaleThreshold,
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = d.RateLimit
	}
	if cfg.StaleThreshold == 0 {
		cfg.StaleThreshold = 10 * time.Minute
	}
	return cfg
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

// TeamLeadConfig is the YAML-serializable subset of teamlead.Config.
type TeamLeadConfig struct {
	MaxWorkers        int           `yaml:"max_workers"`
	MonitorInterval   time.Duration `yaml:"monitor_interval"`
	CleanupTimeout    time.Duration `yaml:"cleanup_timeout"`
	ClaimPollInterval time.Duration `yaml:"claim_poll_interval"`
}

// ToTeamLeadConfig builds a teamlead.Config, falling back to
// teamlead.DefaultConfig for any zero-valued field.
func (t TeamLeadConfig) ToTeamLeadConfig() teamlead.Config {
	d := teamlead.DefaultConfig()
	cfg := teamlead.Config{
		MaxWorkers:        t.MaxWorkers,
		MonitorInterval:   t.MonitorInterval,
		CleanupTimeout:    t.CleanupTimeout,
		ClaimPollInterval: t.ClaimPollInterval,
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = d.MaxWorkers
	}
	if cfg.MonitorInterval == 0 {
		cfg.MonitorInterval = d.MonitorInterval
	}
	if cfg.CleanupTimeout == 0 {
		cfg.CleanupTimeout = d.CleanupTimeout
	}
	if cfg.ClaimPollInterval == 0 {
		cfg.ClaimPollInterval = d.ClaimPollInterval
	}
	return cfg
}

// LoggingConfig mirrors internal/logging.Config for YAML loading.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

func (l LoggingConfig) ToLoggingConfig() logging.Config {
	return logging.Config{
		Level:     l.Level,
		Format:    l.Format,
		AddSource: l.AddSource,
	}
}

// FailoverConfig is the YAML-serializable subset of llm.FailoverConfig.
type FailoverConfig struct {
	MaxRetryBackoff         time.Duration `yaml:"max_retry_backoff"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout"`
	CompactionContextRatio  float64       `yaml:"compaction_context_ratio"`
}

func (f FailoverConfig) ToFailoverConfig() llm.FailoverConfig {
	d := llm.DefaultFailoverConfig()
	cfg := llm.FailoverConfig{
		MaxRetryBackoff:         f.MaxRetryBackoff,
		CircuitBreakerThreshold: f.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   f.CircuitBreakerTimeout,
		CompactionContextRatio:  f.CompactionContextRatio,
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = d.MaxRetryBackoff
	}
	if cfg.CircuitBreakerThreshold == 0 {
		cfg.CircuitBreakerThreshold = d.CircuitBreakerThreshold
	}
	if cfg.CircuitBreakerTimeout == 0 {
		cfg.CircuitBreakerTimeout = d.CircuitBreakerTimeout
	}
	if cfg.CompactionContextRatio == 0 {
		cfg.CompactionContextRatio = d.CompactionContextRatio
	}
	return cfg
}

// Config is the root engagement configuration document.
type Config struct {
	Providers []models.ProviderConfig `yaml:"providers"`
	Failover  FailoverConfig          `yaml:"failover"`
	Guardian  GuardianConfig          `yaml:"guardian"`
	TeamLead  TeamLeadConfig          `yaml:"team_lead"`
	Logging   LoggingConfig           `yaml:"logging"`
}

// Validate checks the invariants Load cannot express through zero values
// alone: at least one provider, and each provider naming a known Kind.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider is required")
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: providers[%d]: name is required", i)
		}
		switch p.Kind {
		case models.ProviderAnthropic, models.ProviderOpenAI, models.ProviderBedrock:
		default:
			return fmt.Errorf("config: providers[%d] %q: unknown kind %q", i, p.Name, p.Kind)
		}
	}
	return nil
}

// applyProviderDefaults fills every provider entry's zero-valued fields from
// models.DefaultProviderConfig, matching the Router's expectation that every
// ProviderConfig it receives is fully populated.
func applyProviderDefaults(providers []models.ProviderConfig) []models.ProviderConfig {
	d := models.DefaultProviderConfig()
	out := make([]models.ProviderConfig, len(providers))
	for i, p := range providers {
		if p.Priority == 0 {
			p.Priority = d.Priority
		}
		if p.RPMLimit == 0 {
			p.RPMLimit = d.RPMLimit
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = d.MaxTokens
		}
		if p.Timeout == 0 {
			p.Timeout = d.Timeout
		}
		if p.RetryCount == 0 {
			p.RetryCount = d.RetryCount
		}
		if p.ContextSize == 0 {
			p.ContextSize = d.ContextSize
		}
		out[i] = p
	}
	return out
}
