package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spark-corp/redshadow/pkg/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesProviderDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "engagement.yaml", `
providers:
  - name: primary
    kind: anthropic
    model: claude-sonnet
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(cfg.Providers))
	}
	p := cfg.Providers[0]
	if p.RPMLimit == 0 || p.MaxTokens == 0 || p.ContextSize == 0 {
		t.Fatalf("expected defaults applied, got %+v", p)
	}
}

func TestLoadRejectsUnknownProviderKind(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "engagement.yaml", `
providers:
  - name: primary
    kind: not_a_real_provider
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown provider kind")
	}
}

func TestLoadRejectsEmptyProviderList(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "engagement.yaml", "providers: []\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an empty provider list")
	}
}

func TestLoadResolvesIncludeAndLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
providers:
  - name: primary
    kind: anthropic
    model: claude-sonnet
    priority: 10
team_lead:
  max_workers: 4
`)
	path := writeFile(t, dir, "engagement.yaml", `
$include: base.yaml
team_lead:
  max_workers: 12
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Name != "primary" {
		t.Fatalf("expected included provider to survive, got %+v", cfg.Providers)
	}
	if cfg.TeamLead.MaxWorkers != 12 {
		t.Fatalf("expected local override to win, got %d", cfg.TeamLead.MaxWorkers)
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "$include: b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "$include: a.yaml\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an include cycle")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "engagement.yaml", `
providers:
  - name: primary
    kind: anthropic
not_a_real_section: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown top-level field")
	}
}

func TestToGuardianConfigFallsBackToDefaults(t *testing.T) {
	g := GuardianConfig{}
	cfg := g.ToGuardianConfig()
	if len(cfg.Blocklist) == 0 {
		t.Fatal("expected default blocklist when none configured")
	}
	if cfg.StaleThreshold == 0 {
		t.Fatal("expected a non-zero default stale threshold")
	}
}

func TestToTeamLeadConfigFallsBackToDefaults(t *testing.T) {
	tl := TeamLeadConfig{}
	cfg := tl.ToTeamLeadConfig()
	if cfg.MaxWorkers == 0 {
		t.Fatal("expected a non-zero default max workers")
	}
}

func TestToFailoverConfigFallsBackToDefaults(t *testing.T) {
	f := FailoverConfig{}
	cfg := f.ToFailoverConfig()
	if cfg.CircuitBreakerThreshold == 0 {
		t.Fatal("expected a non-zero default circuit breaker threshold")
	}
}

func TestValidateRequiresProviderName(t *testing.T) {
	cfg := Config{Providers: []models.ProviderConfig{{Kind: models.ProviderAnthropic}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a provider missing a name")
	}
}
