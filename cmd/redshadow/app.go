package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"

	"github.com/spark-corp/redshadow/internal/agent"
	redshadowconfig "github.com/spark-corp/redshadow/internal/config"
	"github.com/spark-corp/redshadow/internal/findings"
	"github.com/spark-corp/redshadow/internal/guardian"
	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/internal/llm/providers"
	"github.com/spark-corp/redshadow/internal/lockmgr"
	"github.com/spark-corp/redshadow/internal/logging"
	"github.com/spark-corp/redshadow/internal/mailbox"
	"github.com/spark-corp/redshadow/internal/observability"
	"github.com/spark-corp/redshadow/internal/tasks"
	"github.com/spark-corp/redshadow/internal/teamlead"
	"github.com/spark-corp/redshadow/internal/tools"
	"github.com/spark-corp/redshadow/internal/tools/builtin"
	"github.com/spark-corp/redshadow/pkg/models"
)

// app bundles the wiring every subcommand needs, built once from a loaded
// Config. It intentionally holds no engagement state — that lives on the
// TeamLead constructed per run.
type app struct {
	cfg      *redshadowconfig.Config
	log      *slog.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	shutdown func(context.Context) error
	router   *llm.Router
	guard    *guardian.Guardian
	bridge   *tools.Bridge
}

// newApp loads configPath and wires every ambient and domain component a
// subcommand needs. session selects which Guardian scope-check mode the
// Tool Bridge runs under.
func newApp(configPath string, session guardian.SessionKind) (*app, error) {
	cfg, err := redshadowconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.Logging.ToLoggingConfig())
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "redshadow",
		ServiceVersion: version,
	})

	router, err := buildRouter(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	guard := guardian.New(cfg.Guardian.ToGuardianConfig())

	bridge := tools.New(log, guard, session)
	bridge.RegisterServer("nmap", builtin.NewNmapServer())
	bridge.RegisterServer("nuclei", builtin.NewNucleiServer())
	bridge.RegisterServer("whois", builtin.NewWhoisServer())
	bridge.RegisterServer("dig", builtin.NewDigServer())

	return &app{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		tracer:   tracer,
		shutdown: shutdown,
		router:   router,
		guard:    guard,
		bridge:   bridge,
	}, nil
}

// buildRouter constructs one llm.Provider per configured entry and wires
// them into a Router, keyed by each ProviderConfig's Kind.
func buildRouter(log *slog.Logger, cfg *redshadowconfig.Config) (*llm.Router, error) {
	entries := make([]struct {
		Config   models.ProviderConfig
		Provider llm.Provider
	}, 0, len(cfg.Providers))

	for _, pc := range cfg.Providers {
		provider, err := newProvider(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		entries = append(entries, struct {
			Config   models.ProviderConfig
			Provider llm.Provider
		}{Config: pc, Provider: provider})
	}

	return llm.New(log, cfg.Failover.ToFailoverConfig(), entries...), nil
}

func newProvider(pc models.ProviderConfig) (llm.Provider, error) {
	switch pc.Kind {
	case models.ProviderAnthropic:
		return providers.NewAnthropic(providers.AnthropicConfig{
			APIKey:      pc.APIKey,
			BaseURL:     pc.Endpoint,
			Model:       pc.Model,
			ContextSize: pc.ContextSize,
		})
	case models.ProviderOpenAI:
		return providers.NewOpenAI(providers.OpenAIConfig{
			APIKey:      pc.APIKey,
			BaseURL:     pc.Endpoint,
			Model:       pc.Model,
			ContextSize: pc.ContextSize,
		})
	case models.ProviderBedrock:
		return providers.NewBedrock(context.Background(), providers.BedrockConfig{
			Model:       pc.Model,
			ContextSize: pc.ContextSize,
		})
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}

// newTeamLead assembles a fresh, engagement-scoped TeamLead over a's shared
// Router/Guardian/Bridge and a new set of coordination primitives — every
// engagement gets its own Task Queue, Mailbox, and Lock Manager so two
// concurrent `engage` runs never share state. queue is nil unless the
// caller wants a durable (SQLite-backed) Task Queue instead of the default
// in-memory one.
func (a *app) newTeamLead(queue tasks.Queue) *teamlead.TeamLead {
	if queue == nil {
		queue = tasks.NewMemoryQueue()
	}
	mail := mailbox.New()
	locks := lockmgr.New(a.cfg.Guardian.ToGuardianConfig().StaleThreshold)
	findingLog := findings.NewLog()

	runtimeFactory := func(agentID string) teamlead.WorkerRuntime {
		return agent.New(a.log.With("agent_id", agentID), a.router, a.bridge, agent.DefaultConfig())
	}

	return teamlead.New(a.log, a.router, queue, mail, locks, findingLog, runtimeFactory, a.cfg.TeamLead.ToTeamLeadConfig())
}

// openDurableQueue opens (and migrates) a SQLite-backed Task Queue at path,
// for engagements that need their task graph to survive a process restart.
func openDurableQueue(path string) (tasks.Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite task store %s: %w", path, err)
	}
	queue, err := tasks.NewSQLiteQueue(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return queue, nil
}
