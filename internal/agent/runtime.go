// Package agent implements the ReAct Agent Runtime: a bounded-iteration
// loop that calls an LLM provider through the Router, dispatches tool
// invocations through the Tool Bridge, and feeds results back into the
// conversation until the model signals completion.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/internal/tools"
	"github.com/spark-corp/redshadow/pkg/models"
)

// HealthStatus mirrors the Router's reachability classification at the
// Runtime level.
type HealthStatus string

const (
	HealthReady          HealthStatus = "ready"
	HealthDegraded       HealthStatus = "degraded"
	HealthNotInitialized HealthStatus = "not_initialized"
)

// Chatter is the subset of *llm.Router the Runtime depends on.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
	HealthCheck(ctx context.Context) map[string]llm.HealthStatus
}

// ToolDispatcher is the subset of *tools.Bridge the Runtime depends on.
type ToolDispatcher interface {
	Tools() []models.ToolSchema
	Dispatch(ctx context.Context, call tools.Call) tools.Result
}

// Config tunes one Runtime's bounds, grounded on spec defaults.
type Config struct {
	MaxIterations  int
	Timeout        time.Duration
	OutputMaxChars int
	TrimThreshold  float64 // fraction of context limit that triggers mid-loop trim (default 0.60)
	ContextLimit   int
}

// DefaultConfig returns the Runtime's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  30,
		Timeout:        600 * time.Second,
		OutputMaxChars: 3000,
		TrimThreshold:  0.60,
		ContextLimit:   128_000,
	}
}

// State is the Runtime's observable status snapshot.
type State struct {
	Initialized        bool
	Health              HealthStatus
	HealthPerProvider   map[string]llm.HealthStatus
	TotalTasks          int
	LastTaskIterations  int
	Conversation        []models.Message
}

// Runtime is a single-agent ReAct loop over one LLM Router and one Tool
// Bridge.
type Runtime struct {
	log      *slog.Logger
	router   Chatter
	bridge   ToolDispatcher
	cfg      Config

	mu           sync.Mutex
	initialized  bool
	health       HealthStatus
	perProvider  map[string]llm.HealthStatus
	totalTasks   int
	lastIters    int
	conversation []models.Message
}

// New builds a Runtime over the given Router and Tool Bridge.
func New(log *slog.Logger, router Chatter, bridge ToolDispatcher, cfg Config) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 600 * time.Second
	}
	if cfg.OutputMaxChars <= 0 {
		cfg.OutputMaxChars = 3000
	}
	if cfg.TrimThreshold <= 0 {
		cfg.TrimThreshold = 0.60
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = 128_000
	}
	return &Runtime{log: log, router: router, bridge: bridge, cfg: cfg, health: HealthNotInitialized}
}

// ensureInitialized performs a one-time health check against the Router,
// per spec §4.3's initialization step. A degraded provider set is allowed
// to proceed — a task may still succeed once a provider recovers.
func (r *Runtime) ensureInitialized(ctx context.Context) {
	r.mu.Lock()
	already := r.initialized
	r.mu.Unlock()
	if already {
		return
	}

	statuses := r.router.HealthCheck(ctx)
	health := HealthReady
	for _, s := range statuses {
		if s != llm.HealthReady {
			health = HealthDegraded
			break
		}
	}
	if len(statuses) == 0 {
		health = HealthNotInitialized
	}

	r.mu.Lock()
	r.initialized = true
	r.health = health
	r.perProvider = statuses
	r.mu.Unlock()
}

// RunTask executes one objective through the bounded ReAct loop, streaming
// Events on the returned channel. The channel is closed after exactly one
// Event with IsFinal=true has been sent.
func (r *Runtime) RunTask(ctx context.Context, objective string, taskContext map[string]any) <-chan models.Event {
	events := make(chan models.Event, 8)

	go func() {
		defer close(events)
		r.runLoop(ctx, objective, taskContext, events)
	}()

	return events
}

func (r *Runtime) runLoop(ctx context.Context, objective string, taskContext map[string]any, events chan<- models.Event) {
	r.ensureInitialized(ctx)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	conversation := []models.Message{
		{Role: models.RoleSystem, Content: pentestSystemPrompt(taskContext)},
		{Role: models.RoleUser, Content: objective},
	}
	toolSchemas := r.bridge.Tools()

	r.mu.Lock()
	r.totalTasks++
	r.mu.Unlock()

	iteration := 0
	for ; iteration < r.cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			r.emitFinal(events, models.EventKindSystem, "task timed out before completion", iteration)
			r.recordIterations(iteration)
			return
		}

		conversation = r.trimIfLarge(conversation, iteration)

		resp, err := r.router.Chat(ctx, llm.ChatRequest{Messages: conversation, Tools: toolSchemas})
		if err != nil {
			r.emitFinal(events, models.EventKindSystem, "All LLM providers failed — check health", iteration)
			r.recordIterations(iteration + 1)
			return
		}

		if resp.Content != "" {
			events <- models.NewEvent(models.EventKindAssistant, resp.Content).WithIteration(iteration)
		}

		if len(resp.ToolCalls) == 0 {
			events <- models.NewEvent(models.EventKindAssistant, resp.Content).WithIteration(iteration).Final()
			r.recordIterations(iteration + 1)
			r.saveConversation(conversation)
			return
		}

		assistantMsg := models.Message{Role: models.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
		conversation = append(conversation, assistantMsg)

		var toolResults []models.ToolResult
		for _, tc := range resp.ToolCalls {
			events <- models.NewEvent(models.EventKindThinking, fmt.Sprintf("calling %s", tc.Name)).WithIteration(iteration)

			args := map[string]any{}
			if len(tc.Input) > 0 {
				_ = json.Unmarshal(tc.Input, &args)
			}
			result := r.bridge.Dispatch(ctx, tools.Call{ID: tc.ID, Name: tc.Name, Arguments: args})

			display := truncateDisplay(result.RawOutput, 2000)
			if result.Error != "" {
				display = result.Error
			}
			events <- models.NewEvent(models.EventKindTool, display).
				WithIteration(iteration).
				WithMeta("tool_call_id", tc.ID).
				WithMeta("success", result.Success)

			content := compressOutput(result, r.cfg.OutputMaxChars)
			toolResults = append(toolResults, models.ToolResult{ToolCallID: tc.ID, Content: content, IsError: !result.Success})
		}
		conversation = append(conversation, models.Message{Role: models.RoleTool, ToolResults: toolResults})
		conversation = llm.RepairTranscript(conversation)
	}

	r.emitFinal(events, models.EventKindSystem, fmt.Sprintf("max_iterations (%d) reached", r.cfg.MaxIterations), iteration)
	r.recordIterations(iteration)
	r.saveConversation(conversation)
}

func (r *Runtime) emitFinal(events chan<- models.Event, kind models.EventKind, content string, iteration int) {
	events <- models.NewEvent(kind, content).WithIteration(iteration).Final()
}

func (r *Runtime) recordIterations(n int) {
	r.mu.Lock()
	r.lastIters = n
	r.mu.Unlock()
}

func (r *Runtime) saveConversation(conv []models.Message) {
	r.mu.Lock()
	r.conversation = conv
	r.mu.Unlock()
}

// trimIfLarge implements spec §4.3 step 1: once the rough token estimate
// exceeds TrimThreshold of the context limit, keep the first two and last
// two messages and replace the middle with one synthetic system note.
func (r *Runtime) trimIfLarge(conversation []models.Message, iteration int) []models.Message {
	if estimateChars(conversation)/4 <= int(float64(r.cfg.ContextLimit)*r.cfg.TrimThreshold) {
		return conversation
	}
	if len(conversation) <= 4 {
		return conversation
	}
	trimmedCount := len(conversation) - 4
	note := models.Message{
		Role:    models.RoleSystem,
		Content: fmt.Sprintf("[%d messages trimmed. Iteration: %d. Continue task.]", trimmedCount, iteration),
	}
	out := make([]models.Message, 0, 5)
	out = append(out, conversation[0], conversation[1])
	out = append(out, note)
	out = append(out, conversation[len(conversation)-2], conversation[len(conversation)-1])
	return out
}

func estimateChars(messages []models.Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
		for _, tc := range m.ToolCalls {
			n += len(tc.Name) + len(tc.Input)
		}
		for _, tr := range m.ToolResults {
			n += len(tr.Content)
		}
	}
	return n
}

func truncateDisplay(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// pentestSystemPrompt renders the system prompt for one task given its
// enriched context (peer findings, per-type tool hints). Prompt content is
// treated as an opaque string by the rest of the system (spec §1).
func pentestSystemPrompt(taskContext map[string]any) string {
	var b strings.Builder
	b.WriteString("You are an autonomous penetration-testing agent. ")
	b.WriteString("Use the available tools to accomplish the objective, respecting engagement scope. ")
	b.WriteString("When you have a final answer, respond without further tool calls.")
	if len(taskContext) == 0 {
		return b.String()
	}
	keys := make([]string, 0, len(taskContext))
	for k := range taskContext {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	b.WriteString("\n\nContext:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, taskContext[k])
	}
	return b.String()
}

// State returns a snapshot of the Runtime's observable status.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv := make([]models.Message, len(r.conversation))
	copy(conv, r.conversation)
	return State{
		Initialized:        r.initialized,
		Health:             r.health,
		HealthPerProvider:  r.perProvider,
		TotalTasks:         r.totalTasks,
		LastTaskIterations: r.lastIters,
		Conversation:       conv,
	}
}

// ResetConversation clears the Runtime's retained conversation history.
func (r *Runtime) ResetConversation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversation = nil
}

// Shutdown resets the Runtime's health back to not_initialized, forcing the
// next RunTask to re-probe the Router.
func (r *Runtime) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = false
	r.health = HealthNotInitialized
}

// NewAgentID generates a unique worker/runtime identifier, used by the Team
// Lead when spawning workers.
func NewAgentID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
