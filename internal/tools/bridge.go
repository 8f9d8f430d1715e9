package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spark-corp/redshadow/internal/guardian"
	"github.com/spark-corp/redshadow/pkg/models"
)

// GuardianChecker is the subset of *guardian.Guardian the Bridge depends on,
// so tests can substitute a fake without building a real Guardian.
type GuardianChecker interface {
	Evaluate(command string, kind guardian.SessionKind) guardian.Validation
}

// Stats summarizes the Bridge's dispatch history.
type Stats struct {
	RegisteredServers int     `json:"registered_servers"`
	TotalExecutions   int     `json:"total_executions"`
	Successes         int     `json:"successes"`
	Failures          int     `json:"failures"`
	SuccessRate       float64 `json:"success_rate"`
}

// toolNamePrefix is stripped as a fallback when resolving a schema name to a
// registered server, matching the predecessor's naming convention for
// model-advertised tool names.
const toolNamePrefix = "redclaw_"

// Bridge is the registry + dispatcher over Tool Servers. It resolves a
// model's tool name to a server, authorizes the call through a Guardian, and
// dispatches. A Bridge is safe for concurrent use; dispatch is reentrant
// provided each registered Server is itself reentrant.
type Bridge struct {
	log      *slog.Logger
	guardian GuardianChecker
	session  guardian.SessionKind

	mu         sync.RWMutex
	servers    map[string]Server
	toolIndex  map[string]string // tool schema name -> server name
	validator  *SchemaValidator
	executions []models.ToolEvent
	successes  int
	failures   int
}

// New builds a Bridge. guardianChecker may be nil, in which case every call
// is dispatched unauthorized (used for tool servers that carry no risk of
// their own, e.g. pure read-only lookups in tests).
func New(log *slog.Logger, guardianChecker GuardianChecker, session guardian.SessionKind) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		log:       log,
		guardian:  guardianChecker,
		session:   session,
		servers:   make(map[string]Server),
		toolIndex: make(map[string]string),
	}
}

// RegisterServer adds a Server under serverName and indexes every tool
// schema it advertises at the time of registration.
func (b *Bridge) RegisterServer(serverName string, server Server) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.servers[serverName] = server
	for _, schema := range server.GetTools() {
		b.toolIndex[schema.Name] = serverName
	}
	b.validator = NewSchemaValidator(b.allToolsLocked())
}

func (b *Bridge) allToolsLocked() []models.ToolSchema {
	var out []models.ToolSchema
	for _, s := range b.servers {
		out = append(out, s.GetTools()...)
	}
	return out
}

// Tools concatenates get_tools() from every registered Server, the schema
// set the ReAct Runtime presents to the LLM Router.
func (b *Bridge) Tools() []models.ToolSchema {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []models.ToolSchema
	for _, s := range b.servers {
		out = append(out, s.GetTools()...)
	}
	return out
}

// Dispatch resolves call.Name to a server, authorizes it via the Guardian
// when the call carries a "command" argument, executes it, and records the
// outcome in the execution log.
func (b *Bridge) Dispatch(ctx context.Context, call Call) Result {
	started := time.Now()
	event := models.ToolEvent{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Stage:      models.ToolEventRequested,
		StartedAt:  started,
	}

	server, serverName, ok := b.resolve(call.Name)
	if !ok {
		res := Result{Tool: call.Name, Success: false, Error: fmt.Sprintf("no server registered for tool: %s", call.Name)}
		b.record(event, res)
		return res
	}

	if err := b.validateArgs(call); err != nil {
		res := Result{Tool: call.Name, Success: false, Error: fmt.Sprintf("argument validation failed: %v", err), Duration: time.Since(started)}
		b.record(event, res)
		return res
	}

	if cmd, isCmd := commandArg(call.Arguments); isCmd && b.guardian != nil {
		v := b.guardian.Evaluate(cmd, b.session)
		if !v.Allowed {
			res := Result{
				Tool:     call.Name,
				Success:  false,
				Error:    denialReason(v.Reasons),
				Metadata: map[string]any{"risk_level": string(v.Risk)},
				Duration: time.Since(started),
			}
			event.Stage = models.ToolEventDenied
			event.PolicyReason = res.Error
			b.record(event, res)
			return res
		}
	}

	event.Stage = models.ToolEventStarted
	res, err := server.ExecuteTool(ctx, call)
	res.Tool = call.Name
	res.Duration = time.Since(started)
	if err != nil {
		res.Success = false
		if res.Error == "" {
			res.Error = err.Error()
		}
	}
	res.Metadata = withDispatchMeta(res.Metadata, serverName)

	event.Stage = models.ToolEventSucceeded
	if !res.Success {
		event.Stage = models.ToolEventFailed
		event.Error = res.Error
	}
	b.record(event, res)
	return res
}

func withDispatchMeta(meta map[string]any, serverName string) map[string]any {
	if meta == nil {
		meta = make(map[string]any, 1)
	}
	meta["dispatched_by"] = serverName
	return meta
}

// resolve implements the three-step lookup: direct schema-name index, then
// redclaw_-prefix-stripped retry, then the tool name treated as a server
// name outright.
func (b *Bridge) resolve(toolName string) (Server, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if serverName, ok := b.toolIndex[toolName]; ok {
		if s, ok := b.servers[serverName]; ok {
			return s, serverName, true
		}
	}
	if stripped := strings.TrimPrefix(toolName, toolNamePrefix); stripped != toolName {
		if serverName, ok := b.toolIndex[stripped]; ok {
			if s, ok := b.servers[serverName]; ok {
				return s, serverName, true
			}
		}
	}
	if s, ok := b.servers[toolName]; ok {
		return s, toolName, true
	}
	return nil, "", false
}

func (b *Bridge) validateArgs(call Call) error {
	b.mu.RLock()
	v := b.validator
	b.mu.RUnlock()
	if v == nil {
		return nil
	}
	return v.Validate(call.Name, call.Arguments)
}

func commandArg(args map[string]any) (string, bool) {
	v, ok := args["command"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func denialReason(reasons []string) string {
	if len(reasons) == 0 {
		return "guardian denied: no reason recorded"
	}
	return "guardian denied: " + strings.Join(reasons, "; ")
}

func (b *Bridge) record(event models.ToolEvent, res Result) {
	event.FinishedAt = time.Now()
	event.Output = truncate(res.RawOutput, 2000)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.executions = append(b.executions, event)
	if res.Success {
		b.successes++
	} else {
		b.failures++
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Stats reports the Bridge's cumulative dispatch counters.
func (b *Bridge) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := b.successes + b.failures
	rate := 0.0
	if total > 0 {
		rate = float64(b.successes) / float64(total)
	}
	return Stats{
		RegisteredServers: len(b.servers),
		TotalExecutions:   total,
		Successes:         b.successes,
		Failures:          b.failures,
		SuccessRate:       rate,
	}
}

// ExecutionLog returns a snapshot of every dispatch recorded so far.
func (b *Bridge) ExecutionLog() []models.ToolEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.ToolEvent, len(b.executions))
	copy(out, b.executions)
	return out
}
