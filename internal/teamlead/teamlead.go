// Package teamlead implements the Team Lead: the single per-engagement
// orchestrator that decomposes an objective into a task graph, spawns
// worker agents to execute it, monitors their progress through the
// Mailbox, and synthesizes a final report once the Task Queue drains.
package teamlead

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/spark-corp/redshadow/internal/findings"
	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/internal/lockmgr"
	"github.com/spark-corp/redshadow/internal/mailbox"
	"github.com/spark-corp/redshadow/internal/tasks"
	"github.com/spark-corp/redshadow/pkg/models"
)

// TaskType values the Team Lead assigns during decomposition. Validation is
// the Python predecessor's "validator" worker, modeled here as a task type
// rather than a new component.
const (
	TypeRecon        = "recon"
	TypeAnalysis     = "analysis"
	TypeExploitation = "exploitation"
	TypeValidation   = "validation"
)

// LeadAgentID is the Mailbox recipient name the Team Lead registers under.
const LeadAgentID = "team-lead"

// Chatter is the subset of *llm.Router the Team Lead depends on for
// decomposition and synthesis — no tool calls are ever issued from here.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
}

// WorkerRuntime is the subset of *agent.Runtime a spawned worker drives.
type WorkerRuntime interface {
	RunTask(ctx context.Context, objective string, taskContext map[string]any) <-chan models.Event
}

// RuntimeFactory builds a fresh WorkerRuntime for one worker's lifetime. The
// Team Lead calls it once per claimed task so each ReAct conversation stays
// isolated, per spec §5's "conversation is owned by that runtime alone."
type RuntimeFactory func(agentID string) WorkerRuntime

// Config tunes the orchestration loop's bounds.
type Config struct {
	MaxWorkers        int
	MonitorInterval   time.Duration
	CleanupTimeout    time.Duration
	ClaimPollInterval time.Duration
}

// DefaultConfig matches spec §5's documented defaults: a 2 s monitor tick
// and a 10 s bounded cleanup wait.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:        8,
		MonitorInterval:   2 * time.Second,
		CleanupTimeout:    10 * time.Second,
		ClaimPollInterval: 250 * time.Millisecond,
	}
}

// Result is the Team Lead's synthesized engagement outcome.
type Result struct {
	ExecutiveSummary string           `json:"executive_summary"`
	Stats            tasks.Summary    `json:"stats"`
	Findings         []models.Finding `json:"findings"`
	UnsatisfiedTasks []string         `json:"unsatisfied_tasks,omitempty"`
}

// TeamLead is the single orchestrator for one engagement. It owns the Task
// Queue, Mailbox, and Lock Manager lifecycles for that engagement; workers
// receive references but never own them (spec §5's "no cyclic references").
type TeamLead struct {
	log        *slog.Logger
	router     Chatter
	queue      tasks.Queue
	mail       mailbox.Mailbox
	locks      *lockmgr.Manager
	findingLog *findings.Log
	newRuntime RuntimeFactory
	cfg        Config

	mu       sync.Mutex
	progress map[string]int // task type -> completed count, for status reporting
}

// New builds a TeamLead over the given coordination primitives.
func New(log *slog.Logger, router Chatter, queue tasks.Queue, mail mailbox.Mailbox, locks *lockmgr.Manager, findingLog *findings.Log, newRuntime RuntimeFactory, cfg Config) *TeamLead {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 2 * time.Second
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 10 * time.Second
	}
	if cfg.ClaimPollInterval <= 0 {
		cfg.ClaimPollInterval = 250 * time.Millisecond
	}
	return &TeamLead{
		log:        log,
		router:     router,
		queue:      queue,
		mail:       mail,
		locks:      locks,
		findingLog: findingLog,
		newRuntime: newRuntime,
		cfg:        cfg,
		progress:   make(map[string]int),
	}
}

// Run executes objective end-to-end: decompose, enqueue, spawn workers,
// monitor to completion, synthesize, and clean up. It blocks until the
// engagement finishes or ctx is cancelled.
func (tl *TeamLead) Run(ctx context.Context, objective string) (Result, error) {
	taskList, err := tl.decompose(ctx, objective)
	if err != nil {
		return Result{}, fmt.Errorf("teamlead: decompose: %w", err)
	}
	taskList = appendValidatorIfNeeded(taskList)

	for _, t := range taskList {
		if err := tl.queue.Add(ctx, t); err != nil {
			return Result{}, fmt.Errorf("teamlead: enqueue %s: %w", t.ID, err)
		}
	}

	tl.mail.Register(LeadAgentID)
	defer tl.mail.Unregister(LeadAgentID)

	workerCount := len(taskList)
	if workerCount > tl.cfg.MaxWorkers {
		workerCount = tl.cfg.MaxWorkers
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup
	agentIDs := make([]string, 0, workerCount)
	for i := 0; i < workerCount; i++ {
		agentID := fmt.Sprintf("worker-%d", i+1)
		agentIDs = append(agentIDs, agentID)
		tl.mail.Register(agentID)
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			tl.runWorker(workerCtx, agentID)
		}(agentID)
	}

	tl.monitor(ctx)
	cancelWorkers()
	tl.cleanup(ctx, agentIDs, &wg)

	summary, _ := tl.queue.Summary(ctx)
	allTasks, _ := tl.queue.All(ctx)
	unsatisfied := unsatisfiedIDs(allTasks)

	summaryText, err := tl.synthesize(ctx, allTasks)
	if err != nil {
		tl.log.Warn("synthesis fell back to a local summary", "error", err)
		summaryText = fallbackSummary(summary, unsatisfied)
	}

	return Result{
		ExecutiveSummary: summaryText,
		Stats:            summary,
		Findings:         tl.findingLog.All(),
		UnsatisfiedTasks: unsatisfied,
	}, nil
}

func unsatisfiedIDs(all []*models.Task) []string {
	var out []string
	for _, t := range all {
		if t.Status == models.TaskFailed {
			out = append(out, t.ID)
		}
	}
	sort.Strings(out)
	return out
}

func fallbackSummary(s tasks.Summary, unsatisfied []string) string {
	msg := fmt.Sprintf("Engagement finished: %d/%d tasks completed, %d failed.", s.Completed, s.Total, s.Failed)
	if len(unsatisfied) > 0 {
		msg += fmt.Sprintf(" Unresolved branches: %v.", unsatisfied)
	}
	return msg
}

// runWorker implements one worker's loop: claim, run a ReAct task, report
// the outcome, repeat until the queue is drained or a terminate message
// arrives for this agent.
func (tl *TeamLead) runWorker(ctx context.Context, agentID string) {
	for {
		if ctx.Err() != nil {
			return
		}
		if tl.receivedTerminate(ctx, agentID) {
			return
		}

		task, err := tl.queue.Claim(ctx, agentID)
		if err != nil {
			tl.log.Error("claim failed", "agent", agentID, "error", err)
			return
		}
		if task == nil {
			if tl.done(ctx) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(tl.cfg.ClaimPollInterval):
			}
			continue
		}

		tl.runOneTask(ctx, agentID, task)
	}
}

func (tl *TeamLead) receivedTerminate(ctx context.Context, agentID string) bool {
	msgs, _ := tl.mail.Receive(ctx, agentID, true)
	for _, m := range msgs {
		if m.Kind == models.MsgTerminate {
			return true
		}
	}
	return false
}

func (tl *TeamLead) runOneTask(ctx context.Context, agentID string, task *models.Task) {
	taskContext := tl.buildTaskContext(task)
	runtime := tl.newRuntime(agentID)

	var final models.Event
	for ev := range runtime.RunTask(ctx, task.Description, taskContext) {
		final = ev
	}

	if final.Kind == models.EventKindAssistant {
		_ = tl.queue.Complete(ctx, task.ID, final.Content)
		tl.recordCompletionFinding(task, final.Content)
		_ = tl.mail.Send(ctx, agentID, LeadAgentID, models.MsgTaskComplete, map[string]any{
			"task_id": task.ID,
			"summary": final.Content,
		})
		return
	}

	reason := final.Content
	if reason == "" {
		reason = "worker produced no final event"
	}
	_ = tl.queue.Fail(ctx, task.ID, reason)
	_ = tl.mail.Send(ctx, agentID, LeadAgentID, models.MsgError, map[string]any{
		"task_id": task.ID,
		"error":   reason,
	})
}

func (tl *TeamLead) recordCompletionFinding(task *models.Task, summary string) {
	tl.findingLog.Add(models.Finding{
		ID:          task.ID + "-finding",
		Phase:       task.Type,
		Title:       fmt.Sprintf("%s result: %s", task.Type, task.ID),
		Severity:    models.SeverityInfo,
		Description: summary,
		CausedBy:    append([]string(nil), task.Dependencies...),
		Timestamp:   time.Now(),
	})
}

// buildTaskContext enriches the task description with peer findings so far
// and a per-type tool hint, per spec §4.8 step 3.
func (tl *TeamLead) buildTaskContext(task *models.Task) map[string]any {
	ctx := map[string]any{
		"task_type": task.Type,
		"task_id":   task.ID,
	}
	if hint := toolHintFor(task.Type); hint != "" {
		ctx["tool_hint"] = hint
	}
	known := tl.findingLog.All()
	if len(known) > 0 {
		titles := make([]string, 0, len(known))
		for _, f := range known {
			titles = append(titles, fmt.Sprintf("[%s] %s", f.Severity, f.Title))
		}
		ctx["known_findings"] = titles
	}
	return ctx
}

func toolHintFor(taskType string) string {
	switch taskType {
	case TypeRecon:
		return "prefer nmap_scan and dns lookup tools for host/service discovery"
	case TypeAnalysis:
		return "prefer nuclei_scan for vulnerability templates against discovered services"
	case TypeExploitation:
		return "validate scope before any active exploitation attempt"
	case TypeValidation:
		return "re-run the minimal check needed to confirm a prior finding, do not re-exploit"
	default:
		return ""
	}
}

// monitor drains the Team Lead's mailbox on a fixed tick until the Task
// Queue reports every task done or ctx is cancelled.
func (tl *TeamLead) monitor(ctx context.Context) {
	ticker := time.NewTicker(tl.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		if tl.done(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tl.drainMailbox(ctx)
		}
	}
}

// done reports whether the engagement has nothing left to do: every task is
// terminal, or every remaining pending task is permanently blocked by a
// failed dependency (spec §4.8's "dependents remain pending indefinitely").
func (tl *TeamLead) done(ctx context.Context) bool {
	summary, _ := tl.queue.Summary(ctx)
	if summary.AllDone() {
		return true
	}
	all, err := tl.queue.All(ctx)
	if err != nil {
		return false
	}
	return engagementStuck(all)
}

// blockedTasks computes, via transitive closure, every pending task that can
// never become claimable because a dependency (or a dependency's dependency)
// has permanently failed.
func blockedTasks(all []*models.Task) map[string]bool {
	status := make(map[string]models.TaskStatus, len(all))
	for _, t := range all {
		status[t.ID] = t.Status
	}
	blocked := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, t := range all {
			if t.Status != models.TaskPending || blocked[t.ID] {
				continue
			}
			for _, dep := range t.Dependencies {
				if status[dep] == models.TaskFailed || blocked[dep] {
					blocked[t.ID] = true
					changed = true
					break
				}
			}
		}
	}
	return blocked
}

// engagementStuck reports whether no task is running and every remaining
// pending task is permanently blocked — i.e. no further progress is
// possible without external intervention.
func engagementStuck(all []*models.Task) bool {
	blocked := blockedTasks(all)
	for _, t := range all {
		if t.Status == models.TaskRunning {
			return false
		}
		if t.Status == models.TaskPending && !blocked[t.ID] {
			return false
		}
	}
	return true
}

// drainMailbox reads the Team Lead's pending messages, prioritizing
// critical_finding messages first per the priority field the predecessor's
// mailbox carried, then everything else in arrival order.
func (tl *TeamLead) drainMailbox(ctx context.Context) {
	msgs, err := tl.mail.Receive(ctx, LeadAgentID, true)
	if err != nil || len(msgs) == 0 {
		return
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		ci, cj := msgs[i].Kind == models.MsgCriticalFinding, msgs[j].Kind == models.MsgCriticalFinding
		if ci != cj {
			return ci
		}
		return msgs[i].Priority > msgs[j].Priority
	})

	tl.mu.Lock()
	defer tl.mu.Unlock()
	for _, m := range msgs {
		switch m.Kind {
		case models.MsgTaskComplete:
			tl.progress["completed"]++
		case models.MsgError:
			tl.progress["failed"]++
		case models.MsgCriticalFinding:
			tl.recordCriticalFinding(m)
		}
	}
}

func (tl *TeamLead) recordCriticalFinding(m models.AgentMessage) {
	title, _ := m.Payload["title"].(string)
	desc, _ := m.Payload["description"].(string)
	if title == "" {
		title = "critical finding reported by " + m.From
	}
	tl.findingLog.Add(models.Finding{
		ID:          fmt.Sprintf("critical-%d", m.ID),
		Phase:       "exploitation",
		Title:       title,
		Severity:    models.SeverityCritical,
		Description: desc,
		Timestamp:   m.Ts,
	})
}

// cleanup implements spec §4.8 step 6: broadcast terminate, wait bounded
// for graceful worker exit, then release every remaining lock.
func (tl *TeamLead) cleanup(ctx context.Context, agentIDs []string, wg *sync.WaitGroup) {
	_ = tl.mail.Broadcast(ctx, LeadAgentID, models.MsgTerminate, nil)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(tl.cfg.CleanupTimeout):
		tl.log.Warn("cleanup timed out waiting for workers; abandoning stragglers")
	}

	for _, id := range agentIDs {
		tl.mail.Unregister(id)
	}
	live := make(map[string]bool) // no workers are considered live post-cleanup
	tl.locks.Cleanup(live)
	tl.locks.ReleaseAll()
}

var errEmptyDecomposition = errors.New("teamlead: decomposition produced no tasks")
