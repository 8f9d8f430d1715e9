package teamlead

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spark-corp/redshadow/internal/findings"
	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/internal/lockmgr"
	"github.com/spark-corp/redshadow/internal/mailbox"
	"github.com/spark-corp/redshadow/internal/tasks"
	"github.com/spark-corp/redshadow/pkg/models"
)

type fakeChatter struct {
	decomposeJSON string
	decomposeErr  error
	synthesis     string
	synthesisErr  error
}

func (f *fakeChatter) Chat(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	for _, m := range req.Messages {
		if m.Role == models.RoleSystem && strings.Contains(m.Content, "planning stage") {
			if f.decomposeErr != nil {
				return llm.ChatResponse{}, f.decomposeErr
			}
			return llm.ChatResponse{Content: f.decomposeJSON}, nil
		}
	}
	if f.synthesisErr != nil {
		return llm.ChatResponse{}, f.synthesisErr
	}
	summary := f.synthesis
	if summary == "" {
		summary = "executive summary"
	}
	return llm.ChatResponse{Content: summary}, nil
}

// fakeRuntime always succeeds with a canned final assistant event unless the
// objective contains "fail".
type fakeRuntime struct{}

func (fakeRuntime) RunTask(_ context.Context, objective string, _ map[string]any) <-chan models.Event {
	ch := make(chan models.Event, 1)
	if strings.Contains(objective, "fail") {
		ch <- models.NewEvent(models.EventKindSystem, "simulated failure").Final()
	} else {
		ch <- models.NewEvent(models.EventKindAssistant, "done: "+objective).Final()
	}
	close(ch)
	return ch
}

func newHarness(t *testing.T, chatter *fakeChatter) (*TeamLead, tasks.Queue, mailbox.Mailbox) {
	t.Helper()
	q := tasks.NewMemoryQueue()
	mb := mailbox.New()
	locks := lockmgr.New(0)
	fl := findings.NewLog()
	cfg := DefaultConfig()
	cfg.MonitorInterval = 10 * time.Millisecond
	cfg.ClaimPollInterval = 5 * time.Millisecond
	cfg.CleanupTimeout = 2 * time.Second

	tl := New(nil, chatter, q, mb, locks, fl, func(string) WorkerRuntime { return fakeRuntime{} }, cfg)
	return tl, q, mb
}

func TestRunSingleTaskHappyPath(t *testing.T) {
	chatter := &fakeChatter{decomposeJSON: `[{"id":"t1","description":"scan 10.0.0.5","dependencies":[],"type":"recon"}]`}
	tl, _, _ := newHarness(t, chatter)

	result, err := tl.Run(context.Background(), "scan 10.0.0.5")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Stats.Completed != 1 || result.Stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", result.Stats)
	}
	if result.ExecutiveSummary == "" {
		t.Fatal("expected a non-empty executive summary")
	}
}

func TestRunFallsBackToDefaultDecompositionOnParseFailure(t *testing.T) {
	chatter := &fakeChatter{decomposeJSON: "not json at all"}
	tl, _, _ := newHarness(t, chatter)

	result, err := tl.Run(context.Background(), "assess host X")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Stats.Total < 3 {
		t.Fatalf("expected default decomposition (recon/analysis/exploit), got total=%d", result.Stats.Total)
	}
}

func TestRunFallsBackToDefaultDecompositionOnLLMError(t *testing.T) {
	chatter := &fakeChatter{decomposeErr: assertErr}
	tl, _, _ := newHarness(t, chatter)

	result, err := tl.Run(context.Background(), "assess host X")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Stats.Total == 0 {
		t.Fatal("expected a non-empty default decomposition")
	}
}

func TestRunAppendsValidationTaskAfterExploitation(t *testing.T) {
	chatter := &fakeChatter{decomposeJSON: `[
		{"id":"recon-1","description":"recon","dependencies":[],"type":"recon"},
		{"id":"exploit-1","description":"exploit","dependencies":["recon-1"],"type":"exploitation"}
	]`}
	tl, q, _ := newHarness(t, chatter)

	_, err := tl.Run(context.Background(), "assess host X")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	all, _ := q.All(context.Background())
	foundValidation := false
	for _, task := range all {
		if task.Type == TypeValidation {
			foundValidation = true
			if len(task.Dependencies) != 1 || task.Dependencies[0] != "exploit-1" {
				t.Fatalf("expected validation task to depend on exploit-1, got %v", task.Dependencies)
			}
		}
	}
	if !foundValidation {
		t.Fatal("expected an auto-appended validation task")
	}
}

func TestRunRecordsFailureAndUnsatisfiedDependents(t *testing.T) {
	chatter := &fakeChatter{decomposeJSON: `[
		{"id":"t1","description":"this will fail","dependencies":[],"type":"recon"},
		{"id":"t2","description":"depends on t1","dependencies":["t1"],"type":"analysis"}
	]`}
	tl, _, _ := newHarness(t, chatter)

	result, err := tl.Run(context.Background(), "assess host X")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Stats.Failed != 1 {
		t.Fatalf("expected 1 failed task, got %+v", result.Stats)
	}
	if result.Stats.Pending != 1 {
		t.Fatalf("expected t2 to remain pending (unsatisfied dependency), got %+v", result.Stats)
	}
	if len(result.UnsatisfiedTasks) != 1 || result.UnsatisfiedTasks[0] != "t1" {
		t.Fatalf("expected UnsatisfiedTasks=[t1], got %v", result.UnsatisfiedTasks)
	}
}

func TestRunReleasesLocksOnCleanup(t *testing.T) {
	chatter := &fakeChatter{decomposeJSON: `[{"id":"t1","description":"scan","dependencies":[],"type":"recon"}]`}
	tl, _, _ := newHarness(t, chatter)
	tl.locks.Acquire("10.0.0.5", "worker-1", 0)

	_, err := tl.Run(context.Background(), "scan 10.0.0.5")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if tl.locks.IsLocked("10.0.0.5") {
		t.Fatal("expected all locks released after engagement cleanup")
	}
}

func TestAppendValidatorIfNeededSkipsWhenNoExploitation(t *testing.T) {
	in := []*models.Task{{ID: "t1", Type: TypeRecon}}
	out := appendValidatorIfNeeded(in)
	if len(out) != 1 {
		t.Fatalf("expected no validator appended, got %d tasks", len(out))
	}
}

func TestAppendValidatorIfNeededSkipsWhenAlreadyPresent(t *testing.T) {
	in := []*models.Task{
		{ID: "e1", Type: TypeExploitation},
		{ID: "v1", Type: TypeValidation},
	}
	out := appendValidatorIfNeeded(in)
	if len(out) != 2 {
		t.Fatalf("expected no additional validator, got %d tasks", len(out))
	}
}

func TestParseDecompositionExtractsArrayFromProse(t *testing.T) {
	content := "Here is the plan:\n```json\n[{\"id\":\"a\",\"description\":\"d\",\"dependencies\":[],\"type\":\"recon\"}]\n```\nDone."
	tasksOut, err := parseDecomposition(content)
	if err != nil {
		t.Fatalf("parseDecomposition error: %v", err)
	}
	if len(tasksOut) != 1 || tasksOut[0].ID != "a" {
		t.Fatalf("unexpected parse result: %+v", tasksOut)
	}
}

func TestParseDecompositionRejectsMissingFields(t *testing.T) {
	_, err := parseDecomposition(`[{"description":"no id"}]`)
	if err == nil {
		t.Fatal("expected an error for a task missing id")
	}
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

var assertErr = staticErr("llm unavailable")
