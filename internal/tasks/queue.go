// Package tasks implements the durable task queue that backs Team Lead
// decomposition: dependency-gated claiming, atomic assignment, and crash
// recovery for orphaned running tasks.
package tasks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/spark-corp/redshadow/pkg/models"
)

// ErrNotFound is returned when a task id has no matching record.
var ErrNotFound = errors.New("tasks: not found")

// Summary reports queue-wide progress, the shape Team Lead polls to decide
// when an engagement is done.
type Summary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// AllDone reports whether every task has reached a terminal state.
func (s Summary) AllDone() bool {
	return s.Total > 0 && s.Pending == 0 && s.Running == 0
}

// Queue is the durable ordered store of Tasks. Implementations must make
// Claim atomic under concurrent callers: at most one Claim call ever returns
// a given task.
type Queue interface {
	Add(ctx context.Context, task *models.Task) error
	Claim(ctx context.Context, agentID string) (*models.Task, error)
	Complete(ctx context.Context, id string, result string) error
	Fail(ctx context.Context, id string, errMsg string) error
	Get(ctx context.Context, id string) (*models.Task, error)
	All(ctx context.Context) ([]*models.Task, error)
	Completed(ctx context.Context) ([]*models.Task, error)
	Summary(ctx context.Context) (Summary, error)
	// RecoverOrphaned transitions every running task whose assignee is not
	// in liveAgents back to pending, per the crash-recovery contract.
	RecoverOrphaned(ctx context.Context, liveAgents map[string]bool) (int, error)
	Reset(ctx context.Context) error
}

// MemoryQueue is an in-process Queue implementation, the reference backend
// used by tests and by single-process engagements.
type MemoryQueue struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
	order []string // insertion order, stable tiebreak for equal priority/created_at
}

// NewMemoryQueue constructs an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{tasks: make(map[string]*models.Task)}
}

func (q *MemoryQueue) Add(_ context.Context, task *models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if _, exists := q.tasks[task.ID]; !exists {
		q.order = append(q.order, task.ID)
	}
	q.tasks[task.ID] = task.Clone()
	return nil
}

// Claim atomically selects the highest-priority pending task whose
// dependencies are all complete, assigns it, and returns a copy.
func (q *MemoryQueue) Claim(_ context.Context, agentID string) (*models.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	candidates := make([]*models.Task, 0)
	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status != models.TaskPending {
			continue
		}
		if !q.dependenciesComplete(t) {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	chosen := candidates[0]
	now := time.Now()
	chosen.Status = models.TaskRunning
	chosen.Assignee = agentID
	chosen.StartedAt = &now
	return chosen.Clone(), nil
}

func (q *MemoryQueue) dependenciesComplete(t *models.Task) bool {
	for _, dep := range t.Dependencies {
		d, ok := q.tasks[dep]
		if !ok || d.Status != models.TaskComplete {
			return false
		}
	}
	return true
}

func (q *MemoryQueue) Complete(_ context.Context, id string, result string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	t.Status = models.TaskComplete
	t.Result = result
	t.CompletedAt = &now
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, id string, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	t.Status = models.TaskFailed
	t.Error = errMsg
	t.CompletedAt = &now
	return nil
}

func (q *MemoryQueue) Get(_ context.Context, id string) (*models.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (q *MemoryQueue) All(_ context.Context) ([]*models.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*models.Task, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.tasks[id].Clone())
	}
	return out, nil
}

func (q *MemoryQueue) Completed(ctx context.Context) ([]*models.Task, error) {
	all, _ := q.All(ctx)
	out := make([]*models.Task, 0)
	for _, t := range all {
		if t.Status == models.TaskComplete {
			out = append(out, t)
		}
	}
	return out, nil
}

func (q *MemoryQueue) Summary(_ context.Context) (Summary, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Summary
	for _, id := range q.order {
		t := q.tasks[id]
		s.Total++
		switch t.Status {
		case models.TaskPending:
			s.Pending++
		case models.TaskRunning:
			s.Running++
		case models.TaskComplete:
			s.Completed++
		case models.TaskFailed:
			s.Failed++
		}
	}
	return s, nil
}

// RecoverOrphaned re-pends every running task whose assignee is absent from
// liveAgents. Used on Team Lead restart to repair tasks left running by a
// crashed worker.
func (q *MemoryQueue) RecoverOrphaned(_ context.Context, liveAgents map[string]bool) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	recovered := 0
	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status != models.TaskRunning {
			continue
		}
		if liveAgents[t.Assignee] {
			continue
		}
		t.Status = models.TaskPending
		t.Assignee = ""
		t.StartedAt = nil
		recovered++
	}
	return recovered, nil
}

func (q *MemoryQueue) Reset(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = make(map[string]*models.Task)
	q.order = nil
	return nil
}
