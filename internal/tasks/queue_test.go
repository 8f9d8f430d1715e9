package tasks

import (
	"context"
	"sync"
	"testing"

	"github.com/spark-corp/redshadow/pkg/models"
)

func TestClaimIsExclusiveUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	for i := 0; i < 20; i++ {
		_ = q.Add(ctx, &models.Task{ID: idOf(i), Description: "d"})
	}

	var wg sync.WaitGroup
	claimed := make([][]*models.Task, 8)
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, _ := q.Claim(ctx, idOf(w))
				if task == nil {
					return
				}
				claimed[w] = append(claimed[w], task)
			}
		}()
	}
	wg.Wait()

	seen := map[string]int{}
	for _, list := range claimed {
		for _, task := range list {
			seen[task.ID]++
		}
	}
	if len(seen) != 20 {
		t.Fatalf("expected 20 distinct tasks claimed, got %d", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("task %s claimed %d times, want 1", id, n)
		}
	}
}

func TestDependencyGating(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_ = q.Add(ctx, &models.Task{ID: "T1", Dependencies: nil})
	_ = q.Add(ctx, &models.Task{ID: "T2", Dependencies: []string{"T1"}})

	t1, _ := q.Claim(ctx, "agentA")
	if t1 != nil && t1.ID == "T2" {
		t.Fatalf("T2 claimed before T1 completed")
	}
	if t1 == nil || t1.ID != "T1" {
		t.Fatalf("expected T1 to be claimed first, got %+v", t1)
	}

	if task, _ := q.Claim(ctx, "agentB"); task != nil {
		t.Fatalf("T2 should not be claimable while T1 is only running, got %+v", task)
	}

	if err := q.Complete(ctx, "T1", "ok"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	t2, _ := q.Claim(ctx, "agentB")
	if t2 == nil || t2.ID != "T2" {
		t.Fatalf("expected T2 claimable after T1 completes, got %+v", t2)
	}
}

func TestFailedDependencyNeverSatisfiesDependents(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_ = q.Add(ctx, &models.Task{ID: "T1"})
	_ = q.Add(ctx, &models.Task{ID: "T2", Dependencies: []string{"T1"}})

	_, _ = q.Claim(ctx, "agentA")
	_ = q.Fail(ctx, "T1", "boom")

	if task, _ := q.Claim(ctx, "agentB"); task != nil {
		t.Fatalf("T2 became claimable despite failed dependency: %+v", task)
	}
}

func TestRecoverOrphanedRependsCrashedWorkerTasks(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_ = q.Add(ctx, &models.Task{ID: "T1"})
	_, _ = q.Claim(ctx, "agent-dead")

	n, err := q.RecoverOrphaned(ctx, map[string]bool{"agent-alive": true})
	if err != nil {
		t.Fatalf("RecoverOrphaned: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered = %d, want 1", n)
	}
	task, _ := q.Get(ctx, "T1")
	if task.Status != models.TaskPending {
		t.Errorf("status = %v, want pending", task.Status)
	}
	if task.Assignee != "" {
		t.Errorf("assignee = %q, want empty", task.Assignee)
	}
}

func TestCompleteThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_ = q.Add(ctx, &models.Task{ID: "T1"})
	if err := q.Complete(ctx, "T1", "the-result"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	task, err := q.Get(ctx, "T1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.Status != models.TaskComplete || task.Result != "the-result" {
		t.Errorf("task = %+v, want status=complete result=the-result", task)
	}
}

func idOf(i int) string {
	const letters = "0123456789abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return "id-" + string(letters[i])
	}
	return "id-x"
}
