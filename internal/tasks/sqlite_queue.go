package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spark-corp/redshadow/pkg/models"
)

// SQLiteQueue is a database/sql-backed Queue, durable across process
// restarts. It uses a single-writer transaction per mutating call to keep
// Claim linearizable, the same pattern the session locker uses for its
// DB-backed locks.
type SQLiteQueue struct {
	db *sql.DB
}

// NewSQLiteQueue opens (and migrates) the task table on db. db is expected
// to be a *sql.DB created with the modernc.org/sqlite driver.
func NewSQLiteQueue(db *sql.DB) (*SQLiteQueue, error) {
	q := &SQLiteQueue{db: db}
	if err := q.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("tasks: migrate: %w", err)
	}
	return q, nil
}

func (q *SQLiteQueue) migrate(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	dependencies TEXT NOT NULL DEFAULT '[]',
	priority INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	assignee TEXT NOT NULL DEFAULT '',
	result TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`)
	return err
}

func (q *SQLiteQueue) Add(ctx context.Context, task *models.Task) error {
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	deps, _ := json.Marshal(task.Dependencies)
	_, err := q.db.ExecContext(ctx, `
INSERT INTO tasks (id, description, type, dependencies, priority, status, assignee, result, error, created_at, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	description=excluded.description, type=excluded.type, dependencies=excluded.dependencies,
	priority=excluded.priority, status=excluded.status, assignee=excluded.assignee,
	result=excluded.result, error=excluded.error, started_at=excluded.started_at, completed_at=excluded.completed_at
`, task.ID, task.Description, task.Type, string(deps), task.Priority, task.Status,
		task.Assignee, task.Result, task.Error, task.CreatedAt.Format(time.RFC3339Nano),
		nullableTime(task.StartedAt), nullableTime(task.CompletedAt))
	return err
}

// Claim runs the dependency-gated selection inside one transaction so the
// SELECT-then-UPDATE pair is atomic, mirroring the "SELECT FOR UPDATE SKIP
// LOCKED" pattern of a transactional store without requiring a server RDBMS.
func (q *SQLiteQueue) Claim(ctx context.Context, agentID string) (*models.Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, description, type, dependencies, priority, status, assignee, result, error, created_at, started_at, completed_at FROM tasks WHERE status = ?`, models.TaskPending)
	if err != nil {
		return nil, err
	}
	pending, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	completeRows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE status = ?`, models.TaskComplete)
	if err != nil {
		return nil, err
	}
	completeIDs := map[string]bool{}
	for completeRows.Next() {
		var id string
		if err := completeRows.Scan(&id); err != nil {
			completeRows.Close()
			return nil, err
		}
		completeIDs[id] = true
	}
	completeRows.Close()

	var claimable []*models.Task
	for _, t := range pending {
		ready := true
		for _, dep := range t.Dependencies {
			if !completeIDs[dep] {
				ready = false
				break
			}
		}
		if ready {
			claimable = append(claimable, t)
		}
	}
	if len(claimable) == 0 {
		return nil, tx.Commit()
	}
	sort.SliceStable(claimable, func(i, j int) bool {
		if claimable[i].Priority != claimable[j].Priority {
			return claimable[i].Priority > claimable[j].Priority
		}
		return claimable[i].CreatedAt.Before(claimable[j].CreatedAt)
	})
	chosen := claimable[0]
	now := time.Now()
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, assignee = ?, started_at = ? WHERE id = ? AND status = ?`,
		models.TaskRunning, agentID, now.Format(time.RFC3339Nano), chosen.ID, models.TaskPending)
	if err != nil {
		return nil, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		// Lost the race to a concurrent claimant; caller should retry.
		return nil, tx.Commit()
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	chosen.Status = models.TaskRunning
	chosen.Assignee = agentID
	chosen.StartedAt = &now
	return chosen, nil
}

func (q *SQLiteQueue) Complete(ctx context.Context, id string, result string) error {
	now := time.Now()
	_, err := q.db.ExecContext(ctx, `UPDATE tasks SET status = ?, result = ?, completed_at = ? WHERE id = ?`,
		models.TaskComplete, result, now.Format(time.RFC3339Nano), id)
	return err
}

func (q *SQLiteQueue) Fail(ctx context.Context, id string, errMsg string) error {
	now := time.Now()
	_, err := q.db.ExecContext(ctx, `UPDATE tasks SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		models.TaskFailed, errMsg, now.Format(time.RFC3339Nano), id)
	return err
}

func (q *SQLiteQueue) Get(ctx context.Context, id string) (*models.Task, error) {
	row := q.db.QueryRowContext(ctx, `SELECT id, description, type, dependencies, priority, status, assignee, result, error, created_at, started_at, completed_at FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func (q *SQLiteQueue) All(ctx context.Context) ([]*models.Task, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, description, type, dependencies, priority, status, assignee, result, error, created_at, started_at, completed_at FROM tasks ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

func (q *SQLiteQueue) Completed(ctx context.Context) ([]*models.Task, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, description, type, dependencies, priority, status, assignee, result, error, created_at, started_at, completed_at FROM tasks WHERE status = ?`, models.TaskComplete)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

func (q *SQLiteQueue) Summary(ctx context.Context) (Summary, error) {
	all, err := q.All(ctx)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	for _, t := range all {
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

func (q *SQLiteQueue) RecoverOrphaned(ctx context.Context, liveAgents map[string]bool) (int, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, assignee FROM tasks WHERE status = ?`, models.TaskRunning)
	if err != nil {
		return 0, err
	}
	type running struct{ id, assignee string }
	var orphans []running
	for rows.Next() {
		var r running
		if err := rows.Scan(&r.id, &r.assignee); err != nil {
			rows.Close()
			return 0, err
		}
		if !liveAgents[r.assignee] {
			orphans = append(orphans, r)
		}
	}
	rows.Close()

	for _, o := range orphans {
		if _, err := q.db.ExecContext(ctx, `UPDATE tasks SET status = ?, assignee = '', started_at = NULL WHERE id = ?`, models.TaskPending, o.id); err != nil {
			return 0, err
		}
	}
	return len(orphans), nil
}

func (q *SQLiteQueue) Reset(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM tasks`)
	return err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*models.Task, error) {
	var t models.Task
	var deps, createdAt string
	var startedAt, completedAt sql.NullString
	if err := row.Scan(&t.ID, &t.Description, &t.Type, &deps, &t.Priority, &t.Status,
		&t.Assignee, &t.Result, &t.Error, &createdAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(deps), &t.Dependencies)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if startedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, startedAt.String); err == nil {
			t.StartedAt = &ts
		}
	}
	if completedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			t.CompletedAt = &ts
		}
	}
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	defer rows.Close()
	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
