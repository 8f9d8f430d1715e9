// Package findings implements the append-only Finding log an engagement
// accumulates as workers report results, plus an optional S3 export sink.
package findings

import (
	"sync"

	"github.com/spark-corp/redshadow/pkg/models"
)

// Log is the engagement-scoped append-only store of Findings. It is held in
// process memory only and is not persisted; its contents are lost when the
// process exits unless exported (e.g. via S3Exporter).
// Safe for concurrent use by the Team Lead's monitor loop and workers.
type Log struct {
	mu    sync.Mutex
	items []models.Finding
}

// NewLog constructs an empty Finding log.
func NewLog() *Log {
	return &Log{}
}

// Add appends a Finding. Findings are never mutated or removed once added.
func (l *Log) Add(f models.Finding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, f)
}

// All returns a snapshot of every Finding recorded so far, oldest first.
func (l *Log) All() []models.Finding {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Finding, len(l.items))
	copy(out, l.items)
	return out
}

// BySeverity filters the log to Findings at or above the given severity,
// used by the Team Lead's synthesis step to headline the worst findings.
func (l *Log) BySeverity(min models.Severity) []models.Finding {
	rank := map[models.Severity]int{
		models.SeverityInfo:     0,
		models.SeverityLow:      1,
		models.SeverityMedium:   2,
		models.SeverityHigh:     3,
		models.SeverityCritical: 4,
	}
	threshold := rank[min]

	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Finding
	for _, f := range l.items {
		if rank[f.Severity] >= threshold {
			out = append(out, f)
		}
	}
	return out
}

// CausalChain walks a Finding's CausedBy links and returns the chain of
// Findings that led to it, earliest cause first. Missing ids are skipped.
func (l *Log) CausalChain(findingID string) []models.Finding {
	l.mu.Lock()
	byID := make(map[string]models.Finding, len(l.items))
	for _, f := range l.items {
		byID[f.ID] = f
	}
	l.mu.Unlock()

	target, ok := byID[findingID]
	if !ok {
		return nil
	}

	var chain []models.Finding
	visited := make(map[string]bool)
	var walk func(f models.Finding)
	walk = func(f models.Finding) {
		for _, causeID := range f.CausedBy {
			if visited[causeID] {
				continue
			}
			visited[causeID] = true
			if cause, ok := byID[causeID]; ok {
				walk(cause)
				chain = append(chain, cause)
			}
		}
	}
	walk(target)
	return chain
}

// Count returns the number of Findings recorded.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
