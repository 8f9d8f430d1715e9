// Package lockmgr implements named advisory locks used to coordinate worker
// access to shared external resources (e.g. "nmap against 10.0.0.5"). It
// follows the same exclusive-create / stale-reclaim idiom as the teacher's
// database-backed session locker, generalized to an arbitrary resource_id.
package lockmgr

import (
	"sync"
	"time"

	"github.com/spark-corp/redshadow/pkg/models"
)

// DefaultStaleThreshold matches the spec's default: a lock older than 10
// minutes with no release is considered abandoned and reclaimable.
const DefaultStaleThreshold = 10 * time.Minute

// Manager is a Lock Manager instance, safe for concurrent use.
type Manager struct {
	mu             sync.Mutex
	locks          map[string]models.Lock
	staleThreshold time.Duration
	now            func() time.Time // overridable for tests
}

// New constructs a Manager with the given staleness threshold. A
// non-positive threshold falls back to DefaultStaleThreshold.
func New(staleThreshold time.Duration) *Manager {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}
	return &Manager{
		locks:          make(map[string]models.Lock),
		staleThreshold: staleThreshold,
		now:            time.Now,
	}
}

// Acquire attempts an exclusive create of the lock record. When timeout is
// zero it is non-blocking; otherwise it polls in small increments up to
// timeout, reclaiming a stale lock atomically whenever one is found.
func (m *Manager) Acquire(resourceID, agentID string, timeout time.Duration) bool {
	deadline := m.now().Add(timeout)
	for {
		if m.tryAcquire(resourceID, agentID) {
			return true
		}
		if timeout <= 0 || m.now().After(deadline) {
			return false
		}
		time.Sleep(minDuration(50*time.Millisecond, timeout))
	}
}

func (m *Manager) tryAcquire(resourceID, agentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, held := m.locks[resourceID]
	if held {
		if !existing.IsStale(m.now(), m.staleThreshold) {
			return false
		}
		// Stale: delete-then-create, atomic within this critical section.
		delete(m.locks, resourceID)
	}
	m.locks[resourceID] = models.Lock{ResourceID: resourceID, Owner: agentID, AcquiredAt: m.now()}
	return true
}

// Release succeeds only if agentID is the recorded owner.
func (m *Manager) Release(resourceID, agentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, held := m.locks[resourceID]
	if !held || existing.Owner != agentID {
		return false
	}
	delete(m.locks, resourceID)
	return true
}

// IsLocked reports whether resourceID currently has a non-stale owner.
func (m *Manager) IsLocked(resourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, held := m.locks[resourceID]
	if !held {
		return false
	}
	return !existing.IsStale(m.now(), m.staleThreshold)
}

// Owner returns the current owner of resourceID, or "" if unlocked.
func (m *Manager) Owner(resourceID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[resourceID].Owner
}

// Cleanup removes every lock owned by an agent not present in liveAgents,
// used during Team Lead cleanup to release locks of workers it is tearing
// down.
func (m *Manager) Cleanup(liveAgents map[string]bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, l := range m.locks {
		if !liveAgents[l.Owner] {
			delete(m.locks, id)
			removed++
		}
	}
	return removed
}

// ReleaseAll unconditionally clears every lock, used at engagement cleanup.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = make(map[string]models.Lock)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
