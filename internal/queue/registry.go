// Package queue holds the purchase queue: a registry of tasks racing
// against availability windows and the processor loop that drives their
// attempts.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecosniper/internal/domain"
	applog "ecosniper/internal/log"
)

// Store persists registry mutations.
type Store interface {
	SaveTask(domain.QueueTask) error
	DeleteTask(id string) error
}

// Registry owns the shared task collection. All external mutation goes
// through it; cancellation marks intent in the cancelled set, which the
// processor consults at its gates instead of mutating the collection it
// iterates.
type Registry struct {
	mu        sync.Mutex
	tasks     map[string]*domain.QueueTask
	cancelled map[string]struct{}
	inflight  map[string]struct{}
	store     Store
	now       func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		tasks:     make(map[string]*domain.QueueTask),
		cancelled: make(map[string]struct{}),
		inflight:  make(map[string]struct{}),
		store:     store,
		now:       time.Now,
	}
}

// Load seeds the registry from persisted state at startup.
func (r *Registry) Load(tasks []domain.QueueTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range tasks {
		t := tasks[i]
		r.tasks[t.ID] = &t
	}
}

// Enqueue validates nothing: callers run input through validate first.
// It fills identity and lifecycle fields and persists the new task.
func (r *Registry) Enqueue(t domain.QueueTask) (domain.QueueTask, error) {
	now := r.now()
	t.ID = uuid.NewString()
	t.Status = domain.TaskRunning
	t.RetryCount = 0
	t.LastAttemptAt = time.Time{}
	t.CreatedAt = now
	t.UpdatedAt = now

	r.mu.Lock()
	r.tasks[t.ID] = &t
	r.mu.Unlock()

	if err := r.store.SaveTask(t); err != nil {
		return t, err
	}
	return t, nil
}

// HasFor reports whether a live task already targets this plan and
// datacenter for the given sniper task, so the engine does not enqueue
// duplicates on consecutive discoveries.
func (r *Registry) HasFor(planCode, datacenter, sniperTaskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.PlanCode == planCode && t.Datacenter == datacenter && t.SniperTaskID == sniperTaskID {
			return true
		}
	}
	return false
}

func (r *Registry) Get(id string) (domain.QueueTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.QueueTask{}, false
	}
	return *t, true
}

// List returns tasks ordered by creation time.
func (r *Registry) List() []domain.QueueTask {
	out := r.Snapshot()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Snapshot copies the live tasks for lock-free iteration.
func (r *Registry) Snapshot() []domain.QueueTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.QueueTask, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t)
	}
	return out
}

// Cancel marks the task cancelled and removes it. The mark survives the
// removal so an attempt already past the snapshot still sees it.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	_, ok := r.tasks[id]
	r.cancelled[id] = struct{}{}
	delete(r.tasks, id)
	r.mu.Unlock()

	if ok {
		if err := r.store.DeleteTask(id); err != nil {
			applog.Error("queue", "delete task from store", err, map[string]any{"task": id})
		}
		applog.Info("queue", "task cancelled", map[string]any{"task": id})
	}
	return ok
}

// CancelAll cancels every live task and returns how many were removed.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
		r.cancelled[id] = struct{}{}
	}
	r.tasks = make(map[string]*domain.QueueTask)
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.store.DeleteTask(id); err != nil {
			applog.Error("queue", "delete task from store", err, map[string]any{"task": id})
		}
	}
	return len(ids)
}

func (r *Registry) Cancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, gone := r.cancelled[id]
	if gone {
		return true
	}
	// a task missing from the live registry is implicitly cancelled
	if _, ok := r.tasks[id]; !ok {
		r.cancelled[id] = struct{}{}
		return true
	}
	return false
}

// SetStatus applies an external pause/resume. Terminal states are not
// resurrected.
func (r *Registry) SetStatus(id, status string) bool {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok || t.Status == domain.TaskCompleted {
		r.mu.Unlock()
		return false
	}
	t.Status = status
	t.UpdatedAt = r.now()
	copyT := *t
	r.mu.Unlock()

	if err := r.store.SaveTask(copyT); err != nil {
		applog.Error("queue", "persist status change", err, map[string]any{"task": id})
	}
	return true
}

// BeginAttempt is the last gate before the purchase executor runs: it
// re-checks cancellation and presence under the lock, refuses overlap
// with an attempt still in flight, and records the attempt.
func (r *Registry) BeginAttempt(id string) (domain.QueueTask, bool) {
	r.mu.Lock()
	if _, gone := r.cancelled[id]; gone {
		r.mu.Unlock()
		return domain.QueueTask{}, false
	}
	t, ok := r.tasks[id]
	if !ok || t.Status != domain.TaskRunning {
		r.mu.Unlock()
		return domain.QueueTask{}, false
	}
	if _, busy := r.inflight[id]; busy {
		r.mu.Unlock()
		return domain.QueueTask{}, false
	}
	t.RetryCount++
	t.LastAttemptAt = r.now()
	t.UpdatedAt = t.LastAttemptAt
	r.inflight[id] = struct{}{}
	copyT := *t
	r.mu.Unlock()

	if err := r.store.SaveTask(copyT); err != nil {
		applog.Error("queue", "persist attempt", err, map[string]any{"task": id})
	}
	return copyT, true
}

// EndAttempt releases the per-task attempt slot.
func (r *Registry) EndAttempt(id string) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

// Finish moves a task to a terminal status if it is still present.
func (r *Registry) Finish(id, status string) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	t.Status = status
	t.UpdatedAt = r.now()
	copyT := *t
	r.mu.Unlock()

	if err := r.store.SaveTask(copyT); err != nil {
		applog.Error("queue", "persist terminal status", err, map[string]any{"task": id})
	}
}
