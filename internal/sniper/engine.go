// Package sniper runs standing buy intents: each task binds a hardware
// fingerprint and hunts the order catalog for any plan, current or not
// yet listed, that carries it. The moment a matching plan shows stock
// the engine hands a purchase task to the queue.
package sniper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecosniper/internal/domain"
	"ecosniper/internal/fingerprint"
	applog "ecosniper/internal/log"
	"ecosniper/internal/match"
	"ecosniper/internal/ovhapi"
)

const (
	enqueueRetryInterval = 30
	enqueueMaxRetries    = 3
)

// Matcher resolves plans and purchase options for a fingerprint.
type Matcher interface {
	FindEquivalentPlans(ctx context.Context, fp fingerprint.Fingerprint) []string
	PurchaseOptions(ctx context.Context, planCode string, fp fingerprint.Fingerprint) []string
}

// AvailabilitySource answers per-plan availability queries.
type AvailabilitySource interface {
	Availabilities(ctx context.Context, planCode string) ([]ovhapi.ConfigAvailability, error)
}

// Enqueuer is the purchase queue as seen from the engine.
type Enqueuer interface {
	Enqueue(domain.QueueTask) (domain.QueueTask, error)
	HasFor(planCode, datacenter, sniperTaskID string) bool
}

// Store persists sniper tasks.
type Store interface {
	SaveSniperTask(domain.SniperTask) error
	DeleteSniperTask(id string) error
}

// Notifier delivers best-effort messages. May be nil.
type Notifier interface {
	Notify(message string) bool
}

// Engine owns the sniper task registry and the scan loop.
type Engine struct {
	mu      sync.Mutex
	tasks   map[string]*domain.SniperTask
	deleted map[string]struct{}

	matcher  Matcher
	avail    AvailabilitySource
	queue    Enqueuer
	store    Store
	notifier Notifier
	interval time.Duration
	now      func() time.Time
}

func NewEngine(matcher Matcher, avail AvailabilitySource, queue Enqueuer, store Store, notifier Notifier, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Engine{
		tasks:    make(map[string]*domain.SniperTask),
		deleted:  make(map[string]struct{}),
		matcher:  matcher,
		avail:    avail,
		queue:    queue,
		store:    store,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
	}
}

// Load seeds the registry from persisted state at startup.
func (e *Engine) Load(tasks []domain.SniperTask) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range tasks {
		t := tasks[i]
		e.tasks[t.ID] = &t
	}
}

// CreateSpec is the user's intent for a new sniper task.
type CreateSpec struct {
	SourcePlanCode string
	Memory         string
	Storage        string
	// WatchNewOnly seeds KnownPlans with every currently matching plan,
	// so only plans appearing later can trigger a purchase.
	WatchNewOnly bool
}

// Create registers a task and runs the initial catalog match.
func (e *Engine) Create(ctx context.Context, spec CreateSpec) (domain.SniperTask, error) {
	if spec.Memory == "" && spec.Storage == "" {
		return domain.SniperTask{}, &domain.ValidationError{Field: "configuration", Reason: "memory or storage must be bound"}
	}

	fp := fingerprint.New(spec.Memory, spec.Storage)
	found := e.matcher.FindEquivalentPlans(ctx, fp)

	t := domain.SniperTask{
		ID:             uuid.NewString(),
		SourcePlanCode: spec.SourcePlanCode,
		BoundMemory:    spec.Memory,
		BoundStorage:   spec.Storage,
		Enabled:        true,
		CreatedAt:      e.now(),
	}
	switch {
	case spec.WatchNewOnly:
		t.MatchStatus = domain.MatchPending
		t.KnownPlans = found
	case len(found) > 0:
		t.MatchStatus = domain.MatchMatched
		t.MatchedPlans = found
	default:
		t.MatchStatus = domain.MatchPending
	}

	e.mu.Lock()
	e.tasks[t.ID] = &t
	e.mu.Unlock()

	if err := e.store.SaveSniperTask(t); err != nil {
		return t, err
	}
	applog.Info("sniper", "task created", map[string]any{
		"task": t.ID, "status": t.MatchStatus, "matched": len(t.MatchedPlans), "known": len(t.KnownPlans),
	})
	return t, nil
}

// Delete marks the task removed. The mark outlives the removal so a
// scan already in flight cannot resurrect it.
func (e *Engine) Delete(id string) bool {
	e.mu.Lock()
	_, ok := e.tasks[id]
	e.deleted[id] = struct{}{}
	delete(e.tasks, id)
	e.mu.Unlock()

	if ok {
		if err := e.store.DeleteSniperTask(id); err != nil {
			applog.Error("sniper", "delete task from store", err, map[string]any{"task": id})
		}
	}
	return ok
}

// Toggle flips a task between enabled and paused.
func (e *Engine) Toggle(id string) (domain.SniperTask, bool) {
	e.mu.Lock()
	t, ok := e.tasks[id]
	if !ok {
		e.mu.Unlock()
		return domain.SniperTask{}, false
	}
	t.Enabled = !t.Enabled
	copyT := *t
	e.mu.Unlock()

	if err := e.store.SaveSniperTask(copyT); err != nil {
		applog.Error("sniper", "persist toggle", err, map[string]any{"task": id})
	}
	return copyT, true
}

func (e *Engine) Get(id string) (domain.SniperTask, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return domain.SniperTask{}, false
	}
	return *t, true
}

func (e *Engine) List() []domain.SniperTask {
	out := e.snapshot()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (e *Engine) snapshot() []domain.SniperTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.SniperTask, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, *t)
	}
	return out
}

// Run scans all active tasks on the configured cadence.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	applog.Info("sniper", "engine started", map[string]any{"interval": e.interval.String()})
	for {
		select {
		case <-ctx.Done():
			applog.Info("sniper", "engine stopped", nil)
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick scans every enabled, unfinished task once.
func (e *Engine) Tick(ctx context.Context) {
	for _, t := range e.snapshot() {
		if !t.Enabled || t.MatchStatus == domain.MatchCompleted {
			continue
		}
		e.scan(ctx, t)
	}
}

// CheckNow scans a single task outside the regular cadence.
func (e *Engine) CheckNow(ctx context.Context, id string) (domain.SniperTask, bool) {
	t, ok := e.Get(id)
	if !ok {
		return domain.SniperTask{}, false
	}
	if t.MatchStatus != domain.MatchCompleted {
		e.scan(ctx, t)
	}
	return e.Get(id)
}

// scan advances one task: discovery for pending tasks, stock probing
// for every plan matched so far, completion once a purchase is
// enqueued. A pending task stays pending until that happens, so later
// listings keep being discovered even after stockless finds.
func (e *Engine) scan(ctx context.Context, t domain.SniperTask) {
	fp := fingerprint.New(t.BoundMemory, t.BoundStorage)

	if t.MatchStatus == domain.MatchPending {
		fresh := e.discover(ctx, &t, fp)
		if len(fresh) > 0 {
			e.announceDiscovery(t, fresh)
		}
	}

	enqueued := false
	for _, plan := range t.MatchedPlans {
		if e.probe(ctx, t, plan, fp) {
			enqueued = true
		}
	}
	if enqueued {
		t.MatchStatus = domain.MatchCompleted
	}

	t.LastCheckedAt = e.now()
	e.apply(t)
}

// discover looks for plans carrying the fingerprint that the task has
// not seen before. Known plans stay excluded forever: the task hunts
// future listings, not the inventory it was created against.
func (e *Engine) discover(ctx context.Context, t *domain.SniperTask, fp fingerprint.Fingerprint) []string {
	found := e.matcher.FindEquivalentPlans(ctx, fp)
	seen := make(map[string]struct{}, len(t.KnownPlans)+len(t.MatchedPlans))
	for _, p := range t.KnownPlans {
		seen[p] = struct{}{}
	}
	for _, p := range t.MatchedPlans {
		seen[p] = struct{}{}
	}

	var fresh []string
	for _, p := range found {
		if _, ok := seen[p]; ok {
			continue
		}
		fresh = append(fresh, p)
		t.MatchedPlans = append(t.MatchedPlans, p)
	}
	return fresh
}

// probe checks one matched plan for stock in a configuration the task
// is bound to, and enqueues a purchase per orderable datacenter.
func (e *Engine) probe(ctx context.Context, t domain.SniperTask, plan string, fp fingerprint.Fingerprint) bool {
	configs, err := e.avail.Availabilities(ctx, plan)
	if err != nil {
		applog.Warn("sniper", "availability query failed", map[string]any{
			"task": t.ID, "plan": plan, "error": err.Error(),
		})
		return false
	}

	enqueued := false
	for _, cfg := range configs {
		if !match.MatchSelectedConfig(t.BoundMemory, t.BoundStorage, cfg.Memory, cfg.Storage) {
			continue
		}
		for _, dc := range cfg.Datacenters {
			if !domain.Orderable(dc.Availability) {
				continue
			}
			if e.queue.HasFor(plan, dc.Datacenter, t.ID) {
				continue
			}
			task, err := e.queue.Enqueue(domain.QueueTask{
				PlanCode:      plan,
				Datacenter:    dc.Datacenter,
				Options:       e.matcher.PurchaseOptions(ctx, plan, fp),
				RetryInterval: enqueueRetryInterval,
				MaxRetries:    enqueueMaxRetries,
				SniperTaskID:  t.ID,
			})
			if err != nil {
				applog.Error("sniper", "enqueue purchase", err, map[string]any{"task": t.ID, "plan": plan})
				continue
			}
			enqueued = true
			applog.Info("sniper", "purchase enqueued", map[string]any{
				"task": t.ID, "plan": plan, "datacenter": dc.Datacenter, "queueTask": task.ID,
			})
			if e.notifier != nil {
				e.notifier.Notify(fmt.Sprintf(
					"Sniper hit\nPlan: %s\nDatacenter: %s\nPurchase task queued (%s)",
					plan, dc.Datacenter, task.ID,
				))
			}
		}
	}
	return enqueued
}

func (e *Engine) announceDiscovery(t domain.SniperTask, fresh []string) {
	applog.Info("sniper", "new matching plans discovered", map[string]any{
		"task": t.ID, "plans": fresh,
	})
	if e.notifier != nil {
		e.notifier.Notify(fmt.Sprintf(
			"New matching plans for %s\n%s", t.SourcePlanCode, strings.Join(fresh, ", "),
		))
	}
}

// apply folds a scan result back into the registry unless the task was
// deleted while the scan ran.
func (e *Engine) apply(t domain.SniperTask) {
	e.mu.Lock()
	if _, gone := e.deleted[t.ID]; gone {
		e.mu.Unlock()
		return
	}
	cur, ok := e.tasks[t.ID]
	if !ok {
		e.mu.Unlock()
		return
	}
	// Enabled may have been toggled mid-scan, keep the live value
	t.Enabled = cur.Enabled
	e.tasks[t.ID] = &t
	e.mu.Unlock()

	if err := e.store.SaveSniperTask(t); err != nil {
		applog.Error("sniper", "persist task", err, map[string]any{"task": t.ID})
	}
}
