// Package monitor tracks availability subscriptions: per-plan polling,
// per-datacenter state diffing and batched change notifications.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ecosniper/internal/domain"
	applog "ecosniper/internal/log"
	"ecosniper/internal/ovhapi"
)

const historyCap = 50

// AvailabilitySource answers per-plan availability queries.
type AvailabilitySource interface {
	Availabilities(ctx context.Context, planCode string) ([]ovhapi.ConfigAvailability, error)
}

// Store persists subscription state between restarts.
type Store interface {
	SaveSubscription(domain.Subscription) error
	DeleteSubscription(planCode string) error
}

// Notifier delivers best-effort messages. May be nil.
type Notifier interface {
	Notify(message string) bool
}

// Monitor owns the subscription registry. One goroutine runs the poll
// loop; handlers call the exported methods concurrently.
type Monitor struct {
	mu       sync.Mutex
	subs     map[string]*domain.Subscription
	interval time.Duration
	running  bool

	source   AvailabilitySource
	store    Store
	notifier Notifier
	now      func() time.Time
}

func New(source AvailabilitySource, store Store, notifier Notifier, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		subs:     make(map[string]*domain.Subscription),
		interval: interval,
		running:  true,
		source:   source,
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// Load seeds the registry from persisted state at startup.
func (m *Monitor) Load(subs []domain.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range subs {
		s := subs[i]
		if s.LastKnown == nil {
			s.LastKnown = make(map[string]string)
		}
		m.subs[s.PlanCode] = &s
	}
}

// Subscribe registers a plan for monitoring. Re-subscribing updates the
// filter and notify flags but keeps accumulated state and history.
func (m *Monitor) Subscribe(sub domain.Subscription) (domain.Subscription, error) {
	m.mu.Lock()
	existing, ok := m.subs[sub.PlanCode]
	if ok {
		existing.ServerName = sub.ServerName
		existing.Datacenters = sub.Datacenters
		existing.NotifyAvailable = sub.NotifyAvailable
		existing.NotifyUnavailable = sub.NotifyUnavailable
		sub = copySub(*existing)
	} else {
		sub.LastKnown = make(map[string]string)
		sub.History = nil
		sub.CreatedAt = m.now()
		m.subs[sub.PlanCode] = &sub
	}
	m.mu.Unlock()

	if err := m.store.SaveSubscription(sub); err != nil {
		return sub, err
	}
	applog.Info("monitor", "subscription saved", map[string]any{"plan": sub.PlanCode})
	return sub, nil
}

func (m *Monitor) Unsubscribe(planCode string) bool {
	m.mu.Lock()
	_, ok := m.subs[planCode]
	delete(m.subs, planCode)
	m.mu.Unlock()

	if ok {
		if err := m.store.DeleteSubscription(planCode); err != nil {
			applog.Error("monitor", "delete subscription", err, map[string]any{"plan": planCode})
		}
	}
	return ok
}

// Clear removes every subscription and returns how many were dropped.
func (m *Monitor) Clear() int {
	m.mu.Lock()
	codes := make([]string, 0, len(m.subs))
	for code := range m.subs {
		codes = append(codes, code)
	}
	m.subs = make(map[string]*domain.Subscription)
	m.mu.Unlock()

	for _, code := range codes {
		if err := m.store.DeleteSubscription(code); err != nil {
			applog.Error("monitor", "delete subscription", err, map[string]any{"plan": code})
		}
	}
	return len(codes)
}

func (m *Monitor) List() []domain.Subscription {
	out := m.snapshot()
	sort.Slice(out, func(i, j int) bool { return out[i].PlanCode < out[j].PlanCode })
	return out
}

func (m *Monitor) Get(planCode string) (domain.Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[planCode]
	if !ok {
		return domain.Subscription{}, false
	}
	return copySub(*s), true
}

// History returns the recorded transitions, newest last.
func (m *Monitor) History(planCode string) ([]domain.Transition, bool) {
	s, ok := m.Get(planCode)
	if !ok {
		return nil, false
	}
	return s.History, true
}

// SetInterval changes the poll cadence, effective from the next cycle.
func (m *Monitor) SetInterval(d time.Duration) time.Duration {
	if d < 5*time.Second {
		d = 5 * time.Second
	}
	if d > time.Hour {
		d = time.Hour
	}
	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()
	applog.Info("monitor", "poll interval changed", map[string]any{"interval": d.String()})
	return d
}

func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// SetRunning pauses or resumes scheduled polling. Manual checks keep
// working either way.
func (m *Monitor) SetRunning(on bool) {
	m.mu.Lock()
	m.running = on
	m.mu.Unlock()
	applog.Info("monitor", "polling toggled", map[string]any{"running": on})
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Run polls all subscriptions on the configured cadence.
func (m *Monitor) Run(ctx context.Context) {
	applog.Info("monitor", "started", map[string]any{"interval": m.Interval().String()})
	for {
		select {
		case <-ctx.Done():
			applog.Info("monitor", "stopped", nil)
			return
		case <-time.After(m.Interval()):
			if m.Running() {
				m.Tick(ctx)
			}
		}
	}
}

// Tick polls every subscription once.
func (m *Monitor) Tick(ctx context.Context) {
	for _, sub := range m.snapshot() {
		m.poll(ctx, sub.PlanCode)
	}
}

// CheckNow polls a single subscription outside the regular cadence.
func (m *Monitor) CheckNow(ctx context.Context, planCode string) (domain.Subscription, bool) {
	if _, ok := m.Get(planCode); !ok {
		return domain.Subscription{}, false
	}
	m.poll(ctx, planCode)
	return m.Get(planCode)
}

func (m *Monitor) snapshot() []domain.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, copySub(*s))
	}
	return out
}

func copySub(s domain.Subscription) domain.Subscription {
	lk := make(map[string]string, len(s.LastKnown))
	for k, v := range s.LastKnown {
		lk[k] = v
	}
	s.LastKnown = lk
	s.History = append([]domain.Transition(nil), s.History...)
	s.Datacenters = append([]string(nil), s.Datacenters...)
	return s
}

func (m *Monitor) poll(ctx context.Context, planCode string) {
	sub, ok := m.Get(planCode)
	if !ok {
		return
	}

	raw, err := m.source.Availabilities(ctx, planCode)
	if err != nil {
		// keep last known state, try again next cycle
		applog.Warn("monitor", "availability query failed", map[string]any{
			"plan": planCode, "error": err.Error(),
		})
		return
	}

	states := fold(raw, sub.Datacenters)
	transitions := m.classify(sub, states)
	m.apply(planCode, states, transitions)
	m.announce(sub, transitions)
}

// fold collapses per-configuration availability lists into one state
// per datacenter. When configurations disagree the orderable state
// wins, then unavailable over unknown.
func fold(raw []ovhapi.ConfigAvailability, filter []string) map[string]string {
	wanted := make(map[string]struct{}, len(filter))
	for _, dc := range filter {
		wanted[dc] = struct{}{}
	}

	states := make(map[string]string)
	for _, cfg := range raw {
		for _, dc := range cfg.Datacenters {
			if len(wanted) > 0 {
				if _, ok := wanted[dc.Datacenter]; !ok {
					continue
				}
			}
			if rank(dc.Availability) > rank(states[dc.Datacenter]) {
				states[dc.Datacenter] = dc.Availability
			}
		}
	}
	return states
}

func rank(state string) int {
	switch {
	case domain.Orderable(state):
		return 3
	case state == "unavailable":
		return 2
	case state == "unknown":
		return 1
	default:
		return 0
	}
}

// classify diffs the fresh states against the last known ones.
// Datacenters absent from this poll keep their previous state and
// produce no transition.
func (m *Monitor) classify(sub domain.Subscription, states map[string]string) []domain.Transition {
	now := m.now()
	dcs := make([]string, 0, len(states))
	for dc := range states {
		dcs = append(dcs, dc)
	}
	sort.Strings(dcs)

	var out []domain.Transition
	for _, dc := range dcs {
		cur := states[dc]
		prev, seen := sub.LastKnown[dc]
		t := domain.Transition{Datacenter: dc, From: prev, To: cur, At: now}
		switch {
		case !seen:
			t.Kind = domain.TransitionFirst
		case domain.Orderable(cur) && !domain.Orderable(prev):
			t.Kind = domain.TransitionAvailable
		case !domain.Orderable(cur) && domain.Orderable(prev):
			t.Kind = domain.TransitionUnavailable
		default:
			t.Kind = domain.TransitionUnchanged
		}
		out = append(out, t)
	}
	return out
}

// apply folds the poll result into the registry and persists it. State
// updates never depend on notification delivery.
func (m *Monitor) apply(planCode string, states map[string]string, transitions []domain.Transition) {
	m.mu.Lock()
	sub, ok := m.subs[planCode]
	if !ok {
		m.mu.Unlock()
		return
	}
	for dc, state := range states {
		sub.LastKnown[dc] = state
	}
	for _, t := range transitions {
		if t.Kind == domain.TransitionUnchanged {
			continue
		}
		sub.History = append(sub.History, t)
	}
	if len(sub.History) > historyCap {
		sub.History = sub.History[len(sub.History)-historyCap:]
	}
	copyS := copySub(*sub)
	m.mu.Unlock()

	if err := m.store.SaveSubscription(copyS); err != nil {
		applog.Error("monitor", "persist subscription", err, map[string]any{"plan": planCode})
	}
}

// announce sends at most one batched message per subscription per poll.
func (m *Monitor) announce(sub domain.Subscription, transitions []domain.Transition) {
	if m.notifier == nil {
		return
	}

	var lines []string
	for _, t := range transitions {
		switch t.Kind {
		case domain.TransitionFirst:
			lines = append(lines, fmt.Sprintf("%s: %s (initial observation)", t.Datacenter, t.To))
		case domain.TransitionAvailable:
			if sub.NotifyAvailable {
				lines = append(lines, fmt.Sprintf("%s: now available (%s)", t.Datacenter, t.To))
			}
		case domain.TransitionUnavailable:
			if sub.NotifyUnavailable {
				lines = append(lines, fmt.Sprintf("%s: no longer available", t.Datacenter))
			}
		}
	}
	if len(lines) == 0 {
		return
	}

	name := sub.ServerName
	if name == "" {
		name = sub.PlanCode
	}
	m.notifier.Notify(fmt.Sprintf("Availability update for %s\n%s", name, strings.Join(lines, "\n")))
}
