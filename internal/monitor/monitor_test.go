package monitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ecosniper/internal/domain"
	"ecosniper/internal/ovhapi"
)

type fakeSource struct {
	mu   sync.Mutex
	resp []ovhapi.ConfigAvailability
	err  error
}

func (f *fakeSource) Availabilities(context.Context, string) ([]ovhapi.ConfigAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resp, f.err
}

func (f *fakeSource) set(resp []ovhapi.ConfigAvailability, err error) {
	f.mu.Lock()
	f.resp = resp
	f.err = err
	f.mu.Unlock()
}

type memStore struct {
	mu    sync.Mutex
	saved map[string]domain.Subscription
}

func (s *memStore) SaveSubscription(sub domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]domain.Subscription)
	}
	s.saved[sub.PlanCode] = sub
	return nil
}

func (s *memStore) DeleteSubscription(planCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, planCode)
	return nil
}

type memNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *memNotifier) Notify(m string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return true
}

func (n *memNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func availability(states map[string]string) []ovhapi.ConfigAvailability {
	var dcs []ovhapi.DatacenterAvailability
	for dc, st := range states {
		dcs = append(dcs, ovhapi.DatacenterAvailability{Datacenter: dc, Availability: st})
	}
	return []ovhapi.ConfigAvailability{{PlanCode: "24sk50", Datacenters: dcs}}
}

func TestFirstObservationBatchesOneNotification(t *testing.T) {
	source := &fakeSource{}
	notifier := &memNotifier{}
	m := New(source, &memStore{}, notifier, time.Minute)

	if _, err := m.Subscribe(domain.Subscription{PlanCode: "24sk50", NotifyAvailable: true}); err != nil {
		t.Fatal(err)
	}

	source.set(availability(map[string]string{"gra": "1H-low", "rbx": "unavailable"}), nil)
	m.Tick(context.Background())

	msgs := notifier.all()
	if len(msgs) != 1 {
		t.Fatalf("want exactly one batched notification, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "gra") || !strings.Contains(msgs[0], "rbx") {
		t.Fatalf("notification must list both datacenters: %q", msgs[0])
	}

	sub, _ := m.Get("24sk50")
	if sub.LastKnown["gra"] != "1H-low" || sub.LastKnown["rbx"] != "unavailable" {
		t.Fatalf("lastKnown not updated: %v", sub.LastKnown)
	}
	if len(sub.History) != 2 {
		t.Fatalf("want 2 first-observation transitions, got %d", len(sub.History))
	}
}

func TestBecameAvailableAndSuppressedUnavailable(t *testing.T) {
	source := &fakeSource{}
	notifier := &memNotifier{}
	m := New(source, &memStore{}, notifier, time.Minute)
	m.Subscribe(domain.Subscription{PlanCode: "24sk50", NotifyAvailable: true, NotifyUnavailable: false})

	source.set(availability(map[string]string{"gra": "unavailable"}), nil)
	m.Tick(context.Background())

	// window opens
	source.set(availability(map[string]string{"gra": "72H"}), nil)
	m.Tick(context.Background())
	msgs := notifier.all()
	if len(msgs) != 2 {
		t.Fatalf("want 2 notifications so far, got %d", len(msgs))
	}
	if !strings.Contains(msgs[1], "now available") {
		t.Fatalf("missing became-available line: %q", msgs[1])
	}

	// window closes but NotifyUnavailable is off: state updates, no message
	source.set(availability(map[string]string{"gra": "unavailable"}), nil)
	m.Tick(context.Background())
	if got := notifier.all(); len(got) != 2 {
		t.Fatalf("unavailable transition should be silent, got %d messages", len(got))
	}
	sub, _ := m.Get("24sk50")
	if sub.LastKnown["gra"] != "unavailable" {
		t.Fatalf("state must update regardless of notify flags: %v", sub.LastKnown)
	}
}

func TestAbsentDatacenterKeepsLastState(t *testing.T) {
	source := &fakeSource{}
	m := New(source, &memStore{}, &memNotifier{}, time.Minute)
	m.Subscribe(domain.Subscription{PlanCode: "24sk50"})

	source.set(availability(map[string]string{"gra": "1H-low", "rbx": "unavailable"}), nil)
	m.Tick(context.Background())

	// rbx missing from this response
	source.set(availability(map[string]string{"gra": "1H-low"}), nil)
	m.Tick(context.Background())

	sub, _ := m.Get("24sk50")
	if sub.LastKnown["rbx"] != "unavailable" {
		t.Fatalf("absent datacenter lost its state: %v", sub.LastKnown)
	}
}

func TestDatacenterFilterAndOrderableWins(t *testing.T) {
	source := &fakeSource{}
	m := New(source, &memStore{}, &memNotifier{}, time.Minute)
	m.Subscribe(domain.Subscription{PlanCode: "24sk50", Datacenters: []string{"gra"}})

	// two configurations disagree about gra; rbx is filtered out
	source.set([]ovhapi.ConfigAvailability{
		{PlanCode: "24sk50", Datacenters: []ovhapi.DatacenterAvailability{
			{Datacenter: "gra", Availability: "unavailable"},
			{Datacenter: "rbx", Availability: "1H-low"},
		}},
		{PlanCode: "24sk50", Datacenters: []ovhapi.DatacenterAvailability{
			{Datacenter: "gra", Availability: "72H"},
		}},
	}, nil)
	m.Tick(context.Background())

	sub, _ := m.Get("24sk50")
	if sub.LastKnown["gra"] != "72H" {
		t.Fatalf("orderable state must win the fold: %v", sub.LastKnown)
	}
	if _, ok := sub.LastKnown["rbx"]; ok {
		t.Fatalf("filtered datacenter leaked in: %v", sub.LastKnown)
	}
}

func TestQueryFailureKeepsState(t *testing.T) {
	source := &fakeSource{}
	notifier := &memNotifier{}
	m := New(source, &memStore{}, notifier, time.Minute)
	m.Subscribe(domain.Subscription{PlanCode: "24sk50", NotifyUnavailable: true})

	source.set(availability(map[string]string{"gra": "1H-low"}), nil)
	m.Tick(context.Background())

	source.set(nil, context.DeadlineExceeded)
	m.Tick(context.Background())

	sub, _ := m.Get("24sk50")
	if sub.LastKnown["gra"] != "1H-low" {
		t.Fatalf("failed poll must not clear state: %v", sub.LastKnown)
	}
	if got := notifier.all(); len(got) != 1 {
		t.Fatalf("failed poll must not notify, got %d messages", len(got))
	}
}

func TestResubscribeKeepsHistory(t *testing.T) {
	source := &fakeSource{}
	m := New(source, &memStore{}, &memNotifier{}, time.Minute)
	m.Subscribe(domain.Subscription{PlanCode: "24sk50"})

	source.set(availability(map[string]string{"gra": "1H-low"}), nil)
	m.Tick(context.Background())

	m.Subscribe(domain.Subscription{PlanCode: "24sk50", NotifyUnavailable: true})
	sub, _ := m.Get("24sk50")
	if !sub.NotifyUnavailable {
		t.Fatal("flag update lost")
	}
	if len(sub.History) != 1 || sub.LastKnown["gra"] != "1H-low" {
		t.Fatalf("resubscribe must keep state: %+v", sub)
	}
}
