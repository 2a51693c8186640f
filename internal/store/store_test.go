package store

import (
	"testing"
	"time"

	"ecosniper/internal/domain"
)

func memdb(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	return New(db)
}

func TestQueueTaskRoundTrip(t *testing.T) {
	s := memdb(t)
	now := time.Now().UTC().Truncate(time.Second)

	task := domain.QueueTask{
		ID:            "t-1",
		PlanCode:      "24sk50",
		Datacenter:    "gra",
		Options:       []string{"ram-64g-ecc-2400-24sk50"},
		Status:        domain.TaskRunning,
		RetryInterval: 30,
		MaxRetries:    3,
		CreatedAt:     now,
		UpdatedAt:     now,
		SniperTaskID:  "sn-1",
	}
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	// status/retry updates go through the same upsert
	task.Status = domain.TaskCompleted
	task.RetryCount = 4
	task.LastAttemptAt = now.Add(90 * time.Second)
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 task, got %d", len(got))
	}
	g := got[0]
	if g.Status != domain.TaskCompleted || g.RetryCount != 4 || g.SniperTaskID != "sn-1" {
		t.Fatalf("bad row: %+v", g)
	}
	if !g.LastAttemptAt.Equal(task.LastAttemptAt) {
		t.Fatalf("lastAttemptAt mismatch: %v vs %v", g.LastAttemptAt, task.LastAttemptAt)
	}
	if len(g.Options) != 1 || g.Options[0] != "ram-64g-ecc-2400-24sk50" {
		t.Fatalf("options mismatch: %v", g.Options)
	}

	if err := s.DeleteTask("t-1"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.LoadTasks()
	if len(got) != 0 {
		t.Fatal("task not deleted")
	}
}

func TestOutcomeUpsertKeepsOneRow(t *testing.T) {
	s := memdb(t)
	now := time.Now().UTC()

	fail := domain.PurchaseOutcome{
		TaskID: "t-1", PlanCode: "24sk50", Datacenter: "gra",
		Status: domain.OutcomeFailed, ErrorMessage: "no stock at gra",
		AttemptCount: 1, PurchaseTime: now,
	}
	if err := s.UpsertOutcome(fail); err != nil {
		t.Fatal(err)
	}
	ok := fail
	ok.Status = domain.OutcomeSuccess
	ok.ErrorMessage = ""
	ok.OrderID = "1234"
	ok.OrderURL = "https://orders.example/1234"
	ok.AttemptCount = 2
	if err := s.UpsertOutcome(ok); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadOutcomes()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert must keep one row per task, got %d", len(got))
	}
	if got[0].Status != domain.OutcomeSuccess || got[0].OrderID != "1234" || got[0].AttemptCount != 2 {
		t.Fatalf("bad outcome: %+v", got[0])
	}
}

func TestSniperAndSubscriptionRoundTrip(t *testing.T) {
	s := memdb(t)
	now := time.Now().UTC()

	sn := domain.SniperTask{
		ID: "sn-1", SourcePlanCode: "24ska01",
		BoundMemory: "ram-64g-ecc-2400", BoundStorage: "softraid-2x480ssd",
		MatchStatus: domain.MatchPending, KnownPlans: []string{"24sk50"},
		Enabled: true, CreatedAt: now,
	}
	if err := s.SaveSniperTask(sn); err != nil {
		t.Fatal(err)
	}
	sn.MatchStatus = domain.MatchCompleted
	sn.MatchedPlans = []string{"25skb01"}
	if err := s.SaveSniperTask(sn); err != nil {
		t.Fatal(err)
	}
	tasks, err := s.LoadSniperTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].MatchStatus != domain.MatchCompleted || tasks[0].MatchedPlans[0] != "25skb01" {
		t.Fatalf("bad sniper task: %+v", tasks)
	}

	sub := domain.Subscription{
		PlanCode:        "24sk50",
		NotifyAvailable: true,
		LastKnown:       map[string]string{"gra": "available", "rbx": "unavailable"},
		History: []domain.Transition{
			{Datacenter: "gra", To: "available", Kind: domain.TransitionFirst, At: now},
		},
		CreatedAt: now,
	}
	if err := s.SaveSubscription(sub); err != nil {
		t.Fatal(err)
	}
	subs, err := s.LoadSubscriptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].LastKnown["gra"] != "available" || len(subs[0].History) != 1 {
		t.Fatalf("bad subscription: %+v", subs)
	}
}

func TestSettings(t *testing.T) {
	s := memdb(t)
	if v, err := s.Setting("missing"); err != nil || v != "" {
		t.Fatalf("missing key should be empty, got %q err %v", v, err)
	}
	if err := s.SaveSetting("monitor_interval", "120"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSetting("monitor_interval", "90"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Setting("monitor_interval")
	if err != nil || v != "90" {
		t.Fatalf("want 90, got %q err %v", v, err)
	}
}
