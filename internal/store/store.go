package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"ecosniper/internal/domain"
)

// Store persists the engine's registries. Registries load once at
// startup and write through on every mutation; the store never mutates
// in-memory state itself.
type Store struct{ db *sqlx.DB }

func New(db *sqlx.DB) *Store { return &Store{db: db} }

func marshalJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ---- queue tasks ----

type queueTaskRow struct {
	ID            string         `db:"id"`
	PlanCode      string         `db:"plan_code"`
	Datacenter    string         `db:"datacenter"`
	OptionsJSON   string         `db:"options_json"`
	Status        string         `db:"status"`
	RetryInterval int            `db:"retry_interval"`
	RetryCount    int            `db:"retry_count"`
	MaxRetries    int            `db:"max_retries"`
	LastAttemptAt sql.NullString `db:"last_attempt_at"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
	SniperTaskID  sql.NullString `db:"sniper_task_id"`
}

func (r queueTaskRow) task() domain.QueueTask {
	var opts []string
	_ = json.Unmarshal([]byte(r.OptionsJSON), &opts)
	return domain.QueueTask{
		ID:            r.ID,
		PlanCode:      r.PlanCode,
		Datacenter:    r.Datacenter,
		Options:       opts,
		Status:        r.Status,
		RetryInterval: r.RetryInterval,
		RetryCount:    r.RetryCount,
		MaxRetries:    r.MaxRetries,
		LastAttemptAt: parseTime(r.LastAttemptAt.String),
		CreatedAt:     parseTime(r.CreatedAt),
		UpdatedAt:     parseTime(r.UpdatedAt),
		SniperTaskID:  r.SniperTaskID.String,
	}
}

func (s *Store) SaveTask(t domain.QueueTask) error {
	_, err := s.db.Exec(`
		INSERT INTO queue_tasks(id, plan_code, datacenter, options_json, status,
		  retry_interval, retry_count, max_retries, last_attempt_at, created_at, updated_at, sniper_task_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  status = excluded.status,
		  retry_count = excluded.retry_count,
		  last_attempt_at = excluded.last_attempt_at,
		  updated_at = excluded.updated_at
	`, t.ID, t.PlanCode, t.Datacenter, marshalJSON(t.Options), t.Status,
		t.RetryInterval, t.RetryCount, t.MaxRetries, timeText(t.LastAttemptAt),
		timeText(t.CreatedAt), timeText(t.UpdatedAt), t.SniperTaskID)
	return err
}

func (s *Store) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM queue_tasks WHERE id = ?`, id)
	return err
}

func (s *Store) LoadTasks() ([]domain.QueueTask, error) {
	var rows []queueTaskRow
	if err := s.db.Select(&rows, `SELECT * FROM queue_tasks ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]domain.QueueTask, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.task())
	}
	return out, nil
}

// ---- purchase outcomes ----

type outcomeRow struct {
	TaskID       string         `db:"task_id"`
	PlanCode     string         `db:"plan_code"`
	Datacenter   string         `db:"datacenter"`
	OptionsJSON  string         `db:"options_json"`
	Status       string         `db:"status"`
	OrderID      sql.NullString `db:"order_id"`
	OrderURL     sql.NullString `db:"order_url"`
	ErrorMessage sql.NullString `db:"error_message"`
	AttemptCount int            `db:"attempt_count"`
	PurchaseTime string         `db:"purchase_time"`
}

func (r outcomeRow) outcome() domain.PurchaseOutcome {
	var opts []string
	_ = json.Unmarshal([]byte(r.OptionsJSON), &opts)
	return domain.PurchaseOutcome{
		TaskID:       r.TaskID,
		PlanCode:     r.PlanCode,
		Datacenter:   r.Datacenter,
		Options:      opts,
		Status:       r.Status,
		OrderID:      r.OrderID.String,
		OrderURL:     r.OrderURL.String,
		ErrorMessage: r.ErrorMessage.String,
		AttemptCount: r.AttemptCount,
		PurchaseTime: parseTime(r.PurchaseTime),
	}
}

// UpsertOutcome keeps at most one live outcome per task id.
func (s *Store) UpsertOutcome(o domain.PurchaseOutcome) error {
	_, err := s.db.Exec(`
		INSERT INTO purchase_outcomes(task_id, plan_code, datacenter, options_json,
		  status, order_id, order_url, error_message, attempt_count, purchase_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
		  status = excluded.status,
		  order_id = excluded.order_id,
		  order_url = excluded.order_url,
		  error_message = excluded.error_message,
		  attempt_count = excluded.attempt_count,
		  purchase_time = excluded.purchase_time,
		  options_json = excluded.options_json
	`, o.TaskID, o.PlanCode, o.Datacenter, marshalJSON(o.Options),
		o.Status, o.OrderID, o.OrderURL, o.ErrorMessage, o.AttemptCount, timeText(o.PurchaseTime))
	return err
}

func (s *Store) LoadOutcomes() ([]domain.PurchaseOutcome, error) {
	var rows []outcomeRow
	if err := s.db.Select(&rows, `SELECT * FROM purchase_outcomes ORDER BY purchase_time DESC`); err != nil {
		return nil, err
	}
	out := make([]domain.PurchaseOutcome, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.outcome())
	}
	return out, nil
}

func (s *Store) ClearOutcomes() error {
	_, err := s.db.Exec(`DELETE FROM purchase_outcomes`)
	return err
}

// ---- sniper tasks ----

type sniperRow struct {
	ID             string         `db:"id"`
	SourcePlanCode string         `db:"source_plan_code"`
	BoundMemory    string         `db:"bound_memory"`
	BoundStorage   string         `db:"bound_storage"`
	MatchStatus    string         `db:"match_status"`
	MatchedJSON    string         `db:"matched_json"`
	KnownJSON      string         `db:"known_json"`
	Enabled        bool           `db:"enabled"`
	LastCheckedAt  sql.NullString `db:"last_checked_at"`
	CreatedAt      string         `db:"created_at"`
}

func (r sniperRow) task() domain.SniperTask {
	var matched, known []string
	_ = json.Unmarshal([]byte(r.MatchedJSON), &matched)
	_ = json.Unmarshal([]byte(r.KnownJSON), &known)
	return domain.SniperTask{
		ID:             r.ID,
		SourcePlanCode: r.SourcePlanCode,
		BoundMemory:    r.BoundMemory,
		BoundStorage:   r.BoundStorage,
		MatchStatus:    r.MatchStatus,
		MatchedPlans:   matched,
		KnownPlans:     known,
		Enabled:        r.Enabled,
		LastCheckedAt:  parseTime(r.LastCheckedAt.String),
		CreatedAt:      parseTime(r.CreatedAt),
	}
}

func (s *Store) SaveSniperTask(t domain.SniperTask) error {
	_, err := s.db.Exec(`
		INSERT INTO sniper_tasks(id, source_plan_code, bound_memory, bound_storage,
		  match_status, matched_json, known_json, enabled, last_checked_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  match_status = excluded.match_status,
		  matched_json = excluded.matched_json,
		  known_json = excluded.known_json,
		  enabled = excluded.enabled,
		  last_checked_at = excluded.last_checked_at
	`, t.ID, t.SourcePlanCode, t.BoundMemory, t.BoundStorage,
		t.MatchStatus, marshalJSON(t.MatchedPlans), marshalJSON(t.KnownPlans),
		t.Enabled, timeText(t.LastCheckedAt), timeText(t.CreatedAt))
	return err
}

func (s *Store) DeleteSniperTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM sniper_tasks WHERE id = ?`, id)
	return err
}

func (s *Store) LoadSniperTasks() ([]domain.SniperTask, error) {
	var rows []sniperRow
	if err := s.db.Select(&rows, `SELECT * FROM sniper_tasks ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]domain.SniperTask, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.task())
	}
	return out, nil
}

// ---- subscriptions ----

type subscriptionRow struct {
	PlanCode          string         `db:"plan_code"`
	ServerName        sql.NullString `db:"server_name"`
	DatacentersJSON   string         `db:"datacenters_json"`
	NotifyAvailable   bool           `db:"notify_available"`
	NotifyUnavailable bool           `db:"notify_unavailable"`
	LastKnownJSON     string         `db:"last_known_json"`
	HistoryJSON       string         `db:"history_json"`
	CreatedAt         string         `db:"created_at"`
}

func (r subscriptionRow) subscription() domain.Subscription {
	var dcs []string
	var lastKnown map[string]string
	var history []domain.Transition
	_ = json.Unmarshal([]byte(r.DatacentersJSON), &dcs)
	_ = json.Unmarshal([]byte(r.LastKnownJSON), &lastKnown)
	_ = json.Unmarshal([]byte(r.HistoryJSON), &history)
	if lastKnown == nil {
		lastKnown = map[string]string{}
	}
	return domain.Subscription{
		PlanCode:          r.PlanCode,
		ServerName:        r.ServerName.String,
		Datacenters:       dcs,
		NotifyAvailable:   r.NotifyAvailable,
		NotifyUnavailable: r.NotifyUnavailable,
		LastKnown:         lastKnown,
		History:           history,
		CreatedAt:         parseTime(r.CreatedAt),
	}
}

func (s *Store) SaveSubscription(sub domain.Subscription) error {
	_, err := s.db.Exec(`
		INSERT INTO subscriptions(plan_code, server_name, datacenters_json,
		  notify_available, notify_unavailable, last_known_json, history_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(plan_code) DO UPDATE SET
		  server_name = excluded.server_name,
		  datacenters_json = excluded.datacenters_json,
		  notify_available = excluded.notify_available,
		  notify_unavailable = excluded.notify_unavailable,
		  last_known_json = excluded.last_known_json,
		  history_json = excluded.history_json
	`, sub.PlanCode, sub.ServerName, marshalJSON(sub.Datacenters),
		sub.NotifyAvailable, sub.NotifyUnavailable, marshalJSON(sub.LastKnown),
		marshalJSON(sub.History), timeText(sub.CreatedAt))
	return err
}

func (s *Store) DeleteSubscription(planCode string) error {
	_, err := s.db.Exec(`DELETE FROM subscriptions WHERE plan_code = ?`, planCode)
	return err
}

func (s *Store) LoadSubscriptions() ([]domain.Subscription, error) {
	var rows []subscriptionRow
	if err := s.db.Select(&rows, `SELECT * FROM subscriptions ORDER BY created_at`); err != nil {
		return nil, err
	}
	out := make([]domain.Subscription, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.subscription())
	}
	return out, nil
}

// ---- settings ----

func (s *Store) SaveSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *Store) Setting(key string) (string, error) {
	var v string
	err := s.db.Get(&v, `SELECT value FROM settings WHERE key = ?`, key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
