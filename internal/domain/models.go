package domain

import "time"

// QueueTask statuses.
const (
	TaskRunning   = "running"
	TaskPaused    = "paused"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// SniperTask match statuses.
const (
	MatchPending   = "pending_match"
	MatchMatched   = "matched"
	MatchCompleted = "completed"
)

// PurchaseOutcome statuses.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// QueueTask is one purchase attempt in flight. Mutated only by the
// queue processor; external cancellation goes through the registry's
// cancelled set, never by touching the task directly.
type QueueTask struct {
	ID            string    `json:"id"`
	PlanCode      string    `json:"planCode"`
	Datacenter    string    `json:"datacenter"`
	Options       []string  `json:"options"`
	Status        string    `json:"status"`
	RetryInterval int       `json:"retryInterval"` // seconds between attempts
	RetryCount    int       `json:"retryCount"`
	MaxRetries    int       `json:"maxRetries"` // 0 = retry until cancelled
	LastAttemptAt time.Time `json:"lastAttemptAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	SniperTaskID  string    `json:"sniperTaskId,omitempty"`
}

// PurchaseOutcome is the latest attempt result for a task, upserted on
// every attempt. At most one live outcome per task id.
type PurchaseOutcome struct {
	TaskID       string    `json:"taskId"`
	PlanCode     string    `json:"planCode"`
	Datacenter   string    `json:"datacenter"`
	Options      []string  `json:"options"`
	Status       string    `json:"status"`
	OrderID      string    `json:"orderId,omitempty"`
	OrderURL     string    `json:"orderUrl,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	AttemptCount int       `json:"attemptCount"`
	PurchaseTime time.Time `json:"purchaseTime"`
}

// OrderReceipt is the vendor's answer to a successful checkout.
type OrderReceipt struct {
	OrderID  string `json:"orderId"`
	OrderURL string `json:"orderUrl"`
}

// SniperTask is a standing intent to buy whatever plan matches a bound
// hardware fingerprint, including plans not yet listed.
type SniperTask struct {
	ID             string    `json:"id"`
	SourcePlanCode string    `json:"sourcePlanCode"`
	BoundMemory    string    `json:"boundMemory"`
	BoundStorage   string    `json:"boundStorage"`
	MatchStatus    string    `json:"matchStatus"`
	MatchedPlans   []string  `json:"matchedPlans"`
	KnownPlans     []string  `json:"knownPlans"` // excluded from pending_match discovery
	Enabled        bool      `json:"enabled"`
	LastCheckedAt  time.Time `json:"lastCheckedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Transition classifications per location on a monitor tick.
const (
	TransitionFirst       = "first-observation"
	TransitionAvailable   = "became-available"
	TransitionUnavailable = "became-unavailable"
	TransitionUnchanged   = "unchanged"
)

// Transition is one recorded availability change for a subscription.
type Transition struct {
	Datacenter string    `json:"datacenter"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Kind       string    `json:"kind"`
	At         time.Time `json:"at"`
}

// Subscription watches one plan across a set of datacenters.
type Subscription struct {
	PlanCode          string            `json:"planCode"`
	ServerName        string            `json:"serverName,omitempty"`
	Datacenters       []string          `json:"datacenters"` // empty = all
	NotifyAvailable   bool              `json:"notifyAvailable"`
	NotifyUnavailable bool              `json:"notifyUnavailable"`
	LastKnown         map[string]string `json:"lastKnown"`
	History           []Transition      `json:"history"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// Orderable reports whether a vendor availability state means the plan
// can be ordered right now. Vendor states other than "unavailable" and
// "unknown" (e.g. "1H-low", "72H", "available") count as orderable.
func Orderable(state string) bool {
	return state != "" && state != "unavailable" && state != "unknown"
}
