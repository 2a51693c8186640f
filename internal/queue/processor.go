package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ecosniper/internal/domain"
	applog "ecosniper/internal/log"
)

// Purchaser runs one purchase attempt end to end.
type Purchaser interface {
	Attempt(ctx context.Context, task domain.QueueTask) (domain.OrderReceipt, error)
}

// OutcomeSink records the latest attempt result per task.
type OutcomeSink interface {
	UpsertOutcome(domain.PurchaseOutcome) error
}

// Notifier delivers best-effort messages. May be nil.
type Notifier interface {
	Notify(message string) bool
}

// Processor drives the queue: each tick it scans the registry, launches
// an attempt for every eligible task, and folds results back into the
// registry and outcome sink. Attempts for distinct tasks run
// concurrently; the registry guarantees at most one attempt per task.
type Processor struct {
	reg       *Registry
	purchaser Purchaser
	outcomes  OutcomeSink
	notifier  Notifier
	tick      time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewProcessor(reg *Registry, purchaser Purchaser, outcomes OutcomeSink, notifier Notifier, tick time.Duration) *Processor {
	if tick <= 0 {
		tick = time.Second
	}
	return &Processor{
		reg:       reg,
		purchaser: purchaser,
		outcomes:  outcomes,
		notifier:  notifier,
		tick:      tick,
		now:       time.Now,
	}
}

// Run loops until the context is cancelled, then waits for in-flight
// attempts to drain.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	applog.Info("queue", "processor started", map[string]any{"tick": p.tick.String()})
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			applog.Info("queue", "processor stopped", nil)
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick scans once. Exported so tests can drive the processor without a
// ticker.
func (p *Processor) Tick(ctx context.Context) {
	for _, t := range p.reg.Snapshot() {
		if t.Status != domain.TaskRunning {
			continue
		}
		if p.reg.Cancelled(t.ID) {
			continue
		}
		if t.MaxRetries > 0 && t.RetryCount >= t.MaxRetries {
			p.reg.Finish(t.ID, domain.TaskFailed)
			applog.Warn("queue", "task exhausted retries", map[string]any{
				"task": t.ID, "plan": t.PlanCode, "attempts": t.RetryCount,
			})
			continue
		}
		if !p.eligible(t) {
			continue
		}
		task, ok := p.reg.BeginAttempt(t.ID)
		if !ok {
			continue
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer p.reg.EndAttempt(task.ID)
			p.attempt(ctx, task)
		}()
	}
}

// eligible applies the retry gate: a task never attempted goes
// immediately, otherwise the full retry interval must have elapsed.
func (p *Processor) eligible(t domain.QueueTask) bool {
	if t.LastAttemptAt.IsZero() {
		return true
	}
	interval := time.Duration(t.RetryInterval) * time.Second
	return p.now().Sub(t.LastAttemptAt) >= interval
}

func (p *Processor) attempt(ctx context.Context, task domain.QueueTask) {
	receipt, err := p.purchaser.Attempt(ctx, task)

	outcome := domain.PurchaseOutcome{
		TaskID:       task.ID,
		PlanCode:     task.PlanCode,
		Datacenter:   task.Datacenter,
		Options:      task.Options,
		AttemptCount: task.RetryCount,
		PurchaseTime: p.now(),
	}

	switch {
	case err == nil:
		outcome.Status = domain.OutcomeSuccess
		outcome.OrderID = receipt.OrderID
		outcome.OrderURL = receipt.OrderURL
		p.reg.Finish(task.ID, domain.TaskCompleted)
		applog.Info("queue", "purchase succeeded", map[string]any{
			"task": task.ID, "plan": task.PlanCode, "datacenter": task.Datacenter, "order": receipt.OrderID,
		})
		if p.notifier != nil {
			p.notifier.Notify(fmt.Sprintf(
				"Purchase succeeded\nPlan: %s\nDatacenter: %s\nOrder: %s\n%s",
				task.PlanCode, task.Datacenter, receipt.OrderID, receipt.OrderURL,
			))
		}
	case errors.Is(err, domain.ErrNoStock):
		// expected while the window is closed, the task stays running
		outcome.Status = domain.OutcomeFailed
		outcome.ErrorMessage = fmt.Sprintf("no stock at %s", task.Datacenter)
		applog.Info("queue", "no stock, will retry", map[string]any{
			"task": task.ID, "plan": task.PlanCode, "datacenter": task.Datacenter, "attempt": task.RetryCount,
		})
	default:
		outcome.Status = domain.OutcomeFailed
		outcome.ErrorMessage = err.Error()
		applog.Error("queue", "purchase attempt failed", err, map[string]any{
			"task": task.ID, "plan": task.PlanCode, "attempt": task.RetryCount,
		})
	}

	if err := p.outcomes.UpsertOutcome(outcome); err != nil {
		applog.Error("queue", "persist outcome", err, map[string]any{"task": task.ID})
	}
}
