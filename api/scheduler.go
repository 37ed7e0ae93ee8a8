/*
scheduler.go - Automated overdue sweep and commission audit

PURPOSE:
  Periodically runs the two background jobs the engine needs:

  1. Overdue sweep: pending installments whose student due date has passed
     move to overdue, so the dashboard flags late payers.
  2. Commission audit: recomputes each plan's earned commission purely from
     installment state, compares against the cached figure, repairs drift,
     and records an AuditRun for the UI.

  The audit recompute path never reads the cached figure; that is the whole
  point of the reconciliation.

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAuditScheduler(store, handler.Service)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerAudit endpoint (manual audit)
  - plan/workflow.go: MarkOverdue, RepairEarned
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pleeno/commission-engine/plan"
)

// AuditScheduler handles the automated overdue sweep and commission audit.
type AuditScheduler struct {
	Store         plan.TxStore
	Service       *plan.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAuditScheduler creates a new scheduler.
func NewAuditScheduler(store plan.TxStore, service *plan.Service) *AuditScheduler {
	return &AuditScheduler{
		Store:         store,
		Service:       service,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (as *AuditScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	log.Printf("[Scheduler] Started with check interval: %v", as.CheckInterval)
}

// Stop stops the scheduler.
func (as *AuditScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (as *AuditScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.checkAndProcess()

	for {
		select {
		case <-as.ticker.C:
			as.checkAndProcess()
		case <-as.stop:
			return
		}
	}
}

func (as *AuditScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now()

	log.Printf("[Scheduler] Running sweep and audit at %v", now)

	marked, err := as.Service.MarkOverdue(ctx, now)
	if err != nil {
		log.Printf("[Scheduler] Error marking overdue installments: %v", err)
	} else if marked > 0 {
		log.Printf("[Scheduler] Marked %d installments overdue", marked)
	}

	run, err := runCommissionAudit(ctx, as.Store, as.Service)
	if err != nil {
		log.Printf("[Scheduler] Error running commission audit: %v", err)
		return
	}

	if run.DriftFound > 0 {
		log.Printf("[Scheduler] Audit completed: %d plans checked, %d drifted, %d repaired",
			run.PlansChecked, run.DriftFound, run.Repaired)
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (as *AuditScheduler) RunNow() {
	as.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (as *AuditScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(as.CheckInterval)
}

// runCommissionAudit audits every active or completed plan: recompute
// earned from installment state, repair the cache where it drifted, record
// the run. Shared by the scheduler and the TriggerAudit endpoint.
func runCommissionAudit(ctx context.Context, store plan.TxStore, service *plan.Service) (plan.AuditRun, error) {
	run := plan.AuditRun{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}

	plans, err := store.ListPlans(ctx, plan.PlanFilter{
		Statuses: []plan.PlanStatus{plan.PlanActive, plan.PlanCompleted},
	})
	if err != nil {
		return run, err
	}

	for i := range plans {
		cached, recomputed, repaired, err := service.RepairEarned(ctx, plans[i].ID)
		if err != nil {
			log.Printf("[Audit] Error auditing plan %s: %v", plans[i].ID, err)
			continue
		}
		run.PlansChecked++
		if repaired {
			run.DriftFound++
			run.Repaired++
			log.Printf("[Audit] Repaired plan %s: cached=%s recomputed=%s",
				plans[i].ID, cached, recomputed)
		}
	}

	run.FinishedAt = time.Now()
	if err := store.RecordAuditRun(ctx, run); err != nil {
		return run, err
	}

	return run, nil
}
