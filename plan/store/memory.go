// Package store provides in-memory plan.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pleeno/commission-engine/plan"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	colleges     map[plan.CollegeID]plan.College
	branches     map[plan.BranchID]plan.Branch
	config       *plan.AgencyConfig
	plans        map[plan.PlanID]plan.PaymentPlan
	installments map[plan.InstallmentID]plan.Installment
	events       []plan.PaymentEvent
	eventKeys    map[string]int // idempotency key -> index into events
	auditRuns    []plan.AuditRun
}

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

// -----------------------------------------------------------------------------
// Colleges and branches
// -----------------------------------------------------------------------------

func (m *Memory) SaveCollege(_ context.Context, c plan.College) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCollegeLocked(c)
}

func (m *Memory) saveCollegeLocked(c plan.College) error {
	m.colleges[c.ID] = c
	return nil
}

func (m *Memory) GetCollege(_ context.Context, id plan.CollegeID) (*plan.College, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCollegeLocked(id)
}

func (m *Memory) getCollegeLocked(id plan.CollegeID) (*plan.College, error) {
	c, ok := m.colleges[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListColleges(_ context.Context) ([]plan.College, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCollegesLocked()
}

func (m *Memory) listCollegesLocked() ([]plan.College, error) {
	result := make([]plan.College, 0, len(m.colleges))
	for _, c := range m.colleges {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveBranch(_ context.Context, b plan.Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveBranchLocked(b)
}

func (m *Memory) saveBranchLocked(b plan.Branch) error {
	m.branches[b.ID] = b
	return nil
}

func (m *Memory) GetBranch(_ context.Context, id plan.BranchID) (*plan.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBranchLocked(id)
}

func (m *Memory) getBranchLocked(id plan.BranchID) (*plan.Branch, error) {
	b, ok := m.branches[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) ListBranches(_ context.Context) ([]plan.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listBranchesLocked()
}

func (m *Memory) listBranchesLocked() ([]plan.Branch, error) {
	result := make([]plan.Branch, 0, len(m.branches))
	for _, b := range m.branches {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// -----------------------------------------------------------------------------
// Agency configuration
// -----------------------------------------------------------------------------

func (m *Memory) GetConfig(_ context.Context) (*plan.AgencyConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getConfigLocked()
}

func (m *Memory) getConfigLocked() (*plan.AgencyConfig, error) {
	if m.config == nil {
		return nil, nil
	}
	cfg := *m.config
	return &cfg, nil
}

func (m *Memory) SaveConfig(_ context.Context, cfg plan.AgencyConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveConfigLocked(cfg)
}

func (m *Memory) saveConfigLocked(cfg plan.AgencyConfig) error {
	m.config = &cfg
	return nil
}

// -----------------------------------------------------------------------------
// Plans
// -----------------------------------------------------------------------------

func (m *Memory) SavePlan(_ context.Context, p plan.PaymentPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePlanLocked(p)
}

func (m *Memory) savePlanLocked(p plan.PaymentPlan) error {
	m.plans[p.ID] = p
	return nil
}

func (m *Memory) GetPlan(_ context.Context, id plan.PlanID) (*plan.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPlanLocked(id)
}

func (m *Memory) getPlanLocked(id plan.PlanID) (*plan.PaymentPlan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListPlans(_ context.Context, filter plan.PlanFilter) ([]plan.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPlansLocked(filter)
}

func (m *Memory) listPlansLocked(filter plan.PlanFilter) ([]plan.PaymentPlan, error) {
	var result []plan.PaymentPlan
	for _, p := range m.plans {
		p := p
		if filter.Matches(&p) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) DeletePlan(_ context.Context, id plan.PlanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePlanLocked(id)
}

func (m *Memory) deletePlanLocked(id plan.PlanID) error {
	delete(m.plans, id)
	for instID, inst := range m.installments {
		if inst.PlanID == id {
			delete(m.installments, instID)
		}
	}

	// Compact the event log and rebuild the key index: positions shift.
	kept := m.events[:0]
	for _, e := range m.events {
		if e.PlanID != id {
			kept = append(kept, e)
		}
	}
	m.events = kept
	m.eventKeys = make(map[string]int, len(m.events))
	for i, e := range m.events {
		if e.IdempotencyKey != "" {
			m.eventKeys[e.IdempotencyKey] = i
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Installments
// -----------------------------------------------------------------------------

func (m *Memory) SaveInstallment(_ context.Context, inst plan.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveInstallmentLocked(inst)
}

func (m *Memory) saveInstallmentLocked(inst plan.Installment) error {
	m.installments[inst.ID] = inst
	return nil
}

// SaveInstallments replaces the plan's whole installment set.
func (m *Memory) SaveInstallments(_ context.Context, planID plan.PlanID, insts []plan.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveInstallmentsLocked(planID, insts)
}

func (m *Memory) saveInstallmentsLocked(planID plan.PlanID, insts []plan.Installment) error {
	for id, inst := range m.installments {
		if inst.PlanID == planID {
			delete(m.installments, id)
		}
	}
	for _, inst := range insts {
		m.installments[inst.ID] = inst
	}
	return nil
}

func (m *Memory) GetInstallment(_ context.Context, id plan.InstallmentID) (*plan.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getInstallmentLocked(id)
}

func (m *Memory) getInstallmentLocked(id plan.InstallmentID) (*plan.Installment, error) {
	inst, ok := m.installments[id]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

func (m *Memory) ListInstallments(_ context.Context, planID plan.PlanID) ([]plan.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listInstallmentsLocked(planID)
}

func (m *Memory) listInstallmentsLocked(planID plan.PlanID) ([]plan.Installment, error) {
	var result []plan.Installment
	for _, inst := range m.installments {
		if inst.PlanID == planID {
			result = append(result, inst)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (m *Memory) ListDueInstallments(_ context.Context, before time.Time) ([]plan.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listDueInstallmentsLocked(before)
}

func (m *Memory) listDueInstallmentsLocked(before time.Time) ([]plan.Installment, error) {
	var result []plan.Installment
	for _, inst := range m.installments {
		if inst.Status != plan.InstallmentPending {
			continue
		}
		if inst.StudentDueDate == nil || !inst.StudentDueDate.Before(before) {
			continue
		}
		result = append(result, inst)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PlanID != result[j].PlanID {
			return result[i].PlanID < result[j].PlanID
		}
		return result[i].Number < result[j].Number
	})
	return result, nil
}

// -----------------------------------------------------------------------------
// Payment events
// -----------------------------------------------------------------------------

func (m *Memory) AppendPaymentEvent(_ context.Context, e plan.PaymentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendPaymentEventLocked(e)
}

func (m *Memory) appendPaymentEventLocked(e plan.PaymentEvent) error {
	if e.IdempotencyKey != "" {
		if _, exists := m.eventKeys[e.IdempotencyKey]; exists {
			return plan.ErrDuplicatePaymentKey
		}
		m.eventKeys[e.IdempotencyKey] = len(m.events)
	}
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) GetPaymentEventByKey(_ context.Context, idempotencyKey string) (*plan.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPaymentEventByKeyLocked(idempotencyKey)
}

func (m *Memory) getPaymentEventByKeyLocked(idempotencyKey string) (*plan.PaymentEvent, error) {
	idx, ok := m.eventKeys[idempotencyKey]
	if !ok {
		return nil, nil
	}
	e := m.events[idx]
	return &e, nil
}

func (m *Memory) ListPaymentEvents(_ context.Context, planID plan.PlanID) ([]plan.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPaymentEventsLocked(planID)
}

func (m *Memory) listPaymentEventsLocked(planID plan.PlanID) ([]plan.PaymentEvent, error) {
	var result []plan.PaymentEvent
	for _, e := range m.events {
		if e.PlanID == planID {
			result = append(result, e)
		}
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// Audit runs
// -----------------------------------------------------------------------------

func (m *Memory) RecordAuditRun(_ context.Context, run plan.AuditRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordAuditRunLocked(run)
}

func (m *Memory) recordAuditRunLocked(run plan.AuditRun) error {
	m.auditRuns = append(m.auditRuns, run)
	return nil
}

// ListAuditRuns returns the most recent runs first.
func (m *Memory) ListAuditRuns(_ context.Context, limit int) ([]plan.AuditRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAuditRunsLocked(limit)
}

func (m *Memory) listAuditRunsLocked(limit int) ([]plan.AuditRun, error) {
	result := make([]plan.AuditRun, len(m.auditRuns))
	copy(result, m.auditRuns)
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// Reset
// -----------------------------------------------------------------------------

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

func (m *Memory) resetLocked() {
	m.colleges = make(map[plan.CollegeID]plan.College)
	m.branches = make(map[plan.BranchID]plan.Branch)
	m.config = nil
	m.plans = make(map[plan.PlanID]plan.PaymentPlan)
	m.installments = make(map[plan.InstallmentID]plan.Installment)
	m.events = nil
	m.eventKeys = make(map[string]int)
	m.auditRuns = nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(plan.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Snapshot current state
	snapshot := tm.snapshot()

	// Create a transactional view
	txStore := &txMemoryView{parent: tm}

	// Execute function
	if err := fn(txStore); err != nil {
		// Rollback
		tm.restore(snapshot)
		return err
	}

	// Commit (already done via direct writes)
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		colleges:     make(map[plan.CollegeID]plan.College, len(tm.colleges)),
		branches:     make(map[plan.BranchID]plan.Branch, len(tm.branches)),
		plans:        make(map[plan.PlanID]plan.PaymentPlan, len(tm.plans)),
		installments: make(map[plan.InstallmentID]plan.Installment, len(tm.installments)),
		events:       append([]plan.PaymentEvent{}, tm.events...),
		eventKeys:    make(map[string]int, len(tm.eventKeys)),
		auditRuns:    append([]plan.AuditRun{}, tm.auditRuns...),
	}
	for k, v := range tm.colleges {
		s.colleges[k] = v
	}
	for k, v := range tm.branches {
		s.branches[k] = v
	}
	for k, v := range tm.plans {
		s.plans[k] = v
	}
	for k, v := range tm.installments {
		s.installments[k] = v
	}
	for k, v := range tm.eventKeys {
		s.eventKeys[k] = v
	}
	if tm.config != nil {
		cfg := *tm.config
		s.config = &cfg
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.colleges = s.colleges
	tm.branches = s.branches
	tm.config = s.config
	tm.plans = s.plans
	tm.installments = s.installments
	tm.events = s.events
	tm.eventKeys = s.eventKeys
	tm.auditRuns = s.auditRuns
}

type memorySnapshot struct {
	colleges     map[plan.CollegeID]plan.College
	branches     map[plan.BranchID]plan.Branch
	config       *plan.AgencyConfig
	plans        map[plan.PlanID]plan.PaymentPlan
	installments map[plan.InstallmentID]plan.Installment
	events       []plan.PaymentEvent
	eventKeys    map[string]int
	auditRuns    []plan.AuditRun
}

// txMemoryView runs against the parent's tables while the parent lock is
// held by WithTx. It must never take the lock itself.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SaveCollege(_ context.Context, c plan.College) error {
	return tv.parent.saveCollegeLocked(c)
}

func (tv *txMemoryView) GetCollege(_ context.Context, id plan.CollegeID) (*plan.College, error) {
	return tv.parent.getCollegeLocked(id)
}

func (tv *txMemoryView) ListColleges(_ context.Context) ([]plan.College, error) {
	return tv.parent.listCollegesLocked()
}

func (tv *txMemoryView) SaveBranch(_ context.Context, b plan.Branch) error {
	return tv.parent.saveBranchLocked(b)
}

func (tv *txMemoryView) GetBranch(_ context.Context, id plan.BranchID) (*plan.Branch, error) {
	return tv.parent.getBranchLocked(id)
}

func (tv *txMemoryView) ListBranches(_ context.Context) ([]plan.Branch, error) {
	return tv.parent.listBranchesLocked()
}

func (tv *txMemoryView) GetConfig(_ context.Context) (*plan.AgencyConfig, error) {
	return tv.parent.getConfigLocked()
}

func (tv *txMemoryView) SaveConfig(_ context.Context, cfg plan.AgencyConfig) error {
	return tv.parent.saveConfigLocked(cfg)
}

func (tv *txMemoryView) SavePlan(_ context.Context, p plan.PaymentPlan) error {
	return tv.parent.savePlanLocked(p)
}

func (tv *txMemoryView) GetPlan(_ context.Context, id plan.PlanID) (*plan.PaymentPlan, error) {
	return tv.parent.getPlanLocked(id)
}

func (tv *txMemoryView) ListPlans(_ context.Context, filter plan.PlanFilter) ([]plan.PaymentPlan, error) {
	return tv.parent.listPlansLocked(filter)
}

func (tv *txMemoryView) DeletePlan(_ context.Context, id plan.PlanID) error {
	return tv.parent.deletePlanLocked(id)
}

func (tv *txMemoryView) SaveInstallment(_ context.Context, inst plan.Installment) error {
	return tv.parent.saveInstallmentLocked(inst)
}

func (tv *txMemoryView) SaveInstallments(_ context.Context, planID plan.PlanID, insts []plan.Installment) error {
	return tv.parent.saveInstallmentsLocked(planID, insts)
}

func (tv *txMemoryView) GetInstallment(_ context.Context, id plan.InstallmentID) (*plan.Installment, error) {
	return tv.parent.getInstallmentLocked(id)
}

func (tv *txMemoryView) ListInstallments(_ context.Context, planID plan.PlanID) ([]plan.Installment, error) {
	return tv.parent.listInstallmentsLocked(planID)
}

func (tv *txMemoryView) ListDueInstallments(_ context.Context, before time.Time) ([]plan.Installment, error) {
	return tv.parent.listDueInstallmentsLocked(before)
}

func (tv *txMemoryView) AppendPaymentEvent(_ context.Context, e plan.PaymentEvent) error {
	return tv.parent.appendPaymentEventLocked(e)
}

func (tv *txMemoryView) GetPaymentEventByKey(_ context.Context, idempotencyKey string) (*plan.PaymentEvent, error) {
	return tv.parent.getPaymentEventByKeyLocked(idempotencyKey)
}

func (tv *txMemoryView) ListPaymentEvents(_ context.Context, planID plan.PlanID) ([]plan.PaymentEvent, error) {
	return tv.parent.listPaymentEventsLocked(planID)
}

func (tv *txMemoryView) RecordAuditRun(_ context.Context, run plan.AuditRun) error {
	return tv.parent.recordAuditRunLocked(run)
}

func (tv *txMemoryView) ListAuditRuns(_ context.Context, limit int) ([]plan.AuditRun, error) {
	return tv.parent.listAuditRunsLocked(limit)
}

func (tv *txMemoryView) Reset(_ context.Context) error {
	tv.parent.resetLocked()
	return nil
}
