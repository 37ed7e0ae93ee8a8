package plan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleeno/commission-engine/money"
	"github.com/pleeno/commission-engine/plan"
	"github.com/pleeno/commission-engine/store/sqlite"
)

func newTestLedger(t *testing.T) *plan.PaymentLedger {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return plan.NewPaymentLedger(store)
}

func paymentEvent(id, planID, key string, amount string) plan.PaymentEvent {
	return plan.PaymentEvent{
		ID:             plan.EventID(id),
		PlanID:         plan.PlanID(planID),
		InstallmentID:  "inst-1",
		Amount:         money.NewAmountFromDecimal(money.MustParseDecimal(amount), money.AUD),
		PaidDate:       time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: key,
		RecordedAt:     time.Now(),
		RecordedBy:     "test",
	}
}

func TestPaymentLedger_RecordsInOrder(t *testing.T) {
	// GIVEN: Two payment postings for one plan
	// WHEN: Recording both
	// THEN: History returns them in recording order

	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Record(ctx, paymentEvent("ev-1", "plan-1", "key-1", "2500"))
	require.NoError(t, err)
	_, err = ledger.Record(ctx, paymentEvent("ev-2", "plan-1", "key-2", "2000"))
	require.NoError(t, err)

	events, err := ledger.History(ctx, "plan-1")
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, plan.EventID("ev-1"), events[0].ID)
	assert.Equal(t, plan.EventID("ev-2"), events[1].ID)
}

func TestPaymentLedger_DuplicateKeyReturnsExisting(t *testing.T) {
	// GIVEN: An event recorded under key "key-1"
	// WHEN: Recording a different event with the same key
	// THEN: ErrDuplicatePaymentKey with the original event; nothing appended

	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Record(ctx, paymentEvent("ev-1", "plan-1", "key-1", "2500"))
	require.NoError(t, err)

	existing, err := ledger.Record(ctx, paymentEvent("ev-9", "plan-1", "key-1", "9999"))
	assert.ErrorIs(t, err, plan.ErrDuplicatePaymentKey)
	require.NotNil(t, existing)
	assert.Equal(t, plan.EventID("ev-1"), existing.ID, "the stored event wins")

	events, err := ledger.History(ctx, "plan-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPaymentLedger_EmptyKeySkipsDedup(t *testing.T) {
	// Manual postings without a key are never deduplicated against each other.

	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Record(ctx, paymentEvent("ev-1", "plan-1", "", "100"))
	require.NoError(t, err)
	_, err = ledger.Record(ctx, paymentEvent("ev-2", "plan-1", "", "100"))
	require.NoError(t, err)

	events, err := ledger.History(ctx, "plan-1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestPaymentLedger_HistoryScopedToPlan(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Record(ctx, paymentEvent("ev-1", "plan-1", "key-1", "100"))
	require.NoError(t, err)
	_, err = ledger.Record(ctx, paymentEvent("ev-2", "plan-2", "key-2", "200"))
	require.NoError(t, err)

	events, err := ledger.History(ctx, "plan-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, plan.PlanID("plan-1"), events[0].PlanID)
}
