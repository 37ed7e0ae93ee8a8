/*
ledger.go - Append-only payment event log

PURPOSE:
  Every payment posting is recorded as a PaymentEvent before the
  installment mutates. The log is the audit trail for "how did earned
  commission get here" and the retry guard for payment recording:
  posting the same idempotency key twice is a no-op.

CORRECTIONS:
  Events are never edited or deleted. A mis-recorded payment is corrected
  through the installment workflow (administrative recalculation), with
  the original event left in place.

SEE ALSO:
  - workflow.go: Records an event inside every payment transaction
  - store.go: AppendPaymentEvent / GetPaymentEventByKey contract
*/
package plan

import (
	"context"
	"errors"
)

// ErrDuplicatePaymentKey is returned when a payment event with the same
// idempotency key already exists. Expected behavior for retries; callers
// treat it as "already recorded".
var ErrDuplicatePaymentKey = errors.New("duplicate payment idempotency key")

// PaymentLedger records payment events append-only.
type PaymentLedger struct {
	Store Store
}

func NewPaymentLedger(store Store) *PaymentLedger {
	return &PaymentLedger{Store: store}
}

// Record appends a payment event. If the idempotency key already exists,
// the existing event is returned alongside ErrDuplicatePaymentKey and
// nothing is written.
func (l *PaymentLedger) Record(ctx context.Context, e PaymentEvent) (*PaymentEvent, error) {
	if e.IdempotencyKey != "" {
		existing, err := l.Store.GetPaymentEventByKey(ctx, e.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, ErrDuplicatePaymentKey
		}
	}

	if err := l.Store.AppendPaymentEvent(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

// History returns a plan's payment events in recording order.
func (l *PaymentLedger) History(ctx context.Context, planID PlanID) ([]PaymentEvent, error) {
	return l.Store.ListPaymentEvents(ctx, planID)
}
