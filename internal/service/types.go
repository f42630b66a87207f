package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vogiaan1904/ticketbottle-admission/internal/metrics"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
)

// Locker is the cluster-wide mutual exclusion primitive. Executed is
// false (with a nil error) when another instance holds the lock.
type Locker interface {
	ExecuteWithLock(ctx context.Context, name string, task func(ctx context.Context) error) (bool, error)
}

type instrumentedLocker struct {
	inner Locker
}

// NewInstrumentedLocker counts acquisition outcomes without the lock
// implementation having to know about metrics.
func NewInstrumentedLocker(inner Locker) Locker {
	return &instrumentedLocker{inner: inner}
}

func (l *instrumentedLocker) ExecuteWithLock(ctx context.Context, name string, task func(ctx context.Context) error) (bool, error) {
	executed, err := l.inner.ExecuteWithLock(ctx, name, task)
	switch {
	case err != nil:
		metrics.RecordLockAcquisition("error")
	case executed:
		metrics.RecordLockAcquisition("acquired")
	default:
		metrics.RecordLockAcquisition("held")
	}
	return executed, err
}

// BatchResult reports a batch run. Individual failures never abort the
// run; they only show up in the counts.
type BatchResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (r *BatchResult) add(other BatchResult) {
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
}

type QueueStatusOutput struct {
	EventID string                  `json:"event_id"`
	UserID  string                  `json:"user_id"`
	Rank    int                     `json:"rank"`
	Status  models.QueueEntryStatus `json:"status"`
	// WaitingAhead comes from the Redis mirror and is advisory only;
	// -1 means it could not be determined.
	WaitingAhead int64      `json:"waiting_ahead"`
	EnteredAt    *time.Time `json:"entered_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

type ConfirmPaymentOutput struct {
	OrderRef string          `json:"order_ref"`
	SeatID   string          `json:"seat_id"`
	SeatCode string          `json:"seat_code"`
	Amount   decimal.Decimal `json:"amount"`
}
