package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// Gateway is the payment collaborator. The real provider lives behind
// another service; this interface is all the admission flow depends on.
type Gateway interface {
	Confirm(ctx context.Context, orderID string, amount decimal.Decimal) (*ConfirmResult, error)
}

type ConfirmResult struct {
	Reference   string
	ConfirmedAt time.Time
}

// sandboxGateway approves every charge with a generated reference.
// Used in development and by the test suite.
type sandboxGateway struct {
	timeout time.Duration
	l       logger.Logger
}

func NewSandboxGateway(timeout time.Duration, l logger.Logger) Gateway {
	return &sandboxGateway{
		timeout: timeout,
		l:       l,
	}
}

func (g *sandboxGateway) Confirm(ctx context.Context, orderID string, amount decimal.Decimal) (*ConfirmResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("payment confirm timed out: %w", ctx.Err())
	default:
	}

	ref := fmt.Sprintf("sandbox-%s", uuid.NewString())

	g.l.Infof(ctx, "Sandbox payment confirmed: order=%s amount=%s ref=%s",
		orderID, amount.StringFixed(2), ref)

	return &ConfirmResult{
		Reference:   ref,
		ConfirmedAt: time.Now(),
	}, nil
}
