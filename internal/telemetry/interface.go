package telemetry

import (
	"context"

	"github.com/dwarvesf/paylink-backend/internal/settlement"
)

type ITelemetry interface {
	// IndexDeposits scans every configured chain once and queues a
	// settlement job for each transfer into a PENDING custody wallet.
	IndexDeposits(ctx context.Context) error
}

// Enqueuer is the settlement queue client.
type Enqueuer interface {
	EnqueueSettlement(ctx context.Context, job settlement.Job) (bool, error)
}
