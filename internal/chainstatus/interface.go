package chainstatus

import (
	"context"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

// IRegistry gates payment-link creation on the operational state of a chain.
type IRegistry interface {
	IsActive(ctx context.Context, chainID uint64) (bool, error)
	SetStatus(ctx context.Context, chainID uint64, status model.ChainState, message string) (*model.ChainStatus, error)
	Get(ctx context.Context, chainID uint64) (*model.ChainStatus, error)
	List(ctx context.Context) ([]model.ChainStatus, error)
}
