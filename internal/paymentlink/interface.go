package paymentlink

import (
	"context"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

type IService interface {
	Create(ctx context.Context, params CreateParams) (*model.PaymentLinkView, error)
	Get(ctx context.Context, id string) (*model.PaymentLinkView, error)
	List(ctx context.Context, params ListParams) ([]*model.PaymentLinkView, int64, error)
	Cancel(ctx context.Context, sellerID, id string) (*model.PaymentLinkView, error)
	ExpireOverdue(ctx context.Context) (int, error)
}
