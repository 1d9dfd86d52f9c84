package server

import (
	"context"
	"fmt"

	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	"github.com/dwarvesf/paylink-backend/internal/paymentlink"
	paymentlinkstore "github.com/dwarvesf/paylink-backend/internal/store/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

// expireJob closes overdue PENDING links and then publishes the remaining
// PENDING backlog.
func expireJob(
	service paymentlink.IService,
	pending func(ctx context.Context) (int64, error),
	metrics *monitoring.BackgroundJobMetrics,
	logger *logger.Logger,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		expired, err := service.ExpireOverdue(ctx)
		if err != nil {
			return fmt.Errorf("expire payment links: %w", err)
		}

		backlog, err := pending(ctx)
		if err != nil {
			logger.Warn("[ExpireJob][PendingCount]", map[string]string{"error": err.Error()})
		} else if metrics != nil {
			metrics.SetPendingPaymentLinks(backlog)
		}

		logger.Debug("[ExpireJob] sweep finished", map[string]string{
			"expired": fmt.Sprintf("%d", expired),
			"pending": fmt.Sprintf("%d", backlog),
		})
		return nil
	}
}

func (a *app) pendingCount(ctx context.Context) (int64, error) {
	_, total, err := a.store.PaymentLink.List(a.db.WithContext(ctx), paymentlinkstore.ListFilter{
		Status: model.PaymentStatusPending,
		Limit:  1,
	})
	return total, err
}
