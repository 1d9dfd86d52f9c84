package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/chainstatus"
	"github.com/dwarvesf/paylink-backend/internal/handler/chain"
	"github.com/dwarvesf/paylink-backend/internal/handler/health"
	"github.com/dwarvesf/paylink-backend/internal/handler/metrics"
	"github.com/dwarvesf/paylink-backend/internal/handler/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/handler/settlement"
	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	paymentlinkService "github.com/dwarvesf/paylink-backend/internal/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

// Services are the domain services the HTTP handlers call into.
type Services struct {
	DB               *gorm.DB
	Redis            redis.UniversalClient
	PaymentLinks     paymentlinkService.IService
	Chains           chainstatus.IRegistry
	ChainRPC         chainrpc.IChainRPC
	Settlements      settlement.Enqueuer
	JobStatusManager *monitoring.JobStatusManager
	MetricsRegistry  prometheus.Gatherer
	BusinessMetrics  *monitoring.BusinessMetricsRecorder
}

type Handler struct {
	PaymentLinkHandler paymentlink.IHandler
	ChainHandler       chain.IHandler
	SettlementHandler  settlement.IHandler
	HealthHandler      health.IHealthHandler
	MetricsHandler     *metrics.MetricsHandler
}

func New(appConfig *config.AppConfig, logger *logger.Logger, svc Services) *Handler {
	gatherer := svc.MetricsRegistry
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}

	return &Handler{
		PaymentLinkHandler: paymentlink.New(svc.PaymentLinks, svc.BusinessMetrics, logger),
		ChainHandler:       chain.New(svc.Chains, appConfig, logger),
		SettlementHandler:  settlement.New(svc.Settlements, svc.BusinessMetrics, logger),
		HealthHandler:      health.New(appConfig, logger, svc.DB, svc.ChainRPC, svc.Redis, svc.JobStatusManager),
		MetricsHandler:     metrics.NewMetricsHandler(gatherer),
	}
}
