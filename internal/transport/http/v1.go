package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/paylink-backend/internal/handler"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

func loadV1Routes(r *gin.Engine, h *handler.Handler, opts Options, appConfig *config.AppConfig, logger *logger.Logger) {
	v1 := r.Group("/api/v1")

	seller := sellerAuth(opts.Authenticator, opts.Bans, logger)
	admin := adminAuth(appConfig.ApiServer.AdminAPIKey, logger)

	paymentLinks := v1.Group("/payment-links")
	{
		paymentLinks.GET("/:id", h.PaymentLinkHandler.Get)
		paymentLinks.POST("", seller, h.PaymentLinkHandler.Create)
		paymentLinks.GET("", seller, h.PaymentLinkHandler.List)
		paymentLinks.POST("/:id/cancel", seller, h.PaymentLinkHandler.Cancel)
	}

	chains := v1.Group("/chains")
	{
		chains.GET("", h.ChainHandler.List)
		chains.PUT("/:chainId/status", admin, h.ChainHandler.SetStatus)
	}

	settlements := v1.Group("/settlements", admin)
	{
		settlements.POST("", h.SettlementHandler.Enqueue)
	}

	health := v1.Group("/health")
	{
		health.GET("/db", h.HealthHandler.Database)
		health.GET("/external", h.HealthHandler.External)
		health.GET("/jobs", h.HealthHandler.Jobs)
	}
}
