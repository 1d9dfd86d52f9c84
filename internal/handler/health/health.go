package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

type HealthHandler struct {
	config           *config.AppConfig
	logger           *logger.Logger
	db               *gorm.DB
	chainRPC         chainrpc.IChainRPC
	redis            redis.UniversalClient
	jobStatusManager *monitoring.JobStatusManager
}

func New(config *config.AppConfig, logger *logger.Logger, db *gorm.DB, chainRPC chainrpc.IChainRPC, redis redis.UniversalClient, jobStatusManager *monitoring.JobStatusManager) IHealthHandler {
	return &HealthHandler{
		config:           config,
		logger:           logger,
		db:               db,
		chainRPC:         chainRPC,
		redis:            redis,
		jobStatusManager: jobStatusManager,
	}
}

// Basic handles the liveness probe
// @Summary Basic health check
// @Description Returns basic system availability status
// @Tags health
// @Produce json
// @Success 200 {object} BasicHealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Basic(c *gin.Context) {
	c.JSON(http.StatusOK, BasicHealthResponse{Message: "ok"})
}

// Database handles the database health check endpoint
// @Summary Database health check
// @Description Validates database connectivity and performance
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/db [get]
func (h *HealthHandler) Database(c *gin.Context) {
	start := time.Now()

	check := h.checkDatabase(requestContext(c))
	response := HealthResponse{
		Status:     check.Status,
		Timestamp:  start,
		Checks:     map[string]HealthCheck{"database": check},
		DurationMs: time.Since(start).Milliseconds(),
	}
	c.JSON(httpStatus(response.Status), response)
}

// External handles the external dependencies health check endpoint. A
// chain that does not answer degrades the service, redis being down or no
// chain answering makes it unhealthy.
// @Summary External dependencies health check
// @Description Validates chain RPC and redis connectivity
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Success 206 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/external [get]
func (h *HealthHandler) External(c *gin.Context) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(requestContext(c), 10*time.Second)
	defer cancel()

	var chains []config.ChainConfig
	if h.config != nil {
		chains = h.config.Blockchain.Chains
	}

	checks := make(map[string]HealthCheck, len(chains)+1)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(name string, check HealthCheck) {
		mu.Lock()
		checks[name] = check
		mu.Unlock()
	}

	for _, chain := range chains {
		wg.Add(1)
		go func(chain config.ChainConfig) {
			defer wg.Done()
			record("chain_"+chain.Name, h.checkChain(ctx, chain))
		}(chain)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		record("redis", h.checkRedis(ctx))
	}()
	wg.Wait()

	chainsDown := 0
	for _, chain := range chains {
		if checks["chain_"+chain.Name].Status != statusHealthy {
			chainsDown++
		}
	}

	status := statusHealthy
	switch {
	case checks["redis"].Status != statusHealthy, len(chains) > 0 && chainsDown == len(chains):
		status = statusUnhealthy
	case chainsDown > 0:
		status = statusDegraded
	}

	response := HealthResponse{
		Status:     status,
		Timestamp:  start,
		Checks:     checks,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if status != statusHealthy {
		h.logger.Warn("[Health][External] dependency check failed", map[string]string{
			"status":      status,
			"chains_down": fmt.Sprintf("%d", chainsDown),
			"redis":       checks["redis"].Status,
		})
	}
	c.JSON(httpStatus(status), response)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) HealthCheck {
	if h.db == nil {
		return unavailable("database connection not available")
	}
	return probe(ctx, 5*time.Second, func(ctx context.Context) (map[string]interface{}, error) {
		sqlDB, err := h.db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, err
		}
		stats := sqlDB.Stats()
		return map[string]interface{}{
			"driver": h.db.Dialector.Name(),
			"connection_pool": map[string]interface{}{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
				"max_open":         stats.MaxOpenConnections,
			},
		}, nil
	})
}

func (h *HealthHandler) checkChain(ctx context.Context, chain config.ChainConfig) HealthCheck {
	if h.chainRPC == nil {
		return unavailable("chain rpc not available")
	}
	return probe(ctx, 3*time.Second, func(ctx context.Context) (map[string]interface{}, error) {
		head, err := h.chainRPC.BlockNumber(ctx, chain.ID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"chain_id":     chain.ID,
			"block_number": head,
		}, nil
	})
}

func (h *HealthHandler) checkRedis(ctx context.Context) HealthCheck {
	if h.redis == nil {
		return unavailable("redis client not available")
	}
	return probe(ctx, 3*time.Second, func(ctx context.Context) (map[string]interface{}, error) {
		return nil, h.redis.Ping(ctx).Err()
	})
}

// probe runs fn under timeout and times it.
func probe(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (map[string]interface{}, error)) HealthCheck {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	metadata, err := fn(ctx)
	check := HealthCheck{
		Status:   statusHealthy,
		Latency:  time.Since(start).Milliseconds(),
		Metadata: metadata,
	}
	if err != nil {
		check.Status = statusUnhealthy
		check.Error = err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			check.Error = "timeout"
		}
	}
	return check
}

func unavailable(reason string) HealthCheck {
	return HealthCheck{Status: statusUnhealthy, Error: reason}
}

func requestContext(c *gin.Context) context.Context {
	if c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}

func httpStatus(status string) int {
	switch status {
	case statusHealthy:
		return http.StatusOK
	case statusDegraded:
		return http.StatusPartialContent
	default:
		return http.StatusServiceUnavailable
	}
}
