package monitoring

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/dwarvesf/paylink-backend/internal/oracle"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const oracleBreakerName = "price_oracle"

// CircuitBreakerOracle wraps oracle.IOracle with a single circuit breaker.
type CircuitBreakerOracle struct {
	wrapped        oracle.IOracle
	circuitBreaker *gobreaker.CircuitBreaker
	timeout        time.Duration
	metrics        *ExternalAPIMetrics
	logger         *logger.Logger
}

func NewCircuitBreakerOracle(wrapped oracle.IOracle, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerOracle {
	settings := gobreaker.Settings{
		Name:        oracleBreakerName,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.ConsecutiveFailureThreshold)
		},
		IsSuccessful: func(err error) bool {
			// an unpriced asset is a caller problem, not an outage
			return err == nil || errors.Is(err, oracle.ErrUnsupportedAsset)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			metrics.UpdateCircuitBreakerState(name, to)
		},
	}
	metrics.UpdateCircuitBreakerState(oracleBreakerName, gobreaker.StateClosed)

	return &CircuitBreakerOracle{
		wrapped:        wrapped,
		circuitBreaker: gobreaker.NewCircuitBreaker(settings),
		timeout:        DefaultTimeoutConfig.RequestTimeout,
		metrics:        metrics,
		logger:         logger,
	}
}

type priceResult struct {
	price decimal.Decimal
	asOf  time.Time
}

func (cb *CircuitBreakerOracle) GetPrice(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, time.Time, error) {
	result, err := cb.circuitBreaker.Execute(func() (interface{}, error) {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, cb.timeout)
		defer cancel()

		price, asOf, err := cb.wrapped.GetPrice(callCtx, chainID, tokenAddress)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				cb.metrics.RecordTimeout(oracleBreakerName, "get_price")
			}
			cb.logger.Error("External API call failed", map[string]string{
				"service":    oracleBreakerName,
				"operation":  "get_price",
				"chain_id":   strconv.FormatUint(chainID, 10),
				"error":      err.Error(),
				"error_type": string(classifyError(err)),
			})
		}
		cb.metrics.RecordAPICall(oracleBreakerName, "get_price", status, duration)
		if err != nil {
			return nil, err
		}
		return priceResult{price: price, asOf: asOf}, nil
	})
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	r := result.(priceResult)
	return r.price, r.asOf, nil
}

func (cb *CircuitBreakerOracle) State() gobreaker.State {
	return cb.circuitBreaker.State()
}
