package monitoring

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

// CircuitBreakerChainRPC wraps chainrpc.IChainRPC with one circuit breaker
// per chain, so a dead RPC on one network does not block the others.
type CircuitBreakerChainRPC struct {
	wrapped       chainrpc.IChainRPC
	config        CircuitBreakerConfig
	timeoutConfig TimeoutConfig
	metrics       *ExternalAPIMetrics
	logger        *logger.Logger

	mu       sync.Mutex
	breakers map[uint64]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerChainRPC creates a new circuit breaker wrapper for chain RPC
func NewCircuitBreakerChainRPC(wrapped chainrpc.IChainRPC, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerChainRPC {
	return NewCircuitBreakerChainRPCWithTimeout(wrapped, config, DefaultTimeoutConfig, metrics, logger)
}

// NewCircuitBreakerChainRPCWithTimeout creates a new circuit breaker wrapper with custom timeout config
func NewCircuitBreakerChainRPCWithTimeout(wrapped chainrpc.IChainRPC, config CircuitBreakerConfig, timeoutConfig TimeoutConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerChainRPC {
	return &CircuitBreakerChainRPC{
		wrapped:       wrapped,
		config:        config,
		timeoutConfig: timeoutConfig,
		metrics:       metrics,
		logger:        logger,
		breakers:      make(map[uint64]*gobreaker.CircuitBreaker),
	}
}

func breakerName(chainID uint64) string {
	return "chain_rpc_" + strconv.FormatUint(chainID, 10)
}

func (cb *CircuitBreakerChainRPC) breaker(chainID uint64) *gobreaker.CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if b, ok := cb.breakers[chainID]; ok {
		return b
	}

	settings := gobreaker.Settings{
		Name:        breakerName(chainID),
		MaxRequests: cb.config.MaxRequests,
		Interval:    cb.config.Interval,
		Timeout:     cb.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cb.config.ConsecutiveFailureThreshold)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isBreakerNeutral(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cb.logger.Info("Circuit breaker state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			cb.metrics.UpdateCircuitBreakerState(name, to)
		},
	}

	b := gobreaker.NewCircuitBreaker(settings)
	cb.breakers[chainID] = b
	cb.metrics.UpdateCircuitBreakerState(settings.Name, gobreaker.StateClosed)
	return b
}

// State reports the breaker state of one chain.
func (cb *CircuitBreakerChainRPC) State(chainID uint64) gobreaker.State {
	return cb.breaker(chainID).State()
}

// isBreakerNeutral lists errors that say nothing about RPC health.
func isBreakerNeutral(err error) bool {
	return errors.Is(err, chainrpc.ErrReceiptNotFound) ||
		errors.Is(err, chainrpc.ErrUnknownChain) ||
		errors.Is(err, chainrpc.ErrInsufficientBalance) ||
		errors.Is(err, chainrpc.ErrTransactionReverted) ||
		errors.Is(err, context.Canceled)
}

// execute runs fn through the chain breaker with a per-operation deadline and
// records the call.
func (cb *CircuitBreakerChainRPC) execute(ctx context.Context, chainID uint64, operation string, timeout time.Duration, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	name := breakerName(chainID)

	return cb.breaker(chainID).Execute(func() (interface{}, error) {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := fn(callCtx)
		duration := time.Since(start).Seconds()

		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			cb.metrics.RecordTimeout(name, operation)
			cb.logError(name, operation, duration, err)
			return nil, fmt.Errorf("timeout: %w", err)
		}

		status := "success"
		if err != nil && !errors.Is(err, chainrpc.ErrReceiptNotFound) {
			status = "error"
			cb.logError(name, operation, duration, err)
		}
		cb.metrics.RecordAPICall(name, operation, status, duration)
		return result, err
	})
}

func (cb *CircuitBreakerChainRPC) TransactionReceipt(ctx context.Context, chainID uint64, txHash string) (*chainrpc.Receipt, error) {
	result, err := cb.execute(ctx, chainID, "transaction_receipt", cb.timeoutConfig.RequestTimeout, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.TransactionReceipt(ctx, chainID, txHash)
	})
	if err != nil {
		return nil, err
	}
	return result.(*chainrpc.Receipt), nil
}

func (cb *CircuitBreakerChainRPC) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	result, err := cb.execute(ctx, chainID, "block_number", cb.timeoutConfig.RequestTimeout, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.BlockNumber(ctx, chainID)
	})
	if err != nil {
		return 0, err
	}
	return result.(uint64), nil
}

func (cb *CircuitBreakerChainRPC) TransferFrom(ctx context.Context, req chainrpc.TransferFromRequest) (*chainrpc.TransferResult, error) {
	result, err := cb.execute(ctx, req.ChainID, "transfer_from", cb.timeoutConfig.TransferTimeout, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.TransferFrom(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*chainrpc.TransferResult), nil
}

func (cb *CircuitBreakerChainRPC) ExecuteSwap(ctx context.Context, req chainrpc.SwapRequest) (*chainrpc.TransferResult, error) {
	result, err := cb.execute(ctx, req.ChainID, "execute_swap", cb.timeoutConfig.TransferTimeout, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.ExecuteSwap(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*chainrpc.TransferResult), nil
}

func (cb *CircuitBreakerChainRPC) TransferTo(ctx context.Context, req chainrpc.TransferToRequest) (*chainrpc.TransferResult, error) {
	result, err := cb.execute(ctx, req.ChainID, "transfer_to", cb.timeoutConfig.TransferTimeout, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.TransferTo(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*chainrpc.TransferResult), nil
}

func (cb *CircuitBreakerChainRPC) EstimateTransferCost(ctx context.Context, chainID uint64, token string) (*big.Int, error) {
	result, err := cb.execute(ctx, chainID, "estimate_transfer_cost", cb.timeoutConfig.RequestTimeout, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.EstimateTransferCost(ctx, chainID, token)
	})
	if err != nil {
		return nil, err
	}
	return result.(*big.Int), nil
}

func (cb *CircuitBreakerChainRPC) ScanDeposits(ctx context.Context, req chainrpc.ScanRequest) ([]chainrpc.Deposit, error) {
	result, err := cb.execute(ctx, req.ChainID, "scan_deposits", cb.timeoutConfig.TransferTimeout, func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.ScanDeposits(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	deposits, _ := result.([]chainrpc.Deposit)
	return deposits, nil
}

func (cb *CircuitBreakerChainRPC) logError(service, operation string, duration float64, err error) {
	cb.logger.Error("External API call failed", map[string]string{
		"service":    service,
		"operation":  operation,
		"duration":   strconv.FormatFloat(duration, 'f', 3, 64),
		"error":      err.Error(),
		"error_type": string(classifyError(err)),
	})
}

// classifyError classifies errors into different types for metrics and logging
func classifyError(err error) APIErrorType {
	if err == nil {
		return ""
	}

	errMsg := strings.ToLower(err.Error())

	// Timeout errors
	if strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") ||
		strings.Contains(errMsg, "context canceled") {
		return ErrorTypeTimeout
	}

	// Network errors
	if strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "connection") ||
		strings.Contains(errMsg, "unreachable") ||
		strings.Contains(errMsg, "dns") {
		return ErrorTypeNetworkError
	}

	// Server errors (5xx)
	if strings.Contains(errMsg, "500") ||
		strings.Contains(errMsg, "502") ||
		strings.Contains(errMsg, "503") ||
		strings.Contains(errMsg, "504") ||
		strings.Contains(errMsg, "internal server error") ||
		strings.Contains(errMsg, "bad gateway") ||
		strings.Contains(errMsg, "service unavailable") {
		return ErrorTypeServerError
	}

	// Client errors (4xx)
	if strings.Contains(errMsg, "400") ||
		strings.Contains(errMsg, "401") ||
		strings.Contains(errMsg, "403") ||
		strings.Contains(errMsg, "404") ||
		strings.Contains(errMsg, "429") ||
		strings.Contains(errMsg, "bad request") ||
		strings.Contains(errMsg, "unauthorized") ||
		strings.Contains(errMsg, "forbidden") ||
		strings.Contains(errMsg, "not found") ||
		strings.Contains(errMsg, "rate limit") {
		return ErrorTypeClientError
	}

	return ErrorTypeUnknown
}

// ValidateCircuitBreakerConfig validates circuit breaker configuration
func ValidateCircuitBreakerConfig(config CircuitBreakerConfig) error {
	if config.MaxRequests == 0 {
		return fmt.Errorf("max_requests must be greater than 0")
	}

	if config.ConsecutiveFailureThreshold <= 0 {
		return fmt.Errorf("consecutive_failure_threshold must be greater than 0")
	}

	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if config.Interval < 0 {
		return fmt.Errorf("interval must be non-negative")
	}

	return nil
}
