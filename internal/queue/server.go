package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dwarvesf/paylink-backend/internal/settlement"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

type Processor interface {
	Process(ctx context.Context, job settlement.Job, attempt settlement.Attempt) error
}

// Server runs settlement jobs with bounded concurrency.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *logger.Logger
}

func NewServer(redisOpt asynq.RedisConnOpt, cfg config.SettlementConfig, processor Processor, logger *logger.Logger) *Server {
	log := logger.With(map[string]string{"component": "queue"})

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		// long enough for a broadcast transfer to be mined and recorded
		ShutdownTimeout: cfg.ShutdownTimeout,
		Queues:          map[string]int{QueueSettlement: 1},
		RetryDelayFunc:  RetryDelay(cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		Logger:          &asynqLogger{logger: log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retry, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn("[Server][ErrorHandler] task failed", map[string]string{
				"type":      task.Type(),
				"error":     err.Error(),
				"retry":     fmt.Sprintf("%d", retry),
				"max_retry": fmt.Sprintf("%d", maxRetry),
			})
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeSettlement, NewSettlementHandler(processor, cfg.MaxRetry, log))

	return &Server{server: server, mux: mux, logger: log}
}

// Run processes jobs until ctx is done, then waits for in-flight jobs up to
// asynq's shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start queue server: %w", err)
	}
	s.logger.Info("[Server] settlement worker started")

	<-ctx.Done()
	s.server.Shutdown()
	s.logger.Info("[Server] settlement worker stopped")
	return nil
}

// RetryDelay backs off exponentially from base, capped at max.
func RetryDelay(base, max time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		delay := base
		for i := 0; i < n && delay < max; i++ {
			delay *= 2
		}
		if delay > max {
			delay = max
		}
		return delay
	}
}

type SettlementHandler struct {
	processor       Processor
	defaultMaxRetry int
	logger          *logger.Logger
}

func NewSettlementHandler(processor Processor, defaultMaxRetry int, logger *logger.Logger) *SettlementHandler {
	return &SettlementHandler{processor: processor, defaultMaxRetry: defaultMaxRetry, logger: logger}
}

// ProcessTask runs one delivery. Errors that retrying can not fix are
// wrapped in asynq.SkipRetry so the task is archived at once.
func (h *SettlementHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var job settlement.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		h.logger.Error("[SettlementHandler][Unmarshal]", map[string]string{"error": err.Error()})
		return fmt.Errorf("%w: %w: %v", asynq.SkipRetry, settlement.ErrInvalidJob, err)
	}

	attempt := settlement.Attempt{MaxRetry: h.defaultMaxRetry}
	if retry, ok := asynq.GetRetryCount(ctx); ok {
		attempt.Retry = retry
	}
	if maxRetry, ok := asynq.GetMaxRetry(ctx); ok {
		attempt.MaxRetry = maxRetry
	}

	err := h.processor.Process(ctx, job, attempt)
	if err == nil {
		return nil
	}
	if settlement.IsFatal(err) {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	// an interrupted delivery is not archived, even on the last attempt
	if attempt.IsLast() && ctx.Err() == nil {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}
	return err
}

// asynqLogger routes asynq's own logs through the service logger.
type asynqLogger struct {
	logger *logger.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(sprint(args))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(sprint(args))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(sprint(args))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(sprint(args))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(sprint(args))
}

func sprint(args []interface{}) string {
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}
