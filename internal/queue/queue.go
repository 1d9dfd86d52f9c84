// Package queue carries settlement jobs between the API and the workers on
// top of asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dwarvesf/paylink-backend/internal/settlement"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const (
	TypeSettlement  = "settlement:process"
	QueueSettlement = "settlement"
)

// the job level timeout outlives the finality wait so the processor, not
// asynq, reports a transaction that never finalizes
const timeoutGrace = 10 * time.Minute

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// TaskID is stable per inbound transfer, so a repeated notification of the
// same transfer is dropped by asynq.
func TaskID(job settlement.Job) string {
	return "settle:" + job.PaymentLinkID + ":" + strings.ToLower(job.TxHash)
}

func NewSettlementTask(job settlement.Job, cfg config.SettlementConfig) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal settlement job: %w", err)
	}
	return asynq.NewTask(TypeSettlement, payload,
		asynq.Queue(QueueSettlement),
		asynq.MaxRetry(cfg.MaxRetry),
		asynq.Timeout(cfg.FinalityTimeout+timeoutGrace),
		asynq.TaskID(TaskID(job)),
	), nil
}

type Client struct {
	client *asynq.Client
	cfg    config.SettlementConfig
	logger *logger.Logger
}

func NewClient(redisOpt asynq.RedisConnOpt, cfg config.SettlementConfig, logger *logger.Logger) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		cfg:    cfg,
		logger: logger,
	}
}

// EnqueueSettlement queues job for the settlement workers. Enqueueing a job
// that is already queued or running is not an error; duplicate reports false.
func (c *Client) EnqueueSettlement(ctx context.Context, job settlement.Job) (queued bool, err error) {
	if err := job.Validate(); err != nil {
		return false, err
	}

	task, err := NewSettlementTask(job, c.cfg)
	if err != nil {
		return false, err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		c.logger.Info("[EnqueueSettlement] job already queued", map[string]string{
			"payment_link_id": job.PaymentLinkID,
			"tx_hash":         job.TxHash,
		})
		return false, nil
	}
	if err != nil {
		c.logger.Error("[EnqueueSettlement][Enqueue]", map[string]string{
			"payment_link_id": job.PaymentLinkID,
			"error":           err.Error(),
		})
		return false, fmt.Errorf("enqueue settlement: %w", err)
	}

	c.logger.Info("[EnqueueSettlement] job queued", map[string]string{
		"payment_link_id": job.PaymentLinkID,
		"tx_hash":         job.TxHash,
		"task_id":         info.ID,
		"queue":           info.Queue,
	})
	return true, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
