package settlement

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	"github.com/dwarvesf/paylink-backend/internal/queue"
	settlementService "github.com/dwarvesf/paylink-backend/internal/settlement"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
	"github.com/dwarvesf/paylink-backend/internal/view"
)

// Enqueuer hands settlement jobs to the worker queue. queued is false when
// the same transfer was already enqueued.
type Enqueuer interface {
	EnqueueSettlement(ctx context.Context, job settlementService.Job) (queued bool, err error)
}

// EnqueueRequest is sent by the chain watcher once it sees a transfer into a
// payment link's custody wallet.
type EnqueueRequest struct {
	PaymentLinkID string  `json:"payment_link_id" binding:"required"`
	TxHash        string  `json:"tx_hash" binding:"required"`
	Amount        string  `json:"amount" binding:"required"`
	BlockNumber   *uint64 `json:"block_number"`
}

type EnqueueResponse struct {
	TaskID string `json:"task_id"`
	Queued bool   `json:"queued"`
}

type handler struct {
	queue   Enqueuer
	metrics *monitoring.BusinessMetricsRecorder
	logger  *logger.Logger
}

func New(queue Enqueuer, metrics *monitoring.BusinessMetricsRecorder, logger *logger.Logger) IHandler {
	return &handler{
		queue:   queue,
		metrics: metrics,
		logger:  logger,
	}
}

// Enqueue godoc
// @Summary Enqueue settlement
// @Description Queues settlement of an inbound transfer. Repeated calls for the same transfer are accepted and ignored
// @id enqueueSettlement
// @Tags Settlement
// @Accept json
// @Produce json
// @Security AdminKey
// @Param request body EnqueueRequest true "Detected inbound transfer"
// @Success 202 {object} view.Response[EnqueueResponse]
// @Failure 400 {object} view.ErrorResponse
// @Failure 401 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /settlements [post]
func (h *handler) Enqueue(c *gin.Context) {
	start := time.Now()

	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	job := settlementService.Job{
		PaymentLinkID: req.PaymentLinkID,
		TxHash:        req.TxHash,
		Amount:        req.Amount,
		BlockNumber:   req.BlockNumber,
	}
	queued, err := h.queue.EnqueueSettlement(c.Request.Context(), job)
	if err != nil {
		h.record("error", start)
		if errors.Is(err, settlementService.ErrInvalidJob) {
			c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
			return
		}
		h.logger.Error("[EnqueueSettlement][EnqueueSettlement]", map[string]string{
			"payment_link_id": req.PaymentLinkID,
			"tx_hash":         req.TxHash,
			"error":           err.Error(),
		})
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, req, "failed to enqueue settlement"))
		return
	}

	status := "queued"
	if !queued {
		status = "duplicate"
	}
	h.record(status, start)

	c.JSON(http.StatusAccepted, view.CreateResponse(EnqueueResponse{
		TaskID: queue.TaskID(job),
		Queued: queued,
	}, nil, nil, "settlement "+status))
}

func (h *handler) record(status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordSettlementEnqueue(status, time.Since(start).Seconds())
}
