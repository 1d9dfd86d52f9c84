package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	"github.com/dwarvesf/paylink-backend/internal/store"
	"github.com/dwarvesf/paylink-backend/internal/store/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

// a run gives up re-reading a link that keeps changing under it
const maxReloads = 3

const maxErrorMessageLength = 1000

type Processor struct {
	db       *gorm.DB
	store    *store.Store
	rpc      chainrpc.IChainRPC
	keys     KeyProvider
	fees     FeeEstimator
	notifier Notifier
	metrics  *monitoring.SettlementMetrics
	logger   *logger.Logger

	pollInterval    time.Duration
	rpcTimeout      time.Duration
	finalityTimeout time.Duration
	feeWallet       string
	now             func() time.Time
}

func New(
	db *gorm.DB,
	store *store.Store,
	appConfig *config.AppConfig,
	rpc chainrpc.IChainRPC,
	keys KeyProvider,
	fees FeeEstimator,
	notifier Notifier,
	metrics *monitoring.SettlementMetrics,
	logger *logger.Logger,
) *Processor {
	return &Processor{
		db:              db,
		store:           store,
		rpc:             rpc,
		keys:            keys,
		fees:            fees,
		notifier:        notifier,
		metrics:         metrics,
		logger:          logger.With(map[string]string{"component": "settlement"}),
		pollInterval:    appConfig.Settlement.PollInterval,
		rpcTimeout:      appConfig.Settlement.RPCTimeout,
		finalityTimeout: appConfig.Settlement.FinalityTimeout,
		feeWallet:       appConfig.Blockchain.FeeWalletAddress,
		now:             time.Now,
	}
}

// Process settles one inbound transfer. It is safe to call again for the
// same job: a link in a terminal state is left untouched and completed
// transfers are not repeated. The link is marked FAILED when the error is
// fatal or this is the last attempt, never because ctx was cancelled.
func (p *Processor) Process(ctx context.Context, job Job, attempt Attempt) error {
	start := time.Now()
	outcome := "completed"
	defer func() {
		p.metrics.RecordJob(outcome, time.Since(start).Seconds())
	}()

	log := p.logger.With(map[string]string{
		"payment_link_id": job.PaymentLinkID,
		"tx_hash":         job.TxHash,
	})

	if err := job.Validate(); err != nil {
		outcome = "failed"
		log.Error("[Process][Validate]", map[string]string{"error": err.Error()})
		return err
	}

	link, err := p.store.PaymentLink.GetByID(p.db.WithContext(ctx), job.PaymentLinkID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		outcome = "failed"
		log.Error("[Process][GetByID] payment link not found")
		return fmt.Errorf("%w: %s", ErrPaymentLinkNotFound, job.PaymentLinkID)
	}
	if err != nil {
		outcome = "retry"
		log.Error("[Process][GetByID]", map[string]string{"error": err.Error()})
		return fmt.Errorf("load payment link: %w", err)
	}
	if link.Status.IsTerminal() {
		outcome = "noop"
		log.Info("[Process] payment link already settled", map[string]string{"status": string(link.Status)})
		return nil
	}

	err = p.run(ctx, link, job)
	if err == nil {
		log.Info("[Process] payment settled")
		return nil
	}
	if errors.Is(err, errNothingToDo) {
		outcome = "noop"
		return nil
	}

	if !IsFatal(err) && ctx.Err() != nil {
		// shutdown or job deadline: the task is delivered again, the link
		// keeps its status
		outcome = "interrupted"
		log.Warn("[Process] settlement interrupted", map[string]string{
			"error": err.Error(),
			"step":  StepOf(err),
			"retry": fmt.Sprintf("%d", attempt.Retry),
		})
		return err
	}

	if IsFatal(err) || attempt.IsLast() {
		outcome = "failed"
		log.Error("[Process] settlement failed", map[string]string{
			"error": err.Error(),
			"step":  StepOf(err),
			"fatal": fmt.Sprintf("%t", IsFatal(err)),
		})
		p.markFailed(ctx, link, err)
		return err
	}

	outcome = "retry"
	log.Warn("[Process] settlement attempt failed, will retry", map[string]string{
		"error":     err.Error(),
		"step":      StepOf(err),
		"retry":     fmt.Sprintf("%d", attempt.Retry),
		"max_retry": fmt.Sprintf("%d", attempt.MaxRetry),
	})
	return err
}

// run drives the link from its current status to COMPLETED.
func (p *Processor) run(ctx context.Context, link *model.PaymentLink, job Job) error {
	var inbound *model.Transaction
	reloads := 0

	for {
		if link.Status == model.PaymentStatusCompleted {
			return nil
		}
		if link.Status.IsTerminal() {
			p.logger.Warn("[Process] payment link closed while settling", map[string]string{
				"payment_link_id": link.ID,
				"status":          string(link.Status),
			})
			return errNothingToDo
		}

		var err error
		switch {
		case inbound == nil:
			inbound, err = p.detect(ctx, link, job)
		case link.Status == model.PaymentStatusDetected, link.Status == model.PaymentStatusConfirming:
			err = p.awaitConfirmations(ctx, link, inbound)
		case link.Status == model.PaymentStatusProcessing:
			err = p.settle(ctx, link, inbound)
		default:
			return fmt.Errorf("unexpected status %s after detection", link.Status)
		}

		if errors.Is(err, paymentlink.ErrStaleState) && reloads < maxReloads {
			reloads++
			if reloadErr := p.reload(ctx, link); reloadErr != nil {
				return reloadErr
			}
			continue
		}
		if err != nil {
			return err
		}
	}
}

func (p *Processor) reload(ctx context.Context, link *model.PaymentLink) error {
	fresh, err := p.store.PaymentLink.GetByID(p.db.WithContext(ctx), link.ID)
	if err != nil {
		return fmt.Errorf("reload payment link: %w", err)
	}
	*link = *fresh
	return nil
}

// detect records the inbound transfer and moves a PENDING link to DETECTED
// in one database transaction. For a link past PENDING it returns the
// inbound transfer recorded earlier.
func (p *Processor) detect(ctx context.Context, link *model.PaymentLink, job Job) (*model.Transaction, error) {
	db := p.db.WithContext(ctx)
	txHash := strings.ToLower(job.TxHash)

	if link.Status != model.PaymentStatusPending {
		existing, err := p.store.Transaction.GetByType(db, link.ID, model.TransactionTypeInbound)
		if err == nil {
			if existing.TxHash != txHash {
				p.logger.Warn("[Process][Detect] payment link is settling another inbound transfer", map[string]string{
					"payment_link_id": link.ID,
					"tx_hash":         txHash,
					"settling":        existing.TxHash,
				})
				return nil, errNothingToDo
			}
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, withStep(StepDetecting, fmt.Errorf("load inbound transaction: %w", err))
		}
	}

	record := &model.Transaction{
		PaymentLinkID: link.ID,
		TxHash:        txHash,
		Type:          model.TransactionTypeInbound,
		Amount:        job.Amount,
		Status:        model.TransactionStatusPending,
	}
	if job.BlockNumber != nil {
		record.BlockNumber = *job.BlockNumber
	}

	var inbound *model.Transaction
	detected := false
	err := store.DoInTx(db, func(tx *gorm.DB) error {
		saved, _, err := p.store.Transaction.GetOrCreate(tx, record)
		if err != nil {
			return err
		}
		inbound = saved

		if link.Status != model.PaymentStatusPending {
			return nil
		}
		if err := p.store.PaymentLink.Transition(tx, link, model.PaymentStatusDetected, nil); err != nil {
			return err
		}
		detected = true
		return nil
	})
	if err != nil {
		return nil, withStep(StepDetecting, err)
	}

	if detected {
		p.emit(ctx, model.PaymentEventDetected, link, map[string]interface{}{
			"txHash": txHash,
			"amount": job.Amount,
		})
	}
	return inbound, nil
}

// markFailed records the failure on the link and emits PAYMENT_FAILED, once.
func (p *Processor) markFailed(ctx context.Context, link *model.PaymentLink, cause error) {
	ctx = context.WithoutCancel(ctx)
	db := p.db.WithContext(ctx)
	step := StepOf(cause)

	message := cause.Error()
	if len(message) > maxErrorMessageLength {
		message = message[:maxErrorMessageLength]
	}
	columns := map[string]interface{}{
		"error_message": message,
		"failed_step":   step,
	}

	for i := 0; i <= maxReloads; i++ {
		if link.Status.IsTerminal() {
			return
		}
		if link.Status == model.PaymentStatusPending {
			// PENDING can not move to FAILED: the link stays open and can
			// still expire, the seller is told about the failed transfer
			p.logger.Warn("[MarkFailed] payment link never left PENDING", map[string]string{
				"payment_link_id": link.ID,
				"error":           message,
			})
			p.emit(ctx, model.PaymentEventFailed, link, failureData(message, step))
			return
		}

		err := p.store.PaymentLink.Transition(db, link, model.PaymentStatusFailed, columns)
		if err == nil {
			link.ErrorMessage = message
			link.FailedStep = step
			p.emit(ctx, model.PaymentEventFailed, link, failureData(message, step))
			return
		}
		if !errors.Is(err, paymentlink.ErrStaleState) {
			p.logger.Error("[MarkFailed][Transition]", map[string]string{
				"payment_link_id": link.ID,
				"error":           err.Error(),
			})
			return
		}
		if err := p.reload(ctx, link); err != nil {
			p.logger.Error("[MarkFailed][Reload]", map[string]string{
				"payment_link_id": link.ID,
				"error":           err.Error(),
			})
			return
		}
	}
}

func failureData(message, step string) map[string]interface{} {
	data := map[string]interface{}{"error": message}
	if step != "" {
		data["step"] = step
	}
	return data
}

func (p *Processor) emit(ctx context.Context, eventType model.PaymentEventType, link *model.PaymentLink, data map[string]interface{}) {
	p.metrics.RecordEvent(string(eventType))
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, model.NewPaymentEvent(eventType, link, data)); err != nil {
		p.logger.Warn("[Notify] failed to publish payment event", map[string]string{
			"payment_link_id": link.ID,
			"type":            string(eventType),
			"error":           err.Error(),
		})
	}
}

func (p *Processor) progress(ctx context.Context, link *model.PaymentLink, step string, data map[string]interface{}) {
	payload := map[string]interface{}{"step": step}
	for k, v := range data {
		payload[k] = v
	}
	p.emit(ctx, model.PaymentEventProcessing, link, payload)
}
