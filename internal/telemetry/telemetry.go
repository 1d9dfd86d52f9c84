package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/chainstatus"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/settlement"
	"github.com/dwarvesf/paylink-backend/internal/store"
	paymentlinkstore "github.com/dwarvesf/paylink-backend/internal/store/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

type Telemetry struct {
	db        *gorm.DB
	store     *store.Store
	appConfig *config.AppConfig
	logger    *logger.Logger
	chainRPC  chainrpc.IChainRPC
	chains    chainstatus.IRegistry
	redis     redis.UniversalClient
	enqueuer  Enqueuer

	// prevents overlapping cron runs
	indexMutex sync.Mutex
}

func New(
	db *gorm.DB,
	store *store.Store,
	appConfig *config.AppConfig,
	logger *logger.Logger,
	chainRPC chainrpc.IChainRPC,
	chains chainstatus.IRegistry,
	redis redis.UniversalClient,
	enqueuer Enqueuer,
) *Telemetry {
	return &Telemetry{
		db:        db,
		store:     store,
		appConfig: appConfig,
		logger:    logger,
		chainRPC:  chainRPC,
		chains:    chains,
		redis:     redis,
		enqueuer:  enqueuer,
	}
}

func (t *Telemetry) IndexDeposits(ctx context.Context) error {
	if !t.indexMutex.TryLock() {
		t.logger.Info("[IndexDeposits] previous run still in progress, skipping")
		return nil
	}
	defer t.indexMutex.Unlock()

	var errs []error
	for _, chain := range t.appConfig.Blockchain.Chains {
		queued, err := t.indexChain(ctx, chain)
		if err != nil {
			t.logger.Error("[IndexDeposits][indexChain]", map[string]string{
				"chain_id": strconv.FormatUint(chain.ID, 10),
				"error":    err.Error(),
			})
			errs = append(errs, fmt.Errorf("chain %d: %w", chain.ID, err))
			continue
		}
		if queued > 0 {
			t.logger.Info(fmt.Sprintf("[IndexDeposits] Queued %d deposits", queued), map[string]string{
				"chain_id": strconv.FormatUint(chain.ID, 10),
			})
		}
	}
	return errors.Join(errs...)
}

func (t *Telemetry) indexChain(ctx context.Context, chain config.ChainConfig) (int, error) {
	if t.chains != nil {
		status, err := t.chains.Get(ctx, chain.ID)
		if err != nil {
			return 0, fmt.Errorf("chain status: %w", err)
		}
		if status.Status == model.ChainStateDisabled {
			return 0, nil
		}
	}

	head, err := t.chainRPC.BlockNumber(ctx, chain.ID)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}

	from, err := t.cursor(ctx, chain.ID, head)
	if err != nil {
		return 0, err
	}
	if from > head {
		return 0, nil
	}
	to := head
	if limit := t.appConfig.Telemetry.MaxBlocks; limit > 0 && to-from+1 > limit {
		to = from + limit - 1
	}

	links, err := t.pendingLinks(ctx, chain.ID)
	if err != nil {
		return 0, err
	}
	if len(links) == 0 {
		return 0, t.setCursor(ctx, chain.ID, to+1)
	}

	addresses := make([]string, 0, len(links))
	for addr := range links {
		addresses = append(addresses, addr)
	}

	deposits, err := t.chainRPC.ScanDeposits(ctx, chainrpc.ScanRequest{
		ChainID:   chain.ID,
		FromBlock: from,
		ToBlock:   to,
		Addresses: addresses,
	})
	if err != nil {
		return 0, fmt.Errorf("scan deposits %d-%d: %w", from, to, err)
	}

	queued := 0
	for _, deposit := range deposits {
		link, ok := links[strings.ToLower(deposit.To)]
		if !ok {
			continue
		}
		if !strings.EqualFold(link.TokenAddress, deposit.Token) {
			t.logger.Warn("[indexChain] transfer in unexpected asset", map[string]string{
				"payment_link_id": link.ID,
				"tx_hash":         deposit.TxHash,
				"expected_token":  link.TokenAddress,
				"token":           deposit.Token,
			})
			continue
		}

		blockNumber := deposit.BlockNumber
		fresh, err := t.enqueuer.EnqueueSettlement(ctx, settlement.Job{
			PaymentLinkID: link.ID,
			TxHash:        deposit.TxHash,
			Amount:        deposit.Amount.String(),
			BlockNumber:   &blockNumber,
		})
		if err != nil {
			// the cursor stays put, the next run retries the whole range
			return queued, fmt.Errorf("enqueue %s: %w", deposit.TxHash, err)
		}
		if fresh {
			queued++
		}
		t.logger.Info(fmt.Sprintf("Tx Hash: %s - Amount: %s", deposit.TxHash, deposit.Amount), map[string]string{
			"payment_link_id": link.ID,
			"block_number":    strconv.FormatUint(deposit.BlockNumber, 10),
		})
	}

	return queued, t.setCursor(ctx, chain.ID, to+1)
}

// pendingLinks indexes the chain's PENDING links by lowercased wallet address.
func (t *Telemetry) pendingLinks(ctx context.Context, chainID uint64) (map[string]*model.PaymentLink, error) {
	batch := t.appConfig.Telemetry.LinksBatch
	if batch <= 0 {
		batch = 500
	}

	links := make(map[string]*model.PaymentLink)
	for offset := 0; ; offset += batch {
		page, total, err := t.store.PaymentLink.List(t.db.WithContext(ctx), paymentlinkstore.ListFilter{
			ChainID: chainID,
			Status:  model.PaymentStatusPending,
			Limit:   batch,
			Offset:  offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list pending links: %w", err)
		}
		for i := range page {
			links[strings.ToLower(page[i].WalletAddress)] = &page[i]
		}
		if len(page) < batch || int64(offset+batch) >= total {
			return links, nil
		}
	}
}

func (t *Telemetry) cursorKey(chainID uint64) string {
	return t.appConfig.Telemetry.CursorKey + strconv.FormatUint(chainID, 10)
}

// cursor is the next block to scan.
func (t *Telemetry) cursor(ctx context.Context, chainID, head uint64) (uint64, error) {
	raw, err := t.redis.Get(ctx, t.cursorKey(chainID)).Result()
	if errors.Is(err, redis.Nil) {
		lookback := t.appConfig.Telemetry.Lookback
		if lookback >= head {
			return 0, nil
		}
		return head - lookback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	next, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %q: %w", raw, err)
	}
	return next, nil
}

func (t *Telemetry) setCursor(ctx context.Context, chainID, next uint64) error {
	if err := t.redis.Set(ctx, t.cursorKey(chainID), strconv.FormatUint(next, 10), 0).Err(); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}
