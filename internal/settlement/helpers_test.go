package settlement

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/store"
	"github.com/dwarvesf/paylink-backend/internal/store/storetest"
	"github.com/dwarvesf/paylink-backend/internal/types/environments"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const (
	testChainID   = uint64(8453)
	sellerWallet  = "0x1111111111111111111111111111111111111111"
	feeWallet     = "0x2222222222222222222222222222222222222222"
	usdcAddress   = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	wethAddress   = "0x4200000000000000000000000000000000000006"
	inboundTxHash = "0x8f5c3a4b2e1d0f9a8b7c6d5e4f3a2b1c0d9e8f7a6b5c4d3e2f1a0b9c8d7e6f5a"
)

type MockChainRPC struct {
	mock.Mock
}

func (m *MockChainRPC) TransactionReceipt(ctx context.Context, chainID uint64, txHash string) (*chainrpc.Receipt, error) {
	args := m.Called(chainID, txHash)
	if r, ok := args.Get(0).(*chainrpc.Receipt); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChainRPC) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	args := m.Called(chainID)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChainRPC) TransferFrom(ctx context.Context, req chainrpc.TransferFromRequest) (*chainrpc.TransferResult, error) {
	args := m.Called(req)
	if r, ok := args.Get(0).(*chainrpc.TransferResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChainRPC) ExecuteSwap(ctx context.Context, req chainrpc.SwapRequest) (*chainrpc.TransferResult, error) {
	args := m.Called(req)
	if r, ok := args.Get(0).(*chainrpc.TransferResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChainRPC) TransferTo(ctx context.Context, req chainrpc.TransferToRequest) (*chainrpc.TransferResult, error) {
	args := m.Called(req)
	if r, ok := args.Get(0).(*chainrpc.TransferResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChainRPC) EstimateTransferCost(ctx context.Context, chainID uint64, token string) (*big.Int, error) {
	args := m.Called(chainID, token)
	if r, ok := args.Get(0).(*big.Int); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChainRPC) ScanDeposits(ctx context.Context, req chainrpc.ScanRequest) ([]chainrpc.Deposit, error) {
	args := m.Called(req)
	if r, ok := args.Get(0).([]chainrpc.Deposit); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.PaymentEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, event model.PaymentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) ofType(eventType model.PaymentEventType) []model.PaymentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.PaymentEvent
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type staticKeys struct {
	key *ecdsa.PrivateKey
	err error
}

func (k staticKeys) PrivateKey(link *model.PaymentLink) (*ecdsa.PrivateKey, error) {
	return k.key, k.err
}

type fixture struct {
	processor *Processor
	rpc       *MockChainRPC
	notifier  *recordingNotifier
	db        *gorm.DB
	store     *store.Store
	key       *ecdsa.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storetest.NewDB(t)
	st := store.New(db)
	cfg := &config.AppConfig{
		Settlement: config.SettlementConfig{
			PollInterval:    time.Millisecond,
			RPCTimeout:      time.Second,
			FinalityTimeout: time.Hour,
		},
		Blockchain: config.BlockchainConfig{FeeWalletAddress: feeWallet},
	}

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	rpc := &MockChainRPC{}
	notifier := &recordingNotifier{}
	p := New(db, st, cfg, rpc, staticKeys{key: key}, NewChainFeeEstimator(rpc, 100), notifier, nil, logger.New(environments.Test))

	require.NoError(t, db.Create(&model.Seller{ID: "seller-1", WalletAddress: sellerWallet}).Error)

	return &fixture{processor: p, rpc: rpc, notifier: notifier, db: db, store: st, key: key}
}

func (f *fixture) seedLink(t *testing.T, mutate func(link *model.PaymentLink)) *model.PaymentLink {
	t.Helper()

	link := &model.PaymentLink{
		ID:                    uuid.NewString(),
		SellerID:              "seller-1",
		ChainID:               testChainID,
		TokenDecimals:         18,
		FiatAmount:            "3000",
		Amount:                "1000000000000000000",
		RequiredConfirmations: 3,
		SlippageBps:           50,
		WalletAddress:         "0x" + strings.ReplaceAll(uuid.NewString(), "-", "") + "00000000",
		EncryptedPrivateKey:   "ciphertext",
		KeySalt:               "salt",
		Status:                model.PaymentStatusPending,
		ExpiresAt:             time.Now().Add(30 * time.Minute),
	}
	if mutate != nil {
		mutate(link)
	}
	_, err := f.store.PaymentLink.Create(f.db, link)
	require.NoError(t, err)
	return link
}

func (f *fixture) reload(t *testing.T, id string) *model.PaymentLink {
	t.Helper()
	link, err := f.store.PaymentLink.GetByID(f.db, id)
	require.NoError(t, err)
	return link
}

func job(link *model.PaymentLink) Job {
	return Job{PaymentLinkID: link.ID, TxHash: inboundTxHash, Amount: link.Amount}
}

func firstAttempt() Attempt {
	return Attempt{Retry: 0, MaxRetry: 3}
}

func minedReceipt(block uint64) *chainrpc.Receipt {
	return &chainrpc.Receipt{
		TxHash:            inboundTxHash,
		BlockNumber:       block,
		BlockHash:         "0xblock",
		Success:           true,
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
	}
}

func toSeller(req chainrpc.TransferToRequest) bool {
	return req.To == sellerWallet
}

func toFeeWallet(req chainrpc.TransferToRequest) bool {
	return req.To == feeWallet
}
