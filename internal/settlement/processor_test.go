package settlement

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/wallet"
)

const (
	sweptNative = "999979000000000000"
	nativeGas   = 21_000_000_000_000
)

// expectNativeSettlement wires the transfers of a native settlement of
// sweptNative wei at 1% platform fee.
func expectNativeSettlement(f *fixture) {
	f.rpc.On("TransferFrom", mock.AnythingOfType("chainrpc.TransferFromRequest")).Return(&chainrpc.TransferResult{
		TxHash:  "0xsweep",
		Amount:  mustBig(sweptNative),
		GasUsed: 21000,
		GasCost: big.NewInt(nativeGas),
	}, nil).Once()
	f.rpc.On("EstimateTransferCost", testChainID, "").Return(big.NewInt(nativeGas), nil)
	f.rpc.On("TransferTo", mock.MatchedBy(toSeller)).Return(&chainrpc.TransferResult{
		TxHash:  "0xpayout",
		Amount:  mustBig("989937210000000000"),
		GasCost: big.NewInt(nativeGas),
	}, nil).Once()
	f.rpc.On("TransferTo", mock.MatchedBy(toFeeWallet)).Return(&chainrpc.TransferResult{
		TxHash:  "0xfee",
		Amount:  mustBig("10041790000000000"),
		GasCost: big.NewInt(nativeGas),
	}, nil).Once()
}

func mustBig(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func TestProcess_HappyPathEmitsOneConfirmingEventPerCount(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(minedReceipt(100), nil)
	f.rpc.On("BlockNumber", testChainID).Return(uint64(100), nil).Once()
	f.rpc.On("BlockNumber", testChainID).Return(uint64(101), nil).Once()
	f.rpc.On("BlockNumber", testChainID).Return(uint64(102), nil).Once()
	expectNativeSettlement(f)

	err := f.processor.Process(context.Background(), job(link), firstAttempt())
	require.NoError(t, err)

	assert.Len(t, f.notifier.ofType(model.PaymentEventDetected), 1)

	confirming := f.notifier.ofType(model.PaymentEventConfirming)
	require.Len(t, confirming, 3)
	for i, e := range confirming {
		assert.Equal(t, uint64(i+1), e.Data["confirmations"])
		assert.Equal(t, uint64(3), e.Data["requiredConfirmations"])
		assert.Equal(t, link.ID, e.Data["paymentLinkId"])
	}

	var steps []string
	for _, e := range f.notifier.ofType(model.PaymentEventProcessing) {
		steps = append(steps, e.Data["step"].(string))
	}
	assert.Equal(t, []string{
		StepInitializing,
		StepTransferringFromEphemeral,
		StepTransferringToSeller,
		StepFinalizing,
	}, steps)

	completed := f.notifier.ofType(model.PaymentEventCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, sweptNative, completed[0].Data["finalAmount"])
	assert.Equal(t, "989937210000000000", completed[0].Data["sellerAmount"])
	assert.Equal(t, "10041790000000000", completed[0].Data["platformFee"])
	assert.Equal(t, big.NewInt(3*nativeGas).String(), completed[0].Data["gasCost"])
	assert.Empty(t, f.notifier.ofType(model.PaymentEventFailed))

	saved := f.reload(t, link.ID)
	assert.Equal(t, model.PaymentStatusCompleted, saved.Status)
	assert.Equal(t, link.Amount, saved.ActualAmountReceived)
	assert.NotNil(t, saved.ReceivedAt)
	assert.NotNil(t, saved.CompletedAt)

	inbound, err := f.store.Transaction.GetByType(f.db, link.ID, model.TransactionTypeInbound)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusConfirmed, inbound.Status)
	assert.Equal(t, uint64(3), inbound.Confirmations)
	assert.NotNil(t, inbound.ConfirmedAt)

	txns, err := f.store.Transaction.ListByPaymentLink(f.db, link.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 4)

	f.rpc.AssertExpectations(t)
}

func TestProcess_CompletedLinkIsNoop(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(minedReceipt(100), nil)
	f.rpc.On("BlockNumber", testChainID).Return(uint64(110), nil)
	expectNativeSettlement(f)

	require.NoError(t, f.processor.Process(context.Background(), job(link), firstAttempt()))
	eventsAfterFirstRun := f.notifier.count()

	// two workers receive the redelivered job at the same time
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.processor.Process(context.Background(), job(link), Attempt{Retry: 1, MaxRetry: 3}))
		}()
	}
	wg.Wait()

	f.rpc.AssertNumberOfCalls(t, "TransferFrom", 1)
	f.rpc.AssertNumberOfCalls(t, "TransferTo", 2)
	assert.Equal(t, eventsAfterFirstRun, f.notifier.count())
	assert.Len(t, f.notifier.ofType(model.PaymentEventCompleted), 1)
}

func TestProcess_FailedLinkIsNoop(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.Status = model.PaymentStatusFailed
	})

	require.NoError(t, f.processor.Process(context.Background(), job(link), firstAttempt()))

	f.rpc.AssertNotCalled(t, "TransactionReceipt", mock.Anything, mock.Anything)
	assert.Zero(t, f.notifier.count())
}

func TestProcess_RPCFailingEveryAttemptFailsOnce(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(nil, errors.New("dial tcp: connection refused"))

	for retry := 0; retry <= 3; retry++ {
		err := f.processor.Process(context.Background(), job(link), Attempt{Retry: retry, MaxRetry: 3})
		require.Error(t, err)
		assert.False(t, IsFatal(err))

		saved := f.reload(t, link.ID)
		if retry < 3 {
			assert.Equal(t, model.PaymentStatusDetected, saved.Status)
			assert.Empty(t, f.notifier.ofType(model.PaymentEventFailed))
		}
	}

	saved := f.reload(t, link.ID)
	assert.Equal(t, model.PaymentStatusFailed, saved.Status)
	assert.Contains(t, saved.ErrorMessage, "connection refused")
	assert.Equal(t, StepConfirming, saved.FailedStep)

	failed := f.notifier.ofType(model.PaymentEventFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, StepConfirming, failed[0].Data["step"])
	assert.Contains(t, failed[0].Data["error"], "connection refused")
	assert.Len(t, f.notifier.ofType(model.PaymentEventDetected), 1)

	// a late redelivery must not fail the link again
	require.NoError(t, f.processor.Process(context.Background(), job(link), Attempt{Retry: 3, MaxRetry: 3}))
	assert.Len(t, f.notifier.ofType(model.PaymentEventFailed), 1)
}

func TestProcess_RevertedInboundIsFatal(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)

	receipt := minedReceipt(100)
	receipt.Success = false
	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(receipt, nil)

	err := f.processor.Process(context.Background(), job(link), firstAttempt())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, chainrpc.ErrTransactionReverted)

	assert.Equal(t, model.PaymentStatusFailed, f.reload(t, link.ID).Status)
	assert.Len(t, f.notifier.ofType(model.PaymentEventFailed), 1)
	f.rpc.AssertNotCalled(t, "TransferFrom", mock.Anything)
}

func TestProcess_FinalityTimeout(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)
	f.processor.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	err := f.processor.Process(context.Background(), job(link), firstAttempt())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFinalityTimeout)
	assert.Equal(t, StepConfirming, StepOf(err))

	saved := f.reload(t, link.ID)
	assert.Equal(t, model.PaymentStatusFailed, saved.Status)
	assert.Equal(t, StepConfirming, saved.FailedStep)
	f.rpc.AssertNotCalled(t, "TransactionReceipt", mock.Anything, mock.Anything)
}

func TestProcess_ConfirmationsNeverGoBackwards(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(minedReceipt(100), nil)
	f.rpc.On("BlockNumber", testChainID).Return(uint64(101), nil).Once()
	// head from a lagging node
	f.rpc.On("BlockNumber", testChainID).Return(uint64(100), nil).Once()
	f.rpc.On("BlockNumber", testChainID).Return(uint64(102), nil).Once()
	expectNativeSettlement(f)

	require.NoError(t, f.processor.Process(context.Background(), job(link), firstAttempt()))

	var counts []uint64
	for _, e := range f.notifier.ofType(model.PaymentEventConfirming) {
		counts = append(counts, e.Data["confirmations"].(uint64))
	}
	assert.Equal(t, []uint64{2, 3}, counts)
}

func TestProcess_WaitsForReceipt(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.RequiredConfirmations = 1
	})

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(nil, chainrpc.ErrReceiptNotFound).Twice()
	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(minedReceipt(100), nil)
	f.rpc.On("BlockNumber", testChainID).Return(uint64(100), nil)
	expectNativeSettlement(f)

	require.NoError(t, f.processor.Process(context.Background(), job(link), firstAttempt()))

	assert.Len(t, f.notifier.ofType(model.PaymentEventConfirming), 1)
	assert.Equal(t, model.PaymentStatusCompleted, f.reload(t, link.ID).Status)
}

func TestProcess_ContextCancelledWhilePolling(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)
	f.processor.pollInterval = time.Hour

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(nil, chainrpc.ErrReceiptNotFound)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := f.processor.Process(ctx, job(link), firstAttempt())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, model.PaymentStatusDetected, f.reload(t, link.ID).Status)
}

func TestProcess_CancelledOnLastAttemptKeepsLinkOpen(t *testing.T) {
	for _, tt := range []struct {
		name   string
		newCtx func() (context.Context, context.CancelFunc)
	}{
		{"worker shutdown", func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(50*time.Millisecond, cancel)
			return ctx, cancel
		}},
		{"job deadline", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 50*time.Millisecond)
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			link := f.seedLink(t, func(l *model.PaymentLink) {
				l.RequiredConfirmations = 1
			})
			f.processor.pollInterval = 5 * time.Millisecond

			f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(nil, chainrpc.ErrReceiptNotFound)

			ctx, cancel := tt.newCtx()
			defer cancel()

			err := f.processor.Process(ctx, job(link), Attempt{Retry: 3, MaxRetry: 3})
			require.Error(t, err)
			assert.False(t, IsFatal(err))

			saved := f.reload(t, link.ID)
			assert.NotEqual(t, model.PaymentStatusFailed, saved.Status)
			assert.Empty(t, saved.ErrorMessage)
			assert.Empty(t, f.notifier.ofType(model.PaymentEventFailed))

			// the redelivered task settles the payment
			f.rpc.ExpectedCalls = nil
			f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(minedReceipt(100), nil)
			f.rpc.On("BlockNumber", testChainID).Return(uint64(100), nil)
			expectNativeSettlement(f)

			require.NoError(t, f.processor.Process(context.Background(), job(link), Attempt{Retry: 3, MaxRetry: 3}))
			assert.Equal(t, model.PaymentStatusCompleted, f.reload(t, link.ID).Status)
		})
	}
}

func TestProcess_ResumesWithoutRepeatingSweep(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.Status = model.PaymentStatusProcessing
		l.TokenAddress = usdcAddress
		l.TokenDecimals = 6
		l.Amount = "5000000"
	})

	for _, txn := range []*model.Transaction{
		{PaymentLinkID: link.ID, TxHash: inboundTxHash, Type: model.TransactionTypeInbound, Amount: "5000000", Status: model.TransactionStatusConfirming, Confirmations: 3},
		{PaymentLinkID: link.ID, TxHash: "0xsweep", Type: model.TransactionTypeCustodySweep, Amount: "5000000", Status: model.TransactionStatusConfirmed, GasCost: "90000"},
	} {
		_, _, err := f.store.Transaction.GetOrCreate(f.db, txn)
		require.NoError(t, err)
	}

	f.rpc.On("TransferTo", mock.MatchedBy(func(req chainrpc.TransferToRequest) bool {
		return toSeller(req) && req.Token == usdcAddress && req.Amount.String() == "4950000"
	})).Return(&chainrpc.TransferResult{TxHash: "0xpayout", Amount: big.NewInt(4950000), GasCost: big.NewInt(70000)}, nil).Once()
	f.rpc.On("TransferTo", mock.MatchedBy(func(req chainrpc.TransferToRequest) bool {
		return toFeeWallet(req) && req.Amount.String() == "50000"
	})).Return(&chainrpc.TransferResult{TxHash: "0xfee", Amount: big.NewInt(50000), GasCost: big.NewInt(70000)}, nil).Once()

	require.NoError(t, f.processor.Process(context.Background(), job(link), firstAttempt()))

	f.rpc.AssertNotCalled(t, "TransferFrom", mock.Anything)
	f.rpc.AssertNotCalled(t, "EstimateTransferCost", mock.Anything, mock.Anything)
	f.rpc.AssertExpectations(t)

	completed := f.notifier.ofType(model.PaymentEventCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "230000", completed[0].Data["gasCost"])
	assert.Empty(t, f.notifier.ofType(model.PaymentEventDetected))
}

func TestProcess_ResumeAfterPayoutOnlyCollectsFee(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.Status = model.PaymentStatusProcessing
		l.TokenAddress = usdcAddress
		l.Amount = "5000000"
	})

	for _, txn := range []*model.Transaction{
		{PaymentLinkID: link.ID, TxHash: inboundTxHash, Type: model.TransactionTypeInbound, Amount: "5000000", Status: model.TransactionStatusConfirming},
		{PaymentLinkID: link.ID, TxHash: "0xsweep", Type: model.TransactionTypeCustodySweep, Amount: "5000000", Status: model.TransactionStatusConfirmed},
		{PaymentLinkID: link.ID, TxHash: "0xpayout", Type: model.TransactionTypeSellerPayout, Amount: "4900000", Status: model.TransactionStatusConfirmed},
	} {
		_, _, err := f.store.Transaction.GetOrCreate(f.db, txn)
		require.NoError(t, err)
	}

	// the fee is what the payout left over, not a fresh estimate
	f.rpc.On("TransferTo", mock.MatchedBy(func(req chainrpc.TransferToRequest) bool {
		return toFeeWallet(req) && req.Amount.String() == "100000"
	})).Return(&chainrpc.TransferResult{TxHash: "0xfee", Amount: big.NewInt(100000)}, nil).Once()

	require.NoError(t, f.processor.Process(context.Background(), job(link), firstAttempt()))
	f.rpc.AssertNumberOfCalls(t, "TransferTo", 1)
	assert.Equal(t, model.PaymentStatusCompleted, f.reload(t, link.ID).Status)
}

func TestProcess_SwapsToStablecoin(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.TokenAddress = wethAddress
		l.SwapToStable = true
		l.StablecoinAddress = usdcAddress
		l.SlippageBps = 100
		l.RequiredConfirmations = 1
	})

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(minedReceipt(100), nil)
	f.rpc.On("BlockNumber", testChainID).Return(uint64(100), nil)
	f.rpc.On("TransferFrom", mock.MatchedBy(func(req chainrpc.TransferFromRequest) bool {
		return req.Token == wethAddress && req.Key == f.key
	})).Return(&chainrpc.TransferResult{TxHash: "0xsweep", Amount: mustBig(link.Amount), GasCost: big.NewInt(100)}, nil).Once()
	f.rpc.On("ExecuteSwap", mock.MatchedBy(func(req chainrpc.SwapRequest) bool {
		return req.ChainID == testChainID &&
			req.TokenIn == wethAddress &&
			req.TokenOut == usdcAddress &&
			req.AmountIn.String() == link.Amount &&
			req.SlippageBps == 100
	})).Return(&chainrpc.TransferResult{TxHash: "0xswap", Amount: big.NewInt(2_500_000_000), GasCost: big.NewInt(200)}, nil).Once()
	f.rpc.On("TransferTo", mock.MatchedBy(func(req chainrpc.TransferToRequest) bool {
		return toSeller(req) && req.Token == usdcAddress && req.Amount.String() == "2475000000"
	})).Return(&chainrpc.TransferResult{TxHash: "0xpayout", Amount: big.NewInt(2_475_000_000)}, nil).Once()
	f.rpc.On("TransferTo", mock.MatchedBy(func(req chainrpc.TransferToRequest) bool {
		return toFeeWallet(req) && req.Amount.String() == "25000000"
	})).Return(&chainrpc.TransferResult{TxHash: "0xfee", Amount: big.NewInt(25_000_000)}, nil).Once()

	require.NoError(t, f.processor.Process(context.Background(), job(link), firstAttempt()))
	f.rpc.AssertExpectations(t)

	var steps []string
	for _, e := range f.notifier.ofType(model.PaymentEventProcessing) {
		steps = append(steps, e.Data["step"].(string))
	}
	assert.Contains(t, steps, StepSwapping)

	completed := f.notifier.ofType(model.PaymentEventCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "2500000000", completed[0].Data["finalAmount"])
	assert.Equal(t, usdcAddress, completed[0].Data["finalToken"])
}

func TestProcess_AmountBelowFeesIsFatal(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.Amount = "50000"
		l.RequiredConfirmations = 1
	})

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(minedReceipt(100), nil)
	f.rpc.On("BlockNumber", testChainID).Return(uint64(100), nil)
	f.rpc.On("TransferFrom", mock.Anything).Return(&chainrpc.TransferResult{TxHash: "0xsweep", Amount: big.NewInt(1000)}, nil).Once()
	f.rpc.On("EstimateTransferCost", testChainID, "").Return(big.NewInt(nativeGas), nil)

	err := f.processor.Process(context.Background(), job(link), firstAttempt())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientAmount)
	assert.True(t, IsFatal(err))

	saved := f.reload(t, link.ID)
	assert.Equal(t, model.PaymentStatusFailed, saved.Status)
	assert.Equal(t, StepCalculatingFees, saved.FailedStep)
	f.rpc.AssertNotCalled(t, "TransferTo", mock.Anything)
}

func TestProcess_DecryptionFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.processor.keys = staticKeys{err: wallet.ErrDecryption}
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.RequiredConfirmations = 1
	})

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(minedReceipt(100), nil)
	f.rpc.On("BlockNumber", testChainID).Return(uint64(100), nil)

	err := f.processor.Process(context.Background(), job(link), firstAttempt())
	assert.ErrorIs(t, err, wallet.ErrDecryption)

	saved := f.reload(t, link.ID)
	assert.Equal(t, model.PaymentStatusFailed, saved.Status)
	assert.Equal(t, StepTransferringFromEphemeral, saved.FailedStep)
	f.rpc.AssertNotCalled(t, "TransferFrom", mock.Anything)
}

func TestProcess_PayoutFailureIsRetriedWithoutRepeatingSweep(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.RequiredConfirmations = 1
	})

	f.rpc.On("TransactionReceipt", testChainID, inboundTxHash).Return(minedReceipt(100), nil)
	f.rpc.On("BlockNumber", testChainID).Return(uint64(100), nil)
	f.rpc.On("TransferFrom", mock.Anything).Return(&chainrpc.TransferResult{TxHash: "0xsweep", Amount: mustBig(sweptNative), GasCost: big.NewInt(nativeGas)}, nil).Once()
	f.rpc.On("EstimateTransferCost", testChainID, "").Return(big.NewInt(nativeGas), nil)
	f.rpc.On("TransferTo", mock.MatchedBy(toSeller)).Return(nil, errors.New("nonce too low")).Once()

	err := f.processor.Process(context.Background(), job(link), firstAttempt())
	require.Error(t, err)
	assert.Equal(t, StepTransferringToSeller, StepOf(err))
	assert.Equal(t, model.PaymentStatusProcessing, f.reload(t, link.ID).Status)

	f.rpc.On("TransferTo", mock.MatchedBy(toSeller)).Return(&chainrpc.TransferResult{TxHash: "0xpayout", Amount: mustBig("989937210000000000")}, nil).Once()
	f.rpc.On("TransferTo", mock.MatchedBy(toFeeWallet)).Return(&chainrpc.TransferResult{TxHash: "0xfee", Amount: mustBig("10041790000000000")}, nil).Once()

	require.NoError(t, f.processor.Process(context.Background(), job(link), Attempt{Retry: 1, MaxRetry: 3}))
	f.rpc.AssertNumberOfCalls(t, "TransferFrom", 1)
	assert.Equal(t, model.PaymentStatusCompleted, f.reload(t, link.ID).Status)
}

func TestProcess_SecondInboundTransferIsIgnored(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.Status = model.PaymentStatusConfirming
	})
	_, _, err := f.store.Transaction.GetOrCreate(f.db, &model.Transaction{
		PaymentLinkID: link.ID,
		TxHash:        inboundTxHash,
		Type:          model.TransactionTypeInbound,
		Amount:        link.Amount,
		Status:        model.TransactionStatusConfirming,
	})
	require.NoError(t, err)

	other := job(link)
	other.TxHash = "0x1f5c3a4b2e1d0f9a8b7c6d5e4f3a2b1c0d9e8f7a6b5c4d3e2f1a0b9c8d7e6f5a"

	require.NoError(t, f.processor.Process(context.Background(), other, firstAttempt()))
	f.rpc.AssertNotCalled(t, "TransactionReceipt", mock.Anything, mock.Anything)
	assert.Equal(t, model.PaymentStatusConfirming, f.reload(t, link.ID).Status)
}

func TestProcess_UnknownLinkIsFatal(t *testing.T) {
	f := newFixture(t)

	err := f.processor.Process(context.Background(), Job{
		PaymentLinkID: "2b0f7a9e-5d34-4c1e-9f7b-3c2d1e0f9a8b",
		TxHash:        inboundTxHash,
		Amount:        "1",
	}, firstAttempt())

	assert.ErrorIs(t, err, ErrPaymentLinkNotFound)
	assert.True(t, IsFatal(err))
	assert.Zero(t, f.notifier.count())
}

func TestProcess_InvalidJob(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)

	bad := job(link)
	bad.TxHash = "0xnothex"
	err := f.processor.Process(context.Background(), bad, firstAttempt())
	assert.ErrorIs(t, err, ErrInvalidJob)
	assert.True(t, IsFatal(err))
	assert.Equal(t, model.PaymentStatusPending, f.reload(t, link.ID).Status)
}

func TestProcess_DetectFailureOnLastAttemptNotifiesPendingLink(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)
	require.NoError(t, f.db.Migrator().DropTable(&model.Transaction{}))

	err := f.processor.Process(context.Background(), job(link), Attempt{Retry: 3, MaxRetry: 3})
	require.Error(t, err)
	assert.Equal(t, StepDetecting, StepOf(err))

	saved := f.reload(t, link.ID)
	assert.Equal(t, model.PaymentStatusPending, saved.Status)
	assert.Empty(t, saved.ErrorMessage)

	failed := f.notifier.ofType(model.PaymentEventFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, StepDetecting, failed[0].Data["step"])
	assert.Empty(t, f.notifier.ofType(model.PaymentEventDetected))
}

func TestProcess_DetectFailureBeforeLastAttemptIsSilent(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, nil)
	require.NoError(t, f.db.Migrator().DropTable(&model.Transaction{}))

	err := f.processor.Process(context.Background(), job(link), firstAttempt())
	require.Error(t, err)
	assert.Empty(t, f.notifier.ofType(model.PaymentEventFailed))
}

func TestProcess_CancelledLinkIsNoop(t *testing.T) {
	f := newFixture(t)
	link := f.seedLink(t, func(l *model.PaymentLink) {
		l.Status = model.PaymentStatusCancelled
	})

	require.NoError(t, f.processor.Process(context.Background(), job(link), firstAttempt()))
	assert.Zero(t, f.notifier.count())

	_, err := f.store.Transaction.GetByType(f.db, link.ID, model.TransactionTypeInbound)
	assert.Error(t, err)
}
