package chainrpc

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

// Backend is the part of an Ethereum client the provider uses.
// *ethclient.Client satisfies it.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type chain struct {
	cfg     config.ChainConfig
	id      *big.Int
	backend Backend

	// serialises nonce assignment for the treasury on this chain
	treasuryMu sync.Mutex
}

type ChainRPC struct {
	chains          map[uint64]*chain
	treasury        *ecdsa.PrivateKey
	txTimeout       time.Duration
	topUpMultiplier int64
	pollInterval    time.Duration
	logger          *logger.Logger

	// called after every broadcast, tests use it to mine a block
	afterSend func()
}

// New dials every configured chain.
func New(appConfig *config.AppConfig, logger *logger.Logger) (*ChainRPC, error) {
	backends := make(map[uint64]Backend, len(appConfig.Blockchain.Chains))
	for _, c := range appConfig.Blockchain.Chains {
		client, err := ethclient.Dial(c.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("dial chain %d: %w", c.ID, err)
		}
		backends[c.ID] = client
	}

	var treasury *ecdsa.PrivateKey
	if appConfig.Blockchain.TreasuryPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(appConfig.Blockchain.TreasuryPrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse treasury key: %w", err)
		}
		treasury = key
	}

	return NewWithBackends(appConfig.Blockchain.Chains, backends, treasury, appConfig.Blockchain, logger), nil
}

func NewWithBackends(
	chains []config.ChainConfig,
	backends map[uint64]Backend,
	treasury *ecdsa.PrivateKey,
	blockchainCfg config.BlockchainConfig,
	logger *logger.Logger,
) *ChainRPC {
	r := &ChainRPC{
		chains:          make(map[uint64]*chain, len(chains)),
		treasury:        treasury,
		txTimeout:       blockchainCfg.TxTimeout,
		topUpMultiplier: blockchainCfg.GasTopUpMultiplier,
		pollInterval:    2 * time.Second,
		logger:          logger,
	}
	if r.txTimeout <= 0 {
		r.txTimeout = 3 * time.Minute
	}
	if r.topUpMultiplier <= 0 {
		r.topUpMultiplier = 2
	}
	for _, c := range chains {
		backend, ok := backends[c.ID]
		if !ok {
			continue
		}
		r.chains[c.ID] = &chain{
			cfg:     c,
			id:      new(big.Int).SetUint64(c.ID),
			backend: backend,
		}
	}
	return r
}

// TreasuryAddress is where custody wallets are swept to.
func (r *ChainRPC) TreasuryAddress() string {
	if r.treasury == nil {
		return ""
	}
	return crypto.PubkeyToAddress(r.treasury.PublicKey).Hex()
}

func (r *ChainRPC) chain(chainID uint64) (*chain, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	return c, nil
}

func (r *ChainRPC) TransactionReceipt(ctx context.Context, chainID uint64, txHash string) (*Receipt, error) {
	c, err := r.chain(chainID)
	if err != nil {
		return nil, err
	}

	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if receiptPending(err) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	return toReceipt(receipt), nil
}

func (r *ChainRPC) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	c, err := r.chain(chainID)
	if err != nil {
		return 0, err
	}
	return c.backend.BlockNumber(ctx)
}

func (r *ChainRPC) TransferFrom(ctx context.Context, req TransferFromRequest) (*TransferResult, error) {
	c, err := r.chain(req.ChainID)
	if err != nil {
		return nil, err
	}
	if r.treasury == nil {
		return nil, ErrNoTreasuryKey
	}
	treasury := crypto.PubkeyToAddress(r.treasury.PublicKey)

	if req.Token == "" {
		return r.sweepNative(ctx, c, req.Key, treasury)
	}
	return r.sweepToken(ctx, c, req.Key, common.HexToAddress(req.Token), treasury)
}

func (r *ChainRPC) sweepNative(ctx context.Context, c *chain, key *ecdsa.PrivateKey, to common.Address) (*TransferResult, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	balance, err := c.backend.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, fmt.Errorf("custody balance: %w", err)
	}
	price, err := r.sweepGasPrice(ctx, c)
	if err != nil {
		return nil, err
	}

	cost := new(big.Int).Mul(price, big.NewInt(nativeTransferGas))
	if balance.Cmp(cost) <= 0 {
		return nil, fmt.Errorf("%w: balance %s, gas %s", ErrInsufficientBalance, balance, cost)
	}
	value := new(big.Int).Sub(balance, cost)

	// tip == cap makes the effective price exact, so the wallet ends at zero
	receipt, err := r.send(ctx, c, key, nil, txParams{
		to:     to,
		value:  value,
		gas:    nativeTransferGas,
		tipCap: price,
		feeCap: price,
	})
	if err != nil {
		return nil, err
	}

	return resultFrom(receipt, value, gasCost(receipt)), nil
}

func (r *ChainRPC) sweepToken(ctx context.Context, c *chain, key *ecdsa.PrivateKey, token, to common.Address) (*TransferResult, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	amount, err := r.tokenBalance(ctx, c, token, from)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: custody token balance is zero", ErrInsufficientBalance)
	}

	data, err := packTransfer(to, amount)
	if err != nil {
		return nil, err
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate sweep gas: %w", err)
	}
	tip, feeCap, err := r.dynamicFees(ctx, c)
	if err != nil {
		return nil, err
	}

	// the custody wallet holds only tokens, the treasury funds its gas
	totalGas := new(big.Int)
	needed := new(big.Int).Mul(feeCap, new(big.Int).SetUint64(gas))
	native, err := c.backend.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, fmt.Errorf("custody balance: %w", err)
	}
	if native.Cmp(needed) < 0 {
		topUp := new(big.Int).Mul(new(big.Int).Sub(needed, native), big.NewInt(r.topUpMultiplier))
		topUpReceipt, err := r.send(ctx, c, r.treasury, &c.treasuryMu, txParams{
			to:    from,
			value: topUp,
			gas:   nativeTransferGas,
		})
		if err != nil {
			return nil, fmt.Errorf("gas top-up: %w", err)
		}
		totalGas.Add(totalGas, gasCost(topUpReceipt))
		totalGas.Add(totalGas, topUp)
		r.logger.Info("[TransferFrom][GasTopUp]", map[string]string{
			"chain_id": c.id.String(),
			"wallet":   from.Hex(),
			"amount":   topUp.String(),
		})
	}

	receipt, err := r.send(ctx, c, key, nil, txParams{
		to:     token,
		data:   data,
		gas:    gas,
		tipCap: tip,
		feeCap: feeCap,
	})
	if err != nil {
		return nil, err
	}
	totalGas.Add(totalGas, gasCost(receipt))

	return resultFrom(receipt, amount, totalGas), nil
}

func (r *ChainRPC) TransferTo(ctx context.Context, req TransferToRequest) (*TransferResult, error) {
	c, err := r.chain(req.ChainID)
	if err != nil {
		return nil, err
	}
	if r.treasury == nil {
		return nil, ErrNoTreasuryKey
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrInsufficientBalance)
	}
	to := common.HexToAddress(req.To)

	params := txParams{to: to, value: req.Amount}
	if req.Token != "" {
		data, err := packTransfer(to, req.Amount)
		if err != nil {
			return nil, err
		}
		params = txParams{to: common.HexToAddress(req.Token), data: data}
	}

	receipt, err := r.send(ctx, c, r.treasury, &c.treasuryMu, params)
	if err != nil {
		return nil, err
	}
	return resultFrom(receipt, req.Amount, gasCost(receipt)), nil
}

func (r *ChainRPC) EstimateTransferCost(ctx context.Context, chainID uint64, token string) (*big.Int, error) {
	c, err := r.chain(chainID)
	if err != nil {
		return nil, err
	}
	price, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	gas := int64(nativeTransferGas)
	if token != "" {
		gas = erc20TransferGas
	}
	return new(big.Int).Mul(price, big.NewInt(gas)), nil
}

func (r *ChainRPC) tokenBalance(ctx context.Context, c *chain, token, owner common.Address) (*big.Int, error) {
	data, err := packBalanceOf(owner)
	if err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return unpackUint("balanceOf", erc20ABI, out)
}

type txParams struct {
	to     common.Address
	value  *big.Int
	data   []byte
	gas    uint64
	tipCap *big.Int
	feeCap *big.Int
}

// send signs, broadcasts and waits for one transaction. Treasury sends pass
// the chain mutex so concurrent jobs never reuse a nonce.
func (r *ChainRPC) send(ctx context.Context, c *chain, key *ecdsa.PrivateKey, mu *sync.Mutex, p txParams) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	from := crypto.PubkeyToAddress(key.PublicKey)
	if p.value == nil {
		p.value = new(big.Int)
	}

	if p.tipCap == nil || p.feeCap == nil {
		tip, feeCap, err := r.dynamicFees(ctx, c)
		if err != nil {
			return nil, err
		}
		p.tipCap, p.feeCap = tip, feeCap
	}
	if p.gas == 0 {
		gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &p.to, Value: p.value, Data: p.data})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		p.gas = gas
	}

	signed, err := r.broadcast(ctx, c, key, mu, p)
	if err != nil {
		return nil, err
	}

	// the transfer is out: wait for it even when the caller is cancelled
	waitCtx, waitCancel := context.WithTimeout(context.WithoutCancel(ctx), r.txTimeout)
	defer waitCancel()

	receipt, err := r.waitMined(waitCtx, c, signed.Hash())
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", ErrTransactionReverted, signed.Hash().Hex())
	}
	return receipt, nil
}

func (r *ChainRPC) broadcast(ctx context.Context, c *chain, key *ecdsa.PrivateKey, mu *sync.Mutex, p txParams) (*types.Transaction, error) {
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	to := p.to
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.id,
		Nonce:     nonce,
		GasTipCap: p.tipCap,
		GasFeeCap: p.feeCap,
		Gas:       p.gas,
		To:        &to,
		Value:     p.value,
		Data:      p.data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.id), key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	r.logger.Debug("[send][Broadcast]", map[string]string{
		"chain_id": c.id.String(),
		"from":     from.Hex(),
		"to":       to.Hex(),
		"tx_hash":  signed.Hash().Hex(),
		"nonce":    fmt.Sprint(nonce),
	})

	if r.afterSend != nil {
		r.afterSend()
	}
	return signed, nil
}

func (r *ChainRPC) waitMined(ctx context.Context, c *chain, hash common.Hash) (*types.Receipt, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !receiptPending(err) {
			r.logger.Warn("[waitMined][TransactionReceipt]", map[string]string{
				"tx_hash": hash.Hex(),
				"error":   err.Error(),
			})
		}
		timer.Reset(r.pollInterval)
	}
}

// receiptPending reports whether a receipt lookup failed only because the
// node has not seen or not yet indexed the transaction.
func receiptPending(err error) bool {
	return errors.Is(err, ethereum.NotFound) ||
		strings.Contains(err.Error(), "transaction indexing is in progress")
}

func (r *ChainRPC) dynamicFees(ctx context.Context, c *chain) (*big.Int, *big.Int, error) {
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("latest header: %w", err)
	}
	if head.BaseFee == nil {
		price, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("suggest gas price: %w", err)
		}
		return price, price, nil
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	return tip, feeCap, nil
}

// sweepGasPrice is a single price used as both tip and cap. It stays above
// the base fee for a few blocks of growth.
func (r *ChainRPC) sweepGasPrice(ctx context.Context, c *chain) (*big.Int, error) {
	price, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	if head.BaseFee != nil {
		floor := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		if price.Cmp(floor) < 0 {
			price = floor
		}
	}
	return price, nil
}

func toReceipt(receipt *types.Receipt) *Receipt {
	out := &Receipt{
		TxHash:            receipt.TxHash.Hex(),
		BlockHash:         receipt.BlockHash.Hex(),
		Success:           receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out
}

func gasCost(receipt *types.Receipt) *big.Int {
	if receipt.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
}

func resultFrom(receipt *types.Receipt, amount, cost *big.Int) *TransferResult {
	res := &TransferResult{
		TxHash:   receipt.TxHash.Hex(),
		Amount:   amount,
		GasUsed:  receipt.GasUsed,
		GasPrice: receipt.EffectiveGasPrice,
		GasCost:  cost,
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return res
}
