package chainrpc

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

func (r *ChainRPC) ScanDeposits(ctx context.Context, req ScanRequest) ([]Deposit, error) {
	c, err := r.chain(req.ChainID)
	if err != nil {
		return nil, err
	}
	if len(req.Addresses) == 0 || req.FromBlock > req.ToBlock {
		return nil, nil
	}

	watched := make(map[common.Address]struct{}, len(req.Addresses))
	topics := make([]common.Hash, 0, len(req.Addresses))
	for _, a := range req.Addresses {
		addr := common.HexToAddress(a)
		watched[addr] = struct{}{}
		topics = append(topics, common.BytesToHash(addr.Bytes()))
	}

	deposits, err := r.scanNative(ctx, c, req.FromBlock, req.ToBlock, watched)
	if err != nil {
		return nil, err
	}

	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(req.FromBlock),
		ToBlock:   new(big.Int).SetUint64(req.ToBlock),
		Topics:    [][]common.Hash{{transferID}, nil, topics},
	})
	if err != nil {
		return nil, fmt.Errorf("filter transfer logs: %w", err)
	}
	for _, l := range logs {
		if len(l.Topics) != 3 || l.Removed {
			continue
		}
		deposits = append(deposits, Deposit{
			TxHash:      l.TxHash.Hex(),
			To:          common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
			Token:       l.Address.Hex(),
			Amount:      new(big.Int).SetBytes(l.Data),
			BlockNumber: l.BlockNumber,
		})
	}

	sort.SliceStable(deposits, func(i, j int) bool {
		return deposits[i].BlockNumber < deposits[j].BlockNumber
	})
	return deposits, nil
}

// scanNative only sees top-level value transfers. Native funds moved by an
// internal call are not detected.
func (r *ChainRPC) scanNative(ctx context.Context, c *chain, from, to uint64, watched map[common.Address]struct{}) ([]Deposit, error) {
	var deposits []Deposit
	for n := from; n <= to; n++ {
		block, err := c.backend.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", n, err)
		}
		for _, tx := range block.Transactions() {
			if tx.To() == nil || tx.Value().Sign() <= 0 {
				continue
			}
			if _, ok := watched[*tx.To()]; !ok {
				continue
			}
			deposits = append(deposits, Deposit{
				TxHash:      tx.Hash().Hex(),
				To:          tx.To().Hex(),
				Amount:      new(big.Int).Set(tx.Value()),
				BlockNumber: n,
			})
		}
	}
	return deposits, nil
}
