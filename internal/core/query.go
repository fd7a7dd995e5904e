package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"chainquery/internal/node"
	"chainquery/internal/repository"
)

var ErrMalformedValue error = errors.New("malformed numeric value")

// GetTransaction returns one shaped transaction, or nil when the record is
// not indexed. Absence is an explicit empty result, not an error.
func (e *Engine) GetTransaction(ctx context.Context, chain, network, txid string) (*TransformedTx, error) {
	rec, err := e.repo.GetTransaction(ctx, chain, network, txid)
	if err != nil {
		if errors.Is(err, repository.ErrTxNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	tip, err := e.repo.TipHeight(ctx, chain, network)
	if err != nil {
		return nil, fmt.Errorf("get tip height: %w", err)
	}

	return shapeTransaction(&rec, tip), nil
}

// StreamTransactions opens a cursor over matching records and pushes shaped
// results downstream through the enrichment pipeline. Wallet streams expand
// per matched sub-transfer: a token filter selects the token-transfer stages,
// otherwise the native-asset stages apply.
func (e *Engine) StreamTransactions(ctx context.Context, args TxStreamArgs) (<-chan StreamResult, error) {
	tip, err := e.repo.TipHeight(ctx, args.Chain, args.Network)
	if err != nil {
		return nil, fmt.Errorf("get tip height: %w", err)
	}

	var stages []Stage
	if args.WalletID != "" {
		stages, err = e.walletStages(ctx, args)
		if err != nil {
			return nil, err
		}
	} else {
		stages = e.enrichStages(args.Chain, args.Network)
	}

	cursor, err := e.repo.StreamTransactions(ctx, repository.TxQuery{
		Chain:       args.Chain,
		Network:     args.Network,
		Address:     args.Address,
		BlockHeight: args.BlockHeight,
		BlockHash:   args.BlockHash,
		WalletID:    args.WalletID,
		Limit:       args.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("open transaction stream: %w", err)
	}

	return e.runPipeline(ctx, cursor, stages, tip), nil
}

func (e *Engine) walletStages(ctx context.Context, args TxStreamArgs) ([]Stage, error) {
	if args.TokenAddress != "" {
		return append(
			[]Stage{TokenTransferStage(args.TokenAddress)},
			e.enrichStages(args.Chain, args.Network)...), nil
	}

	walletAddresses, err := e.repo.WalletAddresses(ctx, args.WalletID)
	if err != nil {
		return nil, fmt.Errorf("resolve wallet addresses: %w", err)
	}
	addresses := make([]string, 0, len(walletAddresses))
	for _, wa := range walletAddresses {
		addresses = append(addresses, wa.Address)
	}

	return append(
		[]Stage{InternalTransferStage(addresses)},
		e.enrichStages(args.Chain, args.Network)...), nil
}

// GetChainInfo combines the live node height with the indexed tip.
func (e *Engine) GetChainInfo(ctx context.Context, chain, network string) (ChainInfo, error) {
	height, err := e.node.Height(ctx, chain, network)
	if err != nil {
		return ChainInfo{}, fmt.Errorf("get node height: %w", err)
	}

	tip, err := e.repo.TipHeight(ctx, chain, network)
	if err != nil {
		return ChainInfo{}, fmt.Errorf("get tip height: %w", err)
	}

	return ChainInfo{
		Chain:         chain,
		Network:       network,
		NodeHeight:    height,
		IndexedHeight: tip,
	}, nil
}

func (e *Engine) ListBlocks(ctx context.Context, chain, network string, sinceHeight int64, limit int) ([]BlockResult, error) {
	tip, err := e.repo.TipHeight(ctx, chain, network)
	if err != nil {
		return nil, fmt.Errorf("get tip height: %w", err)
	}

	blocks, err := e.repo.ListBlocks(ctx, repository.BlockQuery{
		Chain:       chain,
		Network:     network,
		SinceHeight: sinceHeight,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	results := make([]BlockResult, len(blocks))
	for i, b := range blocks {
		var confirmations int64
		if b.Height > 0 && tip >= b.Height {
			confirmations = tip - b.Height + 1
		}
		results[i] = BlockResult{
			Chain:             b.Chain,
			Network:           b.Network,
			Height:            b.Height,
			Hash:              b.Hash,
			PreviousBlockHash: b.PreviousBlockHash,
			Time:              b.Time,
			GasLimit:          b.GasLimit,
			GasUsed:           b.GasUsed,
			Reward:            b.Reward,
			TxCount:           b.TxCount,
			Confirmations:     confirmations,
		}
	}

	return results, nil
}

// Broadcast submits signed raw transactions in order and returns their
// hashes. The first node rejection aborts the batch and surfaces verbatim.
func (e *Engine) Broadcast(ctx context.Context, chain, network string, rawTxs []string) ([]string, error) {
	txids := make([]string, 0, len(rawTxs))
	for _, raw := range rawTxs {
		txid, err := e.node.Broadcast(ctx, chain, network, raw)
		if err != nil {
			return nil, fmt.Errorf("broadcast transaction: %w", err)
		}
		txids = append(txids, txid)
	}

	e.logs.Infow("transactions broadcast",
		"chain", chain,
		"network", network,
		"count", len(txids))

	return txids, nil
}

func (e *Engine) EstimateGas(ctx context.Context, chain, network string, msg GasEstimateMessage) (uint64, error) {
	args := node.GasArgs{
		From: msg.From,
		To:   msg.To,
	}

	if msg.Value != "" {
		value, ok := new(big.Int).SetString(msg.Value, 10)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrMalformedValue, msg.Value)
		}
		args.Value = value
	}

	if msg.Data != "" {
		data, err := hex.DecodeString(strings.TrimPrefix(msg.Data, "0x"))
		if err != nil {
			return 0, fmt.Errorf("decode call data: %w", err)
		}
		args.Data = data
	}

	return e.node.EstimateGas(ctx, chain, network, args)
}
