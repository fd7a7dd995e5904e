package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// balanceOf(address)
var balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

// NodeService answers live chain-state questions through pooled connections.
type NodeService struct {
	pool Connections
}

func NewNodeService(pool Connections) *NodeService {
	return &NodeService{
		pool: pool,
	}
}

func (s *NodeService) Height(ctx context.Context, chain, network string) (uint64, error) {
	handle, err := s.pool.Acquire(ctx, chain, network)
	if err != nil {
		return 0, err
	}

	height, err := handle.Client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}
	return height, nil
}

// NativeBalance returns the confirmed native-asset balance in the chain's
// smallest denomination.
func (s *NodeService) NativeBalance(ctx context.Context, chain, network, address string) (*big.Int, error) {
	handle, err := s.pool.Acquire(ctx, chain, network)
	if err != nil {
		return nil, err
	}

	balance, err := handle.Client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("get native balance: %w", err)
	}
	return balance, nil
}

// TokenBalance calls the token contract's balanceOf for the address.
func (s *NodeService) TokenBalance(ctx context.Context, chain, network, address, tokenAddress string) (*big.Int, error) {
	handle, err := s.pool.Acquire(ctx, chain, network)
	if err != nil {
		return nil, err
	}

	contract := common.HexToAddress(tokenAddress)
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)...)

	result, err := handle.Client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call token balance: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

// Receipt fetches a transaction receipt. A still-pending transaction yields
// a nil receipt, not an error.
func (s *NodeService) Receipt(ctx context.Context, chain, network, txid string) (*Receipt, error) {
	handle, err := s.pool.Acquire(ctx, chain, network)
	if err != nil {
		return nil, err
	}

	receipt, err := handle.Client.TransactionReceipt(ctx, common.HexToHash(txid))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction receipt: %w", err)
	}

	return &Receipt{
		GasUsed: receipt.GasUsed,
		Status:  receipt.Status,
	}, nil
}

// Broadcast submits a signed raw transaction and returns its hash. Node
// rejections surface verbatim.
func (s *NodeService) Broadcast(ctx context.Context, chain, network, rawTx string) (string, error) {
	handle, err := s.pool.Acquire(ctx, chain, network)
	if err != nil {
		return "", err
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(rawTx, "0x"))
	if err != nil {
		return "", fmt.Errorf("decode raw transaction hex: %w", err)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", fmt.Errorf("decode raw transaction: %w", err)
	}

	if err := handle.Client.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("send raw transaction: %w", err)
	}

	return tx.Hash().Hex(), nil
}

func (s *NodeService) EstimateGas(ctx context.Context, chain, network string, args GasArgs) (uint64, error) {
	handle, err := s.pool.Acquire(ctx, chain, network)
	if err != nil {
		return 0, err
	}

	msg := ethereum.CallMsg{
		From:  common.HexToAddress(args.From),
		Value: args.Value,
		Data:  args.Data,
	}
	if args.To != "" {
		to := common.HexToAddress(args.To)
		msg.To = &to
	}

	gas, err := handle.Client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return gas, nil
}
