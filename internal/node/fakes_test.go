package node

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeClient implements EthClient with stubbable function fields.
type fakeClient struct {
	BlockNumberFn        func(ctx context.Context) (uint64, error)
	BalanceAtFn          func(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContractFn       func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceiptFn func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SendTransactionFn    func(ctx context.Context, tx *types.Transaction) error
	EstimateGasFn        func(ctx context.Context, call ethereum.CallMsg) (uint64, error)

	BlockNumberCalls int
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	f.BlockNumberCalls++
	if f.BlockNumberFn != nil {
		return f.BlockNumberFn(ctx)
	}
	return 0, nil
}

func (f *fakeClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if f.BalanceAtFn != nil {
		return f.BalanceAtFn(ctx, account, blockNumber)
	}
	return big.NewInt(0), nil
}

func (f *fakeClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.CallContractFn != nil {
		return f.CallContractFn(ctx, call, blockNumber)
	}
	return nil, nil
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if f.TransactionReceiptFn != nil {
		return f.TransactionReceiptFn(ctx, txHash)
	}
	return nil, ethereum.NotFound
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.SendTransactionFn != nil {
		return f.SendTransactionFn(ctx, tx)
	}
	return nil
}

func (f *fakeClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if f.EstimateGasFn != nil {
		return f.EstimateGasFn(ctx, call)
	}
	return 0, nil
}

// fakeConnections hands out a fixed handle.
type fakeConnections struct {
	client *fakeClient
}

func (f *fakeConnections) Acquire(ctx context.Context, chain, network string) (*Handle, error) {
	return &Handle{Client: f.client, Chain: chain, Network: network}, nil
}
