package handler

import (
	"context"
	"net/http"

	"chainquery/internal/core"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate -o fake -fake-name QueryService . QueryService
type QueryService interface {
	Authenticate(ctx context.Context, msg core.AuthMessage) (string, error)
	GetTransaction(ctx context.Context, chain, network, txid string) (*core.TransformedTx, error)
	GetChainInfo(ctx context.Context, chain, network string) (core.ChainInfo, error)
	StreamTransactions(ctx context.Context, args core.TxStreamArgs) (<-chan core.StreamResult, error)
	ListBlocks(ctx context.Context, chain, network string, sinceHeight int64, limit int) ([]core.BlockResult, error)
	GetBalance(ctx context.Context, chain, network, address, tokenAddress string) (core.Balance, error)
	GetWalletBalance(ctx context.Context, walletID, chain, network string) (core.Balance, error)
	EstimateFee(ctx context.Context, chain, network string, target int) (core.FeeEstimate, error)
	RegisterWallet(ctx context.Context, token, chain, network, name string, addresses []string) (string, error)
	Broadcast(ctx context.Context, chain, network string, rawTxs []string) ([]string, error)
	EstimateGas(ctx context.Context, chain, network string, msg core.GasEstimateMessage) (uint64, error)
}

//counterfeiter:generate -o fake -fake-name RequestValidator . RequestValidator
type RequestValidator interface {
	DecodeAndValidateJSONPayload(r *http.Request, object any) error
}
