package core

import (
	"context"
	"math/big"
	"time"

	"chainquery/internal/node"
	"chainquery/internal/repository"
	tokenIssuer "chainquery/pkg/jwt"

	"github.com/golang-jwt/jwt"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate -o fake -fake-name Repository . Repository
type Repository interface {
	GetTransaction(ctx context.Context, chain, network, txid string) (repository.Transaction, error)
	StreamTransactions(ctx context.Context, q repository.TxQuery) (repository.TxCursor, error)
	ListBlocks(ctx context.Context, q repository.BlockQuery) ([]repository.Block, error)
	TipHeight(ctx context.Context, chain, network string) (int64, error)
	RecentGasPrices(ctx context.Context, chain, network string, limit int) ([]uint64, error)
	CreateWallet(ctx context.Context, wallet repository.Wallet) error
	UpsertWalletAddresses(ctx context.Context, addresses []repository.WalletAddress) error
	WalletAddresses(ctx context.Context, walletID string) ([]repository.WalletAddress, error)
	TagWalletTransactions(ctx context.Context, walletID, chain, network string, addresses []string) error
	UpdateTransactionReceipt(ctx context.Context, id uint64, gasUsed, status, fee uint64) error
	UpdateTransactionEffects(ctx context.Context, id uint64, effects []repository.Effect) error
	GetUserByUsername(ctx context.Context, username string) (repository.User, error)
}

//counterfeiter:generate -o fake -fake-name NodeGateway . NodeGateway
type NodeGateway interface {
	Height(ctx context.Context, chain, network string) (uint64, error)
	NativeBalance(ctx context.Context, chain, network, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, chain, network, address, tokenAddress string) (*big.Int, error)
	Receipt(ctx context.Context, chain, network, txid string) (*node.Receipt, error)
	Broadcast(ctx context.Context, chain, network, rawTx string) (string, error)
	EstimateGas(ctx context.Context, chain, network string, args node.GasArgs) (uint64, error)
}

//counterfeiter:generate -o fake -fake-name Cache . Cache
type Cache interface {
	GetOrRefresh(ctx context.Context, key string, ttl time.Duration, producer func(ctx context.Context) (any, error)) (any, error)
}

//counterfeiter:generate -o fake -fake-name JWTIssuer . JWTIssuer
type JWTIssuer interface {
	Generate(data tokenIssuer.TokenInfo) *jwt.Token
	Sign(token *jwt.Token) (string, error)
	Validate(token string) (jwt.MapClaims, error)
}
