package core

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

const balanceTTL = time.Minute

// GetBalance fetches the confirmed balance of one address, native or for a
// token contract when tokenAddress is set. Results are cached per
// (chain, network, address, token).
func (e *Engine) GetBalance(ctx context.Context, chain, network, address, tokenAddress string) (Balance, error) {
	key := fmt.Sprintf("balance-%s-%s-%s-%s", chain, network, address, tokenAddress)

	value, err := e.cache.GetOrRefresh(ctx, key, balanceTTL, func(ctx context.Context) (any, error) {
		var amount *big.Int
		var err error

		if tokenAddress == "" {
			amount, err = e.node.NativeBalance(ctx, chain, network, address)
		} else {
			amount, err = e.node.TokenBalance(ctx, chain, network, address, tokenAddress)
		}
		if err != nil {
			return nil, fmt.Errorf("fetch balance for %s: %w", address, err)
		}

		return Balance{
			Confirmed:   amount,
			Unconfirmed: big.NewInt(0),
			Balance:     new(big.Int).Set(amount),
		}, nil
	})
	if err != nil {
		return Balance{}, err
	}

	return value.(Balance), nil
}
