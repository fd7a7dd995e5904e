package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"chainquery/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrMissingWalletID error = errors.New("wallet id is required")

// GetWalletBalance fans out one balance lookup per wallet address and reduces
// field-wise. A single failed lookup fails the whole aggregation.
func (e *Engine) GetWalletBalance(ctx context.Context, walletID, chain, network string) (Balance, error) {
	if walletID == "" {
		return Balance{}, ErrMissingWalletID
	}

	addresses, err := e.repo.WalletAddresses(ctx, walletID)
	if err != nil {
		return Balance{}, fmt.Errorf("resolve wallet addresses: %w", err)
	}

	balances := make([]Balance, len(addresses))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, addr := range addresses {
		group.Go(func() error {
			balance, err := e.GetBalance(groupCtx, chain, network, addr.Address, "")
			if err != nil {
				return err
			}
			balances[i] = balance
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Balance{}, fmt.Errorf("aggregate wallet balance: %w", err)
	}

	total := Balance{
		Confirmed:   big.NewInt(0),
		Unconfirmed: big.NewInt(0),
		Balance:     big.NewInt(0),
	}
	for _, b := range balances {
		total.Confirmed.Add(total.Confirmed, b.Confirmed)
		total.Unconfirmed.Add(total.Unconfirmed, b.Unconfirmed)
		total.Balance.Add(total.Balance, b.Balance)
	}

	return total, nil
}

// RegisterWallet creates a wallet for the authenticated user, registers its
// address set idempotently, and retroactively tags matching indexed
// transactions with the wallet id.
func (e *Engine) RegisterWallet(ctx context.Context, token, chain, network, name string, addresses []string) (string, error) {
	claims, err := e.jwtIssuer.Validate(token)
	if err != nil {
		return "", fmt.Errorf("validate jwt token: %w", err)
	}

	userID, _ := claims["sub"].(string)

	wallet := repository.Wallet{
		ID:      uuid.NewString(),
		Name:    name,
		UserID:  userID,
		Chain:   chain,
		Network: network,
	}
	if err := e.repo.CreateWallet(ctx, wallet); err != nil {
		return "", fmt.Errorf("create wallet: %w", err)
	}

	walletAddresses := make([]repository.WalletAddress, 0, len(addresses))
	for _, addr := range addresses {
		walletAddresses = append(walletAddresses, repository.WalletAddress{
			WalletID: wallet.ID,
			Address:  addr,
			Chain:    chain,
			Network:  network,
		})
	}
	if err := e.repo.UpsertWalletAddresses(ctx, walletAddresses); err != nil {
		return "", fmt.Errorf("register wallet addresses: %w", err)
	}

	if err := e.repo.TagWalletTransactions(ctx, wallet.ID, chain, network, addresses); err != nil {
		return "", fmt.Errorf("tag wallet transactions: %w", err)
	}

	e.logs.Infow("wallet registered",
		"walletId", wallet.ID,
		"chain", chain,
		"network", network,
		"addressCount", len(addresses))

	return wallet.ID, nil
}
