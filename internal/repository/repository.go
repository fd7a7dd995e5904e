package repository

import (
	"context"
	"errors"
	"fmt"

	"chainquery/internal/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrUserNotFound error = errors.New("user not found")
var ErrTxNotFound error = errors.New("transaction not found")

// TxQuery selects indexed transactions for streaming. Zero-valued fields are
// not applied as filters.
type TxQuery struct {
	Chain       string
	Network     string
	Address     string
	BlockHeight int64
	BlockHash   string
	WalletID    string
	Limit       int
}

type BlockQuery struct {
	Chain       string
	Network     string
	SinceHeight int64
	Limit       int
}

type ChainRepository struct {
	store *db.PostgresDB
}

func NewChainRepository(store *db.PostgresDB) *ChainRepository {
	return &ChainRepository{
		store: store,
	}
}

func (r *ChainRepository) MigrateAndSeed(ctx context.Context) error {

	err := r.store.MigrateTable(
		&Transaction{},
		&Block{},
		&Wallet{},
		&WalletAddress{},
		&TransactionWallet{},
		&User{})
	if err != nil {
		return fmt.Errorf("migrate table(s): %w", err)
	}

	users := []User{
		{
			ID:           uuid.NewString(),
			Username:     "alice",
			PasswordHash: "$2a$10$7PrikY/17DYiRAA6JlaGl.yo26gwhTT53ESuovxGWvWJ4HhvGI/GK",
		},
		{
			ID:           uuid.NewString(),
			Username:     "bob",
			PasswordHash: "$2a$10$SHWr22XIYjY3/nLI6QOSJezr5KAB2AUs740F8NahmhBNsPsKacL8u",
		},
	}
	err = r.store.Seed(ctx, &users)
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}

	return nil
}

func (r *ChainRepository) GetTransaction(ctx context.Context, chain, network, txid string) (Transaction, error) {
	var tx Transaction
	err := r.store.DB.WithContext(ctx).
		Where("chain = ? AND network = ? AND tx_id = ?", chain, network, txid).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Transaction{}, ErrTxNotFound
		}
		return Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// StreamTransactions opens a forward-only cursor over matching transactions,
// ordered by block height then insertion order.
func (r *ChainRepository) StreamTransactions(ctx context.Context, q TxQuery) (TxCursor, error) {
	query := r.store.DB.WithContext(ctx).Model(&Transaction{}).
		Where("transactions.chain = ? AND transactions.network = ?", q.Chain, q.Network)

	if q.Address != "" {
		query = query.Where(`"from" = ? OR "to" = ?`, q.Address, q.Address)
	}
	if q.BlockHeight > 0 {
		query = query.Where("block_height = ?", q.BlockHeight)
	}
	if q.BlockHash != "" {
		query = query.Where("block_hash = ?", q.BlockHash)
	}
	if q.WalletID != "" {
		query = query.
			Joins("JOIN transaction_wallets tw ON tw.transaction_id = transactions.id").
			Where("tw.wallet_id = ?", q.WalletID)
	}

	query = query.Order("block_height ASC, id ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	rows, err := query.Rows()
	if err != nil {
		return nil, fmt.Errorf("open transaction cursor: %w", err)
	}

	return &rowsCursor{rows: rows, db: r.store.DB}, nil
}

func (r *ChainRepository) ListBlocks(ctx context.Context, q BlockQuery) ([]Block, error) {
	query := r.store.DB.WithContext(ctx).
		Where("chain = ? AND network = ?", q.Chain, q.Network)

	if q.SinceHeight > 0 {
		query = query.Where("height <= ?", q.SinceHeight)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	var blocks []Block
	err := query.Order("height DESC").Limit(limit).Find(&blocks).Error
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return blocks, nil
}

// TipHeight returns the highest indexed block height, 0 when nothing has been
// indexed yet.
func (r *ChainRepository) TipHeight(ctx context.Context, chain, network string) (int64, error) {
	var tip int64
	err := r.store.DB.WithContext(ctx).Model(&Block{}).
		Where("chain = ? AND network = ?", chain, network).
		Select("COALESCE(MAX(height), 0)").
		Scan(&tip).Error
	if err != nil {
		return 0, fmt.Errorf("get tip height: %w", err)
	}
	return tip, nil
}

// RecentGasPrices projects the gas prices of the most recently confirmed
// transactions, newest first.
func (r *ChainRepository) RecentGasPrices(ctx context.Context, chain, network string, limit int) ([]uint64, error) {
	var prices []uint64
	err := r.store.DB.WithContext(ctx).Model(&Transaction{}).
		Where("chain = ? AND network = ? AND block_height > 0", chain, network).
		Order("block_height DESC, id DESC").
		Limit(limit).
		Pluck("gas_price", &prices).Error
	if err != nil {
		return nil, fmt.Errorf("get recent gas prices: %w", err)
	}
	return prices, nil
}

func (r *ChainRepository) CreateWallet(ctx context.Context, wallet Wallet) error {
	if err := r.store.DB.WithContext(ctx).Create(&wallet).Error; err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

// UpsertWalletAddresses registers addresses for a wallet; re-registering an
// already known address is a no-op, not an error.
func (r *ChainRepository) UpsertWalletAddresses(ctx context.Context, addresses []WalletAddress) error {
	if len(addresses) == 0 {
		return nil
	}
	if err := r.store.Upsert(ctx, &addresses); err != nil {
		return fmt.Errorf("upsert wallet addresses: %w", err)
	}
	return nil
}

func (r *ChainRepository) WalletAddresses(ctx context.Context, walletID string) ([]WalletAddress, error) {
	var addresses []WalletAddress
	err := r.store.GetAllBy(ctx, "wallet_id", []string{walletID}, &addresses)
	if err != nil {
		return nil, fmt.Errorf("get wallet addresses: %w", err)
	}
	return addresses, nil
}

// TagWalletTransactions retroactively associates already-indexed transactions
// with a freshly registered wallet, then marks its addresses processed. The
// association insert is idempotent.
func (r *ChainRepository) TagWalletTransactions(ctx context.Context, walletID, chain, network string, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}

	match := r.store.DB.
		Where(`"from" IN ?`, addresses).
		Or(`"to" IN ?`, addresses)
	for _, addr := range addresses {
		match = match.
			Or("effects @> ?", fmt.Sprintf(`[{"to":%q}]`, addr)).
			Or("effects @> ?", fmt.Sprintf(`[{"from":%q}]`, addr))
	}

	var ids []uint64
	err := r.store.DB.WithContext(ctx).Model(&Transaction{}).
		Where("chain = ? AND network = ?", chain, network).
		Where(match).
		Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("find wallet transactions: %w", err)
	}

	if len(ids) > 0 {
		links := make([]TransactionWallet, 0, len(ids))
		for _, id := range ids {
			links = append(links, TransactionWallet{TransactionID: id, WalletID: walletID})
		}
		if err := r.store.Upsert(ctx, &links); err != nil {
			return fmt.Errorf("tag wallet transactions: %w", err)
		}
	}

	err = r.store.DB.WithContext(ctx).Model(&WalletAddress{}).
		Where("wallet_id = ? AND address IN ?", walletID, addresses).
		Update("processed", true).Error
	if err != nil {
		return fmt.Errorf("mark addresses processed: %w", err)
	}

	return nil
}

// UpdateTransactionReceipt back-fills the lazily populated receipt fields.
func (r *ChainRepository) UpdateTransactionReceipt(ctx context.Context, id uint64, gasUsed, status, fee uint64) error {
	err := r.store.DB.WithContext(ctx).Model(&Transaction{}).
		Where("id = ?", id).
		Updates(map[string]any{"gas_used": gasUsed, "status": status, "fee": fee}).Error
	if err != nil {
		return fmt.Errorf("update transaction receipt: %w", err)
	}
	return nil
}

func (r *ChainRepository) UpdateTransactionEffects(ctx context.Context, id uint64, effects []Effect) error {
	err := r.store.DB.WithContext(ctx).Model(&Transaction{ID: id}).
		Update("effects", effects).Error
	if err != nil {
		return fmt.Errorf("update transaction effects: %w", err)
	}
	return nil
}

func (r *ChainRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User

	err := r.store.GetOneBy(ctx, "username", username, &user)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user by username: %w", err)
	}

	return user, nil
}
