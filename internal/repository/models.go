package repository

import "time"

// Effect is a decoded value-transfer side effect of a transaction. A token
// contract's internal transfer carries the contract address; native internal
// moves leave it empty.
type Effect struct {
	ContractAddress string `json:"contractAddress,omitempty"`
	From            string `json:"from"`
	To              string `json:"to"`
	Amount          string `json:"amount"` // smallest on-chain unit, decimal string
}

type Transaction struct {
	ID          uint64 `gorm:"primaryKey"`
	Chain       string `gorm:"size:16;not null;uniqueIndex:idx_tx_identity"`
	Network     string `gorm:"size:32;not null;uniqueIndex:idx_tx_identity"`
	TxID        string `gorm:"size:66;not null;uniqueIndex:idx_tx_identity"` // 0x + 64 hex chars
	BlockHeight int64  `gorm:"not null;index"`                               // -1 while unconfirmed
	BlockHash   string `gorm:"size:66"`
	BlockTime   time.Time
	From        string   `gorm:"size:42;not null;index"`
	To          string   `gorm:"size:42;index"`
	Value       string   `gorm:"size:100;not null"` // wei (string to handle large numbers)
	GasLimit    uint64   `gorm:"not null"`
	GasPrice    uint64   `gorm:"not null"`
	Nonce       uint64   `gorm:"not null"`
	Data        string   `gorm:"type:text"` // hex encoded input data
	GasUsed     uint64   `gorm:"not null;default:0"`
	Status      uint64   `gorm:"not null;default:0"`
	Fee         uint64   `gorm:"not null;default:0"` // gasUsed * gasPrice, populated lazily
	Effects     []Effect `gorm:"serializer:json;type:jsonb"`

	// InitialFrom is set in-stream when a record is expanded from an effect
	// whose sender differs from the top-level sender. Never persisted.
	InitialFrom string `gorm:"-" json:"-"`
}

type Block struct {
	ID                uint64 `gorm:"primaryKey"`
	Chain             string `gorm:"size:16;not null;uniqueIndex:idx_block_identity"`
	Network           string `gorm:"size:32;not null;uniqueIndex:idx_block_identity"`
	Height            int64  `gorm:"not null;uniqueIndex:idx_block_identity;index"`
	Hash              string `gorm:"size:66;not null"`
	PreviousBlockHash string `gorm:"size:66"`
	Time              time.Time
	GasLimit          uint64 `gorm:"not null;default:0"`
	GasUsed           uint64 `gorm:"not null;default:0"`
	Reward            string `gorm:"size:100"`
	TxCount           int    `gorm:"not null;default:0"`
}

type Wallet struct {
	ID        string `gorm:"primaryKey;autoIncrement:false"` // uuid
	Name      string `gorm:"size:255"`
	UserID    string `gorm:"size:64;index"`
	Chain     string `gorm:"size:16;not null"`
	Network   string `gorm:"size:32;not null"`
	CreatedAt time.Time
}

type WalletAddress struct {
	WalletID  string `gorm:"primaryKey;autoIncrement:false"`
	Address   string `gorm:"primaryKey;size:42"`
	Chain     string `gorm:"size:16;not null"`
	Network   string `gorm:"size:32;not null"`
	Processed bool   `gorm:"not null;default:false"`
}

// TransactionWallet associates an indexed transaction with a registered wallet.
// The composite key makes retroactive tagging idempotent.
type TransactionWallet struct {
	TransactionID uint64 `gorm:"primaryKey;autoIncrement:false"`
	WalletID      string `gorm:"primaryKey;autoIncrement:false"`
}

type User struct {
	ID           string `gorm:"primaryKey;autoIncrement:false"`
	Username     string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
}
