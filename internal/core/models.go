package core

import (
	"encoding/json"
	"math/big"
	"time"
)

type AuthMessage struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Balance is the external balance shape. Unconfirmed is always 0: the remote
// node only reports confirmed chain state.
type Balance struct {
	Confirmed   *big.Int `json:"confirmed"`
	Unconfirmed *big.Int `json:"unconfirmed"`
	Balance     *big.Int `json:"balance"`
}

type FeeEstimate struct {
	Feerate uint64 `json:"feerate"`
	Blocks  int    `json:"blocks"`
}

// TransformedTx is the externally visible projection of an indexed
// transaction record.
type TransformedTx struct {
	TxID          string      `json:"txid"`
	Chain         string      `json:"chain"`
	Network       string      `json:"network"`
	BlockHeight   int64       `json:"blockHeight"`
	BlockHash     string      `json:"blockHash,omitempty"`
	BlockTime     time.Time   `json:"blockTime"`
	From          string      `json:"from"`
	To            string      `json:"to"`
	InitialFrom   string      `json:"initialFrom,omitempty"`
	Value         json.Number `json:"value"`
	Fee           uint64      `json:"fee"`
	GasLimit      uint64      `json:"gasLimit"`
	GasPrice      uint64      `json:"gasPrice"`
	Nonce         uint64      `json:"nonce"`
	Confirmations int64       `json:"confirmations"`
}

type BlockResult struct {
	Chain             string    `json:"chain"`
	Network           string    `json:"network"`
	Height            int64     `json:"height"`
	Hash              string    `json:"hash"`
	PreviousBlockHash string    `json:"previousBlockHash,omitempty"`
	Time              time.Time `json:"time"`
	GasLimit          uint64    `json:"gasLimit"`
	GasUsed           uint64    `json:"gasUsed"`
	Reward            string    `json:"reward,omitempty"`
	TxCount           int       `json:"transactionCount"`
	Confirmations     int64     `json:"confirmations"`
}

// TxStreamArgs selects and shapes a transaction stream. A non-empty WalletID
// switches the stream into wallet mode; TokenAddress further narrows a wallet
// stream to one token's transfers.
type TxStreamArgs struct {
	Chain        string
	Network      string
	Address      string
	BlockHeight  int64
	BlockHash    string
	WalletID     string
	TokenAddress string
	Limit        int
}

// StreamResult carries one shaped record or the stream-fatal error that
// terminated the pipeline.
type StreamResult struct {
	Tx  *TransformedTx
	Err error
}

// ChainInfo reports the remote node's current height next to the highest
// indexed height, exposing how far the index lags the chain.
type ChainInfo struct {
	Chain         string `json:"chain"`
	Network       string `json:"network"`
	NodeHeight    uint64 `json:"nodeHeight"`
	IndexedHeight int64  `json:"indexedHeight"`
}

type GasEstimateMessage struct {
	From  string
	To    string
	Value string // wei, decimal
	Data  string // hex encoded call data
}
