package core

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"

	"chainquery/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	transferSelector     = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
	transferFromSelector = crypto.Keccak256([]byte("transferFrom(address,address,uint256)"))[:4]
)

// DecodeEffects recomputes value-transfer effects from a transaction's raw
// input data. Only token transfer calls are recoverable this way; native
// internal moves need a tracer at index time.
func DecodeEffects(rec *repository.Transaction) []repository.Effect {
	data, err := hex.DecodeString(strings.TrimPrefix(rec.Data, "0x"))
	if err != nil || len(data) < 4 {
		return nil
	}

	method, args := data[:4], data[4:]

	switch {
	case bytes.Equal(method, transferSelector) && len(args) >= 64:
		return []repository.Effect{{
			ContractAddress: rec.To,
			From:            rec.From,
			To:              common.BytesToAddress(args[12:32]).Hex(),
			Amount:          new(big.Int).SetBytes(args[32:64]).String(),
		}}

	case bytes.Equal(method, transferFromSelector) && len(args) >= 96:
		return []repository.Effect{{
			ContractAddress: rec.To,
			From:            common.BytesToAddress(args[12:32]).Hex(),
			To:              common.BytesToAddress(args[44:64]).Hex(),
			Amount:          new(big.Int).SetBytes(args[64:96]).String(),
		}}
	}

	return nil
}
