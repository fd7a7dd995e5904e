package node

import "math/big"

// GasArgs describes the call a gas estimate is requested for.
type GasArgs struct {
	From  string
	To    string
	Value *big.Int
	Data  []byte
}

// Receipt is the subset of a transaction receipt this service exposes.
type Receipt struct {
	GasUsed uint64
	Status  uint64
}
