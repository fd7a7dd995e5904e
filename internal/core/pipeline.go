package core

import (
	"context"
	"encoding/json"

	"chainquery/internal/repository"
)

const streamBufferSize = 16

// Stage consumes one record and emits zero or more, preserving arrival order
// within what it emits. A returned error is fatal to the stream; per-record
// enrichment failures must degrade inside the stage instead.
type Stage func(ctx context.Context, rec *repository.Transaction) ([]*repository.Transaction, error)

// runPipeline drains the cursor through the stage chain, shaping survivors
// into the external transaction form. The output channel is bounded, so a
// consumer that stops reading exerts backpressure on the cursor; context
// cancellation stops the pulls entirely.
func (e *Engine) runPipeline(ctx context.Context, cursor repository.TxCursor, stages []Stage, tip int64) <-chan StreamResult {
	out := make(chan StreamResult, streamBufferSize)

	go func() {
		defer close(out)
		defer func() {
			if err := cursor.Close(); err != nil {
				e.logs.Errorw("close transaction cursor", "error", err)
			}
		}()

		for {
			if ctx.Err() != nil {
				return
			}

			rec, ok, err := cursor.Next()
			if err != nil {
				e.emit(ctx, out, StreamResult{Err: err})
				return
			}
			if !ok {
				return
			}

			records := []*repository.Transaction{&rec}
			for _, stage := range stages {
				var next []*repository.Transaction
				for _, r := range records {
					produced, err := stage(ctx, r)
					if err != nil {
						e.emit(ctx, out, StreamResult{Err: err})
						return
					}
					next = append(next, produced...)
				}
				records = next
				if len(records) == 0 {
					break
				}
			}

			for _, r := range records {
				if !e.emit(ctx, out, StreamResult{Tx: shapeTransaction(r, tip)}) {
					return
				}
			}
		}
	}()

	return out
}

func (e *Engine) emit(ctx context.Context, out chan<- StreamResult, res StreamResult) bool {
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

// shapeTransaction projects an enriched record into the API shape, computing
// confirmations against the indexed tip.
func shapeTransaction(rec *repository.Transaction, tip int64) *TransformedTx {
	var confirmations int64
	if rec.BlockHeight > 0 && tip >= rec.BlockHeight {
		confirmations = tip - rec.BlockHeight + 1
	}

	value := rec.Value
	if value == "" {
		value = "0"
	}

	return &TransformedTx{
		TxID:          rec.TxID,
		Chain:         rec.Chain,
		Network:       rec.Network,
		BlockHeight:   rec.BlockHeight,
		BlockHash:     rec.BlockHash,
		BlockTime:     rec.BlockTime,
		From:          rec.From,
		To:            rec.To,
		InitialFrom:   rec.InitialFrom,
		Value:         json.Number(value),
		Fee:           rec.Fee,
		GasLimit:      rec.GasLimit,
		GasPrice:      rec.GasPrice,
		Nonce:         rec.Nonce,
		Confirmations: confirmations,
	}
}
