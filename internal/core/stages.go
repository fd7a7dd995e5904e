package core

import (
	"context"
	"strings"

	"chainquery/internal/node"
	"chainquery/internal/repository"
)

// TokenTransferStage emits one record per effect matching the requested token
// contract, overwriting value/to/from from the effect. Records with no
// matching effect are dropped. InitialFrom records the top-level sender when
// the effect's source differs from it.
func TokenTransferStage(tokenAddress string) Stage {
	return func(ctx context.Context, rec *repository.Transaction) ([]*repository.Transaction, error) {
		var out []*repository.Transaction
		for _, effect := range rec.Effects {
			if !strings.EqualFold(effect.ContractAddress, tokenAddress) {
				continue
			}
			out = append(out, expandFromEffect(rec, effect))
		}
		return out, nil
	}
}

// InternalTransferStage passes the record through and additionally emits one
// record per native-asset internal transfer touching the wallet's addresses.
func InternalTransferStage(addresses []string) Stage {
	watched := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		watched[strings.ToLower(addr)] = struct{}{}
	}

	relevant := func(effect repository.Effect) bool {
		if effect.ContractAddress != "" {
			return false
		}
		if _, ok := watched[strings.ToLower(effect.From)]; ok {
			return true
		}
		_, ok := watched[strings.ToLower(effect.To)]
		return ok
	}

	return func(ctx context.Context, rec *repository.Transaction) ([]*repository.Transaction, error) {
		out := []*repository.Transaction{rec}
		for _, effect := range rec.Effects {
			if relevant(effect) {
				out = append(out, expandFromEffect(rec, effect))
			}
		}
		return out, nil
	}
}

func expandFromEffect(rec *repository.Transaction, effect repository.Effect) *repository.Transaction {
	expanded := *rec
	expanded.Value = effect.Amount
	expanded.To = effect.To
	expanded.From = effect.From
	if !strings.EqualFold(effect.From, rec.From) {
		expanded.InitialFrom = rec.From
	}
	return &expanded
}

// receiptStage populates receipt-derived fields on records that lack them and
// back-fills the store. A missing or unfetchable receipt leaves the record
// unchanged; only the document-store cursor may kill the stream.
func (e *Engine) receiptStage(chain, network string) Stage {
	// expanded copies share a txid; remember receipts per stream so each
	// transaction costs at most one node call
	seen := make(map[string]*node.Receipt)

	return func(ctx context.Context, rec *repository.Transaction) ([]*repository.Transaction, error) {
		out := []*repository.Transaction{rec}

		if rec.GasUsed > 0 {
			return out, nil
		}

		receipt, ok := seen[rec.TxID]
		if !ok {
			var err error
			receipt, err = e.node.Receipt(ctx, chain, network, rec.TxID)
			if err != nil {
				e.logs.Errorw("receipt fetch failed, leaving record unenriched",
					"txid", rec.TxID,
					"error", err)
				return out, nil
			}
			seen[rec.TxID] = receipt
		}
		if receipt == nil {
			// still pending
			return out, nil
		}

		rec.GasUsed = receipt.GasUsed
		rec.Status = receipt.Status
		rec.Fee = receipt.GasUsed * rec.GasPrice

		if rec.ID != 0 {
			if err := e.repo.UpdateTransactionReceipt(ctx, rec.ID, rec.GasUsed, rec.Status, rec.Fee); err != nil {
				e.logs.Errorw("receipt back-fill failed", "txid", rec.TxID, "error", err)
			}
		}

		return out, nil
	}
}

// effectsBackfillStage recomputes effects from raw input data for records
// indexed before effect decoding existed.
func (e *Engine) effectsBackfillStage() Stage {
	return func(ctx context.Context, rec *repository.Transaction) ([]*repository.Transaction, error) {
		out := []*repository.Transaction{rec}

		if len(rec.Effects) > 0 {
			return out, nil
		}

		effects := DecodeEffects(rec)
		if len(effects) == 0 {
			return out, nil
		}

		rec.Effects = effects
		if rec.ID != 0 {
			if err := e.repo.UpdateTransactionEffects(ctx, rec.ID, effects); err != nil {
				e.logs.Errorw("effects back-fill failed", "txid", rec.TxID, "error", err)
			}
		}

		return out, nil
	}
}

// enrichStages is the shared tail of every stream: receipt population, then
// effects back-fill. Expansion stages must run before these so dropped
// records never cost a node call.
func (e *Engine) enrichStages(chain, network string) []Stage {
	return []Stage{
		e.receiptStage(chain, network),
		e.effectsBackfillStage(),
	}
}
