package core

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	feeSampleLimit = 4000
	feeTTL         = 90 * time.Second

	// a hundredth of a gwei, in wei; the quartile median is floored to this
	// granularity to avoid presenting spurious precision
	gweiHundredthWei = 10_000_000
)

// EstimateFee recommends a gas price from recent historical samples. target
// picks the confirmation-speed/cost tradeoff: 1 (fastest) samples the
// highest-priced quartile, 4 (cheapest) the lowest.
func (e *Engine) EstimateFee(ctx context.Context, chain, network string, target int) (FeeEstimate, error) {
	key := fmt.Sprintf("fee-%s-%s-%d", chain, network, target)

	value, err := e.cache.GetOrRefresh(ctx, key, feeTTL, func(ctx context.Context) (any, error) {
		return e.computeFee(ctx, chain, network, target)
	})
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("estimate fee: %w", err)
	}

	return value.(FeeEstimate), nil
}

func (e *Engine) computeFee(ctx context.Context, chain, network string, target int) (FeeEstimate, error) {
	prices, err := e.repo.RecentGasPrices(ctx, chain, network, feeSampleLimit)
	if err != nil {
		return FeeEstimate{}, fmt.Errorf("get gas price samples: %w", err)
	}

	estimate := FeeEstimate{
		Feerate: quartileMedian(prices, target),
		Blocks:  target,
	}

	e.logs.Infow("fee estimated",
		"chain", chain,
		"network", network,
		"target", target,
		"samples", len(prices),
		"feerate", estimate.Feerate)

	return estimate, nil
}

// quartileMedian sorts the samples descending, partitions them into 4
// quartiles, and returns the median of quartile min(target, 4) floored to a
// hundredth of a gwei. No samples yields 0.
func quartileMedian(prices []uint64, target int) uint64 {
	n := len(prices)
	if n == 0 {
		return 0
	}

	sorted := make([]uint64, n)
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	quartile := target
	if quartile < 1 {
		quartile = 1
	}
	if quartile > 4 {
		quartile = 4
	}

	lo := (quartile - 1) * n / 4
	hi := quartile * n / 4
	if hi <= lo {
		hi = lo + 1
	}
	if hi > n {
		hi = n
	}
	if lo >= n {
		lo = n - 1
	}

	slice := sorted[lo:hi]
	median := slice[len(slice)/2]

	return median / gweiHundredthWei * gweiHundredthWei
}
