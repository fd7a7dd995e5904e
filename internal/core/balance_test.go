package core_test

import (
	"context"
	"errors"
	"math/big"

	"chainquery/internal/core"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("GetBalance", func() {
	var (
		nodeGw *fakeNode
		engine *core.Engine
		ctx    context.Context
	)

	BeforeEach(func() {
		nodeGw = &fakeNode{}
		engine = newEngine(&fakeRepo{}, nodeGw)
		ctx = context.Background()
	})

	When("no token address is given", func() {
		BeforeEach(func() {
			nodeGw.NativeBalanceFn = func(ctx context.Context, chain, network, address string) (*big.Int, error) {
				Expect(address).To(Equal("0xabc"))
				return big.NewInt(1000), nil
			}
		})

		It("should report the native balance with unconfirmed always 0", func() {
			balance, err := engine.GetBalance(ctx, "ETH", "mainnet", "0xabc", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(balance.Confirmed).To(Equal(big.NewInt(1000)))
			Expect(balance.Unconfirmed).To(Equal(big.NewInt(0)))
			Expect(balance.Balance).To(Equal(big.NewInt(1000)))
			Expect(nodeGw.TokenBalanceCalls).To(BeZero())
		})
	})

	When("a token address is given", func() {
		BeforeEach(func() {
			nodeGw.TokenBalanceFn = func(ctx context.Context, chain, network, address, tokenAddress string) (*big.Int, error) {
				Expect(tokenAddress).To(Equal("0xtoken"))
				return big.NewInt(77), nil
			}
		})

		It("should query the token contract instead", func() {
			balance, err := engine.GetBalance(ctx, "ETH", "mainnet", "0xabc", "0xtoken")
			Expect(err).NotTo(HaveOccurred())
			Expect(balance.Balance).To(Equal(big.NewInt(77)))
			Expect(nodeGw.NativeBalanceCalls).To(BeZero())
		})
	})

	When("the balance was fetched recently", func() {
		It("should serve the cached value without a node call", func() {
			_, err := engine.GetBalance(ctx, "ETH", "mainnet", "0xabc", "")
			Expect(err).NotTo(HaveOccurred())

			_, err = engine.GetBalance(ctx, "ETH", "mainnet", "0xabc", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(nodeGw.NativeBalanceCalls).To(Equal(1))
		})
	})

	When("the node call fails", func() {
		fakeErr := errors.New("node unreachable")

		BeforeEach(func() {
			nodeGw.NativeBalanceFn = func(ctx context.Context, chain, network, address string) (*big.Int, error) {
				return nil, fakeErr
			}
		})

		It("should propagate the failure without caching it", func() {
			_, err := engine.GetBalance(ctx, "ETH", "mainnet", "0xabc", "")
			Expect(err).To(MatchError(fakeErr))

			nodeGw.NativeBalanceFn = func(ctx context.Context, chain, network, address string) (*big.Int, error) {
				return big.NewInt(5), nil
			}

			balance, err := engine.GetBalance(ctx, "ETH", "mainnet", "0xabc", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(balance.Balance).To(Equal(big.NewInt(5)))
		})
	})
})
