package node

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

var _ = Describe("Pool", func() {
	var (
		pool      *Pool
		dialCount int
		dialedURL string
		client    *fakeClient
		ctx       context.Context
	)

	endpoints := map[string][]string{
		"ETH/mainnet": {"https://node-a", "https://node-b"},
	}

	BeforeEach(func() {
		ctx = context.Background()
		client = &fakeClient{}
		dialCount = 0
		dialedURL = ""

		pool = NewPool(zap.NewNop().Sugar(), endpoints, 0)
		pool.dial = func(ctx context.Context, url string) (EthClient, error) {
			dialCount++
			dialedURL = url
			return client, nil
		}
	})

	When("no handle is cached", func() {
		It("should dial the worker's endpoint and cache the handle", func() {
			handle, err := pool.Acquire(ctx, "ETH", "mainnet")
			Expect(err).NotTo(HaveOccurred())
			Expect(handle.Chain).To(Equal("ETH"))
			Expect(handle.Network).To(Equal("mainnet"))
			Expect(dialCount).To(Equal(1))
			Expect(dialedURL).To(Equal("https://node-a"))
		})
	})

	When("a live handle is cached", func() {
		It("should probe and reuse it without redialing", func() {
			first, err := pool.Acquire(ctx, "ETH", "mainnet")
			Expect(err).NotTo(HaveOccurred())

			second, err := pool.Acquire(ctx, "ETH", "mainnet")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeIdenticalTo(first))
			Expect(dialCount).To(Equal(1))
			Expect(client.BlockNumberCalls).To(Equal(1))
		})
	})

	When("the cached handle fails its liveness probe", func() {
		It("should evict it and dial a replacement", func() {
			first, err := pool.Acquire(ctx, "ETH", "mainnet")
			Expect(err).NotTo(HaveOccurred())

			client.BlockNumberFn = func(ctx context.Context) (uint64, error) {
				return 0, errors.New("connection refused")
			}
			replacement := &fakeClient{}
			pool.dial = func(ctx context.Context, url string) (EthClient, error) {
				dialCount++
				return replacement, nil
			}

			second, err := pool.Acquire(ctx, "ETH", "mainnet")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(BeIdenticalTo(first))
			Expect(second.Client).To(BeIdenticalTo(replacement))
			Expect(dialCount).To(Equal(2))
		})
	})

	When("the worker index exceeds the endpoint count", func() {
		It("should wrap around the endpoint list", func() {
			pool = NewPool(zap.NewNop().Sugar(), endpoints, 3)
			pool.dial = func(ctx context.Context, url string) (EthClient, error) {
				dialedURL = url
				return client, nil
			}

			_, err := pool.Acquire(ctx, "ETH", "mainnet")
			Expect(err).NotTo(HaveOccurred())
			Expect(dialedURL).To(Equal("https://node-b"))
		})
	})

	When("the network has no endpoints", func() {
		It("should fail with a configuration error", func() {
			_, err := pool.Acquire(ctx, "BTC", "mainnet")
			Expect(err).To(MatchError(ErrNoEndpoints))
		})
	})

	When("dialing fails", func() {
		It("should surface the failure and cache nothing", func() {
			pool.dial = func(ctx context.Context, url string) (EthClient, error) {
				return nil, errors.New("no route to host")
			}

			_, err := pool.Acquire(ctx, "ETH", "mainnet")
			Expect(err).To(MatchError(ContainSubstring("no route to host")))

			pool.dial = func(ctx context.Context, url string) (EthClient, error) {
				dialCount++
				return client, nil
			}
			_, err = pool.Acquire(ctx, "ETH", "mainnet")
			Expect(err).NotTo(HaveOccurred())
			Expect(dialCount).To(Equal(1))
		})
	})
})
