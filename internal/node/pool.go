package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

var ErrNoEndpoints error = errors.New("no endpoints configured for network")

// Handle is one live connection to a remote execution node.
type Handle struct {
	Client  EthClient
	Chain   string
	Network string
}

// Pool owns one handle per (chain, network). A handle is probed before reuse
// and evicted on probe failure; the replacement is dialed synchronously.
// Concurrent acquisitions may race to replace a dead handle; reconnecting is
// idempotent, so the pool carries no lock beyond the handle map itself.
type Pool struct {
	handles     sync.Map // "chain/network" -> *Handle
	endpoints   map[string][]string
	workerIndex int
	dial        func(ctx context.Context, url string) (EthClient, error)
	logs        *zap.SugaredLogger
}

func NewPool(logger *zap.SugaredLogger, endpoints map[string][]string, workerIndex int) *Pool {
	return &Pool{
		endpoints:   endpoints,
		workerIndex: workerIndex,
		dial: func(ctx context.Context, url string) (EthClient, error) {
			return ethclient.DialContext(ctx, url)
		},
		logs: logger,
	}
}

// Acquire returns a live handle for the network, probing a cached one with a
// current-height call and redialing when the probe fails.
func (p *Pool) Acquire(ctx context.Context, chain, network string) (*Handle, error) {
	key := chain + "/" + network

	if cached, ok := p.handles.Load(key); ok {
		handle := cached.(*Handle)
		if _, err := handle.Client.BlockNumber(ctx); err == nil {
			return handle, nil
		} else {
			p.handles.Delete(key)
			p.logs.Errorw("node liveness probe failed, reconnecting",
				"chain", chain,
				"network", network,
				"error", err)
		}
	}

	urls, ok := p.endpoints[key]
	if !ok || len(urls) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, key)
	}

	// deterministic candidate pick spreads load across worker processes
	url := urls[p.workerIndex%len(urls)]

	client, err := p.dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s node: %w", key, err)
	}

	handle := &Handle{
		Client:  client,
		Chain:   chain,
		Network: network,
	}
	p.handles.Store(key, handle)

	return handle, nil
}
