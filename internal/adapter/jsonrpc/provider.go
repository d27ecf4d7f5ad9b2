package jsonrpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"chainstack-provider/internal/adapter/fetch"
	"chainstack-provider/internal/domain/entity"
	"chainstack-provider/internal/pkg/apperrors"
)

// ChainProvider is the minimal surface callers need from a provider bound to one chain.
type ChainProvider interface {
	Network(ctx context.Context) (entity.Network, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Compile-time check
var _ ChainProvider = (*Provider)(nil)

type options struct {
	staticNetwork bool
	logger        *zap.Logger
	transport     []fetch.TransportOption
}

// Option configures a Provider.
type Option func(*options)

// WithStaticNetwork pins the network given at construction and skips eth_chainId detection.
func WithStaticNetwork() Option {
	return func(o *options) { o.staticNetwork = true }
}

// WithLogger sets the provider logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTransportOptions passes options to the fetch transport built from the request.
func WithTransportOptions(opts ...fetch.TransportOption) Option {
	return func(o *options) { o.transport = append(o.transport, opts...) }
}

// Provider is a JSON-RPC provider over HTTP. The go-ethereum client handles request
// encoding, batching and response correlation; Provider adds the network binding and
// the per-chain provider hook.
type Provider struct {
	*ethclient.Client

	rpcClient     *rpc.Client
	request       *fetch.Request
	network       entity.Network
	staticNetwork bool
	logger        *zap.Logger
}

// New creates a Provider for req bound to network. No network I/O happens here.
func New(ctx context.Context, req *fetch.Request, network entity.Network, opts ...Option) (*Provider, error) {
	if req == nil || req.URL == "" {
		return nil, fmt.Errorf("%w: request url is required", apperrors.ErrInvalidInput)
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	transportOpts := append([]fetch.TransportOption{fetch.WithLogger(o.logger)}, o.transport...)
	httpClient := req.HTTPClient(transportOpts...)

	rpcClient, err := rpc.DialOptions(ctx, req.URL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc client for %s: %w",
			entity.RPCURL(req.URL).Redacted(), err,
		)
	}

	return &Provider{
		Client:        ethclient.NewClient(rpcClient),
		rpcClient:     rpcClient,
		request:       req.Clone(),
		network:       network,
		staticNetwork: o.staticNetwork,
		logger:        o.logger.Named("JSONRPCProvider"),
	}, nil
}

// Network returns the provider's network. A static network is returned without I/O;
// otherwise the chain ID is queried and must agree with the configured one, if any.
func (p *Provider) Network(ctx context.Context) (entity.Network, error) {
	if p.staticNetwork {
		return p.network, nil
	}

	chainID, err := p.ChainID(ctx)
	if err != nil {
		return entity.Network{}, fmt.Errorf("failed to detect network: %w", err)
	}
	detected, err := entity.NetworkFrom(chainID)
	if err != nil {
		return entity.Network{}, err
	}
	if p.network.ChainID != 0 && detected.ChainID != p.network.ChainID {
		p.logger.Warn("Endpoint reports a different chain than configured",
			zap.Uint64("configuredChainId", p.network.ChainID),
			zap.Uint64("detectedChainId", detected.ChainID),
		)
		return entity.Network{}, fmt.Errorf("%w: network changed from %d to %d",
			apperrors.ErrExternalServiceFailure, p.network.ChainID, detected.ChainID,
		)
	}
	return detected, nil
}

// StaticNetwork reports whether network detection is disabled.
func (p *Provider) StaticNetwork() bool {
	return p.staticNetwork
}

// Request returns a copy of the request descriptor the provider was built from.
func (p *Provider) Request() *fetch.Request {
	return p.request.Clone()
}

// RPC returns the underlying JSON-RPC client.
func (p *Provider) RPC() *rpc.Client {
	return p.rpcClient
}

// ProviderForChain returns a provider for chainID. The generic provider cannot reach
// other chains, so it returns itself; vendor providers override this.
func (p *Provider) ProviderForChain(_ context.Context, _ uint64) ChainProvider {
	return p
}
