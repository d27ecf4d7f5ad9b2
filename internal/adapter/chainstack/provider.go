// Package chainstack connects to Chainstack's hosted JSON-RPC endpoints.
//
// Supported networks:
//
//   - Ethereum Mainnet (mainnet)
//   - Polygon Mainnet (polygon)
//   - BSC Mainnet (bsc)
//   - Avalanche Mainnet (avalanche)
//   - Arbitrum Mainnet (arbitrum)
//   - Scroll Testnet (scroll)
//   - Fantom Mainnet (fantom)
//
// Without an API key a shared, heavily throttled key is used. It is fine for
// prototypes and scripts; anything else should configure its own key.
package chainstack

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chainstack-provider/internal/adapter/community"
	"chainstack-provider/internal/adapter/fetch"
	"chainstack-provider/internal/adapter/jsonrpc"
	"chainstack-provider/internal/domain"
	"chainstack-provider/internal/domain/entity"
	"chainstack-provider/internal/pkg/apperrors"
)

// DefaultAPIKey is the shared community key. An empty key addresses the shared tier.
const DefaultAPIKey = ""

// ProviderName labels this provider in throttle notices.
const ProviderName = "ChainstackProvider"

// DefaultNetwork is used when no network is given.
const DefaultNetwork = "mainnet"

// Compile-time checks
var (
	_ jsonrpc.ChainProvider = (*Provider)(nil)
	_ community.Resourcable = (*Provider)(nil)
)

// Host returns the Chainstack hostname serving the named network.
func Host(name string) (string, error) {
	switch name {
	case "mainnet":
		return "ethereum-mainnet.core.chainstack.com", nil
	case "polygon":
		return "polygon-mainnet.core.chainstack.com", nil
	case "bsc":
		return "bsc-mainnet.core.chainstack.com", nil
	case "avalanche":
		return "avalanche-mainnet.core.chainstack.com", nil
	case "arbitrum":
		return "arbitrum-mainnet.core.chainstack.com", nil
	case "scroll":
		return "scroll-sepolia.core.chainstack.com", nil
	case "fantom":
		return "fantom-mainnet.core.chainstack.com", nil
	}

	return "", apperrors.NewArgumentError(domain.ErrUnsupportedNetwork, "network", name)
}

// SupportedNetworks lists the network names Host accepts.
func SupportedNetworks() []string {
	return []string{"mainnet", "polygon", "bsc", "avalanche", "arbitrum", "scroll", "fantom"}
}

// GetRequest returns a prepared request for connecting to network with apiKey.
// Requests on the default key show the throttle notice through the process-wide
// notifier and always ask to be retried when throttled.
func GetRequest(network entity.Network, apiKey string) (*fetch.Request, error) {
	return getRequest(network, apiKey, community.Default())
}

// WebSocketURL returns the WebSocket endpoint for network with apiKey.
func WebSocketURL(network entity.Network, apiKey string) (string, error) {
	host, err := Host(network.Name)
	if err != nil {
		return "", err
	}
	return "wss://" + host + "/" + apiKey, nil
}

func getRequest(network entity.Network, apiKey string, notifier community.Notifier) (*fetch.Request, error) {
	host, err := Host(network.Name)
	if err != nil {
		return nil, err
	}

	req := fetch.NewRequest("https://" + host + "/" + apiKey)
	req.AllowGzip = true

	if apiKey == DefaultAPIKey {
		req.RetryFunc = func(context.Context, *fetch.Request, *http.Response, int) (bool, error) {
			notifier.ShowThrottleMessage(ProviderName)
			return true, nil
		}
	}

	return req, nil
}

type config struct {
	apiKey    string
	timeout   time.Duration
	logger    *zap.Logger
	notifier  community.Notifier
	transport []fetch.TransportOption
}

// Option configures a Provider.
type Option func(*config)

// WithAPIKey sets the API key. Without it the shared default key is used.
func WithAPIKey(apiKey string) Option {
	return func(c *config) { c.apiKey = apiKey }
}

// WithTimeout bounds each call including its throttled retries. Non-positive values keep fetch.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for the provider and its transport.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithThrottleNotifier replaces the process-wide throttle notifier.
func WithThrottleNotifier(n community.Notifier) Option {
	return func(c *config) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithTransportOptions tunes the HTTP transport (attempts, backoff, rate limit, metrics).
func WithTransportOptions(opts ...fetch.TransportOption) Option {
	return func(c *config) { c.transport = append(c.transport, opts...) }
}

// Provider connects to Chainstack JSON-RPC endpoints.
type Provider struct {
	*jsonrpc.Provider

	apiKey string
	cfg    config
	logger *zap.Logger
}

// New creates a Provider for network, which may be anything entity.NetworkFrom accepts.
// A nil network means mainnet.
func New(ctx context.Context, network any, opts ...Option) (*Provider, error) {
	cfg := config{
		apiKey:   DefaultAPIKey,
		logger:   zap.NewNop(),
		notifier: community.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if network == nil {
		network = DefaultNetwork
	}
	resolved, err := entity.NetworkFrom(network)
	if err != nil {
		return nil, err
	}

	req, err := getRequest(resolved, cfg.apiKey, cfg.notifier)
	if err != nil {
		return nil, err
	}
	if cfg.timeout > 0 {
		req.Timeout = cfg.timeout
	}

	base, err := jsonrpc.New(ctx, req, resolved,
		jsonrpc.WithStaticNetwork(),
		jsonrpc.WithLogger(cfg.logger),
		jsonrpc.WithTransportOptions(cfg.transport...),
	)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Provider: base,
		apiKey:   cfg.apiKey,
		cfg:      cfg,
		logger:   cfg.logger.Named(ProviderName),
	}, nil
}

// APIKey returns the API key the provider was created with.
func (p *Provider) APIKey() string {
	return p.apiKey
}

// IsCommunityResource reports whether the provider runs on the shared default key.
func (p *Provider) IsCommunityResource() bool {
	return p.apiKey == DefaultAPIKey
}

// ProviderForChain returns a Chainstack provider for chainID with the same key and
// options. Chains Chainstack does not serve fall back to the generic resolution.
func (p *Provider) ProviderForChain(ctx context.Context, chainID uint64) jsonrpc.ChainProvider {
	scoped, err := New(ctx, chainID, p.options()...)
	if err != nil {
		p.logger.Debug("No Chainstack endpoint for chain, using generic resolution",
			zap.Uint64("chainId", chainID), zap.Error(err),
		)
		return p.Provider.ProviderForChain(ctx, chainID)
	}
	return scoped
}

func (p *Provider) options() []Option {
	return []Option{
		WithAPIKey(p.apiKey),
		WithTimeout(p.cfg.timeout),
		WithLogger(p.cfg.logger),
		WithThrottleNotifier(p.cfg.notifier),
		WithTransportOptions(p.cfg.transport...),
	}
}
