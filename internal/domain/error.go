package domain

import "errors"

var (
	// ErrUnsupportedNetwork means the provider has no endpoint for the requested network.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrUnknownNetwork means a network name or chain ID could not be resolved.
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrNetworkNotConfigured means the network is supported but not enabled in the gateway configuration.
	ErrNetworkNotConfigured = errors.New("network not configured")

	// ErrChainNotServed means a per-chain lookup fell back to a provider bound to a different chain.
	ErrChainNotServed = errors.New("chain not served by provider")

	// ErrCacheFailure means an internal error occurred while interacting with the cache (not a cache miss).
	ErrCacheFailure = errors.New("cache operation failed")
)
