package port

import (
	"context"

	"chainstack-provider/internal/domain/entity"
)

// GatewayService is the core logic behind the gateway's HTTP surface.
type GatewayService interface {
	// Networks lists the configured networks with their upstream host.
	Networks(ctx context.Context) ([]entity.NetworkInfo, error)

	// HeadBlock returns the latest block of a configured network.
	HeadBlock(ctx context.Context, network string) (entity.Head, error)

	// HeadBlockForChain returns the latest block of a chain resolved through the default provider.
	HeadBlockForChain(ctx context.Context, chainID uint64) (entity.Head, error)

	// ProbeNetwork returns the health of a network's HTTPS and WSS endpoints.
	ProbeNetwork(ctx context.Context, network string) ([]entity.ProbeResult, error)
}
