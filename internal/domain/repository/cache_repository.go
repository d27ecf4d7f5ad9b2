package repository

import (
	"context"
	"time"

	"chainstack-provider/internal/domain/entity"
)

// CacheRepository caches observed heads and endpoint probe results per network.
type CacheRepository interface {
	// GetHead retrieves the cached head for a network.
	GetHead(ctx context.Context, network string) (entity.Head, bool, error)

	// SetHead stores a head under its network name. A non-positive ttl selects the repository default.
	SetHead(ctx context.Context, head entity.Head, ttl time.Duration) error

	// GetProbeResults retrieves the latest probe results for a network.
	GetProbeResults(ctx context.Context, network string) ([]entity.ProbeResult, bool, error)

	// SetProbeResults stores probe results for a network. A non-positive ttl selects the repository default.
	SetProbeResults(ctx context.Context, network string, results []entity.ProbeResult, ttl time.Duration) error
}
