package service

import (
	"context"
	"time"

	"chainstack-provider/internal/domain/entity"
)

// RPCChecker probes a single JSON-RPC endpoint and reports the head it sees.
type RPCChecker interface {
	CheckRPC(ctx context.Context, rpcURL entity.RPCURL) (blockNumber uint64, latency time.Duration, err error)
}
