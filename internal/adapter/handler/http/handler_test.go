package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"chainstack-provider/internal/domain"
	"chainstack-provider/internal/domain/entity"
	"chainstack-provider/internal/pkg/apperrors"
)

type fakeService struct {
	networks []entity.NetworkInfo
	head     entity.Head
	probes   []entity.ProbeResult
	err      error

	gotNetwork string
	gotChainID uint64
}

func (s *fakeService) Networks(context.Context) ([]entity.NetworkInfo, error) {
	return s.networks, s.err
}

func (s *fakeService) HeadBlock(_ context.Context, network string) (entity.Head, error) {
	s.gotNetwork = network
	return s.head, s.err
}

func (s *fakeService) HeadBlockForChain(_ context.Context, chainID uint64) (entity.Head, error) {
	s.gotChainID = chainID
	return s.head, s.err
}

func (s *fakeService) ProbeNetwork(_ context.Context, network string) ([]entity.ProbeResult, error) {
	s.gotNetwork = network
	return s.probes, s.err
}

func newCtx(values map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	for k, v := range values {
		ctx.SetUserValue(k, v)
	}
	return ctx
}

func decode[T any](t *testing.T, ctx *fasthttp.RequestCtx) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &v))
	return v
}

var polygon = entity.Network{Name: "polygon", ChainID: 137}

func TestNetworkHandler_ListNetworks(t *testing.T) {
	t.Parallel()

	svc := &fakeService{networks: []entity.NetworkInfo{
		{Network: polygon, Host: "polygon-mainnet.core.chainstack.com", CommunityResource: true},
	}}
	h := NewNetworkHandler(svc, zap.NewNop())

	ctx := newCtx(nil)
	h.ListNetworks(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))
	assert.Equal(t, svc.networks, decode[[]entity.NetworkInfo](t, ctx))
}

func TestNetworkHandler_GetHead(t *testing.T) {
	t.Parallel()

	svc := &fakeService{head: entity.Head{Network: polygon, BlockNumber: 42}}
	h := NewNetworkHandler(svc, zap.NewNop())

	ctx := newCtx(map[string]string{"network": "polygon"})
	h.GetHead(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "polygon", svc.gotNetwork)
	assert.Equal(t, svc.head, decode[entity.Head](t, ctx))
}

func TestNetworkHandler_GetChainHead(t *testing.T) {
	t.Parallel()

	svc := &fakeService{head: entity.Head{Network: polygon, BlockNumber: 42}}
	h := NewNetworkHandler(svc, zap.NewNop())

	ctx := newCtx(map[string]string{"chainId": "137"})
	h.GetChainHead(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, uint64(137), svc.gotChainID)

	ctx = newCtx(map[string]string{"chainId": "184467440737095516160"})
	h.GetChainHead(ctx)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Contains(t, decode[errorResponse](t, ctx).Error, "invalid chainId")
}

func TestNetworkHandler_ProbeNetwork(t *testing.T) {
	t.Parallel()

	block := uint64(7)
	svc := &fakeService{probes: []entity.ProbeResult{{
		Network:     "bsc",
		URL:         "https://bsc-mainnet.core.chainstack.com/***",
		Protocol:    entity.ProtocolHTTPS,
		IsWorking:   true,
		BlockNumber: &block,
	}}}
	h := NewNetworkHandler(svc, zap.NewNop())

	ctx := newCtx(map[string]string{"network": "bsc"})
	h.ProbeNetwork(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	got := decode[[]entity.ProbeResult](t, ctx)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsWorking)
	assert.Equal(t, entity.RPCURL("https://bsc-mainnet.core.chainstack.com/***"), got[0].URL)
}

func TestNetworkHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported network", apperrors.NewArgumentError(domain.ErrUnsupportedNetwork, "network", "goerli"), fasthttp.StatusBadRequest},
		{"not configured", fmt.Errorf("%w: fantom", domain.ErrNetworkNotConfigured), fasthttp.StatusNotFound},
		{"not served", fmt.Errorf("%w: chain 10", domain.ErrChainNotServed), fasthttp.StatusNotFound},
		{"rate limited", fmt.Errorf("%w: polygon", apperrors.ErrRateLimited), fasthttp.StatusTooManyRequests},
		{"timeout", fmt.Errorf("%w: polygon", apperrors.ErrTimeout), fasthttp.StatusGatewayTimeout},
		{"upstream", fmt.Errorf("%w: polygon", apperrors.ErrExternalServiceFailure), fasthttp.StatusBadGateway},
		{"unexpected", errors.New("boom"), fasthttp.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewNetworkHandler(&fakeService{err: tt.err}, zap.NewNop())
			ctx := newCtx(map[string]string{"network": "polygon"})
			h.GetHead(ctx)

			assert.Equal(t, tt.want, ctx.Response.StatusCode())
			assert.Equal(t, tt.err.Error(), decode[errorResponse](t, ctx).Error)
		})
	}
}

func TestNetworkHandler_Health(t *testing.T) {
	t.Parallel()

	ctx := newCtx(nil)
	NewNetworkHandler(&fakeService{}, zap.NewNop()).Health(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "OK", string(ctx.Response.Body()))
}
