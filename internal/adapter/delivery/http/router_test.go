package http

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	handler "chainstack-provider/internal/adapter/handler/http"
	"chainstack-provider/internal/domain/entity"
)

type stubService struct{}

func (stubService) Networks(context.Context) ([]entity.NetworkInfo, error) {
	return []entity.NetworkInfo{{Network: entity.Network{Name: "mainnet", ChainID: 1}}}, nil
}

func (stubService) HeadBlock(_ context.Context, network string) (entity.Head, error) {
	return entity.Head{Network: entity.Network{Name: network}, BlockNumber: 1}, nil
}

func (stubService) HeadBlockForChain(_ context.Context, chainID uint64) (entity.Head, error) {
	return entity.Head{Network: entity.Network{ChainID: chainID}, BlockNumber: 2}, nil
}

func (stubService) ProbeNetwork(context.Context, string) ([]entity.ProbeResult, error) {
	return nil, nil
}

func serve(t *testing.T, h fasthttp.RequestHandler, method, uri string) *fasthttp.RequestCtx {
	t.Helper()

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	h(ctx)
	return ctx
}

func TestRouter(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "chainstack_gateway_test_total", Help: "test"})
	require.NoError(t, reg.Register(counter))
	counter.Inc()

	r := NewRouter(handler.NewNetworkHandler(stubService{}, zap.NewNop()), reg, zap.NewNop())

	tests := []struct {
		method, uri string
		status      int
		contains    string
	}{
		{fasthttp.MethodGet, "/networks", fasthttp.StatusOK, `"mainnet"`},
		{fasthttp.MethodGet, "/networks/polygon/head", fasthttp.StatusOK, `"polygon"`},
		{fasthttp.MethodGet, "/networks/polygon/probe", fasthttp.StatusOK, "null"},
		{fasthttp.MethodGet, "/chains/137/head", fasthttp.StatusOK, `"chainId":137`},
		{fasthttp.MethodGet, "/chains/abc/head", fasthttp.StatusNotFound, ""},
		{fasthttp.MethodGet, "/health", fasthttp.StatusOK, "OK"},
		{fasthttp.MethodGet, "/metrics", fasthttp.StatusOK, "chainstack_gateway_test_total 1"},
		{fasthttp.MethodPost, "/networks", fasthttp.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		ctx := serve(t, r.Handler, tt.method, tt.uri)
		assert.Equal(t, tt.status, ctx.Response.StatusCode(), "%s %s", tt.method, tt.uri)
		assert.Contains(t, string(ctx.Response.Body()), tt.contains, "%s %s", tt.method, tt.uri)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	h := LoggingMiddleware(zap.New(core), func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusTeapot)
	})

	serve(t, h, fasthttp.MethodGet, "/networks")

	entries := logs.FilterMessage("Request handled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/networks", fields["uri"])
	assert.Equal(t, int64(fasthttp.StatusTeapot), fields["status"])
}
