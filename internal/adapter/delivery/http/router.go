package http

import (
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	handler "chainstack-provider/internal/adapter/handler/http"
)

// NewRouter registers the gateway routes and the metrics endpoint on a new router.
func NewRouter(h *handler.NetworkHandler, gatherer prometheus.Gatherer, logger *zap.Logger) *router.Router {
	r := router.New()

	logger.Info("Setting up application-specific routes...")
	r.GET("/networks", h.ListNetworks)
	r.GET("/networks/{network}/head", h.GetHead)
	r.GET("/networks/{network}/probe", h.ProbeNetwork)
	r.GET("/chains/{chainId:[0-9]+}/head", h.GetChainHead)

	logger.Info("Setting up health check and metrics routes...")
	r.GET("/health", h.Health)
	r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	))

	logger.Info("All routes registered.")
	return r
}

// LoggingMiddleware logs every request with its status and duration.
func LoggingMiddleware(logger *zap.Logger, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	logger = logger.Named("HTTP")
	return func(ctx *fasthttp.RequestCtx) {
		started := time.Now()
		next(ctx)
		logger.Info("Request handled",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("uri", ctx.RequestURI()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("took", time.Since(started)),
		)
	}
}
