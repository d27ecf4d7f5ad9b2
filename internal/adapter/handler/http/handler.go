package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"chainstack-provider/internal/application/port"
	"chainstack-provider/internal/domain"
	"chainstack-provider/internal/pkg/apperrors"
)

// NetworkHandler serves the gateway's network endpoints.
type NetworkHandler struct {
	service port.GatewayService
	logger  *zap.Logger
}

// NewNetworkHandler creates a NetworkHandler.
func NewNetworkHandler(service port.GatewayService, logger *zap.Logger) *NetworkHandler {
	return &NetworkHandler{
		service: service,
		logger:  logger.Named("NetworkHandler"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListNetworks handles requests for the configured networks.
func (h *NetworkHandler) ListNetworks(ctx *fasthttp.RequestCtx) {
	networks, err := h.service.Networks(ctx)
	if err != nil {
		h.fail(ctx, "Failed to list networks", err)
		return
	}
	h.respond(ctx, networks)
}

// GetHead handles requests for the latest block of a network.
func (h *NetworkHandler) GetHead(ctx *fasthttp.RequestCtx) {
	network, ok := ctx.UserValue("network").(string)
	if !ok {
		h.fail(ctx, "Missing network path parameter", fmt.Errorf("%w: network is required", apperrors.ErrInvalidInput))
		return
	}

	head, err := h.service.HeadBlock(ctx, network)
	if err != nil {
		h.fail(ctx, "Failed to get head", err, zap.String("network", network))
		return
	}
	h.respond(ctx, head)
}

// GetChainHead handles requests for the latest block of a chain by ID.
func (h *NetworkHandler) GetChainHead(ctx *fasthttp.RequestCtx) {
	chainIDStr, _ := ctx.UserValue("chainId").(string)
	chainID, err := strconv.ParseUint(chainIDStr, 10, 64)
	if err != nil {
		h.fail(ctx, "Failed to parse chainId",
			fmt.Errorf("%w: invalid chainId %q", apperrors.ErrInvalidInput, chainIDStr),
		)
		return
	}

	head, err := h.service.HeadBlockForChain(ctx, chainID)
	if err != nil {
		h.fail(ctx, "Failed to get head for chain", err, zap.Uint64("chainId", chainID))
		return
	}
	h.respond(ctx, head)
}

// ProbeNetwork handles requests for the endpoint health of a network.
func (h *NetworkHandler) ProbeNetwork(ctx *fasthttp.RequestCtx) {
	network, ok := ctx.UserValue("network").(string)
	if !ok {
		h.fail(ctx, "Missing network path parameter", fmt.Errorf("%w: network is required", apperrors.ErrInvalidInput))
		return
	}

	results, err := h.service.ProbeNetwork(ctx, network)
	if err != nil {
		h.fail(ctx, "Failed to probe network", err, zap.String("network", network))
		return
	}
	h.respond(ctx, results)
}

// Health reports liveness.
func (h *NetworkHandler) Health(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString("OK")
}

func (h *NetworkHandler) respond(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *NetworkHandler) fail(ctx *fasthttp.RequestCtx, msg string, err error, fields ...zap.Field) {
	status := StatusFor(err)
	fields = append(fields, zap.Int("status", status), zap.Error(err))
	if status >= fasthttp.StatusInternalServerError {
		h.logger.Error(msg, fields...)
	} else {
		h.logger.Debug(msg, fields...)
	}

	ctx.ResetBody()
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	if encErr := json.NewEncoder(ctx).Encode(errorResponse{Error: err.Error()}); encErr != nil {
		h.logger.Error("Failed to encode error response", zap.Error(encErr))
	}
}

// StatusFor maps an application error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return fasthttp.StatusBadRequest
	case errors.Is(err, domain.ErrNetworkNotConfigured),
		errors.Is(err, domain.ErrChainNotServed):
		return fasthttp.StatusNotFound
	case errors.Is(err, apperrors.ErrRateLimited):
		return fasthttp.StatusTooManyRequests
	case errors.Is(err, apperrors.ErrTimeout):
		return fasthttp.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrExternalServiceFailure):
		return fasthttp.StatusBadGateway
	default:
		return fasthttp.StatusInternalServerError
	}
}
