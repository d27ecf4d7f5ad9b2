package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"chainstack-provider/internal/domain/entity"
	domainService "chainstack-provider/internal/domain/service"
	"chainstack-provider/internal/pkg/apperrors"
)

// DefaultTimeout bounds a single probe when the context carries no deadline.
const DefaultTimeout = 10 * time.Second

// Compile-time check
var _ domainService.RPCChecker = (*Checker)(nil)

// Checker implements the domainService.RPCChecker interface over HTTP(S) and WS(S).
type Checker struct {
	client  *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewChecker creates a new RPC checker. A non-positive timeout means DefaultTimeout.
func NewChecker(logger *zap.Logger, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		timeout: timeout,
		logger:  logger.Named("RPCChecker"),
	}
}

// checkPayload asks the node for its head block.
var checkPayload = []byte(`{"jsonrpc":"2.0","method":"eth_blockNumber","params":[],"id":1}`)

type jsonRPCResponse struct {
	ID      any             `json:"id"`
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CheckRPC sends eth_blockNumber to rpcURL over the protocol its scheme names.
func (c *Checker) CheckRPC(ctx context.Context, rpcURL entity.RPCURL) (uint64, time.Duration, error) {
	startTime := time.Now()

	switch rpcURL.Protocol() {
	case entity.ProtocolWS, entity.ProtocolWSS:
		return c.checkWSS(ctx, rpcURL, startTime)
	case entity.ProtocolHTTP, entity.ProtocolHTTPS:
		return c.checkHTTP(ctx, rpcURL, startTime)
	}

	safe := rpcURL.Redacted()
	c.logger.Warn("Skipping check for unsupported protocol", zap.Stringer("url", safe))
	return 0, 0, fmt.Errorf("%w: unsupported protocol in URL %s", apperrors.ErrInvalidInput, safe)
}

func (c *Checker) effectiveTimeout(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func (c *Checker) checkHTTP(ctx context.Context, rpcURL entity.RPCURL, startTime time.Time) (uint64, time.Duration, error) {
	safe := rpcURL.Redacted()

	timeout := c.effectiveTimeout(ctx)
	if timeout <= 0 {
		return 0, 0, fmt.Errorf("%w: no time left to check %s", apperrors.ErrTimeout, safe)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rpcURL.String())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(checkPayload)

	requestErr := c.client.DoTimeout(req, resp, timeout)
	latency := time.Since(startTime)

	if requestErr != nil {
		if errors.Is(requestErr, fasthttp.ErrTimeout) {
			c.logger.Debug("HTTP RPC check timed out",
				zap.Stringer("url", safe), zap.Duration("timeout", timeout), zap.Error(requestErr),
			)
			return 0, latency, fmt.Errorf("%w: http request to %s timed out after %v",
				apperrors.ErrTimeout, safe, timeout,
			)
		}
		c.logger.Debug("HTTP RPC check request failed", zap.Stringer("url", safe), zap.Error(requestErr))
		return 0, latency, fmt.Errorf("%w: http request to %s failed: %v",
			apperrors.ErrExternalServiceFailure, safe, requestErr,
		)
	}

	if err := statusError(safe, resp.StatusCode()); err != nil {
		c.logger.Debug("HTTP RPC check returned non-OK status",
			zap.Stringer("url", safe), zap.Int("statusCode", resp.StatusCode()),
		)
		return 0, latency, err
	}

	head, err := c.decodeHead(safe, resp.Body())
	return head, latency, err
}

func (c *Checker) checkWSS(ctx context.Context, rpcURL entity.RPCURL, startTime time.Time) (uint64, time.Duration, error) {
	safe := rpcURL.Redacted()

	timeout := c.effectiveTimeout(ctx)
	if timeout <= 0 {
		return 0, 0, fmt.Errorf("%w: no time left to check %s", apperrors.ErrTimeout, safe)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, rpcURL.String(), nil)
	if err != nil {
		latency := time.Since(startTime)
		c.logger.Debug("WSS dial failed", zap.Stringer("url", safe), zap.Error(err))
		if resp != nil {
			if statusErr := statusError(safe, resp.StatusCode); statusErr != nil {
				return 0, latency, statusErr
			}
		}
		return 0, latency, c.wsError(ctx, safe, "dial", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	if wErr := conn.WriteMessage(websocket.TextMessage, checkPayload); wErr != nil {
		c.logger.Debug("WSS write message failed", zap.Stringer("url", safe), zap.Error(wErr))
		return 0, time.Since(startTime), c.wsError(ctx, safe, "write", wErr)
	}

	_, message, rErr := conn.ReadMessage()
	latency := time.Since(startTime)
	if rErr != nil {
		c.logger.Debug("WSS read message failed", zap.Stringer("url", safe), zap.Error(rErr))
		return 0, latency, c.wsError(ctx, safe, "read", rErr)
	}

	head, err := c.decodeHead(safe, message)
	return head, latency, err
}

func (c *Checker) wsError(ctx context.Context, safe entity.RPCURL, op string, err error) error {
	var netErr interface{ Timeout() bool }
	if errors.Is(context.Cause(ctx), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: wss %s on %s timed out: %v", apperrors.ErrTimeout, op, safe, err)
	}
	return fmt.Errorf("%w: wss %s on %s failed: %v", apperrors.ErrExternalServiceFailure, op, safe, err)
}

func statusError(safe entity.RPCURL, code int) error {
	switch code {
	case http.StatusOK, http.StatusSwitchingProtocols:
		return nil
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: rpc %s returned http status %d", apperrors.ErrRateLimited, safe, code)
	default:
		return fmt.Errorf("%w: rpc %s returned non-OK http status: %d",
			apperrors.ErrExternalServiceFailure, safe, code,
		)
	}
}

// decodeHead validates a JSON-RPC response and decodes its hex block number.
func (c *Checker) decodeHead(safe entity.RPCURL, body []byte) (uint64, error) {
	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		c.logger.Debug("RPC check failed to unmarshal JSON response",
			zap.Stringer("url", safe), zap.ByteString("body", body), zap.Error(err),
		)
		return 0, fmt.Errorf("%w: rpc %s returned invalid JSON response: %v",
			apperrors.ErrExternalServiceFailure, safe, err,
		)
	}

	if rpcResp.Error != nil {
		c.logger.Debug("RPC check returned JSON-RPC error",
			zap.Stringer("url", safe),
			zap.Int("errorCode", rpcResp.Error.Code),
			zap.String("errorMessage", rpcResp.Error.Message),
		)
		return 0, fmt.Errorf("%w: rpc %s returned json-rpc error: %d %s",
			apperrors.ErrExternalServiceFailure, safe, rpcResp.Error.Code, rpcResp.Error.Message,
		)
	}

	if rpcResp.Jsonrpc != "2.0" || rpcResp.Result == nil {
		return 0, fmt.Errorf("%w: rpc %s returned invalid JSON-RPC structure",
			apperrors.ErrExternalServiceFailure, safe,
		)
	}

	var hex string
	if err := json.Unmarshal(rpcResp.Result, &hex); err != nil {
		return 0, fmt.Errorf("%w: rpc %s returned a non-string block number: %v",
			apperrors.ErrExternalServiceFailure, safe, err,
		)
	}
	head, err := hexutil.DecodeUint64(hex)
	if err != nil {
		return 0, fmt.Errorf("%w: rpc %s returned malformed block number %q: %v",
			apperrors.ErrExternalServiceFailure, safe, hex, err,
		)
	}
	return head, nil
}
