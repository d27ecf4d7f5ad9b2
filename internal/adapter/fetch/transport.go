package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxAttempts is the number of HTTP attempts made for a single call while throttled.
	DefaultMaxAttempts uint = 12
	// DefaultThrottleSlot is the backoff unit between throttled attempts.
	DefaultThrottleSlot = 100 * time.Millisecond

	maxBackoffExponent = 16
)

var errThrottled = errors.New("throttled by upstream")

// Observer receives per-attempt notifications from a Transport.
type Observer interface {
	ObserveAttempt(host string, statusCode int)
	ObserveThrottled(host string)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, int) {}
func (nopObserver) ObserveThrottled(string)    {}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithBase sets the round tripper used for each attempt.
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		if base != nil {
			t.base = base
		}
	}
}

// WithMaxAttempts caps the number of attempts per call. Values below one are ignored.
func WithMaxAttempts(attempts uint) TransportOption {
	return func(t *Transport) {
		if attempts > 0 {
			t.maxAttempts = attempts
		}
	}
}

// WithThrottleSlot sets the backoff unit between throttled attempts.
func WithThrottleSlot(slot time.Duration) TransportOption {
	return func(t *Transport) {
		if slot > 0 {
			t.slot = slot
		}
	}
}

// WithRateLimit throttles outgoing attempts on the client side. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) TransportOption {
	return func(t *Transport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObserver registers an attempt observer, typically a metrics collector.
func WithObserver(o Observer) TransportOption {
	return func(t *Transport) {
		if o != nil {
			t.observer = o
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *zap.Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger.Named("FetchTransport")
		}
	}
}

// Transport is an http.RoundTripper that executes calls as described by a Request.
// Throttled responses (HTTP 429) are retried for as long as the Request's RetryFunc
// agrees and attempts remain. Transport errors are returned as is.
type Transport struct {
	request     *Request
	base        http.RoundTripper
	maxAttempts uint
	slot        time.Duration
	limiter     *rate.Limiter
	observer    Observer
	logger      *zap.Logger
}

// NewTransport creates a Transport for req. The request is cloned.
func NewTransport(req *Request, opts ...TransportOption) *Transport {
	if req == nil {
		req = NewRequest("")
	}
	req = req.Clone()

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DisableCompression = !req.AllowGzip

	t := &Transport{
		request:     req,
		base:        base,
		maxAttempts: DefaultMaxAttempts,
		slot:        DefaultThrottleSlot,
		observer:    nopObserver{},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	body, err := readBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	host := req.URL.Host

	var (
		resp    *http.Response
		attempt int
	)

	err = retry.Do(
		func() error {
			if t.limiter != nil {
				if werr := t.limiter.Wait(ctx); werr != nil {
					return retry.Unrecoverable(werr)
				}
			}
			attempt++

			r, rerr := t.base.RoundTrip(t.prepare(req, body))
			if rerr != nil {
				return retry.Unrecoverable(rerr)
			}
			t.observer.ObserveAttempt(host, r.StatusCode)

			if r.StatusCode != http.StatusTooManyRequests {
				resp = r
				return nil
			}
			t.observer.ObserveThrottled(host)

			if t.request.RetryFunc == nil || attempt >= int(t.maxAttempts) {
				resp = r
				return nil
			}

			shouldRetry, ferr := t.request.RetryFunc(ctx, t.request, r, attempt)
			if ferr != nil {
				discard(r)
				return retry.Unrecoverable(ferr)
			}
			if !shouldRetry {
				resp = r
				return nil
			}

			discard(r)
			t.logger.Debug("Throttled response, retrying",
				zap.String("host", host),
				zap.Int("attempt", attempt),
				zap.Uint("maxAttempts", t.maxAttempts),
			)
			return errThrottled
		},
		retry.Context(ctx),
		retry.Attempts(t.maxAttempts),
		retry.DelayType(t.throttleDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// throttleDelay picks a random number of slots in [0, 2^n).
func (t *Transport) throttleDelay(n uint, _ error, _ *retry.Config) time.Duration {
	if n > maxBackoffExponent {
		n = maxBackoffExponent
	}
	return t.slot * time.Duration(rand.Int64N(int64(1)<<n))
}

// prepare builds the request for a single attempt.
func (t *Transport) prepare(req *http.Request, body []byte) *http.Request {
	out := req.Clone(req.Context())
	for key, values := range t.request.Headers {
		out.Header[key] = append([]string(nil), values...)
	}
	if !t.request.AllowGzip {
		out.Header.Set("Accept-Encoding", "identity")
	}
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return out
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
