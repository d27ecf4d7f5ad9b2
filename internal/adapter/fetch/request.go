package fetch

import (
	"context"
	"net/http"
	"time"
)

// DefaultTimeout bounds a whole request, including all retry attempts.
const DefaultTimeout = 2 * time.Minute

// RetryFunc decides whether a throttled response should be retried.
// attempt is 1 for the first throttled response of a request.
type RetryFunc func(ctx context.Context, req *Request, resp *http.Response, attempt int) (bool, error)

// Request describes how to reach a JSON-RPC endpoint over HTTP.
// It is a template: the JSON-RPC client supplies the payload for each call.
type Request struct {
	URL       string
	AllowGzip bool
	RetryFunc RetryFunc
	Timeout   time.Duration
	Headers   http.Header
}

// NewRequest creates a Request for url with the default timeout.
func NewRequest(url string) *Request {
	return &Request{
		URL:     url,
		Timeout: DefaultTimeout,
		Headers: make(http.Header),
	}
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Headers = r.Headers.Clone()
	if clone.Headers == nil {
		clone.Headers = make(http.Header)
	}
	return &clone
}

// HTTPClient returns an *http.Client whose transport applies this request's
// gzip, header and retry settings to every call.
func (r *Request) HTTPClient(opts ...TransportOption) *http.Client {
	return &http.Client{
		Transport: NewTransport(r, opts...),
		Timeout:   r.Timeout,
	}
}
