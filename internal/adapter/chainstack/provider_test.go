package chainstack

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainstack-provider/internal/adapter/community"
	"chainstack-provider/internal/adapter/fetch"
	"chainstack-provider/internal/adapter/jsonrpc"
	"chainstack-provider/internal/domain"
	"chainstack-provider/internal/domain/entity"
	"chainstack-provider/internal/pkg/apperrors"
	"chainstack-provider/internal/pkg/testutil"
)

var hosts = map[string]string{
	"mainnet":   "ethereum-mainnet.core.chainstack.com",
	"polygon":   "polygon-mainnet.core.chainstack.com",
	"bsc":       "bsc-mainnet.core.chainstack.com",
	"avalanche": "avalanche-mainnet.core.chainstack.com",
	"arbitrum":  "arbitrum-mainnet.core.chainstack.com",
	"scroll":    "scroll-sepolia.core.chainstack.com",
	"fantom":    "fantom-mainnet.core.chainstack.com",
}

type recordingNotifier struct {
	mu       sync.Mutex
	services []string
}

func (n *recordingNotifier) ShowThrottleMessage(service string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.services = append(n.services, service)
}

func (n *recordingNotifier) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.services...)
}

// redirect sends every call to target while remembering the original URL.
type redirect struct {
	target *url.URL
	mu     sync.Mutex
	seen   []string
}

func (r *redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	r.seen = append(r.seen, req.URL.String())
	r.mu.Unlock()

	out := req.Clone(req.Context())
	out.URL.Scheme = r.target.Scheme
	out.URL.Host = r.target.Host
	out.Host = ""
	return http.DefaultTransport.RoundTrip(out)
}

func (r *redirect) urls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func newRedirect(t *testing.T, srv *testutil.JSONRPCServer) *redirect {
	t.Helper()

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &redirect{target: target}
}

func mustNetwork(t *testing.T, name string) entity.Network {
	t.Helper()

	n, err := entity.NetworkFrom(name)
	require.NoError(t, err)
	return n
}

func TestHost(t *testing.T) {
	t.Parallel()

	require.ElementsMatch(t, SupportedNetworks(), keys(hosts))

	for name, want := range hosts {
		got, err := Host(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestHost_Unsupported(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "sepolia", "optimism", "unknown", "Mainnet", "matic"} {
		_, err := Host(name)
		require.ErrorIs(t, err, domain.ErrUnsupportedNetwork, name)
		require.ErrorIs(t, err, apperrors.ErrInvalidInput, name)

		var argErr *apperrors.ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "network", argErr.Argument)
		assert.Equal(t, name, argErr.Value)
	}
}

func TestGetRequest_DefaultKey(t *testing.T) {
	t.Parallel()

	for name, host := range hosts {
		req, err := GetRequest(mustNetwork(t, name), DefaultAPIKey)
		require.NoError(t, err)

		assert.Equal(t, "https://"+host+"/", req.URL)
		assert.True(t, strings.HasSuffix(req.URL, "/"))
		assert.True(t, req.AllowGzip)
		require.NotNil(t, req.RetryFunc)
	}
}

func TestGetRequest_DefaultKeyRetryAlwaysAgrees(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	req, err := getRequest(mustNetwork(t, "polygon"), DefaultAPIKey, notifier)
	require.NoError(t, err)
	require.NotNil(t, req.RetryFunc)

	for attempt := 1; attempt <= 3; attempt++ {
		retry, rerr := req.RetryFunc(t.Context(), req, &http.Response{StatusCode: http.StatusTooManyRequests}, attempt)
		require.NoError(t, rerr)
		assert.True(t, retry)
	}
	assert.Equal(t, []string{ProviderName, ProviderName, ProviderName}, notifier.calls())
}

func TestGetRequest_DefaultKeyUsesProcessNotice(t *testing.T) {
	t.Parallel()

	req, err := GetRequest(mustNetwork(t, "fantom"), DefaultAPIKey)
	require.NoError(t, err)

	retry, err := req.RetryFunc(t.Context(), req, &http.Response{StatusCode: http.StatusTooManyRequests}, 1)
	require.NoError(t, err)
	assert.True(t, retry)
	assert.True(t, community.Default().Shown(ProviderName))
}

func TestGetRequest_CustomKey(t *testing.T) {
	t.Parallel()

	for name, host := range hosts {
		req, err := GetRequest(mustNetwork(t, name), "ABC123")
		require.NoError(t, err)

		assert.Equal(t, "https://"+host+"/ABC123", req.URL)
		assert.True(t, req.AllowGzip)
		assert.Nil(t, req.RetryFunc)
	}
}

func TestGetRequest_UnsupportedNetwork(t *testing.T) {
	t.Parallel()

	_, err := GetRequest(mustNetwork(t, "optimism"), "ABC123")
	require.ErrorIs(t, err, domain.ErrUnsupportedNetwork)

	_, err = GetRequest(entity.Network{Name: entity.UnknownNetworkName, ChainID: 999}, DefaultAPIKey)
	require.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
}

func TestWebSocketURL(t *testing.T) {
	t.Parallel()

	u, err := WebSocketURL(mustNetwork(t, "bsc"), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "wss://bsc-mainnet.core.chainstack.com/ABC123", u)

	u, err = WebSocketURL(mustNetwork(t, "mainnet"), DefaultAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "wss://ethereum-mainnet.core.chainstack.com/", u)

	_, err = WebSocketURL(mustNetwork(t, "base"), "ABC123")
	require.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	p, err := New(t.Context(), nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, DefaultAPIKey, p.APIKey())
	assert.True(t, p.IsCommunityResource())
	assert.True(t, p.StaticNetwork())
	assert.Equal(t, "https://ethereum-mainnet.core.chainstack.com/", p.Request().URL)

	n, err := p.Network(t.Context())
	require.NoError(t, err)
	assert.Equal(t, entity.Network{Name: "mainnet", ChainID: 1}, n)
}

func TestNew_WithAPIKey(t *testing.T) {
	t.Parallel()

	p, err := New(t.Context(), "polygon", WithAPIKey("ABC123"))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "ABC123", p.APIKey())
	assert.False(t, p.IsCommunityResource())
	assert.Equal(t, "https://polygon-mainnet.core.chainstack.com/ABC123", p.Request().URL)
	assert.Nil(t, p.Request().RetryFunc)
}

func TestNew_WithTimeout(t *testing.T) {
	t.Parallel()

	p, err := New(t.Context(), "polygon")
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, fetch.DefaultTimeout, p.Request().Timeout)

	p, err = New(t.Context(), "mainnet", WithAPIKey("ABC123"), WithTimeout(5*time.Second))
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, 5*time.Second, p.Request().Timeout)

	scoped, ok := p.ProviderForChain(t.Context(), 56).(*Provider)
	require.True(t, ok)
	defer scoped.Close()
	assert.Equal(t, 5*time.Second, scoped.Request().Timeout)
}

func TestNew_NetworkForms(t *testing.T) {
	t.Parallel()

	for _, input := range []any{"bsc", "bnb", uint64(56), 56, entity.Network{Name: "bsc", ChainID: 56}} {
		p, err := New(t.Context(), input)
		require.NoError(t, err)

		n, err := p.Network(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "bsc", n.Name)
		p.Close()
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(t.Context(), "optimism")
	require.ErrorIs(t, err, domain.ErrUnsupportedNetwork)

	_, err = New(t.Context(), "goerli")
	require.ErrorIs(t, err, domain.ErrUnknownNetwork)

	_, err = New(t.Context(), uint64(999999))
	require.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
}

func TestProvider_ProviderForChain(t *testing.T) {
	t.Parallel()

	p, err := New(t.Context(), nil, WithAPIKey("ABC123"))
	require.NoError(t, err)
	defer p.Close()

	scoped := p.ProviderForChain(t.Context(), 137)
	polygon, ok := scoped.(*Provider)
	require.True(t, ok, "expected a Chainstack provider, got %T", scoped)
	defer polygon.Close()

	assert.Equal(t, "ABC123", polygon.APIKey())
	n, err := polygon.Network(t.Context())
	require.NoError(t, err)
	assert.Equal(t, entity.Network{Name: "polygon", ChainID: 137}, n)
}

func TestProvider_ProviderForChainFallsBack(t *testing.T) {
	t.Parallel()

	p, err := New(t.Context(), nil)
	require.NoError(t, err)
	defer p.Close()

	for _, chainID := range []uint64{10, 8453, 999999} {
		var got jsonrpc.ChainProvider
		require.NotPanics(t, func() { got = p.ProviderForChain(t.Context(), chainID) })
		assert.Same(t, p.Provider, got)

		n, err := got.Network(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "mainnet", n.Name)
	}
}

func TestProvider_DefaultKeyRetriesThrottledCalls(t *testing.T) {
	t.Parallel()

	srv := testutil.NewJSONRPCServer(t, map[string]testutil.RPCHandler{
		"eth_blockNumber": testutil.Static("0x10"),
	})
	srv.FailWith(http.StatusTooManyRequests)
	rt := newRedirect(t, srv)

	notifier := &notifyThenRecover{srv: srv}
	p, err := New(t.Context(), "arbitrum",
		WithThrottleNotifier(notifier),
		WithTransportOptions(fetch.WithBase(rt), fetch.WithThrottleSlot(time.Millisecond)),
	)
	require.NoError(t, err)
	defer p.Close()

	n, err := p.BlockNumber(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(16), n)

	assert.Equal(t, []string{ProviderName}, notifier.calls())
	for _, u := range rt.urls() {
		assert.Equal(t, "https://arbitrum-mainnet.core.chainstack.com/", u)
	}
	assert.Len(t, rt.urls(), 2)
}

func TestProvider_CustomKeyDoesNotRetry(t *testing.T) {
	t.Parallel()

	srv := testutil.NewJSONRPCServer(t, map[string]testutil.RPCHandler{
		"eth_blockNumber": testutil.Static("0x10"),
	})
	srv.FailWith(http.StatusTooManyRequests)
	rt := newRedirect(t, srv)

	notifier := &recordingNotifier{}
	p, err := New(t.Context(), "avalanche",
		WithAPIKey("ABC123"),
		WithThrottleNotifier(notifier),
		WithTransportOptions(fetch.WithBase(rt), fetch.WithThrottleSlot(time.Millisecond)),
	)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.BlockNumber(t.Context())
	require.Error(t, err)

	assert.Empty(t, notifier.calls())
	assert.Equal(t, []string{"https://avalanche-mainnet.core.chainstack.com/ABC123"}, rt.urls())
	assert.Equal(t, []string{"/ABC123"}, srv.Paths())
}

// notifyThenRecover records the notice and lets the server answer normally afterwards.
type notifyThenRecover struct {
	recordingNotifier
	srv *testutil.JSONRPCServer
}

func (n *notifyThenRecover) ShowThrottleMessage(service string) {
	n.recordingNotifier.ShowThrottleMessage(service)
	n.srv.FailWith(0)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

var _ community.Notifier = (*notifyThenRecover)(nil)
