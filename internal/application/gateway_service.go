package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chainstack-provider/internal/adapter/chainstack"
	"chainstack-provider/internal/adapter/jsonrpc"
	"chainstack-provider/internal/application/port"
	"chainstack-provider/internal/config"
	"chainstack-provider/internal/domain"
	"chainstack-provider/internal/domain/entity"
	domainRepo "chainstack-provider/internal/domain/repository"
	domainService "chainstack-provider/internal/domain/service"
	"chainstack-provider/internal/pkg/apperrors"
)

// Compile-time check
var _ port.GatewayService = (*GatewayService)(nil)

// Provider is the upstream surface the gateway needs from a network-bound provider.
type Provider interface {
	jsonrpc.ChainProvider
	ProviderForChain(ctx context.Context, chainID uint64) jsonrpc.ChainProvider
	IsCommunityResource() bool
}

// ProviderFactory creates a Provider bound to network.
type ProviderFactory func(ctx context.Context, network entity.Network) (Provider, error)

// Observer receives gateway events for metrics.
type Observer interface {
	ObserveProbe(network, protocol string, working bool, latency time.Duration)
	ObserveHeadLookup(network string, hit bool)
}

type nopObserver struct{}

func (nopObserver) ObserveProbe(string, string, bool, time.Duration) {}
func (nopObserver) ObserveHeadLookup(string, bool)                   {}

// ChainstackProviders returns a ProviderFactory building Chainstack providers with opts.
func ChainstackProviders(opts ...chainstack.Option) ProviderFactory {
	return func(ctx context.Context, network entity.Network) (Provider, error) {
		p, err := chainstack.New(ctx, network, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// GatewayService serves heads and endpoint health for the configured networks.
type GatewayService struct {
	cfg       config.Config
	providers ProviderFactory
	cacheRepo domainRepo.CacheRepository
	checker   domainService.RPCChecker
	observer  Observer
	logger    *zap.Logger
	rootCtx   context.Context

	mu             sync.Mutex
	byNetwork      map[string]Provider
	byChain        map[uint64]jsonrpc.ChainProvider
	isChecking     atomic.Bool
	proberFinished chan struct{}
}

// NewGatewayService creates the service and starts the background prober, which runs until rootCtx is done.
// A nil observer disables metrics.
func NewGatewayService(
	rootCtx context.Context,
	cfg config.Config,
	providers ProviderFactory,
	cacheRepo domainRepo.CacheRepository,
	checker domainService.RPCChecker,
	observer Observer,
	logger *zap.Logger,
) *GatewayService {
	if observer == nil {
		observer = nopObserver{}
	}
	s := &GatewayService{
		cfg:            cfg,
		providers:      providers,
		cacheRepo:      cacheRepo,
		checker:        checker,
		observer:       observer,
		logger:         logger.Named("GatewayService"),
		rootCtx:        rootCtx,
		byNetwork:      make(map[string]Provider),
		byChain:        make(map[uint64]jsonrpc.ChainProvider),
		proberFinished: make(chan struct{}),
	}

	go s.startBackgroundProber()

	return s
}

// Networks lists the configured networks in configuration order.
func (s *GatewayService) Networks(_ context.Context) ([]entity.NetworkInfo, error) {
	infos := make([]entity.NetworkInfo, 0, len(s.cfg.Chainstack.Networks))
	for _, name := range s.cfg.Chainstack.Networks {
		network, err := entity.NetworkFrom(name)
		if err != nil {
			return nil, err
		}
		host, err := chainstack.Host(network.Name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, entity.NetworkInfo{
			Network:           network,
			Host:              host,
			CommunityResource: s.cfg.Chainstack.IsCommunityResource(),
		})
	}
	return infos, nil
}

// HeadBlock returns the latest block of a configured network, served from cache while fresh.
func (s *GatewayService) HeadBlock(ctx context.Context, name string) (entity.Head, error) {
	network, err := s.resolve(name)
	if err != nil {
		return entity.Head{}, err
	}

	if head, found := s.cachedHead(ctx, network.Name); found {
		return head, nil
	}

	p, err := s.provider(ctx, network)
	if err != nil {
		return entity.Head{}, err
	}

	return s.fetchHead(ctx, p, network)
}

// HeadBlockForChain resolves chainID through the default network's provider. When the
// provider falls back to a different chain, the call fails with domain.ErrChainNotServed.
func (s *GatewayService) HeadBlockForChain(ctx context.Context, chainID uint64) (entity.Head, error) {
	network, err := entity.NetworkFrom(chainID)
	if err != nil {
		return entity.Head{}, err
	}
	if !network.IsUnknown() {
		if head, found := s.cachedHead(ctx, network.Name); found {
			return head, nil
		}
	}

	scoped, err := s.chainProvider(ctx, chainID)
	if err != nil {
		return entity.Head{}, err
	}

	served, err := scoped.Network(ctx)
	if err != nil {
		return entity.Head{}, upstreamError(err, network.Name)
	}
	if served.ChainID != chainID {
		s.logger.Debug("Chain resolved to a provider for another chain",
			zap.Uint64("chainId", chainID), zap.String("servedBy", served.Name),
		)
		return entity.Head{}, fmt.Errorf("%w: chain %d (provider serves %s)", domain.ErrChainNotServed, chainID, served.Name)
	}

	return s.fetchHead(ctx, s.keepChainProvider(chainID, scoped), served)
}

// ProbeNetwork returns cached probe results for a configured network, probing on a miss.
func (s *GatewayService) ProbeNetwork(ctx context.Context, name string) ([]entity.ProbeResult, error) {
	network, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	results, found, err := s.cacheRepo.GetProbeResults(ctx, network.Name)
	if err != nil {
		s.logger.Warn("Cache error when getting probe results", zap.String("network", network.Name), zap.Error(err))
	}
	if found {
		return results, nil
	}

	return s.probeAndStore(ctx, network)
}

// Close releases the pooled providers and waits for the background prober to stop.
// rootCtx must be done before Close is called.
func (s *GatewayService) Close() {
	<-s.proberFinished

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byNetwork {
		p.Close()
	}
	for id, p := range s.byChain {
		if !s.pooledByNetwork(p) {
			p.Close()
		}
		delete(s.byChain, id)
	}
	for name := range s.byNetwork {
		delete(s.byNetwork, name)
	}
}

// pooledByNetwork reports whether p is also held in byNetwork. s.mu must be held.
func (s *GatewayService) pooledByNetwork(p jsonrpc.ChainProvider) bool {
	for _, pooled := range s.byNetwork {
		if jsonrpc.ChainProvider(pooled) == p {
			return true
		}
	}
	return false
}

func (s *GatewayService) resolve(name string) (entity.Network, error) {
	network, err := entity.NetworkFrom(name)
	if err != nil {
		return entity.Network{}, err
	}
	if _, err := chainstack.Host(network.Name); err != nil {
		return entity.Network{}, err
	}
	if !slices.Contains(s.cfg.Chainstack.Networks, network.Name) {
		return entity.Network{}, fmt.Errorf("%w: %s", domain.ErrNetworkNotConfigured, network.Name)
	}
	return network, nil
}

func (s *GatewayService) provider(ctx context.Context, network entity.Network) (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.byNetwork[network.Name]; ok {
		return p, nil
	}
	p, err := s.providers(ctx, network)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider for %s: %w", network.Name, err)
	}
	s.byNetwork[network.Name] = p
	s.logger.Debug("Created provider", zap.String("network", network.Name))
	return p, nil
}

func (s *GatewayService) chainProvider(ctx context.Context, chainID uint64) (jsonrpc.ChainProvider, error) {
	s.mu.Lock()
	scoped, ok := s.byChain[chainID]
	s.mu.Unlock()
	if ok {
		return scoped, nil
	}

	defaultNetwork, err := entity.NetworkFrom(s.cfg.Chainstack.DefaultNetwork)
	if err != nil {
		return nil, err
	}
	base, err := s.provider(ctx, defaultNetwork)
	if err != nil {
		return nil, err
	}
	return base.ProviderForChain(ctx, chainID), nil
}

// keepChainProvider pools a provider that serves chainID and returns the pooled one.
func (s *GatewayService) keepChainProvider(chainID uint64, p jsonrpc.ChainProvider) jsonrpc.ChainProvider {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byChain[chainID]; ok {
		if existing != p {
			p.Close()
		}
		return existing
	}
	s.byChain[chainID] = p
	return p
}

func (s *GatewayService) cachedHead(ctx context.Context, name string) (entity.Head, bool) {
	head, found, err := s.cacheRepo.GetHead(ctx, name)
	if err != nil {
		s.logger.Warn("Cache error when getting head", zap.String("network", name), zap.Error(err))
	}
	s.observer.ObserveHeadLookup(name, found)
	return head, found
}

func (s *GatewayService) fetchHead(ctx context.Context, p jsonrpc.ChainProvider, network entity.Network) (entity.Head, error) {
	number, err := p.BlockNumber(ctx)
	if err != nil {
		return entity.Head{}, upstreamError(err, network.Name)
	}

	head := entity.Head{Network: network, BlockNumber: number}
	if cacheErr := s.cacheRepo.SetHead(ctx, head, s.cfg.Cache.HeadTTL); cacheErr != nil {
		s.logger.Error("Failed to cache head", zap.String("network", network.Name), zap.Error(cacheErr))
	}
	return head, nil
}

// upstreamError classifies a provider failure.
func upstreamError(err error, network string) error {
	var httpErr rpc.HTTPError
	switch {
	case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: %v", apperrors.ErrRateLimited, network, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", apperrors.ErrTimeout, network, err)
	case errors.Is(err, apperrors.ErrExternalServiceFailure), errors.Is(err, apperrors.ErrRateLimited):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", apperrors.ErrExternalServiceFailure, network, err)
	}
}

// endpoints returns the HTTPS and WSS endpoints of network.
func (s *GatewayService) endpoints(network entity.Network) ([]entity.RPCURL, error) {
	req, err := chainstack.GetRequest(network, s.cfg.Chainstack.APIKey)
	if err != nil {
		return nil, err
	}
	wss, err := chainstack.WebSocketURL(network, s.cfg.Chainstack.APIKey)
	if err != nil {
		return nil, err
	}

	urls := make([]entity.RPCURL, 0, 2)
	for _, raw := range []string{req.URL, wss} {
		u, err := entity.NewRPCURL(raw)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// probeAndStore probes every endpoint of network concurrently and caches the results.
func (s *GatewayService) probeAndStore(ctx context.Context, network entity.Network) ([]entity.ProbeResult, error) {
	urls, err := s.endpoints(network)
	if err != nil {
		return nil, err
	}

	results := make([]entity.ProbeResult, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			results[i] = s.probe(ctx, network, u)
			return nil
		})
	}
	_ = g.Wait()

	if err := s.cacheRepo.SetProbeResults(ctx, network.Name, results, s.cfg.Cache.ProbeTTL); err != nil {
		s.logger.Error("Failed to cache probe results", zap.String("network", network.Name), zap.Error(err))
	}
	return results, nil
}

func (s *GatewayService) probe(ctx context.Context, network entity.Network, u entity.RPCURL) entity.ProbeResult {
	result := entity.ProbeResult{
		Network:  network.Name,
		URL:      u.Redacted(),
		Protocol: u.Protocol(),
	}

	checkCtx := ctx
	if timeout := s.cfg.Checker.CheckTimeout; timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	number, latency, err := s.checker.CheckRPC(checkCtx, u)
	result.CheckedAt = time.Now().UTC()
	if err != nil {
		s.logger.Debug("Probe failed", zap.Stringer("url", result.URL), zap.Error(err))
		result.Error = err.Error()
	} else {
		latencyMs := latency.Milliseconds()
		result.IsWorking = true
		result.LatencyMs = &latencyMs
		result.BlockNumber = &number
	}
	s.observer.ObserveProbe(network.Name, string(result.Protocol), result.IsWorking, latency)
	return result
}

// probeAll refreshes probe results for every configured network, at most one run at a time.
func (s *GatewayService) probeAll(ctx context.Context) {
	if !s.isChecking.CompareAndSwap(false, true) {
		s.logger.Debug("Background prober tick: probe already in progress")
		return
	}
	defer s.isChecking.Store(false)

	s.logger.Info("Starting background probe", zap.Int("networkCount", len(s.cfg.Chainstack.Networks)))
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Checker.MaxWorkers, 1))
	for _, name := range s.cfg.Chainstack.Networks {
		network, err := s.resolve(name)
		if err != nil {
			s.logger.Warn("Skipping network in background probe", zap.String("network", name), zap.Error(err))
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			_, err := s.probeAndStore(gctx, network)
			if err != nil {
				s.logger.Warn("Background probe failed", zap.String("network", network.Name), zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("Background probe cancelled", zap.Error(err))
		return
	}
	s.logger.Info("Background probe finished", zap.Duration("took", time.Since(started)))
}

// startBackgroundProber probes all networks every check interval until rootCtx is done.
func (s *GatewayService) startBackgroundProber() {
	defer close(s.proberFinished)

	if s.cfg.Checker.RunOnStartup {
		s.probeAll(s.rootCtx)
	}

	interval := s.cfg.Checker.CheckInterval
	if interval <= 0 {
		s.logger.Info("Background prober disabled (interval <= 0)")
		<-s.rootCtx.Done()
		return
	}

	s.logger.Info("Starting background prober", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.probeAll(s.rootCtx)
		case <-s.rootCtx.Done():
			s.logger.Info("Background prober stopping due to context cancellation")
			return
		}
	}
}
