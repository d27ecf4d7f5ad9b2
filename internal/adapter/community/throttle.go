package community

import (
	"sync"

	"go.uber.org/zap"
)

// Resourcable is implemented by providers that may run on a shared, throttled key.
type Resourcable interface {
	// IsCommunityResource reports whether the provider uses the shared default key.
	IsCommunityResource() bool
}

// Notifier shows the rate-limit notice for a service.
type Notifier interface {
	ShowThrottleMessage(service string)
}

// Notice logs the rate-limit notice at most once per service label.
type Notice struct {
	logger *zap.Logger
	mu     sync.Mutex
	shown  map[string]struct{}
}

// NewNotice creates a Notice writing to logger. A nil logger resolves to zap.L() on every call,
// so a Notice created before zap.ReplaceGlobals still reaches the configured logger.
func NewNotice(logger *zap.Logger) *Notice {
	return &Notice{
		logger: logger,
		shown:  make(map[string]struct{}),
	}
}

// ShowThrottleMessage logs the notice for service unless it has already been shown.
func (n *Notice) ShowThrottleMessage(service string) {
	n.mu.Lock()
	if _, ok := n.shown[service]; ok {
		n.mu.Unlock()
		return
	}
	n.shown[service] = struct{}{}
	n.mu.Unlock()

	logger := n.logger
	if logger == nil {
		logger = zap.L()
	}
	logger.Warn("Request rate exceeded on the shared default API key (this message will not be repeated)",
		zap.String("service", service),
		zap.String("hint", "the default key is a heavily throttled community resource meant for prototyping; "+
			"configure a dedicated API key for higher limits"),
	)
}

// Shown reports whether the notice was already shown for service.
func (n *Notice) Shown(service string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.shown[service]
	return ok
}

var defaultNotice = NewNotice(nil) //nolint:gochecknoglobals // process-wide, shown once per service

// ShowThrottleMessage shows the rate-limit notice through the process-wide Notice.
func ShowThrottleMessage(service string) {
	defaultNotice.ShowThrottleMessage(service)
}

// Default returns the process-wide Notice.
func Default() *Notice {
	return defaultNotice
}
