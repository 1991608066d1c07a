package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	discoveryTimeout = 10 * time.Second
	defaultUserAgent = "aireview"
)

// Discovery lists the models an endpoint serves. The result is advisory:
// it feeds model pickers and failover, never a hard dependency.
type Discovery struct {
	client   *resty.Client
	registry *Registry
	logger   *zap.Logger
	timeout  time.Duration
}

// NewDiscovery builds a Discovery with its own HTTP client.
func NewDiscovery(logger *zap.Logger) *Discovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discovery{
		client:   newHTTPClient(logger, defaultUserAgent),
		registry: globalRegistry,
		logger:   logger,
		timeout:  discoveryTimeout,
	}
}

// ListModels returns the sorted model names, or the dialect's static list
// when the endpoint cannot be queried or reports no models.
func (d *Discovery) ListModels(ctx context.Context, cfg ModelConfig) []string {
	names, err := d.Lookup(ctx, cfg)
	if err == nil && len(names) > 0 {
		return names
	}
	if err != nil {
		d.logger.Warn("model listing failed, using fallback list",
			zap.String("provider", string(cfg.Provider)),
			zap.String("endpoint", cfg.Endpoint),
			zap.Error(err),
		)
	}
	return d.Fallback(cfg.Provider)
}

// Fallback returns the static model list of a provider.
func (d *Discovery) Fallback(kind Kind) []string {
	dialect, err := d.registry.Lookup(kind)
	if err != nil {
		return nil
	}
	names := dialect.FallbackModels()
	sort.Strings(names)
	return names
}

// Lookup queries the endpoint and reports failures instead of falling back.
func (d *Discovery) Lookup(ctx context.Context, cfg ModelConfig) ([]string, error) {
	dialect, err := d.registry.Lookup(cfg.Provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	url := joinURL(cfg.Endpoint, dialect.ModelsPath())
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeaders(dialect.Headers(cfg)).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("list models at %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("list models at %s: HTTP %d", url, resp.StatusCode())
	}

	names, err := dialect.ParseModels(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("list models at %s: %w", url, err)
	}
	sort.Strings(names)

	d.logger.Debug("models listed", zap.String("url", url), zap.Int("count", len(names)))
	return names, nil
}
