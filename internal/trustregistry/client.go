// Package trustregistry queries the decentralized registry of trusted issuer
// identities. Membership is additive metadata on verification results, never
// a gate: every failure mode degrades to "not trusted" without erroring.
package trustregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"docanchor/internal/platform/metrics"
	platformredis "docanchor/internal/platform/redis"
)

// Client answers whether an identity is flagged as a trusted issuer.
type Client interface {
	IsTrusted(ctx context.Context, identity string) bool
}

// HTTPClient queries the registry's read-only REST contract surface. An
// optional Redis cache absorbs repeat lookups; the trust flag is advisory, so
// a short cache TTL is acceptable here where it never would be for identity
// resolution.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	cache   *platformredis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the HTTPClient.
type Option func(*HTTPClient)

func WithLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

// WithCache attaches a Redis cache. A nil client leaves caching disabled.
func WithCache(cache *platformredis.Client, ttl time.Duration) Option {
	return func(c *HTTPClient) {
		c.cache = cache
		c.ttl = ttl
	}
}

// New constructs a registry client. An empty baseURL means the registry is
// not configured; every lookup then degrades to false.
func New(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type issuerStatus struct {
	Trusted bool `json:"trusted"`
}

// IsTrusted reports the registry's trust flag for identity, best-effort.
func (c *HTTPClient) IsTrusted(ctx context.Context, identity string) bool {
	if c.baseURL == "" {
		return false
	}

	if cached, ok := c.cachedFlag(ctx, identity); ok {
		return cached
	}

	endpoint := fmt.Sprintf("%s/api/v1/issuers/%s", c.baseURL, url.PathEscape(identity))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.degrade(ctx, identity, err)
		return false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.degrade(ctx, identity, err)
		return false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// Unknown issuer is a definitive answer, safe to cache.
		c.storeFlag(ctx, identity, false)
		return false
	default:
		c.degrade(ctx, identity, fmt.Errorf("status %d", resp.StatusCode))
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		c.degrade(ctx, identity, err)
		return false
	}
	var status issuerStatus
	if err := json.Unmarshal(body, &status); err != nil {
		c.degrade(ctx, identity, err)
		return false
	}

	c.storeFlag(ctx, identity, status.Trusted)
	return status.Trusted
}

func (c *HTTPClient) cachedFlag(ctx context.Context, identity string) (bool, bool) {
	if c.cache == nil {
		return false, false
	}
	val, err := c.cache.Get(ctx, cacheKey(identity)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

func (c *HTTPClient) storeFlag(ctx context.Context, identity string, trusted bool) {
	if c.cache == nil {
		return
	}
	val := "0"
	if trusted {
		val = "1"
	}
	// Cache write failures are ignored; the flag was already resolved.
	_ = c.cache.Set(ctx, cacheKey(identity), val, c.ttl).Err()
}

func (c *HTTPClient) degrade(ctx context.Context, identity string, err error) {
	if c.metrics != nil {
		c.metrics.RegistryLookupErrors.Inc()
	}
	c.logger.WarnContext(ctx, "trust registry lookup degraded to untrusted",
		"identity", identity,
		"error", err.Error(),
	)
}

func cacheKey(identity string) string {
	return "trustregistry:issuer:" + identity
}
