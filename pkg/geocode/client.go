// Package geocode turns contractor addresses into coordinates via the Census
// Geocoder (primary) and Google (fallback).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/contractor-cli/internal/resilience"
)

// Point is a geocoded location.
type Point struct {
	Lat     float64
	Lng     float64
	Source  string // "census" or "google"
	Quality string // "rooftop", "range", "centroid", "approximate"
}

// Gateway resolves a one-line address. A nil point with a nil error means no
// provider matched.
type Gateway interface {
	Geocode(ctx context.Context, address string) (*Point, error)
}

// Option configures the Client.
type Option func(*Client)

// WithGoogleAPIKey enables Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(c *Client) {
		c.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for both Census and Google requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit shared by providers.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCacheSize bounds the in-process result cache. Zero disables it.
func WithCacheSize(n int) Option {
	return func(c *Client) {
		c.cache = newCache(n)
	}
}

// Client is the default Gateway.
type Client struct {
	httpClient *http.Client
	googleKey  string
	limiter    *rate.Limiter
	cache      *cache

	census *resilience.Breaker
	google *resilience.Breaker
	log    *zap.Logger
}

// New creates a geocoding Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		cache:      newCache(5000),
		census:     resilience.NewBreaker("geocode.census", 5, time.Minute),
		google:     resilience.NewBreaker("geocode.google", 5, time.Minute),
		log:        zap.L().With(zap.String("component", "geocode")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode tries Census first, then Google if configured. Provider errors are
// logged and treated as no match so callers can store the record without
// coordinates; only ctx cancellation is returned as an error.
func (c *Client) Geocode(ctx context.Context, address string) (*Point, error) {
	address = strings.Join(strings.Fields(address), " ")
	if address == "" {
		return nil, nil
	}

	key := strings.ToLower(address)
	if p, ok := c.cache.get(key); ok {
		return p, nil
	}

	p, err := resilience.Guard(ctx, c.census, func(ctx context.Context) (*Point, error) {
		return c.geocodeCensus(ctx, address)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Debug("census geocode failed", zap.String("address", address), zap.Error(err))
	}

	if p == nil && c.googleKey != "" {
		p, err = resilience.Guard(ctx, c.google, func(ctx context.Context) (*Point, error) {
			return c.geocodeGoogle(ctx, address)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Debug("google geocode failed", zap.String("address", address), zap.Error(err))
		}
	}

	// Only definitive answers are cached; a provider outage should not pin
	// an address to "no match".
	if err == nil {
		c.cache.put(key, p)
	}
	return p, nil
}
