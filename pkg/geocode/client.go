// Package geocode provides address geocoding via Census Geocoder (primary)
// and Nominatim (fallback).
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client geocodes free-text addresses.
type Client interface {
	// Geocode geocodes a single one-line address. An unmatched address is
	// not an error: the returned Result has Matched=false.
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string // "census" or "nominatim"
	Matched   bool
}

// StatusError reports a non-200 response from a geocoding provider.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocode: %s returned status %d", e.Provider, e.Code)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client for all provider requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for provider calls.
// Nominatim's usage policy requires at most 1 req/s.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithUserAgent sets the User-Agent header. Nominatim rejects anonymous clients.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

// WithCensusBase overrides the Census geocoder base URL.
func WithCensusBase(base string) Option {
	return func(g *geocoder) {
		g.censusBase = base
	}
}

// WithNominatimBase overrides the Nominatim base URL.
func WithNominatimBase(base string) Option {
	return func(g *geocoder) {
		g.nominatimBase = base
	}
}

type geocoder struct {
	httpClient    *http.Client
	limiter       *rate.Limiter
	userAgent     string
	censusBase    string
	nominatimBase string
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		limiter:       rate.NewLimiter(1, 1),
		userAgent:     "acquisition-cli",
		censusBase:    censusBaseURL,
		nominatimBase: nominatimBaseURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode geocodes a single address, trying Census first, then Nominatim.
func (g *geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	result, censusErr := g.geocodeCensus(ctx, address)
	if censusErr == nil && result.Matched {
		return result, nil
	}

	nomResult, nomErr := g.geocodeNominatim(ctx, address)
	if nomErr == nil && nomResult.Matched {
		return nomResult, nil
	}

	// Surface provider errors only if both providers errored; a clean
	// no-match from either side is just unmatched.
	if censusErr != nil && nomErr != nil {
		return nil, censusErr
	}

	return &Result{Matched: false}, nil
}
