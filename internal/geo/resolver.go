package geo

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acquisition-cli/internal/resilience"
	"github.com/sells-group/acquisition-cli/pkg/geocode"
)

// ErrUnresolved is returned when an address cannot be geocoded. Callers must
// treat the listing's location as unknown, never default to zero coordinates.
var ErrUnresolved = errors.New("geo: address unresolved")

// Resolver geocodes free-text addresses with a run-scoped cache. Each unique
// address string hits the external provider at most once per run.
type Resolver struct {
	client geocode.Client
	retry  resilience.RetryConfig

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	coords  Coordinates
	matched bool
}

// NewResolver creates a Resolver around a geocoding client.
func NewResolver(client geocode.Client, retry resilience.RetryConfig) *Resolver {
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = retryableGeocodeError
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("geocode", "resolve")
	}
	return &Resolver{
		client: client,
		retry:  retry,
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve geocodes an address. It returns ErrUnresolved when the address is
// empty or no provider produced a match; provider failures after retries are
// wrapped and also satisfy errors.Is(err, ErrUnresolved).
func (r *Resolver) Resolve(ctx context.Context, address string) (Coordinates, error) {
	key := strings.ToLower(strings.Join(strings.Fields(address), " "))
	if key == "" {
		return Coordinates{}, ErrUnresolved
	}

	r.mu.Lock()
	entry, hit := r.cache[key]
	r.mu.Unlock()
	if hit {
		if !entry.matched {
			return Coordinates{}, ErrUnresolved
		}
		return entry.coords, nil
	}

	result, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*geocode.Result, error) {
		return r.client.Geocode(ctx, address)
	})
	if err != nil {
		zap.L().Warn("geocode failed", zap.String("address", address), zap.Error(err))
		// Negative-cache provider failures too: retries already ran, and
		// hammering a failing provider once per duplicate address is wasteful.
		r.store(key, cacheEntry{})
		return Coordinates{}, eris.Wrapf(ErrUnresolved, "geo: resolve %q: %v", address, err)
	}

	if !result.Matched {
		r.store(key, cacheEntry{})
		return Coordinates{}, ErrUnresolved
	}

	coords := Coordinates{Lat: result.Latitude, Lon: result.Longitude}
	r.store(key, cacheEntry{coords: coords, matched: true})

	zap.L().Debug("geocoded address",
		zap.String("address", address),
		zap.String("source", result.Source),
		zap.Float64("lat", coords.Lat),
		zap.Float64("lon", coords.Lon),
	)
	return coords, nil
}

func (r *Resolver) store(key string, entry cacheEntry) {
	r.mu.Lock()
	r.cache[key] = entry
	r.mu.Unlock()
}

// retryableGeocodeError retries transient network errors and retryable HTTP
// statuses from providers; a clean no-match is never retried.
func retryableGeocodeError(err error) bool {
	var se *geocode.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.Code)
	}
	return resilience.IsTransient(err)
}
