// Package source fetches raw listings from the configured platforms. The
// pipeline is agnostic to where records come from; every source yields the
// same untyped RawListing shape for the normalizer.
package source

import (
	"context"
	"errors"

	"github.com/sells-group/acquisition-cli/internal/config"
	"github.com/sells-group/acquisition-cli/internal/model"
)

// ErrNoListings is the run-level fatal condition: every source came back
// empty or failed, so there is nothing to process. It is distinct from a
// successful scan that found no qualifying listings.
var ErrNoListings = errors.New("source: no raw listings obtained from any source")

// Source is one listing provider.
type Source interface {
	// Platform identifies the originating platform.
	Platform() model.Platform

	// Fetch retrieves the current raw listings. A fetch failure is
	// per-source: the pipeline counts it and continues with the rest.
	Fetch(ctx context.Context) ([]model.RawListing, error)
}

// Build assembles the enabled sources from configuration.
func Build(cfg config.SourcesConfig) []Source {
	var sources []Source
	if cfg.API.Enabled {
		sources = append(sources, NewAPISource(cfg.API))
	}
	for _, sc := range cfg.Scrapers {
		if sc.Enabled {
			sources = append(sources, NewScrapeSource(sc))
		}
	}
	return sources
}
