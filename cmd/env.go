package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquisition-cli/internal/geo"
	"github.com/sells-group/acquisition-cli/internal/pipeline"
	"github.com/sells-group/acquisition-cli/internal/resilience"
	"github.com/sells-group/acquisition-cli/internal/source"
	"github.com/sells-group/acquisition-cli/internal/store"
	"github.com/sells-group/acquisition-cli/pkg/geocode"
)

// scanEnv bundles the wired pipeline and its store for commands that run
// scans.
type scanEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *scanEnv) Close() {
	_ = e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initPipeline(ctx context.Context) (*scanEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	sources := source.Build(cfg.Sources)
	if len(sources) == 0 {
		_ = st.Close()
		return nil, eris.New("no sources enabled; check sources configuration")
	}

	opts := []geocode.Option{
		geocode.WithRateLimit(cfg.Geocode.RatePerSecond),
	}
	if cfg.Geocode.NominatimBase != "" {
		opts = append(opts, geocode.WithNominatimBase(cfg.Geocode.NominatimBase))
	}
	if cfg.Geocode.UserAgent != "" {
		opts = append(opts, geocode.WithUserAgent(cfg.Geocode.UserAgent))
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.Geocode.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Geocode.MaxAttempts
	}
	resolver := geo.NewResolver(geocode.NewClient(opts...), retry)

	return &scanEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, sources, resolver, st),
	}, nil
}
