package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/acquisition-cli/internal/config"
	"github.com/sells-group/acquisition-cli/internal/filter"
	"github.com/sells-group/acquisition-cli/internal/geo"
	"github.com/sells-group/acquisition-cli/internal/model"
	"github.com/sells-group/acquisition-cli/internal/resilience"
	"github.com/sells-group/acquisition-cli/internal/source"
	"github.com/sells-group/acquisition-cli/internal/store"
	"github.com/sells-group/acquisition-cli/pkg/geocode"
)

const targetAddress = "37 Warren Street, New York, NY 10007"

// fakeSource yields canned raw listings.
type fakeSource struct {
	platform model.Platform
	raws     []model.RawListing
	err      error
}

func (f *fakeSource) Platform() model.Platform { return f.platform }

func (f *fakeSource) Fetch(context.Context) ([]model.RawListing, error) {
	return f.raws, f.err
}

// fakeGeocoder resolves addresses from a fixed table.
type fakeGeocoder struct {
	coords map[string]geo.Coordinates
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*geocode.Result, error) {
	c, ok := f.coords[address]
	if !ok {
		return &geocode.Result{Source: "fake"}, nil
	}
	return &geocode.Result{Latitude: c.Lat, Longitude: c.Lon, Source: "fake", Matched: true}, nil
}

func testGeocoder() *fakeGeocoder {
	return &fakeGeocoder{coords: map[string]geo.Coordinates{
		targetAddress:  {Lat: 40.7151, Lon: -74.0092},
		"Brooklyn, NY": {Lat: 40.6782, Lon: -73.9442},
		"Queens, NY":   {Lat: 40.7282, Lon: -73.7949},
		"Albany, NY":   {Lat: 42.6526, Lon: -73.7562}, // ~135 mi from target
	}}
}

func testConfig() *config.Config {
	return &config.Config{
		Criteria: config.CriteriaConfig{
			TargetAddress:      targetAddress,
			MaxPrice:           5_000_000,
			MaxDistanceMiles:   50,
			MaxMultiple:        5.0,
			RetirementKeywords: []string{"retirement", "retiring", "succession", "aging", "health"},
			AcceptableLabor:    []string{"low", "medium"},
		},
		Sources: config.SourcesConfig{MaxConcurrent: 2},
		Dedupe: config.DedupeConfig{
			TitleSimilarity:   0.6,
			AddressTolerance:  1.0,
			PriceTolerancePct: 0.05,
		},
	}
}

func rawListing(platform model.Platform, id, title, address, reason string, price float64) model.RawListing {
	return model.RawListing{
		Platform: platform,
		NativeID: id,
		Fields: map[string]any{
			"title":           title,
			"price":           price,
			"location":        address,
			"reason_for_sale": reason,
			"category":        "laundromat",
			"listing_url":     "https://example.com/" + string(platform) + "/" + id,
		},
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, sources ...source.Source) (*Pipeline, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	resolver := geo.NewResolver(testGeocoder(), resilience.RetryConfig{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
	})
	return New(cfg, sources, resolver, st), st
}

func TestPipeline_Run(t *testing.T) {
	src := &fakeSource{
		platform: model.PlatformBizBuySell,
		raws: []model.RawListing{
			rawListing(model.PlatformBizBuySell, "1", "Laundromat Business", "Brooklyn, NY", "owner retiring", 450_000),
			rawListing(model.PlatformBizBuySell, "2", "Deli & Grocery", "Queens, NY", "new opportunity", 250_000),
		},
	}

	p, _ := newTestPipeline(t, testConfig(), src)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	// The deli is dropped on the reason rule; the laundromat passes.
	require.Len(t, result.Results, 1)
	l := result.Results[0]
	assert.Equal(t, "Laundromat Business", l.Title)
	assert.True(t, l.IsRetirementRelated)
	assert.Equal(t, model.TierLow, l.LaborIntensity)
	require.NotNil(t, l.DistanceMiles)
	assert.Less(t, *l.DistanceMiles, 10.0)
	assert.Equal(t, geo.ProximityLocal, l.Proximity)

	assert.Equal(t, 2, result.Summary.TotalListingsFound)
	assert.Equal(t, 1, result.Summary.UniqueListings)
	assert.Equal(t, 1, result.Summary.Stats.FilteredOut)
	assert.Equal(t, 1, result.Summary.Stats.FailedRuleCounts[filter.RuleReason])
	assert.Equal(t, 1, result.Summary.PlatformCounts[model.PlatformBizBuySell])
	require.NotNil(t, result.Summary.AveragePrice)
	assert.InDelta(t, 450_000, *result.Summary.AveragePrice, 0.01)
}

func TestPipeline_RunRecordsScan(t *testing.T) {
	src := &fakeSource{
		platform: model.PlatformBizBuySell,
		raws: []model.RawListing{
			rawListing(model.PlatformBizBuySell, "1", "Laundromat Business", "Brooklyn, NY", "owner retiring", 450_000),
		},
	}

	p, st := newTestPipeline(t, testConfig(), src)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	runs, err := st.ListScans(context.Background(), store.ScanFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.ScanStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].Summary)
	assert.Equal(t, 1, runs[0].Summary.UniqueListings)
}

func TestPipeline_RunNoListingsIsFatal(t *testing.T) {
	empty := &fakeSource{platform: model.PlatformBizQuest}
	failing := &fakeSource{platform: model.PlatformDealStream, err: context.DeadlineExceeded}

	p, st := newTestPipeline(t, testConfig(), empty, failing)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrNoListings)

	runs, listErr := st.ListScans(context.Background(), store.ScanFilter{Status: model.ScanStatusFailed})
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "no raw listings")
}

func TestPipeline_RunSurvivesOneFailingSource(t *testing.T) {
	good := &fakeSource{
		platform: model.PlatformBizBuySell,
		raws: []model.RawListing{
			rawListing(model.PlatformBizBuySell, "1", "Laundromat Business", "Brooklyn, NY", "owner retiring", 450_000),
		},
	}
	bad := &fakeSource{platform: model.PlatformDealStream, err: context.DeadlineExceeded}

	p, _ := newTestPipeline(t, testConfig(), good, bad)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
	assert.Equal(t, 1, result.Summary.Stats.SourceFailures)
}

func TestPipeline_RunMergesCrossPlatformDuplicates(t *testing.T) {
	a := &fakeSource{
		platform: model.PlatformBizBuySell,
		raws: []model.RawListing{
			rawListing(model.PlatformBizBuySell, "1", "Brooklyn Laundromat", "Brooklyn, NY", "owner retiring", 450_000),
		},
	}
	b := &fakeSource{
		platform: model.PlatformBizQuest,
		raws: []model.RawListing{
			rawListing(model.PlatformBizQuest, "77", "Laundromat Brooklyn", "Brooklyn, NY", "retirement sale", 460_000),
		},
	}

	p, _ := newTestPipeline(t, testConfig(), a, b)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
	assert.Equal(t, 1, result.Summary.Stats.DuplicatesMerged)
}

func TestPipeline_RunPreservesFirstSeenAcrossScans(t *testing.T) {
	src := &fakeSource{
		platform: model.PlatformBizBuySell,
		raws: []model.RawListing{
			rawListing(model.PlatformBizBuySell, "1", "Laundromat Business", "Brooklyn, NY", "owner retiring", 450_000),
		},
	}

	p, _ := newTestPipeline(t, testConfig(), src)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Results, 1)

	time.Sleep(20 * time.Millisecond)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, second.Results, 1)

	assert.WithinDuration(t, first.Results[0].FirstSeen, second.Results[0].FirstSeen, time.Second)
	assert.True(t, second.Results[0].LastSeen.After(second.Results[0].FirstSeen))
}

func TestPipeline_RunNoMatchesReason(t *testing.T) {
	src := &fakeSource{
		platform: model.PlatformBizBuySell,
		raws: []model.RawListing{
			rawListing(model.PlatformBizBuySell, "1", "Deli & Grocery", "Queens, NY", "new opportunity", 250_000),
			rawListing(model.PlatformBizBuySell, "2", "Upstate Motel", "Albany, NY", "relocating", 900_000),
		},
	}

	p, _ := newTestPipeline(t, testConfig(), src)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Results)
	assert.Contains(t, result.Summary.NoMatchesReason, "none of the 2 listings")
	assert.Contains(t, result.Summary.NoMatchesReason, "reason (2)")
}

func TestPipeline_RunGeocodeFailurePassesThrough(t *testing.T) {
	// Address the fake geocoder does not know: distance stays unknown and the
	// distance rule passes the listing through.
	src := &fakeSource{
		platform: model.PlatformBizBuySell,
		raws: []model.RawListing{
			rawListing(model.PlatformBizBuySell, "1", "Laundromat Business", "Nowhere, XX", "owner retiring", 450_000),
		},
	}

	p, _ := newTestPipeline(t, testConfig(), src)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Results, 1)
	assert.Nil(t, result.Results[0].DistanceMiles)
	assert.Nil(t, result.Results[0].Coordinates)
	assert.Equal(t, 1, result.Summary.Stats.GeocodeFailures)
}

func TestRank(t *testing.T) {
	price := func(f float64) *float64 { return &f }

	listings := []model.Listing{
		{ID: "d"},
		{ID: "c", Price: price(300_000), DistanceMiles: price(20)},
		{ID: "a", Price: price(300_000), DistanceMiles: price(5)},
		{ID: "b", Price: price(150_000)},
	}

	Rank(listings)

	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)
}

func TestWriteAndReadResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.json")

	// Parent directory must exist; the writer does not create it.
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	price := 450_000.0
	result := &model.ScanResult{
		Results: []model.Listing{{ID: "aaa", Title: "Laundromat", Price: &price}},
		Summary: model.ScanSummary{UniqueListings: 1},
	}
	require.NoError(t, WriteResults(path, result))

	got, err := ReadResults(path)
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "aaa", got.Results[0].ID)

	// Overwrite in place.
	result.Summary.UniqueListings = 2
	require.NoError(t, WriteResults(path, result))
	got, err = ReadResults(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Summary.UniqueListings)
}
