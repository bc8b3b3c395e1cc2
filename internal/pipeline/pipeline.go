// Package pipeline orchestrates a scan: fetch, normalize, geocode, score,
// filter, dedupe, rank, persist, emit.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/acquisition-cli/internal/config"
	"github.com/sells-group/acquisition-cli/internal/dedupe"
	"github.com/sells-group/acquisition-cli/internal/filter"
	"github.com/sells-group/acquisition-cli/internal/geo"
	"github.com/sells-group/acquisition-cli/internal/model"
	"github.com/sells-group/acquisition-cli/internal/normalize"
	"github.com/sells-group/acquisition-cli/internal/risk"
	"github.com/sells-group/acquisition-cli/internal/source"
	"github.com/sells-group/acquisition-cli/internal/store"
)

// Pipeline runs scans. Dependencies are injected so tests can substitute
// fake sources and geocoders.
type Pipeline struct {
	cfg      *config.Config
	sources  []source.Source
	resolver *geo.Resolver
	criteria *filter.Criteria
	deduper  *dedupe.Deduper
	store    store.Store
}

// New assembles a Pipeline from its stages.
func New(cfg *config.Config, sources []source.Source, resolver *geo.Resolver, st store.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		sources:  sources,
		resolver: resolver,
		criteria: filter.New(cfg.Criteria),
		deduper:  dedupe.New(dedupe.FromConfig(cfg.Dedupe)),
		store:    st,
	}
}

// Run executes one scan end to end and records it in the store. The scan
// fails as a whole only when no source yields anything or the target address
// cannot be resolved; per-listing problems are counted and survived.
func (p *Pipeline) Run(ctx context.Context) (*model.ScanResult, error) {
	run, err := p.store.CreateScan(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: record scan start")
	}

	result, err := p.scan(ctx)
	if err != nil {
		if failErr := p.store.FailScan(ctx, run.ID, err); failErr != nil {
			zap.L().Error("record scan failure", zap.String("scan_id", run.ID), zap.Error(failErr))
		}
		return nil, err
	}

	if err := p.store.CompleteScan(ctx, run.ID, &result.Summary); err != nil {
		return nil, eris.Wrap(err, "pipeline: record scan completion")
	}

	zap.L().Info("scan complete",
		zap.String("scan_id", run.ID),
		zap.Int("fetched", result.Summary.Stats.FetchedTotal),
		zap.Int("results", len(result.Results)),
	)
	return result, nil
}

func (p *Pipeline) scan(ctx context.Context) (*model.ScanResult, error) {
	var stats model.ScanStats
	stats.FailedRuleCounts = make(map[string]int)

	raws, sourceFailures := p.fetchAll(ctx)
	stats.FetchedTotal = len(raws)
	stats.SourceFailures = sourceFailures
	if len(raws) == 0 {
		return nil, eris.Wrap(source.ErrNoListings, "pipeline: fetch")
	}

	target, err := p.resolver.Resolve(ctx, p.cfg.Criteria.TargetAddress)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: resolve target address %q", p.cfg.Criteria.TargetAddress)
	}

	listings := p.normalizeAll(raws, &stats)
	p.geocodeAll(ctx, listings, target, &stats)

	var admitted []model.Listing
	for _, l := range listings {
		res := p.criteria.Evaluate(l)
		if res.Pass {
			admitted = append(admitted, l)
			continue
		}
		stats.FilteredOut++
		for _, rule := range res.FailedRules {
			stats.FailedRuleCounts[rule]++
		}
	}

	clusters := p.deduper.Dedupe(admitted)
	stats.DuplicatesMerged = len(admitted) - len(clusters)

	results := make([]model.Listing, 0, len(clusters))
	for _, c := range clusters {
		results = append(results, c.Canonical)
	}

	if err := p.mergeLifecycle(ctx, results); err != nil {
		return nil, err
	}
	Rank(results)

	if err := p.store.UpsertListings(ctx, results); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist listings")
	}

	summary := buildSummary(time.Now().UTC(), len(listings), results, stats)
	return &model.ScanResult{Results: results, Summary: summary}, nil
}

// fetchAll pulls every source concurrently. A failing source is logged and
// counted; the scan continues with whatever the rest produced.
func (p *Pipeline) fetchAll(ctx context.Context) ([]model.RawListing, int) {
	var mu sync.Mutex
	var raws []model.RawListing
	failures := 0

	g, ctx := errgroup.WithContext(ctx)
	if p.cfg.Sources.MaxConcurrent > 0 {
		g.SetLimit(p.cfg.Sources.MaxConcurrent)
	}

	for _, src := range p.sources {
		g.Go(func() error {
			fetched, err := src.Fetch(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				zap.L().Error("source fetch failed",
					zap.String("platform", string(src.Platform())),
					zap.Error(err),
				)
				failures++
				return nil
			}
			raws = append(raws, fetched...)
			return nil
		})
	}
	_ = g.Wait()

	return raws, failures
}

func (p *Pipeline) normalizeAll(raws []model.RawListing, stats *model.ScanStats) []model.Listing {
	now := time.Now().UTC()
	listings := make([]model.Listing, 0, len(raws))

	for _, raw := range raws {
		l, err := normalize.Normalize(raw, now)
		if err != nil {
			if eris.Is(err, normalize.ErrMissingURL) {
				stats.MissingURLDrops++
			}
			stats.NormalizationDrops++
			zap.L().Debug("dropped raw listing",
				zap.String("listing", normalize.Describe(raw)),
				zap.Error(err),
			)
			continue
		}

		category, employees := normalize.ScoringInput(raw)
		l.LaborIntensity, l.AIRisk = risk.Score(risk.Input{
			Title:       l.Title,
			Description: l.Description,
			Category:    category,
			Employees:   employees,
		})
		l.VisitFrequency = risk.VisitFrequency(l.Description, category)
		l.IsRetirementRelated = p.criteria.IsRetirementRelated(l.ReasonForSale)

		listings = append(listings, l)
	}
	return listings
}

// geocodeAll annotates listings with coordinates and distance from the
// target. Failures leave the listing's location unknown; the distance rule
// passes those through.
func (p *Pipeline) geocodeAll(ctx context.Context, listings []model.Listing, target geo.Coordinates, stats *model.ScanStats) {
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if p.cfg.Sources.MaxConcurrent > 0 {
		g.SetLimit(p.cfg.Sources.MaxConcurrent)
	}

	for i := range listings {
		g.Go(func() error {
			addr := listings[i].Address
			if strings.TrimSpace(addr) == "" {
				mu.Lock()
				stats.GeocodeFailures++
				mu.Unlock()
				return nil
			}

			coords, err := p.resolver.Resolve(ctx, addr)
			if err != nil {
				mu.Lock()
				stats.GeocodeFailures++
				mu.Unlock()
				return nil
			}

			distance := geo.Haversine(target, coords)
			listings[i].Coordinates = &coords
			listings[i].DistanceMiles = &distance
			listings[i].Proximity = geo.Classify(distance)
			return nil
		})
	}
	_ = g.Wait()
}

// mergeLifecycle restores first_seen for listings the store has seen in a
// previous scan.
func (p *Pipeline) mergeLifecycle(ctx context.Context, listings []model.Listing) error {
	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}

	firstSeen, err := p.store.FirstSeen(ctx, ids)
	if err != nil {
		return eris.Wrap(err, "pipeline: load lifecycle")
	}

	for i := range listings {
		if prior, ok := firstSeen[listings[i].ID]; ok && prior.Before(listings[i].FirstSeen) {
			listings[i].FirstSeen = prior
		}
	}
	return nil
}

// Rank orders results cheapest first. Listings without a price sort last;
// ties break on distance, then ID for determinism.
func Rank(listings []model.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i], listings[j]
		switch {
		case a.Price != nil && b.Price != nil && *a.Price != *b.Price:
			return *a.Price < *b.Price
		case (a.Price != nil) != (b.Price != nil):
			return a.Price != nil
		}
		switch {
		case a.DistanceMiles != nil && b.DistanceMiles != nil && *a.DistanceMiles != *b.DistanceMiles:
			return *a.DistanceMiles < *b.DistanceMiles
		case (a.DistanceMiles != nil) != (b.DistanceMiles != nil):
			return a.DistanceMiles != nil
		}
		return a.ID < b.ID
	})
}

func buildSummary(now time.Time, normalized int, results []model.Listing, stats model.ScanStats) model.ScanSummary {
	summary := model.ScanSummary{
		GeneratedAt:        now,
		TotalListingsFound: normalized,
		UniqueListings:     len(results),
		PlatformCounts:     make(map[model.Platform]int),
		Stats:              stats,
	}

	var priceSum float64
	priced := 0
	for _, l := range results {
		summary.PlatformCounts[l.Platform]++
		if l.Price != nil {
			priceSum += *l.Price
			priced++
		}
	}
	if priced > 0 {
		avg := priceSum / float64(priced)
		summary.AveragePrice = &avg
	}

	if len(results) == 0 {
		summary.NoMatchesReason = noMatchesReason(normalized, stats)
	}
	return summary
}

// noMatchesReason explains an empty result set in one sentence.
func noMatchesReason(normalized int, stats model.ScanStats) string {
	if normalized == 0 {
		return fmt.Sprintf("all %d fetched listings were dropped during normalization", stats.FetchedTotal)
	}

	type ruleCount struct {
		rule  string
		count int
	}
	counts := make([]ruleCount, 0, len(stats.FailedRuleCounts))
	for rule, n := range stats.FailedRuleCounts {
		counts = append(counts, ruleCount{rule, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].rule < counts[j].rule
	})

	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", c.rule, c.count))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("none of the %d listings met all criteria", normalized)
	}
	return fmt.Sprintf("none of the %d listings met all criteria; most common failures: %s",
		normalized, strings.Join(parts, ", "))
}
