// Package dedupe clusters listings that likely refer to the same underlying
// business across platforms. Title similarity alone never merges: a pair
// needs a corroborating address or price signal, so generically named
// listings ("Pizza Restaurant for Sale") stay apart.
package dedupe

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mmcloughlin/geohash"
	"go.uber.org/zap"

	"github.com/sells-group/acquisition-cli/internal/config"
	"github.com/sells-group/acquisition-cli/internal/geo"
	"github.com/sells-group/acquisition-cli/internal/model"
)

// geohashPrecision 5 gives ~4.9 km cells; a cell plus its eight neighbors
// fully covers any 1-mile address tolerance.
const geohashPrecision = 5

// priceBandRatio is the width of the logarithmic price bands used for
// candidate pairing. Bands are wider than the price tolerance so that any
// two prices within tolerance land in the same or adjacent bands.
const priceBandRatio = 1.06

// Config holds the clustering thresholds.
type Config struct {
	// TitleSimilarity is the minimum Jaccard similarity between normalized
	// title token sets for two listings to be candidates.
	TitleSimilarity float64
	// AddressToleranceMiles is the maximum distance between coordinates for
	// an address corroboration.
	AddressToleranceMiles float64
	// PriceTolerancePct is the maximum relative price difference for a price
	// corroboration (0.05 = 5%).
	PriceTolerancePct float64
}

// FromConfig builds a Config from application configuration.
func FromConfig(cfg config.DedupeConfig) Config {
	return Config{
		TitleSimilarity:       cfg.TitleSimilarity,
		AddressToleranceMiles: cfg.AddressTolerance,
		PriceTolerancePct:     cfg.PriceTolerancePct,
	}
}

// Deduper clusters listings.
type Deduper struct {
	cfg Config
}

// New creates a Deduper.
func New(cfg Config) *Deduper {
	return &Deduper{cfg: cfg}
}

// Dedupe clusters the listings and returns one cluster per underlying
// business. Clusters are recomputed from scratch every run; only first_seen
// is carried forward through the canonical representative. Output order is
// deterministic (by canonical listing ID).
func (d *Deduper) Dedupe(listings []model.Listing) []model.DedupeCluster {
	uf := newUnionFind(len(listings))
	titles := make([][]string, len(listings))
	for i, l := range listings {
		titles[i] = titleTokens(l.Title)
	}

	edges := 0
	for _, pair := range d.candidatePairs(listings) {
		i, j := pair[0], pair[1]
		if d.match(listings[i], listings[j], titles[i], titles[j]) {
			uf.union(i, j)
			edges++
		}
	}

	var clusters []model.DedupeCluster
	for _, members := range uf.components() {
		clusters = append(clusters, buildCluster(listings, members))
	}
	sort.Slice(clusters, func(a, b int) bool {
		return clusters[a].Canonical.ID < clusters[b].Canonical.ID
	})

	if merged := len(listings) - len(clusters); merged > 0 {
		zap.L().Info("deduplicated listings",
			zap.Int("listings", len(listings)),
			zap.Int("clusters", len(clusters)),
			zap.Int("merged", merged),
			zap.Int("edges", edges),
		)
	}
	return clusters
}

// candidatePairs returns index pairs worth running the full match rule on.
// A matching pair must share an address neighborhood or a price band, so
// bucketing on those two keys loses no true matches while avoiding the full
// O(n²) comparison.
func (d *Deduper) candidatePairs(listings []model.Listing) [][2]int {
	buckets := make(map[string][]int)
	add := func(key string, idx int) {
		buckets[key] = append(buckets[key], idx)
	}

	for i, l := range listings {
		if l.Coordinates != nil {
			cell := geohash.EncodeWithPrecision(l.Coordinates.Lat, l.Coordinates.Lon, geohashPrecision)
			add("g:"+cell, i)
			for _, n := range geohash.Neighbors(cell) {
				add("g:"+n, i)
			}
		}
		if l.Price != nil && *l.Price > 0 {
			band := int(math.Floor(math.Log(*l.Price) / math.Log(priceBandRatio)))
			for _, b := range []int{band - 1, band, band + 1} {
				add("p:"+strconv.Itoa(b), i)
			}
		}
	}

	// Listings with an address string also bucket by it, catching pairs
	// whose geocoding failed on one side.
	for i, l := range listings {
		if addr := normalizeAddress(l.Address); addr != "" {
			add("a:"+addr, i)
		}
	}

	seen := make(map[[2]int]bool)
	var pairs [][2]int
	for _, members := range buckets {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				i, j := members[x], members[y]
				if i == j {
					continue
				}
				if i > j {
					i, j = j, i
				}
				key := [2]int{i, j}
				if !seen[key] {
					seen[key] = true
					pairs = append(pairs, key)
				}
			}
		}
	}
	return pairs
}

// match applies the pairwise rule: high title similarity AND at least one
// corroborating signal (address proximity or price proximity).
func (d *Deduper) match(a, b model.Listing, tokensA, tokensB []string) bool {
	if jaccard(tokensA, tokensB) < d.cfg.TitleSimilarity {
		return false
	}
	return d.addressClose(a, b) || d.priceClose(a, b)
}

func (d *Deduper) addressClose(a, b model.Listing) bool {
	if a.Coordinates != nil && b.Coordinates != nil {
		return geo.Haversine(*a.Coordinates, *b.Coordinates) <= d.cfg.AddressToleranceMiles
	}
	// Without coordinates on both sides, only an exact normalized address
	// string counts.
	addrA, addrB := normalizeAddress(a.Address), normalizeAddress(b.Address)
	return addrA != "" && addrA == addrB
}

func (d *Deduper) priceClose(a, b model.Listing) bool {
	if a.Price == nil || b.Price == nil {
		return false
	}
	hi := math.Max(*a.Price, *b.Price)
	if hi == 0 {
		return false
	}
	return math.Abs(*a.Price-*b.Price)/hi <= d.cfg.PriceTolerancePct
}

// buildCluster selects the canonical representative: most complete optional
// fields, tie-broken by most recent last_seen, then lowest ID for
// determinism. The cluster carries the earliest first_seen of any member.
func buildCluster(listings []model.Listing, members []int) model.DedupeCluster {
	best := members[0]
	for _, idx := range members[1:] {
		if better(listings[idx], listings[best]) {
			best = idx
		}
	}

	canonical := listings[best]
	ids := make([]string, 0, len(members))
	for _, idx := range members {
		ids = append(ids, listings[idx].ID)
		if listings[idx].FirstSeen.Before(canonical.FirstSeen) {
			canonical.FirstSeen = listings[idx].FirstSeen
		}
		if listings[idx].LastSeen.After(canonical.LastSeen) {
			canonical.LastSeen = listings[idx].LastSeen
		}
	}
	sort.Strings(ids)

	return model.DedupeCluster{Canonical: canonical, MemberIDs: ids}
}

func better(a, b model.Listing) bool {
	if ca, cb := a.Completeness(), b.Completeness(); ca != cb {
		return ca > cb
	}
	if !a.LastSeen.Equal(b.LastSeen) {
		return a.LastSeen.After(b.LastSeen)
	}
	return a.ID < b.ID
}

var entitySuffixes = regexp.MustCompile(
	`(?i)\s*,?\s*(LLC|L\.?L\.?C\.?|INC\.?|INCORPORATED|CORP\.?|CORPORATION|` +
		`CO\.?|COMPANY|LTD\.?|LIMITED|L\.?P\.?|LLP|PLLC|DBA|D/B/A)\s*\.?\s*$`)

var nonAlnum = regexp.MustCompile(`[^A-Z0-9 ]+`)

// titleStopwords are listing boilerplate tokens that carry no identity.
var titleStopwords = map[string]bool{
	"FOR": true, "SALE": true, "BUSINESS": true, "THE": true,
	"A": true, "AN": true, "AND": true, "OF": true, "IN": true,
}

// titleTokens normalizes a listing title into a deduplicated token set:
// uppercase, entity suffixes stripped, punctuation removed, boilerplate
// dropped.
func titleTokens(title string) []string {
	n := strings.ToUpper(strings.TrimSpace(title))
	n = entitySuffixes.ReplaceAllString(n, "")
	n = nonAlnum.ReplaceAllString(n, " ")

	seen := make(map[string]bool)
	var tokens []string
	for _, tok := range strings.Fields(n) {
		if titleStopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

// jaccard computes set similarity between two token slices.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	inter := 0
	for _, t := range b {
		if set[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.Join(strings.Fields(addr), " "))
}
