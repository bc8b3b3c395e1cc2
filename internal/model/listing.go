// Package model defines the canonical listing record and the scan output
// document shared across the pipeline.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/acquisition-cli/internal/geo"
)

// Platform identifies the originating listing platform.
type Platform string

const (
	PlatformBizBuySell     Platform = "bizbuysell"
	PlatformBizQuest       Platform = "bizquest"
	PlatformDealStream     Platform = "dealstream"
	PlatformBusinessBroker Platform = "businessbroker"
)

// Tier is a three-level heuristic rating used for labor intensity and
// AI-disruption risk.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Rank orders tiers for worst-case tie-breaking: low < medium < high.
func (t Tier) Rank() int {
	switch t {
	case TierLow:
		return 0
	case TierMedium:
		return 1
	case TierHigh:
		return 2
	default:
		return 1 // unknown scores as medium
	}
}

// Worse returns the higher-risk of two tiers.
func Worse(a, b Tier) Tier {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// VisitFrequency estimates how often an owner must be on site.
type VisitFrequency string

const (
	VisitDaily   VisitFrequency = "daily"
	VisitWeekly  VisitFrequency = "weekly"
	VisitMonthly VisitFrequency = "monthly"
)

// RawListing is a source-native record before normalization. Fields is an
// untyped mapping; the normalizer owns the key conventions per platform.
type RawListing struct {
	Platform Platform       `json:"platform"`
	NativeID string         `json:"native_id"`
	Fields   map[string]any `json:"fields"`
}

// Listing is the canonical, normalized business-for-sale record.
type Listing struct {
	ID          string   `json:"id"`
	Platform    Platform `json:"platform"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`

	// Price is the asking price in USD, nil when the listing does not
	// publish one. Unknown prices pass the price filter for manual review.
	Price *float64 `json:"price"`

	Address       string           `json:"address"`
	Coordinates   *geo.Coordinates `json:"coordinates,omitempty"`
	DistanceMiles *float64         `json:"distance_miles"`
	Proximity     string           `json:"proximity,omitempty"`

	EarningsMultiple *float64 `json:"earnings_multiple"`

	ReasonForSale       string `json:"reason_for_sale,omitempty"`
	IsRetirementRelated bool   `json:"is_retirement_related"`

	OwnershipStructure string         `json:"ownership_structure,omitempty"`
	VisitFrequency     VisitFrequency `json:"visit_frequency,omitempty"`
	LaborIntensity     Tier           `json:"labor_intensity"`
	AIRisk             Tier           `json:"ai_risk"`

	ListingURL string `json:"listing_url"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ListingID derives the stable identifier for a platform-native listing.
// The same (platform, nativeID) pair always hashes to the same ID so
// first_seen survives across scans.
func ListingID(platform Platform, nativeID string) string {
	h := sha256.Sum256([]byte(string(platform) + "|" + strings.TrimSpace(nativeID)))
	return fmt.Sprintf("%x", h[:12])
}

// Completeness counts the optional fields present on a listing. Dedupe uses
// it to pick the canonical representative of a cluster.
func (l Listing) Completeness() int {
	n := 0
	if l.Price != nil {
		n++
	}
	if l.EarningsMultiple != nil {
		n++
	}
	if strings.TrimSpace(l.ReasonForSale) != "" {
		n++
	}
	if l.Coordinates != nil {
		n++
	}
	if strings.TrimSpace(l.Description) != "" {
		n++
	}
	return n
}

// DedupeCluster groups listings judged to represent one underlying business.
type DedupeCluster struct {
	Canonical Listing  `json:"canonical"`
	MemberIDs []string `json:"member_ids"`
}
