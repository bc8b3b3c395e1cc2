package model

import "time"

// ScanStatus represents the state of a scan run.
type ScanStatus string

const (
	ScanStatusRunning  ScanStatus = "running"
	ScanStatusComplete ScanStatus = "complete"
	ScanStatusFailed   ScanStatus = "failed"
)

// ScanRun is one recorded execution of the pipeline.
type ScanRun struct {
	ID         string       `json:"id"`
	Status     ScanStatus   `json:"status"`
	Summary    *ScanSummary `json:"summary,omitempty"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// ScanStats counts per-stage outcomes so a run's drops are explainable.
type ScanStats struct {
	FetchedTotal         int            `json:"fetched_total"`
	SourceFailures       int            `json:"source_failures"`
	NormalizationDrops   int            `json:"normalization_drops"`
	MissingURLDrops      int            `json:"missing_url_drops"`
	GeocodeFailures      int            `json:"geocode_failures"`
	FilteredOut          int            `json:"filtered_out"`
	DuplicatesMerged     int            `json:"duplicates_merged"`
	FailedRuleCounts     map[string]int `json:"failed_rule_counts,omitempty"`
}

// ScanSummary aggregates a completed scan for the dashboard renderer.
type ScanSummary struct {
	GeneratedAt        time.Time        `json:"generated_at"`
	TotalListingsFound int              `json:"total_listings_found"`
	UniqueListings     int              `json:"unique_listings"`
	PlatformCounts     map[Platform]int `json:"platform_counts"`
	AveragePrice       *float64         `json:"average_price,omitempty"`
	NoMatchesReason    string           `json:"no_matches_reason,omitempty"`
	Stats              ScanStats        `json:"stats"`
}

// ScanResult is the JSON document emitted after every scan: the ranked,
// deduplicated, admitted listings plus the summary.
type ScanResult struct {
	Results []Listing   `json:"results"`
	Summary ScanSummary `json:"summary"`
}
