// Package store persists listing lifecycles and scan run history. The
// lifecycle table is what makes first_seen stable across scans: clusters are
// recomputed every run, but a listing ID that was ever seen keeps its
// original first_seen.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquisition-cli/internal/config"
	"github.com/sells-group/acquisition-cli/internal/model"
)

// ScanFilter specifies criteria for listing scan runs.
type ScanFilter struct {
	Status model.ScanStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scan pipeline.
type Store interface {
	// Scans
	CreateScan(ctx context.Context) (*model.ScanRun, error)
	CompleteScan(ctx context.Context, scanID string, summary *model.ScanSummary) error
	FailScan(ctx context.Context, scanID string, cause error) error
	GetScan(ctx context.Context, scanID string) (*model.ScanRun, error)
	ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRun, error)

	// Listing lifecycle
	FirstSeen(ctx context.Context, ids []string) (map[string]time.Time, error)
	UpsertListings(ctx context.Context, listings []model.Listing) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the configured Store backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
