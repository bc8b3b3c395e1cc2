package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/acquisition-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id         TEXT PRIMARY KEY,
	platform   TEXT NOT NULL,
	data       JSONB NOT NULL,
	first_seen TIMESTAMPTZ NOT NULL,
	last_seen  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scans (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     JSONB,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_listings_platform ON listings(platform);
CREATE INDEX IF NOT EXISTS idx_listings_last_seen ON listings(last_seen);
CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_started_at ON scans(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateScan(ctx context.Context) (*model.ScanRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scans (id, status, started_at) VALUES ($1, $2, $3)`,
		id, string(model.ScanStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert scan")
	}

	return &model.ScanRun{
		ID:        id,
		Status:    model.ScanStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteScan(ctx context.Context, scanID string, summary *model.ScanSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE scans SET status = $1, summary = $2, finished_at = $3 WHERE id = $4`,
		string(model.ScanStatusComplete), summaryJSON, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete scan %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan not found: %s", scanID)
	}
	return nil
}

func (s *PostgresStore) FailScan(ctx context.Context, scanID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE scans SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(model.ScanStatusFailed), msg, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail scan %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan not found: %s", scanID)
	}
	return nil
}

func (s *PostgresStore) GetScan(ctx context.Context, scanID string) (*model.ScanRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, summary, error, started_at, finished_at FROM scans WHERE id = $1`,
		scanID,
	)

	r, err := scanPgScanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get scan %s", scanID)
	}
	return r, nil
}

func (s *PostgresStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRun, error) {
	query := `SELECT id, status, summary, error, started_at, finished_at FROM scans`
	var args []any

	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var runs []model.ScanRun
	for rows.Next() {
		r, err := scanPgScanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list scans scan")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list scans iterate")
}

func (s *PostgresStore) FirstSeen(ctx context.Context, ids []string) (map[string]time.Time, error) {
	result := make(map[string]time.Time, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, first_seen FROM listings WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load first_seen")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var firstSeen time.Time
		if err := rows.Scan(&id, &firstSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan first_seen")
		}
		result[id] = firstSeen.UTC()
	}
	return result, eris.Wrap(rows.Err(), "postgres: load first_seen iterate")
}

func (s *PostgresStore) UpsertListings(ctx context.Context, listings []model.Listing) error {
	for _, l := range listings {
		data, err := json.Marshal(l)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal listing %s", l.ID)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO listings (id, platform, data, first_seen, last_seen)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET
				platform = excluded.platform,
				data = excluded.data,
				last_seen = excluded.last_seen`,
			l.ID, string(l.Platform), data, l.FirstSeen.UTC(), l.LastSeen.UTC(),
		); err != nil {
			return eris.Wrapf(err, "postgres: upsert listing %s", l.ID)
		}
	}
	return nil
}

type pgScannable interface {
	Scan(dest ...any) error
}

func scanPgScanRun(row pgScannable) (*model.ScanRun, error) {
	var r model.ScanRun
	var summaryJSON []byte
	var errMsg *string
	var finishedAt *time.Time

	if err := row.Scan(&r.ID, &r.Status, &summaryJSON, &errMsg, &r.StartedAt, &finishedAt); err != nil {
		return nil, err
	}

	if len(summaryJSON) > 0 {
		r.Summary = &model.ScanSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "unmarshal summary")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	if finishedAt != nil {
		t := finishedAt.UTC()
		r.FinishedAt = &t
	}
	r.StartedAt = r.StartedAt.UTC()
	return &r, nil
}
