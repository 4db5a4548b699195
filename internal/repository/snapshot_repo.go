package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RateSnapshot is one fetched mapping of currency codes to rates, stamped with capture time.
type RateSnapshot struct {
	CapturedAt time.Time          `json:"captured_at"`
	Base       string             `json:"base"`
	Rates      map[string]float64 `json:"rates"`
}

// SnapshotRepository is an append-only log of rate snapshots queried by recency.
type SnapshotRepository interface {
	Put(ctx context.Context, snap RateSnapshot) error
	// LatestAfter returns the newest snapshot for base captured strictly after the threshold,
	// or (nil, nil) when there is none.
	LatestAfter(ctx context.Context, base string, after time.Time) (*RateSnapshot, error)
}

type snapshotQueries struct {
	insert      string
	latestAfter string
}

var dialectQueries = map[Dialect]snapshotQueries{
	DialectPostgres: {
		insert: `INSERT INTO rate_snapshots (captured_at, base, rates) VALUES ($1, $2, $3)`,
		latestAfter: `SELECT captured_at, base, rates
              FROM rate_snapshots
              WHERE base = $1 AND captured_at > $2
              ORDER BY captured_at DESC, id DESC
              LIMIT 1`,
	},
	DialectSQLite: {
		insert: `INSERT INTO rate_snapshots (captured_at, base, rates) VALUES (?, ?, ?)`,
		latestAfter: `SELECT captured_at, base, rates
              FROM rate_snapshots
              WHERE base = ? AND captured_at > ?
              ORDER BY captured_at DESC, id DESC
              LIMIT 1`,
	},
}

// SQLSnapshotRepository stores snapshots in a rate_snapshots table. Timestamps are unix seconds
// and rates are a JSON-encoded object.
type SQLSnapshotRepository struct {
	db      *sql.DB
	queries snapshotQueries
}

// NewSQLSnapshotRepository creates a repository for the given dialect.
func NewSQLSnapshotRepository(db *sql.DB, dialect Dialect) (*SQLSnapshotRepository, error) {
	q, ok := dialectQueries[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	return &SQLSnapshotRepository{db: db, queries: q}, nil
}

// Put appends a snapshot.
func (r *SQLSnapshotRepository) Put(ctx context.Context, snap RateSnapshot) error {
	rates, err := json.Marshal(snap.Rates)
	if err != nil {
		return fmt.Errorf("marshal rates: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.queries.insert, snap.CapturedAt.Unix(), snap.Base, string(rates)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestAfter finds the most recent snapshot for base newer than the threshold.
func (r *SQLSnapshotRepository) LatestAfter(ctx context.Context, base string, after time.Time) (*RateSnapshot, error) {
	row := r.db.QueryRowContext(ctx, r.queries.latestAfter, base, after.Unix())
	return scanSnapshot(row)
}

// scanSnapshot maps a single row into a RateSnapshot, returning (nil, nil) for sql.ErrNoRows.
func scanSnapshot(row *sql.Row) (*RateSnapshot, error) {
	var (
		capturedAt int64
		snap       RateSnapshot
		rates      string
	)

	if err := row.Scan(&capturedAt, &snap.Base, &rates); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(rates), &snap.Rates); err != nil {
		return nil, fmt.Errorf("decode snapshot rates: %w", err)
	}
	snap.CapturedAt = time.Unix(capturedAt, 0).UTC()
	return &snap, nil
}

var _ SnapshotRepository = (*SQLSnapshotRepository)(nil)
