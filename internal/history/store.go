// Package history persists one snapshot per search run in PostgreSQL so
// that index size and query behaviour can be compared across runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/resilience"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_runs (
    id          BIGSERIAL PRIMARY KEY,
    run_id      TEXT NOT NULL UNIQUE,
    app_name    TEXT NOT NULL,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// RunSnapshot summarises one batch run.
type RunSnapshot struct {
	RunID        string                    `json:"run_id"`
	AppName      string                    `json:"app_name"`
	AppVersion   string                    `json:"app_version"`
	Index        index.Stats               `json:"index"`
	Queries      searcher.Stats            `json:"queries"`
	Analytics    analytics.AggregatedStats `json:"analytics"`
	MaxResponses int                       `json:"max_responses"`
	Workers      int                       `json:"workers"`
	Duration     time.Duration             `json:"duration_ns"`
	CapturedAt   time.Time                 `json:"captured_at"`
}

type Store struct {
	db      *postgres.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:      db,
		timeout: 10 * time.Second,
		logger:  slog.Default().With("component", "history-store"),
	}
}

// Migrate creates the runs table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating search_runs table: %w", err)
	}
	return nil
}

// Save stores snap, retrying transient failures. Saving the same RunID
// twice replaces the earlier snapshot.
func (s *Store) Save(ctx context.Context, snap RunSnapshot) error {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling run snapshot: %w", err)
	}
	err = resilience.Retry(ctx, "history.save", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		return resilience.WithTimeout(ctx, s.timeout, "history.save", func(ctx context.Context) error {
			_, err := s.db.DB.ExecContext(ctx,
				`INSERT INTO search_runs (run_id, app_name, data, captured_at) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (run_id) DO UPDATE SET data = EXCLUDED.data, captured_at = EXCLUDED.captured_at`,
				snap.RunID, snap.AppName, data, snap.CapturedAt,
			)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("saving run %s: %w", snap.RunID, err)
	}
	s.logger.Info("run snapshot saved",
		"run_id", snap.RunID,
		"documents", snap.Index.DocumentCount,
		"queries", snap.Queries.TotalQueries,
	)
	return nil
}

// Latest returns the newest snapshot for appName, or nil when there is none.
func (s *Store) Latest(ctx context.Context, appName string) (*RunSnapshot, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM search_runs WHERE app_name = $1 ORDER BY captured_at DESC LIMIT 1`,
		appName,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	var snap RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling run snapshot: %w", err)
	}
	return &snap, nil
}

// List returns up to limit snapshots for appName, newest first. Rows that
// cannot be decoded are skipped.
func (s *Store) List(ctx context.Context, appName string, limit int) ([]RunSnapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM search_runs WHERE app_name = $1 ORDER BY captured_at DESC LIMIT $2`,
		appName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var snapshots []RunSnapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		var snap RunSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			s.logger.Warn("skipping corrupt run snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// Compare logs how the index and query results moved since prev.
func Compare(logger *slog.Logger, prev *RunSnapshot, cur RunSnapshot) {
	if prev == nil {
		logger.Info("no previous run to compare against", "run_id", cur.RunID)
		return
	}
	logger.Info("compared with previous run",
		"previous_run", prev.RunID,
		"documents_delta", cur.Index.DocumentCount-prev.Index.DocumentCount,
		"terms_delta", cur.Index.TermCount-prev.Index.TermCount,
		"answered_delta", cur.Queries.QueriesWithResults-prev.Queries.QueriesWithResults,
	)
}
