// Package store implements the engine's persistence collaborators over the
// profile database: the profile source read at reload time and the match
// sink written by the recorder's batch flushes.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/killwatch/internal/core/db"
	"github.com/solatis/killwatch/internal/types"
)

// Store provides profile reads and match writes against the database.
// Implements engine.ProfileSource and engine.MatchSink.
type Store struct {
	db *sqlx.DB
	q  *db.Queries
}

// New creates a store over an open database connection.
func New(database *sqlx.DB) (*Store, error) {
	if database == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	return &Store{db: database, q: queries}, nil
}

// ActiveProfiles returns every active profile definition, oldest first.
func (s *Store) ActiveProfiles(ctx context.Context) ([]types.Profile, error) {
	var rows []types.Profile
	if err := s.q.SelectContext(ctx, "list-active-profiles", &rows); err != nil {
		return nil, fmt.Errorf("list active profiles: %w", err)
	}
	return rows, nil
}

// Profile returns a single profile by id, active or not.
func (s *Store) Profile(ctx context.Context, id types.ProfileID) (types.Profile, error) {
	var p types.Profile
	if err := s.q.GetContext(ctx, "get-profile", &p, string(id)); err != nil {
		return types.Profile{}, fmt.Errorf("get profile %s: %w", id, err)
	}
	return p, nil
}

// MatchCount returns the number of matches recorded for a profile.
func (s *Store) MatchCount(ctx context.Context, id types.ProfileID) (int64, error) {
	var n int64
	if err := s.q.GetContext(ctx, "count-matches-for-profile", &n, string(id)); err != nil {
		return 0, fmt.Errorf("count matches for profile %s: %w", id, err)
	}
	return n, nil
}

// WriteMatches bulk-persists one flushed batch inside a single transaction:
// either the whole batch lands or none of it does, which keeps the
// recorder's at-most-once accounting simple.
func (s *Store) WriteMatches(ctx context.Context, matches []types.Match) error {
	if len(matches) == 0 {
		return nil
	}

	insertSQL, err := s.q.Raw("insert-match")
	if err != nil {
		return fmt.Errorf("insert-match query: %w", err)
	}
	insertSQL = s.db.Rebind(insertSQL)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin match batch: %w", err)
	}

	for i := range matches {
		m := &matches[i]
		if _, err := tx.ExecContext(ctx, insertSQL,
			string(m.ProfileID),
			m.KillmailID,
			m.KillTime.UTC(),
			m.Summary.VictimName,
			m.Summary.ShipName,
			m.Summary.SystemName,
			m.TotalValue,
			m.MatchedAt.UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert match for profile %s: %w", m.ProfileID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit match batch: %w", err)
	}
	return nil
}

// UpdateProfileStats applies cumulative counter increments and the new
// decayed frequency scores after a successful flush.
func (s *Store) UpdateProfileStats(ctx context.Context, counts map[types.ProfileID]int64, frequencies map[types.ProfileID]float64) error {
	if len(counts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for id, n := range counts {
		if _, err := s.q.ExecContext(ctx, "increment-profile-matches",
			n, frequencies[id], now, string(id)); err != nil {
			return fmt.Errorf("update stats for profile %s: %w", id, err)
		}
	}
	return nil
}
