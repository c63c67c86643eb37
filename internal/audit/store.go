// Package audit provides PostgreSQL-backed storage for moderation actions.
// Every command dispatched through the external bridge is recorded with its
// requester, target guild and outcome, so moderation stays reviewable.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// validOutcomes matches the CHECK constraint on the moderation_actions
// table.
var validOutcomes = map[string]bool{
	"success":      true,
	"failed":       true,
	"timeout":      true,
	"rejected":     true,
	"rate_limited": true,
}

// Store manages moderation action records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Action is one moderation command to be persisted.
type Action struct {
	RequestID string
	GuildID   string
	Requester string
	Kind      string
	Target    string
	Outcome   string
	Detail    map[string]any // JSONB extras (rank, duration, server feedback)
}

// NewStore creates an audit store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts a moderation action. Detail is marshalled to JSONB and the
// outcome is validated against the allowed set before insertion.
func (s *Store) Record(ctx context.Context, a *Action) error {
	if !validOutcomes[a.Outcome] {
		return fmt.Errorf("audit: invalid outcome %q", a.Outcome)
	}

	var detailJSON []byte
	if len(a.Detail) > 0 {
		var err error
		detailJSON, err = json.Marshal(a.Detail)
		if err != nil {
			return fmt.Errorf("audit: marshal detail: %w", err)
		}
	}

	const query = `
		INSERT INTO moderation_actions (request_id, guild_id, requester, kind, target, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		a.RequestID,
		a.GuildID,
		a.Requester,
		a.Kind,
		a.Target,
		a.Outcome,
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// CountRecent returns the number of actions a requester issued against a
// guild within the window. Useful for reviewing noisy moderators.
func (s *Store) CountRecent(ctx context.Context, guildID, requester string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM moderation_actions
		WHERE guild_id = $1
		  AND requester = $2
		  AND created_at >= NOW() - $3::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, guildID, requester, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("audit: count recent: %w", err)
	}
	return count, nil
}
