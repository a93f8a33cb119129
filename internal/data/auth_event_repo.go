// Package data contains the persistence adapters backed by PostgreSQL.
package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/edgeauth/ldapauthd/internal/errors"
	"github.com/edgeauth/ldapauthd/internal/ports"
)

// authEventSchema is applied at startup. The table is append-only; rows
// are never updated after insert.
const authEventSchema = `
CREATE TABLE IF NOT EXISTS auth_events (
	id         UUID PRIMARY KEY,
	kind       TEXT NOT NULL,
	username   TEXT NOT NULL,
	ingress_id TEXT NOT NULL DEFAULT '',
	outcome    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS auth_events_username_idx ON auth_events (username, created_at);
`

// AuthEventRepo persists authentication and authorization events.
type AuthEventRepo struct {
	pool *pgxpool.Pool
}

// NewAuthEventRepo creates a new AuthEventRepo backed by the given pool.
func NewAuthEventRepo(pool *pgxpool.Pool) *AuthEventRepo {
	return &AuthEventRepo{pool: pool}
}

// EnsureSchema creates the auth_events table if it does not exist.
func (r *AuthEventRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, authEventSchema); err != nil {
		return apperrors.Wrap(apperrors.MapDBError(err),
			apperrors.ErrCodeInternal, "ensure auth_events schema")
	}
	return nil
}

// Record inserts a single event row.
func (r *AuthEventRepo) Record(ctx context.Context, event ports.AuthEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO auth_events (id, kind, username, ingress_id, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Kind, event.Username, event.IngressID, event.Outcome, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record auth event: %w", apperrors.MapDBError(err))
	}
	return nil
}

func validateEvent(event ports.AuthEvent) error {
	if event.ID == "" {
		return errors.New("auth event id is required")
	}
	if event.Kind == "" {
		return errors.New("auth event kind is required")
	}
	if event.CreatedAt.IsZero() {
		return errors.New("auth event timestamp is required")
	}
	return nil
}

// RecentForUser returns the newest events for a username, most recent
// first. Used by operators when investigating lockouts.
func (r *AuthEventRepo) RecentForUser(
	ctx context.Context,
	username string,
	limit int,
) ([]ports.AuthEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, username, ingress_id, outcome, created_at
		FROM auth_events
		WHERE username = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		username, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var events []ports.AuthEvent
	for rows.Next() {
		var e ports.AuthEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.Username, &e.IngressID, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auth events: %w", apperrors.MapDBError(err))
	}
	return events, nil
}
