package ports

// Package ports defines interfaces (hexagonal ports) for the decision
// engine's collaborators. Implementations live in internal/adapters and
// internal/data; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned by Directory.LookupUser when no entry
// matches the username. It is deliberately indistinguishable from a bad
// password at the API boundary; only operators see it in logs.
var ErrUserNotFound = errors.New("user not found in directory")

// UserEntry is the raw directory result the engine needs for a user.
type UserEntry struct {
	// DN is the entry's distinguished name.
	DN string
	// PasswordHash is the stored password attribute value, a
	// scheme-prefixed base64 digest (e.g. "{SHA}...").
	PasswordHash string
}

// Directory executes the two query shapes the engine needs against the
// directory service. Every call opens its own short-lived bind and
// releases it unconditionally before returning.
type Directory interface {
	// LookupUser finds the entry whose configured attribute equals
	// username and returns its DN and stored password hash.
	LookupUser(ctx context.Context, username string) (UserEntry, error)

	// UserGroups searches the group subtree for entries whose membership
	// attribute references userDN and returns their names.
	UserGroups(ctx context.Context, userDN string) ([]string, error)
}

// GroupEntry is one cached group-membership snapshot. Entries are
// replaced wholesale on refresh, never mutated in place.
type GroupEntry struct {
	Username  string    `json:"username"`
	Groups    []string  `json:"groups"`
	FetchedAt time.Time `json:"fetched_at"`
}

// GroupStore holds group-membership cache entries keyed by username.
// Implementations must be safe for concurrent use and must not hold
// locks across directory calls (they never make any).
type GroupStore interface {
	// Get returns the entry for username if one exists. A store error
	// (e.g. a network-backed store being down) is reported but treated
	// as a miss by callers.
	Get(ctx context.Context, username string) (GroupEntry, bool, error)

	// Put replaces the entry for entry.Username. Last write wins.
	Put(ctx context.Context, entry GroupEntry) error
}

// AuthEvent is one audit record: a login attempt or an authorization
// decision. Best-effort, never on the decision hot path.
type AuthEvent struct {
	ID        string
	Kind      string // "login" or "decision"
	Username  string
	IngressID string
	Outcome   string
	CreatedAt time.Time
}

// AuthEventSink records audit events.
type AuthEventSink interface {
	Record(ctx context.Context, event AuthEvent) error
}
