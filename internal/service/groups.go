package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgeauth/ldapauthd/internal/ports"
)

// DefaultGroupTTL is how long a cached membership snapshot stays fresh.
const DefaultGroupTTL = 300 * time.Second

// GroupServiceOptions groups dependencies for GroupService.
type GroupServiceOptions struct {
	Directory ports.Directory
	Store     ports.GroupStore
	TTL       time.Duration
	Logger    *slog.Logger
}

// GroupService resolves a user's group memberships, trusting a cached
// snapshot for up to TTL before refreshing through the directory.
//
// Concurrent callers refreshing the same username may each hit the
// directory; there is deliberately no single-flight deduplication. The
// store replaces entries wholesale, so the races are benign and the
// directory-call counts stay predictable.
type GroupService struct {
	directory ports.Directory
	store     ports.GroupStore
	ttl       time.Duration
	logger    *slog.Logger
}

// NewGroupService constructs a new GroupService.
func NewGroupService(opts GroupServiceOptions) *GroupService {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultGroupTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupService{
		directory: opts.Directory,
		store:     opts.Store,
		ttl:       ttl,
		logger:    logger,
	}
}

// GroupsFor returns the group names username belongs to as of at most
// TTL ago. On a stale or missing entry it refreshes through the
// directory; a refresh failure returns an error and caches nothing, so
// the caller sees "could not be checked" rather than "no groups".
func (s *GroupService) GroupsFor(ctx context.Context, username string, now time.Time) ([]string, error) {
	entry, ok, err := s.store.Get(ctx, username)
	if err != nil {
		// A broken store degrades to a cache miss; the directory is
		// still the source of truth.
		s.logger.WarnContext(ctx, "group store read failed", "username", username, "error", err)
	} else if ok && now.Sub(entry.FetchedAt) < s.ttl {
		return entry.Groups, nil
	}

	groups, err := s.refresh(ctx, username, now)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// refresh resolves the user's DN and collects the groups referencing
// it. No lock is held here: the store serializes only its own map
// access, never the directory round-trips.
func (s *GroupService) refresh(ctx context.Context, username string, now time.Time) ([]string, error) {
	user, err := s.directory.LookupUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolve DN for %q: %w", username, err)
	}

	groups, err := s.directory.UserGroups(ctx, user.DN)
	if err != nil {
		return nil, fmt.Errorf("fetch groups for %q: %w", username, err)
	}

	if putErr := s.store.Put(ctx, ports.GroupEntry{
		Username:  username,
		Groups:    groups,
		FetchedAt: now,
	}); putErr != nil {
		// The fetched result is still good; only the next caller pays
		// for the failed write with an extra refresh.
		s.logger.WarnContext(ctx, "group store write failed", "username", username, "error", putErr)
	}

	return groups, nil
}
