package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeauth/ldapauthd/internal/adapters/groupstore"
	apperrors "github.com/edgeauth/ldapauthd/internal/errors"
	"github.com/edgeauth/ldapauthd/internal/ports"
)

// groupDirectory is a fakeDirectory preset with one user and a fixed
// group set, counting refreshes.
func groupDirectory(groups []string) *fakeDirectory {
	return &fakeDirectory{
		lookupFunc: func(_ context.Context, username string) (ports.UserEntry, error) {
			return ports.UserEntry{DN: "uid=" + username + ",ou=people,dc=example,dc=org"}, nil
		},
		groupsFunc: func(context.Context, string) ([]string, error) {
			return groups, nil
		},
	}
}

func TestGroupService_CacheHitWithinTTL(t *testing.T) {
	dir := groupDirectory([]string{"admins", "devs"})
	svc := NewGroupService(GroupServiceOptions{
		Directory: dir,
		Store:     groupstore.NewMemory(),
		TTL:       300 * time.Second,
	})

	ctx := context.Background()
	t0 := time.Now()

	got, err := svc.GroupsFor(ctx, "alice", t0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"admins", "devs"}, got)
	assert.Equal(t, 1, dir.groupsCalls, "first call refreshes")

	// Second call inside the TTL window serves the snapshot: exactly
	// one directory refresh total.
	got, err = svc.GroupsFor(ctx, "alice", t0.Add(299*time.Second))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"admins", "devs"}, got)
	assert.Equal(t, 1, dir.groupsCalls)
	assert.Equal(t, 1, dir.lookupCalls)
}

func TestGroupService_RefreshAfterTTL(t *testing.T) {
	dir := groupDirectory([]string{"devs"})
	svc := NewGroupService(GroupServiceOptions{
		Directory: dir,
		Store:     groupstore.NewMemory(),
		TTL:       300 * time.Second,
	})

	ctx := context.Background()
	t0 := time.Now()

	_, err := svc.GroupsFor(ctx, "alice", t0)
	require.NoError(t, err)

	// At exactly the TTL boundary the entry is stale.
	_, err = svc.GroupsFor(ctx, "alice", t0.Add(300*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, dir.groupsCalls)
}

func TestGroupService_EntriesKeyedByUsername(t *testing.T) {
	dir := groupDirectory([]string{"devs"})
	svc := NewGroupService(GroupServiceOptions{
		Directory: dir,
		Store:     groupstore.NewMemory(),
	})

	ctx := context.Background()
	now := time.Now()

	_, err := svc.GroupsFor(ctx, "alice", now)
	require.NoError(t, err)
	_, err = svc.GroupsFor(ctx, "bob", now)
	require.NoError(t, err)

	assert.Equal(t, 2, dir.groupsCalls, "distinct usernames do not share entries")
}

func TestGroupService_FailureCachesNothing(t *testing.T) {
	dirErr := apperrors.DirectoryUnavailable("search failed")
	calls := 0
	dir := &fakeDirectory{
		lookupFunc: func(context.Context, string) (ports.UserEntry, error) {
			calls++
			if calls == 1 {
				return ports.UserEntry{}, dirErr
			}
			return ports.UserEntry{DN: "uid=alice,ou=people,dc=example,dc=org"}, nil
		},
		groupsFunc: func(context.Context, string) ([]string, error) {
			return []string{"devs"}, nil
		},
	}
	store := groupstore.NewMemory()
	svc := NewGroupService(GroupServiceOptions{Directory: dir, Store: store})

	ctx := context.Background()
	now := time.Now()

	_, err := svc.GroupsFor(ctx, "alice", now)
	require.Error(t, err, "failed refresh surfaces, never reads as empty groups")
	assert.Equal(t, 0, store.Len(), "nothing cached on failure")

	// The next call retries the directory rather than trusting a
	// poisoned entry.
	got, err := svc.GroupsFor(ctx, "alice", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"devs"}, got)
}

func TestGroupService_GroupSearchFailurePropagates(t *testing.T) {
	dir := &fakeDirectory{
		lookupFunc: func(context.Context, string) (ports.UserEntry, error) {
			return ports.UserEntry{DN: "uid=alice,ou=people,dc=example,dc=org"}, nil
		},
		groupsFunc: func(context.Context, string) ([]string, error) {
			return nil, apperrors.DirectoryUnavailable("group search failed")
		},
	}
	svc := NewGroupService(GroupServiceOptions{Directory: dir, Store: groupstore.NewMemory()})

	_, err := svc.GroupsFor(context.Background(), "alice", time.Now())
	require.Error(t, err)
	assert.True(t, apperrors.IsDirectoryUnavailable(err))
}

// erroringStore fails reads to exercise the degraded-store path.
type erroringStore struct {
	puts int
	mu   sync.Mutex
}

func (s *erroringStore) Get(context.Context, string) (ports.GroupEntry, bool, error) {
	return ports.GroupEntry{}, false, errors.New("store down")
}

func (s *erroringStore) Put(context.Context, ports.GroupEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	return errors.New("store down")
}

func TestGroupService_BrokenStoreDegradesToMiss(t *testing.T) {
	dir := groupDirectory([]string{"devs"})
	store := &erroringStore{}
	svc := NewGroupService(GroupServiceOptions{Directory: dir, Store: store})

	got, err := svc.GroupsFor(context.Background(), "alice", time.Now())
	require.NoError(t, err, "a broken store must not break the group check")
	assert.Equal(t, []string{"devs"}, got)
	assert.Equal(t, 1, store.puts, "write attempted despite store errors")
}

func TestGroupService_ConcurrentMissesTolerated(t *testing.T) {
	// No single-flight: concurrent misses may each refresh. All callers
	// must still get a correct answer.
	dir := groupDirectory([]string{"devs"})
	svc := NewGroupService(GroupServiceOptions{
		Directory: dir,
		Store:     groupstore.NewMemory(),
	})

	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	results := make([][]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := svc.GroupsFor(ctx, "alice", now)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, []string{"devs"}, got)
	}
	assert.GreaterOrEqual(t, dir.groupsCalls, 1)
}
