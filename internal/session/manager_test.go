package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	mocksauth "github.com/bloodbridge/ui-gateway/internal/mocks/auth"
)

func TestManagerIssueAndGet(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	ctx := context.Background()

	id, store := m.Issue(ctx)
	require.NotEmpty(t, id)
	require.NotNil(t, store)

	got, ok := m.Get(ctx, id)
	require.True(t, ok)
	assert.Same(t, store, got)

	_, ok = m.Get(ctx, "unknown")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "")
	assert.False(t, ok)
}

func TestManagerPersistsSnapshots(t *testing.T) {
	t.Parallel()

	persistence := mocksauth.NewMemoryPersistence()
	m := NewManager(ManagerOptions{Persistence: persistence})
	ctx := context.Background()

	id, store := m.Issue(ctx)
	identity := mocksauth.Identity("sub-1", "donor@example.com")
	store.SetIdentity(&identity)
	store.SetRole(domainauth.RoleDonor)

	sess, err := persistence.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess.State.Identity)
	assert.Equal(t, "donor@example.com", sess.State.Identity.Email)
	assert.Equal(t, domainauth.RoleDonor, sess.State.Role)

	// Sign-out removes the persisted record.
	store.SetIdentity(nil)
	_, err = persistence.Get(ctx, id)
	assert.True(t, errorsx.IsNotFound(err))
}

func TestManagerRestoresFromPersistence(t *testing.T) {
	t.Parallel()

	persistence := mocksauth.NewMemoryPersistence()
	identity := mocksauth.Identity("sub-1", "donor@example.com")
	require.NoError(t, persistence.Save(context.Background(), domainauth.Session{
		ID: "restored",
		State: domainauth.SessionState{
			Identity: &identity,
			Role:     domainauth.RoleDonor,
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	prober := &mocksauth.MockIdentityProvider{
		ProbeFunc: func(_ context.Context, subjectID string) (domainauth.Identity, error) {
			return mocksauth.Identity(subjectID, "donor@example.com"), nil
		},
	}
	m := NewManager(ManagerOptions{Persistence: persistence, Prober: prober})

	store, ok := m.Get(context.Background(), "restored")
	require.True(t, ok)

	// The probe confirms asynchronously; until then the session is
	// bootstrapping, never restricted.
	assert.Eventually(t, func() bool {
		snap := store.Snapshot()
		return !snap.Bootstrapping && snap.Identity != nil
	}, time.Second, 5*time.Millisecond)

	snap := store.Snapshot()
	assert.Equal(t, "donor@example.com", snap.Identity.Email)
	assert.Equal(t, domainauth.RoleAbsent, snap.Role, "role is re-resolved after restore")
}

func TestManagerRestoreRejectedByProbe(t *testing.T) {
	t.Parallel()

	persistence := mocksauth.NewMemoryPersistence()
	identity := mocksauth.Identity("sub-1", "donor@example.com")
	require.NoError(t, persistence.Save(context.Background(), domainauth.Session{
		ID:        "revoked",
		State:     domainauth.SessionState{Identity: &identity, Role: domainauth.RoleAdmin},
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	prober := &mocksauth.MockIdentityProvider{
		ProbeFunc: func(context.Context, string) (domainauth.Identity, error) {
			return domainauth.Identity{}, errorsx.Unauthenticated("session revoked")
		},
	}
	m := NewManager(ManagerOptions{Persistence: persistence, Prober: prober})

	store, ok := m.Get(context.Background(), "revoked")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		snap := store.Snapshot()
		return !snap.Bootstrapping && snap.Identity == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domainauth.RoleAbsent, store.Snapshot().Role)
}

func TestManagerDrop(t *testing.T) {
	t.Parallel()

	persistence := mocksauth.NewMemoryPersistence()
	m := NewManager(ManagerOptions{Persistence: persistence})
	ctx := context.Background()

	id, store := m.Issue(ctx)
	identity := mocksauth.Identity("sub-1", "a@example.com")
	store.SetIdentity(&identity)

	m.Drop(ctx, id)

	_, ok := m.Get(ctx, id)
	assert.False(t, ok)
	assert.Zero(t, persistence.Len())
}

func TestManagerExpiresIdleLiveSession(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{TTL: 50 * time.Millisecond})
	ctx := context.Background()

	id, _ := m.Issue(ctx)
	_, ok := m.Get(ctx, id)
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)
	_, ok = m.Get(ctx, id)
	assert.False(t, ok, "a lapsed session must not be revived by the read")
}

// countingSink tallies restore counters keyed by result tag.
type countingSink struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newCountingSink() *countingSink {
	return &countingSink{counts: map[string]int64{}}
}

func (s *countingSink) Count(name string, value int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name+"|"+tags["result"]] += value
}

func (s *countingSink) Timing(string, time.Duration, map[string]string) {}

func (s *countingSink) count(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

func TestManagerRestoreOutcomesAreCounted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	persistence := mocksauth.NewMemoryPersistence()
	valid := mocksauth.Identity("sub-ok", "donor@example.com")
	revoked := mocksauth.Identity("sub-revoked", "gone@example.com")
	require.NoError(t, persistence.Save(ctx, domainauth.Session{
		ID:        "ok",
		State:     domainauth.SessionState{Identity: &valid},
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, persistence.Save(ctx, domainauth.Session{
		ID:        "revoked",
		State:     domainauth.SessionState{Identity: &revoked},
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	prober := &mocksauth.MockIdentityProvider{
		ProbeFunc: func(_ context.Context, subjectID string) (domainauth.Identity, error) {
			if subjectID == "sub-revoked" {
				return domainauth.Identity{}, errorsx.Unauthenticated("session revoked")
			}
			return mocksauth.Identity(subjectID, "donor@example.com"), nil
		},
	}
	sink := newCountingSink()
	m := NewManager(ManagerOptions{Persistence: persistence, Prober: prober, Metrics: sink})

	_, ok := m.Get(ctx, "ok")
	require.True(t, ok)
	_, ok = m.Get(ctx, "revoked")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		return sink.count("session.restore|success") == 1 &&
			sink.count("session.restore|miss") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestManagerWatchSeesExistingAndFutureStores(t *testing.T) {
	t.Parallel()

	m := NewManager(ManagerOptions{})
	ctx := context.Background()

	_, first := m.Issue(ctx)

	var seen []*Store
	m.Watch(func(_ string, store *Store) {
		seen = append(seen, store)
	})
	require.Len(t, seen, 1)
	assert.Same(t, first, seen[0])

	_, second := m.Issue(ctx)
	require.Len(t, seen, 2)
	assert.Same(t, second, seen[1])
}
