package roles

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	mocksauth "github.com/bloodbridge/ui-gateway/internal/mocks/auth"
	"github.com/bloodbridge/ui-gateway/internal/session"
)

const eventually = 2 * time.Second

func attachResolver(t *testing.T, source *mocksauth.StubRoleSource, store *session.Store) {
	t.Helper()
	resolver := NewResolver(Options{Source: source})
	cancel := resolver.Attach(context.Background(), store)
	t.Cleanup(cancel)
}

func TestResolvesRoleAfterSignIn(t *testing.T) {
	t.Parallel()

	source := &mocksauth.StubRoleSource{
		Roles: map[string]domainauth.Role{"admin@example.com": domainauth.RoleAdmin},
	}
	store := session.NewStore()
	attachResolver(t, source, store)

	identity := mocksauth.Identity("sub-1", "admin@example.com")
	store.SetIdentity(&identity)

	assert.Eventually(t, func() bool {
		return store.Snapshot().Role == domainauth.RoleAdmin
	}, eventually, 10*time.Millisecond)
}

func TestResolvesIdentitySetBeforeAttach(t *testing.T) {
	t.Parallel()

	source := &mocksauth.StubRoleSource{
		Roles: map[string]domainauth.Role{"vol@example.com": domainauth.RoleVolunteer},
	}
	store := session.NewStore()
	identity := mocksauth.Identity("sub-1", "vol@example.com")
	store.SetIdentity(&identity)

	attachResolver(t, source, store)

	assert.Eventually(t, func() bool {
		return store.Snapshot().Role == domainauth.RoleVolunteer
	}, eventually, 10*time.Millisecond)
}

func TestIdentityWithoutEmailSkipsLookup(t *testing.T) {
	t.Parallel()

	source := &mocksauth.StubRoleSource{}
	store := session.NewStore()
	attachResolver(t, source, store)

	identity := mocksauth.Identity("sub-anon", "")
	store.SetIdentity(&identity)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, source.Lookups())
	snap := store.Snapshot()
	assert.Equal(t, domainauth.RoleAbsent, snap.Role)
	assert.True(t, snap.RolePending())
}

func TestStaleResultDiscardedAfterIdentityChange(t *testing.T) {
	t.Parallel()

	source := &mocksauth.StubRoleSource{
		Roles: map[string]domainauth.Role{
			"old@example.com": domainauth.RoleAdmin,
			"new@example.com": domainauth.RoleDonor,
		},
		Delay: 150 * time.Millisecond,
	}
	store := session.NewStore()
	attachResolver(t, source, store)

	oldIdentity := mocksauth.Identity("sub-old", "old@example.com")
	store.SetIdentity(&oldIdentity)

	// Replace the identity while the first lookup is still in flight.
	newIdentity := mocksauth.Identity("sub-new", "new@example.com")
	store.SetIdentity(&newIdentity)

	assert.Eventually(t, func() bool {
		return store.Snapshot().Role == domainauth.RoleDonor
	}, eventually, 10*time.Millisecond)

	// The late result for the old identity never lands.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, domainauth.RoleDonor, store.Snapshot().Role)
}

func TestStaleResultDiscardedAfterSignOut(t *testing.T) {
	t.Parallel()

	source := &mocksauth.StubRoleSource{
		Roles: map[string]domainauth.Role{"a@example.com": domainauth.RoleAdmin},
		Delay: 100 * time.Millisecond,
	}
	store := session.NewStore()
	attachResolver(t, source, store)

	identity := mocksauth.Identity("sub-1", "a@example.com")
	store.SetIdentity(&identity)
	store.SetIdentity(nil)

	time.Sleep(250 * time.Millisecond)
	snap := store.Snapshot()
	assert.Nil(t, snap.Identity)
	assert.Equal(t, domainauth.RoleAbsent, snap.Role)
}

func TestMissingBackendRecordLeavesRoleAbsent(t *testing.T) {
	t.Parallel()

	source := &mocksauth.StubRoleSource{}
	store := session.NewStore()
	attachResolver(t, source, store)

	identity := mocksauth.Identity("sub-1", "ghost@example.com")
	store.SetIdentity(&identity)

	assert.Eventually(t, func() bool {
		return len(source.Lookups()) == 1
	}, eventually, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	snap := store.Snapshot()
	require.NotNil(t, snap.Identity)
	assert.Equal(t, domainauth.RoleAbsent, snap.Role)
	assert.Len(t, source.Lookups(), 1, "a missing record is not retried")
}

func TestRoleWriteDoesNotTriggerAnotherLookup(t *testing.T) {
	t.Parallel()

	source := &mocksauth.StubRoleSource{
		Roles: map[string]domainauth.Role{"a@example.com": domainauth.RoleDonor},
	}
	store := session.NewStore()
	attachResolver(t, source, store)

	identity := mocksauth.Identity("sub-1", "a@example.com")
	store.SetIdentity(&identity)

	assert.Eventually(t, func() bool {
		return store.Snapshot().Role == domainauth.RoleDonor
	}, eventually, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, source.Lookups(), 1)
}

// recordingSink captures emitted counters keyed by "name|result".
type recordingSink struct {
	mu      sync.Mutex
	counts  map[string]int64
	timings map[string]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{counts: map[string]int64{}, timings: map[string]int{}}
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name+"|"+tags["result"]] += value
}

func (s *recordingSink) Timing(name string, _ time.Duration, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timings[name+"|"+tags["result"]]++
}

func (s *recordingSink) count(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

func (s *recordingSink) timing(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timings[key]
}

func TestLookupOutcomesAreCounted(t *testing.T) {
	t.Parallel()

	source := &mocksauth.StubRoleSource{
		Roles: map[string]domainauth.Role{"donor@example.com": domainauth.RoleDonor},
	}
	sink := newRecordingSink()
	store := session.NewStore()
	resolver := NewResolver(Options{Source: source, Metrics: sink})
	cancel := resolver.Attach(context.Background(), store)
	t.Cleanup(cancel)

	identity := mocksauth.Identity("sub-1", "donor@example.com")
	store.SetIdentity(&identity)
	assert.Eventually(t, func() bool {
		return sink.count("roles.resolution|success") == 1
	}, eventually, 10*time.Millisecond)
	assert.Equal(t, 1, sink.timing("roles.resolution_duration|success"))

	// A missing backend record counts as a miss, not an error.
	ghost := mocksauth.Identity("sub-2", "ghost@example.com")
	store.SetIdentity(&ghost)
	assert.Eventually(t, func() bool {
		return sink.count("roles.resolution|miss") == 1
	}, eventually, 10*time.Millisecond)

	source.Err = errorsx.Internal("backend down")
	broken := mocksauth.Identity("sub-3", "broken@example.com")
	store.SetIdentity(&broken)
	assert.Eventually(t, func() bool {
		return sink.count("roles.resolution|error") == 1
	}, eventually, 10*time.Millisecond)
}

type flakySource struct {
	calls atomic.Int32
	role  domainauth.Role
}

func (f *flakySource) RoleByEmail(context.Context, string) (domainauth.Role, error) {
	if f.calls.Add(1) == 1 {
		return domainauth.RoleAbsent, errorsx.Wrap(context.DeadlineExceeded, errorsx.ErrCodeNetwork, "backend unreachable")
	}
	return f.role, nil
}

func TestTransportFailureRetriedOnce(t *testing.T) {
	t.Parallel()

	source := &flakySource{role: domainauth.RoleVolunteer}
	store := session.NewStore()
	resolver := NewResolver(Options{Source: source})
	cancel := resolver.Attach(context.Background(), store)
	t.Cleanup(cancel)

	identity := mocksauth.Identity("sub-1", "vol@example.com")
	store.SetIdentity(&identity)

	assert.Eventually(t, func() bool {
		return store.Snapshot().Role == domainauth.RoleVolunteer
	}, eventually, 10*time.Millisecond)
	assert.Equal(t, int32(2), source.calls.Load())
}
