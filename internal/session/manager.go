package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/observability/metrics"
	"github.com/bloodbridge/ui-gateway/internal/observability/statsd"
	"github.com/bloodbridge/ui-gateway/internal/ports"
)

const (
	defaultSessionTTL = 24 * time.Hour
	probeTimeout      = 10 * time.Second
)

// ManagerOptions groups dependencies for Manager.
type ManagerOptions struct {
	// Persistence stores snapshots across gateway restarts. Optional;
	// when nil, sessions live only in process memory.
	Persistence ports.SessionPersistence

	// Prober re-validates restored identities against the provider.
	// Optional; when nil, restored identities are applied as-is.
	Prober ports.SessionProber

	// TTL is the session lifetime, refreshed on every mutation.
	TTL time.Duration

	Metrics statsd.Sink
	Logger  *slog.Logger
}

// Manager owns the cookie-ID to Store association. It issues session IDs,
// keeps live stores, persists snapshots through the persistence port, and
// restores sessions after a restart.
type Manager struct {
	persistence ports.SessionPersistence
	prober      ports.SessionProber
	ttl         time.Duration
	metrics     statsd.Sink
	logger      *slog.Logger

	mu       sync.Mutex
	live     map[string]*liveSession
	watchers []func(sessionID string, store *Store)
}

type liveSession struct {
	store     *Store
	expiresAt time.Time
}

// NewManager constructs a Manager.
func NewManager(opts ManagerOptions) *Manager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		persistence: opts.Persistence,
		prober:      opts.Prober,
		ttl:         ttl,
		metrics:     opts.Metrics,
		logger:      logger,
		live:        make(map[string]*liveSession),
	}
}

// Watch registers fn to be called once for every live store, current and
// future. The role resolver attaches through this hook so the observation
// is established exactly once per session.
func (m *Manager) Watch(fn func(sessionID string, store *Store)) {
	m.mu.Lock()
	m.watchers = append(m.watchers, fn)
	existing := make(map[string]*Store, len(m.live))
	for id, ls := range m.live {
		existing[id] = ls.store
	}
	m.mu.Unlock()

	for id, store := range existing {
		fn(id, store)
	}
}

// Issue creates a fresh session and returns its opaque ID and store.
func (m *Manager) Issue(ctx context.Context) (string, *Store) {
	id := uuid.NewString()
	store := NewStore()
	m.adopt(id, store)
	return id, store
}

// Get returns the store for a session ID. A miss in process memory falls
// back to persistence; restored sessions re-enter the bootstrapping window
// until the provider confirms (or rejects) the restored identity.
func (m *Manager) Get(ctx context.Context, id string) (*Store, bool) {
	if id == "" {
		return nil, false
	}

	m.mu.Lock()
	if ls, ok := m.live[id]; ok {
		if time.Now().After(ls.expiresAt) {
			// Lapsed in memory; fall through to persistence, which has
			// its own expiry.
			delete(m.live, id)
		} else {
			ls.expiresAt = time.Now().Add(m.ttl)
			m.mu.Unlock()
			return ls.store, true
		}
	}
	m.mu.Unlock()

	if m.persistence == nil {
		return nil, false
	}
	sess, err := m.persistence.Get(ctx, id)
	if err != nil {
		if !errorsx.IsNotFound(err) {
			m.logger.WarnContext(ctx, "session restore failed", "error", err)
		}
		return nil, false
	}

	store := NewStore()
	store.restore(sess.State)
	m.adopt(id, store)
	m.confirmRestored(id, store, sess.State.Identity)
	return store, true
}

// Drop forgets the session in memory and in persistence. Used on sign-out.
func (m *Manager) Drop(ctx context.Context, id string) {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()

	if m.persistence == nil {
		return
	}
	if err := m.persistence.Delete(ctx, id); err != nil {
		m.logger.WarnContext(ctx, "session delete failed", "session_id", id, "error", err)
	}
}

// adopt registers the store, wires snapshot persistence, sweeps expired
// live entries, and announces the store to watchers.
func (m *Manager) adopt(id string, store *Store) {
	now := time.Now()

	m.mu.Lock()
	for key, ls := range m.live {
		if now.After(ls.expiresAt) {
			delete(m.live, key)
		}
	}
	m.live[id] = &liveSession{store: store, expiresAt: now.Add(m.ttl)}
	watchers := append(([]func(string, *Store))(nil), m.watchers...)
	m.mu.Unlock()

	if m.persistence != nil {
		store.Subscribe(func(snap domainauth.SessionState) {
			m.persist(id, snap)
		})
	}

	for _, fn := range watchers {
		fn(id, store)
	}
}

// persist writes the latest snapshot, or deletes the record once the
// session is signed out.
func (m *Manager) persist(id string, snap domainauth.SessionState) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if snap.Identity == nil {
		if err := m.persistence.Delete(ctx, id); err != nil {
			m.logger.Warn("session delete failed", "session_id", id, "error", err)
		}
		return
	}

	snap.Bootstrapping = false
	sess := domainauth.Session{ID: id, State: snap, ExpiresAt: time.Now().Add(m.ttl)}
	if err := m.persistence.Save(ctx, sess); err != nil {
		m.logger.Warn("session save failed", "session_id", id, "error", err)
	}
}

// confirmRestored asks the provider whether the restored identity is still
// valid. Confirmation and rejection both land through SetIdentity so the
// usual mutation path (role reset, resolver trigger) applies. A transport
// failure applies the restored identity as-is rather than leaving the
// session stuck in the bootstrapping window.
func (m *Manager) confirmRestored(id string, store *Store, restored *domainauth.Identity) {
	if restored == nil {
		store.SetIdentity(nil)
		metrics.EmitSessionRestore(m.metrics, metrics.ResultSuccess)
		return
	}
	if m.prober == nil {
		store.SetIdentity(restored)
		metrics.EmitSessionRestore(m.metrics, metrics.ResultSuccess)
		return
	}

	subjectID := restored.SubjectID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()

		identity, err := m.prober.Probe(ctx, subjectID)
		switch {
		case err == nil:
			store.SetIdentity(&identity)
			metrics.EmitSessionRestore(m.metrics, metrics.ResultSuccess)
		case errorsx.IsNotFound(err) || errorsx.IsUnauthenticated(err):
			m.logger.Info("restored session no longer valid", "session_id", id)
			store.SetIdentity(nil)
			metrics.EmitSessionRestore(m.metrics, metrics.ResultMiss)
		default:
			m.logger.Warn("session probe failed, applying restored identity",
				"session_id", id, "error", err)
			store.SetIdentity(restored)
			metrics.EmitSessionRestore(m.metrics, metrics.ResultError)
		}
	}()
}
