package roles

// Package roles resolves a signed-in identity's application role from the
// coordination backend and writes it into the session store. Resolution is
// asynchronous so guards can render a loading state instead of blocking.

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	errorsx "github.com/bloodbridge/ui-gateway/internal/errors"
	"github.com/bloodbridge/ui-gateway/internal/observability/metrics"
	"github.com/bloodbridge/ui-gateway/internal/observability/statsd"
	"github.com/bloodbridge/ui-gateway/internal/ports"
	"github.com/bloodbridge/ui-gateway/internal/session"
)

const defaultLookupTimeout = 5 * time.Second

// Options configures a Resolver.
type Options struct {
	Source  ports.RoleSource
	Logger  *slog.Logger
	Metrics statsd.Sink
	// LookupTimeout bounds a single backend lookup. Defaults to 5s.
	LookupTimeout time.Duration
}

// Resolver watches session stores and resolves roles for their identities.
// Concurrent lookups for the same email are coalesced.
type Resolver struct {
	source  ports.RoleSource
	logger  *slog.Logger
	metrics statsd.Sink
	timeout time.Duration
	group   singleflight.Group
}

// NewResolver creates a Resolver from opts. Source is required.
func NewResolver(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &Resolver{
		source:  opts.Source,
		logger:  logger,
		metrics: opts.Metrics,
		timeout: timeout,
	}
}

// Attach subscribes the resolver to store and returns a cancel function.
// Whenever a fresh identity with an email appears, the backend role is
// looked up and, if the identity is still current when the lookup finishes,
// written back with SetRole. An identity without an email is left with the
// role absent; so is one whose backend record is missing.
func (r *Resolver) Attach(ctx context.Context, store *session.Store) func() {
	a := &attachment{resolver: r, store: store, ctx: ctx}
	unsubscribe := store.Subscribe(a.observe)
	// Cover an identity that was set before we attached.
	go a.observe(store.Snapshot())
	return unsubscribe
}

// attachment tracks one store's last resolved identity so role writes made
// by the resolver itself do not trigger another lookup.
type attachment struct {
	resolver *Resolver
	store    *session.Store
	ctx      context.Context

	mu      sync.Mutex
	lastKey string
}

func (a *attachment) observe(st domainauth.SessionState) {
	if st.Identity == nil {
		a.mu.Lock()
		a.lastKey = ""
		a.mu.Unlock()
		return
	}

	key := st.Identity.SubjectID + "\x00" + st.Identity.Email
	a.mu.Lock()
	if a.lastKey == key {
		a.mu.Unlock()
		return
	}
	a.lastKey = key
	a.mu.Unlock()

	email := st.Identity.Email
	if email == "" {
		return
	}
	go a.resolve(email)
}

func (a *attachment) resolve(email string) {
	started := time.Now()
	role, err := a.resolver.lookup(a.ctx, email)
	elapsed := time.Since(started)
	if err != nil {
		level := slog.LevelWarn
		result := metrics.ResultError
		if errorsx.IsNotFound(err) {
			// No backend record yet; the account may still be registering.
			level = slog.LevelDebug
			result = metrics.ResultMiss
		}
		metrics.EmitRoleResolution(a.resolver.metrics, result, elapsed)
		a.resolver.logger.Log(a.ctx, level, "role resolution failed",
			"email", email,
			"error", err)
		return
	}
	metrics.EmitRoleResolution(a.resolver.metrics, metrics.ResultSuccess, elapsed)

	// Discard the result if the session moved on while we were fetching.
	snap := a.store.Snapshot()
	if snap.Identity == nil || snap.Identity.Email != email {
		return
	}
	a.store.SetRole(role)
}

// lookup fetches the role for email, deduplicating concurrent requests and
// retrying once on transport failure.
func (r *Resolver) lookup(ctx context.Context, email string) (domainauth.Role, error) {
	v, err, _ := r.group.Do(email, func() (any, error) {
		role, err := r.fetchOnce(ctx, email)
		if err != nil && retryable(err) {
			role, err = r.fetchOnce(ctx, email)
		}
		return role, err
	})
	if err != nil {
		return domainauth.RoleAbsent, err
	}
	return v.(domainauth.Role), nil
}

func (r *Resolver) fetchOnce(ctx context.Context, email string) (domainauth.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.source.RoleByEmail(ctx, email)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errorsx.IsNetwork(err) || errorsx.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}
