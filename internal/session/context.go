package session

import "context"

// ctxKey is an unexported context key type for the session store.
type ctxKey struct{}

// NewContext returns a context carrying the session store. The backend
// client's transport reads it to decide whether to attach a bearer token.
func NewContext(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, store)
}

// FromContext extracts the session store from the context, if present.
func FromContext(ctx context.Context) (*Store, bool) {
	store, ok := ctx.Value(ctxKey{}).(*Store)
	return store, ok
}
