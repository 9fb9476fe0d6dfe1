package httpx

import (
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/bloodbridge/ui-gateway/internal/domain/auth"
	"github.com/bloodbridge/ui-gateway/internal/session"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth     AuthServiceInterface
	Sessions *session.Manager
	Backend  ContentService

	CookieDomain    string
	ExternalBaseURL string
	SessionTTL      time.Duration
	Logger          *slog.Logger
}

// NewRouter creates and configures the gateway's HTTP router with session
// resolution and browser detection applied to every route.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:             services.Auth,
		Sessions:        services.Sessions,
		CookieDomain:    services.CookieDomain,
		ExternalBaseURL: services.ExternalBaseURL,
		SessionTTL:      services.SessionTTL,
		Logger:          services.Logger,
	}
	contentHandlers := &ContentHandlers{Backend: services.Backend}
	pages := PageHandlers{}

	registerAuthRoutes(mux, authHandlers)
	registerContentRoutes(mux, contentHandlers)
	registerPageRoutes(mux, pages)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	handler := WithSession(services.Sessions)(mux)
	return BrowserDetection()(handler)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("POST /api/auth/sign-in", h.SignIn)
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("GET /api/auth/session", h.Session)
}

func registerContentRoutes(mux *http.ServeMux, h *ContentHandlers) {
	// Public read-throughs; the backend client still attaches a token when
	// the caller happens to be signed in.
	mux.HandleFunc("GET /api/donations/recent", h.RecentDonationRequests)
	mux.HandleFunc("GET /api/blogs", h.PublishedBlogs)

	authed := RequireCapability(domainauth.CapabilityAuthenticated)
	mux.Handle("GET /api/me", authed(http.HandlerFunc(h.Profile)))
}

func registerPageRoutes(mux *http.ServeMux, pages PageHandlers) {
	authed := RequireCapability(domainauth.CapabilityAuthenticated)
	admin := RequireCapability(domainauth.CapabilityAdmin)
	coordination := RequireCapability(domainauth.CapabilityAdminOrVolunteer)

	mux.Handle("GET /{$}", http.HandlerFunc(pages.Home))
	mux.Handle("GET /dashboard", authed(http.HandlerFunc(pages.Dashboard)))
	mux.Handle("GET /admin", admin(http.HandlerFunc(pages.Admin)))
	mux.Handle("GET /coordination", coordination(http.HandlerFunc(pages.Coordination)))
}
