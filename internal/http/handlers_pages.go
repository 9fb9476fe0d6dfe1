package httpx

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/bloodbridge/ui-gateway/internal/session"
)

// PageHandlers serves the gateway's minimal HTML surface. The real frontend
// is served separately; these pages exist so guarded browser navigation has
// concrete targets.
type PageHandlers struct{}

func (PageHandlers) Home(w http.ResponseWriter, r *http.Request) {
	writePage(w, "BloodBridge", "Welcome to BloodBridge.", r)
}

func (PageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	writePage(w, "Dashboard", "Your donation dashboard.", r)
}

func (PageHandlers) Admin(w http.ResponseWriter, r *http.Request) {
	writePage(w, "Administration", "Platform administration.", r)
}

func (PageHandlers) Coordination(w http.ResponseWriter, r *http.Request) {
	writePage(w, "Coordination", "Donation request coordination.", r)
}

func writePage(w http.ResponseWriter, title, body string, r *http.Request) {
	greeting := ""
	if store, ok := session.FromContext(r.Context()); ok {
		if snap := store.Snapshot(); snap.Identity != nil {
			name := snap.Identity.DisplayName
			if name == "" {
				name = snap.Identity.Email
			}
			greeting = fmt.Sprintf("Signed in as %s (%s).",
				template.HTMLEscapeString(name), snap.Role)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<!doctype html><title>%s</title><h1>%s</h1><p>%s</p><p>%s</p>",
		template.HTMLEscapeString(title), template.HTMLEscapeString(title), body, greeting)
}
