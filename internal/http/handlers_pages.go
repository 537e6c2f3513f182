package httpx

import (
	"net/http"
	"regexp"
	"strings"
)

var sectionName = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// PageHandlers serves the protected console pages. Admin resources are
// rendered by the backend UI; these pages only confirm the session.
type PageHandlers struct {
	Renderer *Renderer
}

// Dashboard renders the landing page.
// GET /dashboard.
func (h *PageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "Dashboard")
}

// Section renders a protected section placeholder.
// GET /{section}.
func (h *PageHandlers) Section(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("section")
	if !sectionName.MatchString(name) {
		http.NotFound(w, r)
		return
	}
	h.render(w, r, sectionTitle(name))
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, title string) {
	id, _ := IdentityFromContext(r.Context())
	h.Renderer.Render(w, r, "section", http.StatusOK, PageData{
		Title:     title,
		Identity:  id,
		CSRFToken: CSRFTokenFromContext(r.Context()),
	})
}

// sectionTitle turns "alert-sinks" into "Alert sinks".
func sectionTitle(name string) string {
	s := strings.ReplaceAll(name, "-", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}
