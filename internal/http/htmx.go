package httpx

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/target/mmk-console/internal/service"
)

// IsHTMX reports whether the request was initiated by htmx (Hx-Request: true).
func IsHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Hx-Request"), "true")
}

// SetHXRedirect instructs htmx to redirect the browser to the given URL.
func SetHXRedirect(w http.ResponseWriter, url string) { w.Header().Set("Hx-Redirect", url) }

// redirect sends the client to target: Hx-Redirect for htmx requests, 303 otherwise.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMX(r) {
		SetHXRedirect(w, target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// currentPath is the path the operator is looking at. For htmx requests that is
// the page in the address bar, not the fragment endpoint being fetched.
func currentPath(r *http.Request) string {
	if IsHTMX(r) {
		if p := localPathFromURL(r.Header.Get("Hx-Current-Url")); p != "" {
			return p
		}
	}
	return r.URL.RequestURI()
}

// localPathFromURL keeps only the path and query of raw, or "" when raw is not
// a URL on this origin.
func localPathFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := u.RequestURI()
	if !service.IsSafeLocalPath(p) {
		return ""
	}
	return p
}
