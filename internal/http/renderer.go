package httpx

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

const pageTemplates = `
{{define "layout"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · merrymaker console</title>
{{if .AutoRefresh}}<meta http-equiv="refresh" content="1">{{end}}
</head>
<body>
{{if .Identity}}<header>
<span>Signed in as {{if .Identity.Name}}{{.Identity.Name}}{{else}}{{.Identity.ID}}{{end}}</span>
<form method="post" action="/logout"><input type="hidden" name="csrf_token" value="{{.CSRFToken}}"><button type="submit">Sign out</button></form>
</header>{{end}}
<main>{{template "content" .}}</main>
</body>
</html>{{end}}

{{define "loading"}}{{template "layout" .}}{{end}}
{{define "loading-content"}}<p aria-busy="true">Checking your session…</p>{{end}}

{{define "login"}}{{template "layout" .}}{{end}}
{{define "login-content"}}<h1>Sign in</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="{{.LoginPath}}">
<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
<label>Username <input name="username" autocomplete="username" value="{{.Username}}" required></label>
<label>Password <input name="password" type="password" autocomplete="current-password" required></label>
<button type="submit">Sign in</button>
</form>{{end}}

{{define "section"}}{{template "layout" .}}{{end}}
{{define "section-content"}}<h1>{{.Title}}</h1>
{{with .Identity}}<dl>
<dt>User</dt><dd>{{.ID}}</dd>
{{if .Email}}<dt>Email</dt><dd>{{.Email}}</dd>{{end}}
{{if not .CreatedAt.IsZero}}<dt>Member since</dt><dd>{{.CreatedAt.Format "2006-01-02"}}</dd>{{end}}
</dl>{{end}}{{end}}
`

// PageData is the view model shared by every console page.
type PageData struct {
	Title       string
	Identity    *domainauth.Identity
	CSRFToken   string
	LoginPath   string
	Username    string
	Error       string
	AutoRefresh bool
}

// Renderer renders the console's built-in pages.
type Renderer struct {
	tmpl   *template.Template
	logger *slog.Logger
}

// NewRenderer parses the page templates.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := template.New("pages").Parse(pageTemplates)
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl, logger: logger}, nil
}

// Render executes page ("loading", "login" or "section") with its matching
// content block and writes it with status code.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, page string, code int, data PageData) {
	content := rd.tmpl.Lookup(page + "-content")
	if content == nil {
		rd.logger.ErrorContext(r.Context(), "unknown page", "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	t, err := rd.tmpl.Clone()
	if err == nil {
		_, err = t.AddParseTree("content", content.Tree)
	}
	var buf bytes.Buffer
	if err == nil {
		err = t.ExecuteTemplate(&buf, page, data)
	}
	if err != nil {
		rd.logger.ErrorContext(r.Context(), "render page", "page", page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Client went away.
		return
	}
}

// Placeholder is the neutral page shown while the session check runs.
// It reloads itself until the guard decides.
func (rd *Renderer) Placeholder() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rd.Render(w, r, "loading", http.StatusOK, PageData{Title: "Loading", AutoRefresh: true})
	})
}
