package service

import (
	"net/url"
	"slices"
	"strings"
)

// LandingResolver chooses the post-authentication destination.
// hasIntent reports whether a RedirectIntent was stored; intent is its value.
type LandingResolver interface {
	Resolve(intent string, hasIntent bool) string
}

// LandingFunc adapts a plain function to LandingResolver.
type LandingFunc func(intent string, hasIntent bool) string

func (f LandingFunc) Resolve(intent string, hasIntent bool) string { return f(intent, hasIntent) }

// SafeIntentResolver returns the stored intent when it is a safe local path
// other than the login path, and LandingPath otherwise.
type SafeIntentResolver struct {
	LoginPath   string
	LandingPath string
}

func (r SafeIntentResolver) Resolve(intent string, hasIntent bool) string {
	if hasIntent && IsSafeLocalPath(intent) && pathOnly(intent) != r.LoginPath {
		return intent
	}
	return r.LandingPath
}

// LocalePrefixResolver keeps a leading /<locale> segment when routing is locale-prefixed.
// An intent of /de/login counts as the login path. Without a usable intent the
// landing path is prefixed with the locale of Current(), when it has one.
type LocalePrefixResolver struct {
	Locales     []string
	LoginPath   string
	LandingPath string
	Current     func() string
}

func (r LocalePrefixResolver) Resolve(intent string, hasIntent bool) string {
	if hasIntent && IsSafeLocalPath(intent) {
		if _, rest := r.split(pathOnly(intent)); rest != r.LoginPath {
			return intent
		}
	}
	if r.Current == nil {
		return r.LandingPath
	}
	locale, _ := r.split(pathOnly(r.Current()))
	if locale == "" {
		return r.LandingPath
	}
	return "/" + locale + r.LandingPath
}

// split separates a known locale prefix from p. "/de/orders" → ("de", "/orders").
func (r LocalePrefixResolver) split(p string) (string, string) {
	trimmed := strings.TrimPrefix(p, "/")
	head, tail, _ := strings.Cut(trimmed, "/")
	if head == "" || !slices.Contains(r.Locales, head) {
		return "", p
	}
	return head, "/" + tail
}

// IsSafeLocalPath reports whether p is an absolute path on this origin.
// Scheme-relative ("//host"), backslash and absolute URLs are rejected.
func IsSafeLocalPath(p string) bool {
	if p == "" || p[0] != '/' || strings.HasPrefix(p, "//") || strings.ContainsAny(p, "\\\r\n") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil
}

func pathOnly(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}
