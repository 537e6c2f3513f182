package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeIntentResolver(t *testing.T) {
	r := SafeIntentResolver{LoginPath: "/login", LandingPath: "/dashboard"}

	tests := []struct {
		name      string
		intent    string
		hasIntent bool
		want      string
	}{
		{name: "no intent", want: "/dashboard"},
		{name: "plain path", intent: "/orders", hasIntent: true, want: "/orders"},
		{name: "path with query", intent: "/orders?page=2", hasIntent: true, want: "/orders?page=2"},
		{name: "login path", intent: "/login", hasIntent: true, want: "/dashboard"},
		{name: "login path with query", intent: "/login?next=x", hasIntent: true, want: "/dashboard"},
		{name: "absolute URL", intent: "https://evil.example/x", hasIntent: true, want: "/dashboard"},
		{name: "scheme relative", intent: "//evil.example/x", hasIntent: true, want: "/dashboard"},
		{name: "backslash", intent: "/\\evil.example", hasIntent: true, want: "/dashboard"},
		{name: "relative", intent: "orders", hasIntent: true, want: "/dashboard"},
		{name: "empty but present", intent: "", hasIntent: true, want: "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.intent, tt.hasIntent))
		})
	}
}

func TestLocalePrefixResolver(t *testing.T) {
	current := "/de/orders"
	r := LocalePrefixResolver{
		Locales:     []string{"en", "de"},
		LoginPath:   "/login",
		LandingPath: "/dashboard",
		Current:     func() string { return current },
	}

	assert.Equal(t, "/de/sites", r.Resolve("/de/sites", true))
	assert.Equal(t, "/de/dashboard", r.Resolve("/de/login", true), "localized login path is not a destination")
	assert.Equal(t, "/de/dashboard", r.Resolve("", false))

	current = "/orders"
	assert.Equal(t, "/dashboard", r.Resolve("", false), "no locale in current path")

	current = "/fr/orders"
	assert.Equal(t, "/dashboard", r.Resolve("", false), "unknown locale")

	r.Current = nil
	assert.Equal(t, "/dashboard", r.Resolve("//evil", true))
}

func TestLandingFunc(t *testing.T) {
	f := LandingFunc(func(intent string, ok bool) string {
		if ok {
			return "/x" + intent
		}
		return "/none"
	})
	assert.Equal(t, "/x/a", f.Resolve("/a", true))
	assert.Equal(t, "/none", f.Resolve("", false))
}

func TestIsSafeLocalPath(t *testing.T) {
	assert.True(t, IsSafeLocalPath("/"))
	assert.True(t, IsSafeLocalPath("/a/b?c=d#e"))
	assert.False(t, IsSafeLocalPath(""))
	assert.False(t, IsSafeLocalPath("//x"))
	assert.False(t, IsSafeLocalPath("/a\nb"))
	assert.False(t, IsSafeLocalPath("javascript:alert(1)"))
}
