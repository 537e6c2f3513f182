package console

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocation(t *testing.T) {
	loc := NewLocation("/")
	assert.Equal(t, "/", loc.Path())

	var seen []string
	unobserve := loc.Observe(func(p string) { seen = append(seen, p) })

	loc.Navigate(context.Background(), "/login")
	loc.Navigate(context.Background(), "/dashboard")
	unobserve()
	loc.Navigate(context.Background(), "/orders")

	assert.Equal(t, "/orders", loc.Path())
	assert.Equal(t, []string{"/login", "/dashboard"}, seen)
}
