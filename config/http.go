package config

import "strings"

// HTTPConfig contains the localhost dashboard server configuration.
type HTTPConfig struct {
	// Enabled starts the dashboard with `mmk-console serve`.
	Enabled bool `env:"HTTP_ENABLED" envDefault:"true"`

	// Addr is the address to bind the HTTP server to. Loopback by default;
	// the dashboard carries the operator's session.
	Addr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8088"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr = strings.TrimSpace(h.Addr); h.Addr == "" {
		h.Addr = "127.0.0.1:8088"
	}
}
