package config

import (
	"errors"
	"fmt"
	"strings"
)

// InteractiveMode decides whether redirect intents are recorded.
type InteractiveMode string

const (
	// InteractiveAuto records intents only when stdin is a terminal.
	InteractiveAuto InteractiveMode = "auto"
	// InteractiveAlways always records intents.
	InteractiveAlways InteractiveMode = "true"
	// InteractiveNever never records intents (batch and CI runs).
	InteractiveNever InteractiveMode = "false"
)

// UnmarshalText implements encoding.TextUnmarshaler for InteractiveMode.
func (m *InteractiveMode) UnmarshalText(text []byte) error {
	switch v := strings.ToLower(strings.TrimSpace(string(text))); v {
	case "auto", "":
		*m = InteractiveAuto
	case "true", "1", "yes":
		*m = InteractiveAlways
	case "false", "0", "no":
		*m = InteractiveNever
	default:
		return fmt.Errorf("invalid InteractiveMode: %q (valid options: auto, true, false)", v)
	}
	return nil
}

// ConsoleConfig holds the navigation targets of the session subsystem.
type ConsoleConfig struct {
	LoginPath   string          `env:"CONSOLE_LOGIN_PATH"   envDefault:"/login"`
	LandingPath string          `env:"CONSOLE_LANDING_PATH" envDefault:"/dashboard"`
	Interactive InteractiveMode `env:"CONSOLE_INTERACTIVE"  envDefault:"auto"`
	// Locales enables locale-prefixed landing resolution (e.g. "en,de").
	Locales []string `env:"CONSOLE_LOCALES" envSeparator:","`
}

// Sanitize normalises paths and the locale list.
func (c *ConsoleConfig) Sanitize() {
	c.LoginPath = normalizePath(c.LoginPath, "/login")
	c.LandingPath = normalizePath(c.LandingPath, "/dashboard")
	if c.Interactive == "" {
		c.Interactive = InteractiveAuto
	}
	locales := c.Locales[:0]
	for _, l := range c.Locales {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			locales = append(locales, l)
		}
	}
	c.Locales = locales
}

// Validate rejects navigation targets that would loop.
func (c *ConsoleConfig) Validate() error {
	if c.LoginPath == c.LandingPath {
		return errors.New("CONSOLE_LOGIN_PATH and CONSOLE_LANDING_PATH must differ")
	}
	if strings.ContainsAny(c.LoginPath+c.LandingPath, "?#{} ") {
		return errors.New("console paths must be plain paths without query, fragment or wildcards")
	}
	return nil
}

func normalizePath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
