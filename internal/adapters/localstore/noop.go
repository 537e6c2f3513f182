package localstore

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/target/mmk-console/internal/ports"
)

var (
	_ ports.TokenStore  = Noop{}
	_ ports.IntentStore = Noop{}
)

// Noop is the store used in non-interactive execution contexts.
// Reads report absent and writes are ignored; nothing ever errors.
type Noop struct{}

func (Noop) Get(context.Context) (string, bool, error)  { return "", false, nil }
func (Noop) Set(context.Context, string) error          { return nil }
func (Noop) Clear(context.Context) error                { return nil }
func (Noop) Save(context.Context, string) error         { return nil }
func (Noop) Take(context.Context) (string, bool, error) { return "", false, nil }

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
