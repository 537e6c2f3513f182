package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/jwtcodec"
	"github.com/target/mmk-console/internal/bootstrap"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"golang.org/x/term"
)

const defaultCommandTimeout = 30 * time.Second

// statusError ends a command with a message on stderr and a non-zero status.
type statusError struct {
	msg  string
	code int
}

func (e *statusError) Error() string { return e.msg }
func (e *statusError) ExitCode() int { return e.code }

var errNotSignedIn = &statusError{msg: "not signed in", code: 1}

type commandOptions struct {
	Timeout time.Duration
}

func newFlagSet(name string, stderr io.Writer, opts *commandOptions) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum time to wait for the identity backend")
	return fs
}

// openConsole wires the session subsystem and waits for the initial check.
func openConsole(ctx context.Context, cmdCtx *commandContext) (*bootstrap.Console, error) {
	cfg := cmdCtx.Config
	c, err := bootstrap.NewConsole(ctx, bootstrap.ConsoleDeps{Config: &cfg, Logger: cmdCtx.Logger})
	if err != nil {
		return nil, err
	}
	if err := c.WaitReady(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("wait for session check: %w", err), c.Close())
	}
	return c, nil
}

func closeConsole(cmdCtx *commandContext, c *bootstrap.Console) {
	if err := c.Close(); err != nil {
		cmdCtx.Logger.Warn("close console failed", "error", err)
	}
}

func runServe(cmdCtx *commandContext, args []string) error {
	var opts commandOptions
	fs := newFlagSet("serve", cmdCtx.Stderr, &opts)
	addr := fs.String("addr", cmdCtx.Config.HTTP.Addr, "Address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := cmdCtx.Config
	if !cfg.HTTP.Enabled {
		return errors.New("HTTP_ENABLED=false; nothing to serve")
	}
	// The dashboard is driven from a browser even when the process has no terminal.
	if cfg.Console.Interactive == config.InteractiveAuto {
		cfg.Console.Interactive = config.InteractiveAlways
	}

	ctx := cmdCtx.Ctx
	c, err := bootstrap.NewConsole(ctx, bootstrap.ConsoleDeps{Config: &cfg, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}
	defer closeConsole(cmdCtx, c)

	srv, err := bootstrap.StartHTTPServer(bootstrap.HTTPServerConfig{
		HTTP:    config.HTTPConfig{Enabled: true, Addr: *addr},
		Console: c,
		Logger:  cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	cmdCtx.Logger.InfoContext(ctx, "console ready",
		"url", "http://"+srv.Addr+c.LandingPath,
		"auth_mode", string(cfg.Auth.Mode),
		"store", c.Stores.Location)

	<-ctx.Done()
	return bootstrap.ShutdownHTTPServer(bootstrap.ShutdownConfig{
		Context: ctx,
		Server:  srv,
		Timeout: opts.Timeout,
		Logger:  cmdCtx.Logger,
	})
}

func runLogin(cmdCtx *commandContext, args []string) error {
	var opts commandOptions
	fs := newFlagSet("login", cmdCtx.Stderr, &opts)
	username := fs.String("username", "", "Username (prompted when empty)")
	passwordStdin := fs.Bool("password-stdin", false, "Read the password from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	c, err := openConsole(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeConsole(cmdCtx, c)
	if !c.Interactive {
		return errors.New("no terminal: the session cannot be stored; set CONSOLE_INTERACTIVE=true to log in from a script")
	}

	creds, err := readCredentials(cmdCtx, strings.TrimSpace(*username), *passwordStdin)
	if err != nil {
		return err
	}

	if err := c.Session.Login(ctx, creds); err != nil {
		if apperrors.IsLogin(err) {
			return &statusError{msg: "login failed: invalid username or password", code: 1}
		}
		return err
	}

	st := c.Session.State()
	if !st.IsAuthenticated || st.Identity == nil {
		return &statusError{msg: "login succeeded but the session could not be verified", code: 1}
	}
	return writef(cmdCtx.Stdout, "Signed in as %s\n", displayName(st.Identity))
}

func readCredentials(cmdCtx *commandContext, username string, passwordStdin bool) (domainauth.Credentials, error) {
	in := bufio.NewReader(cmdCtx.Stdin)
	tty := isTerminal(cmdCtx.Stdin)

	if username == "" {
		if !tty && !passwordStdin {
			return domainauth.Credentials{}, errors.New("-username is required when stdin is not a terminal")
		}
		if err := writef(cmdCtx.Stderr, "Username: "); err != nil {
			return domainauth.Credentials{}, err
		}
		line, err := readLine(in)
		if err != nil {
			return domainauth.Credentials{}, fmt.Errorf("read username: %w", err)
		}
		username = line
	}

	var password string
	switch {
	case passwordStdin:
		line, err := readLine(in)
		if err != nil {
			return domainauth.Credentials{}, fmt.Errorf("read password: %w", err)
		}
		password = line
	case tty:
		if err := writef(cmdCtx.Stderr, "Password: "); err != nil {
			return domainauth.Credentials{}, err
		}
		f, _ := cmdCtx.Stdin.(*os.File)
		raw, err := term.ReadPassword(int(f.Fd()))
		_ = writeln(cmdCtx.Stderr)
		if err != nil {
			return domainauth.Credentials{}, fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	default:
		return domainauth.Credentials{}, errors.New("use -password-stdin when stdin is not a terminal")
	}

	if username == "" || password == "" {
		return domainauth.Credentials{}, apperrors.Validation("username and password are required")
	}
	return domainauth.Credentials{Username: username, Password: password}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runLogout(cmdCtx *commandContext, args []string) error {
	var opts commandOptions
	fs := newFlagSet("logout", cmdCtx.Stderr, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	c, err := openConsole(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeConsole(cmdCtx, c)

	c.Session.Logout(ctx)
	return writeln(cmdCtx.Stdout, "Signed out")
}

func runWhoami(cmdCtx *commandContext, args []string) error {
	var opts commandOptions
	fs := newFlagSet("whoami", cmdCtx.Stderr, &opts)
	asJSON := fs.Bool("json", false, "Print the user as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	c, err := openConsole(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeConsole(cmdCtx, c)

	st := c.Session.State()
	if !st.IsAuthenticated || st.Identity == nil {
		return errNotSignedIn
	}
	if *asJSON {
		return writeJSON(cmdCtx.Stdout, newUserView(st.Identity))
	}
	return writef(cmdCtx.Stdout, "%s\n", displayName(st.Identity))
}

// backendReader is the authenticated read path of the REST identity backend.
type backendReader interface {
	GetJSON(ctx context.Context, path string, out any) error
}

func runGet(cmdCtx *commandContext, args []string) error {
	var opts commandOptions
	fs := newFlagSet("get", cmdCtx.Stderr, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || !strings.HasPrefix(fs.Arg(0), "/") {
		return errors.New("usage: mmk-console get [-timeout d] /api/path")
	}
	path := fs.Arg(0)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	c, err := openConsole(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeConsole(cmdCtx, c)

	reader, ok := c.Identity.(backendReader)
	if !ok {
		return fmt.Errorf("get requires AUTH_MODE=rest (current: %s)", cmdCtx.Config.Auth.Mode)
	}
	if !c.Session.State().IsAuthenticated {
		return errNotSignedIn
	}

	var out json.RawMessage
	if err := reader.GetJSON(ctx, path, &out); err != nil {
		return err
	}
	return writeJSON(cmdCtx.Stdout, out)
}

type userView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func newUserView(id *domainauth.Identity) *userView {
	if id == nil {
		return nil
	}
	v := &userView{ID: id.ID, Name: id.Name, Email: id.Email}
	if !id.CreatedAt.IsZero() {
		created := id.CreatedAt
		v.CreatedAt = &created
	}
	return v
}

func displayName(id *domainauth.Identity) string {
	switch {
	case id.Name != "" && id.Email != "":
		return fmt.Sprintf("%s <%s>", id.Name, id.Email)
	case id.Name != "":
		return id.Name
	case id.Email != "":
		return id.Email
	default:
		return id.ID
	}
}

type statusView struct {
	Phase         domainauth.Phase `json:"phase"`
	Authenticated bool             `json:"authenticated"`
	User          *userView        `json:"user,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	AuthMode      string           `json:"auth_mode"`
	StoreBackend  string           `json:"store_backend"`
	Store         string           `json:"store"`
	Interactive   bool             `json:"interactive"`
	LoginPath     string           `json:"login_path"`
	LandingPath   string           `json:"landing_path"`
}

func runStatus(cmdCtx *commandContext, args []string) error {
	var opts commandOptions
	fs := newFlagSet("status", cmdCtx.Stderr, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	c, err := openConsole(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer closeConsole(cmdCtx, c)

	st := c.Session.State()
	view := statusView{
		Phase:         st.Phase(),
		Authenticated: st.IsAuthenticated,
		AuthMode:      string(cmdCtx.Config.Auth.Mode),
		StoreBackend:  string(cmdCtx.Config.Store.Backend),
		Store:         c.Stores.Location,
		Interactive:   c.Interactive,
		LoginPath:     c.LoginPath,
		LandingPath:   c.LandingPath,
	}
	if st.IsAuthenticated {
		view.User = newUserView(st.Identity)
		if token, ok, terr := c.Stores.Tokens.Get(ctx); terr == nil && ok {
			if exp, found := jwtcodec.New().ExpiresAt(token); found {
				view.ExpiresAt = &exp
			}
		}
	}
	return writeJSON(cmdCtx.Stdout, view)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
