package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/livia-app/livia/internal/cache"
	"github.com/livia-app/livia/internal/client"
	"github.com/livia-app/livia/internal/config"
	"github.com/livia-app/livia/internal/data"
	"github.com/livia-app/livia/internal/guard"
	"github.com/livia-app/livia/internal/notify"
	"github.com/livia-app/livia/internal/route"
	"github.com/livia-app/livia/internal/session"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	roleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135"))
)

// navigator is the console's current location. The provider moves it on
// sign-in and sign-out; guarded commands move it to their area root.
type navigator struct {
	mu   sync.Mutex
	path string
}

func (n *navigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *navigator) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	slog.Debug("navigating", "from", n.path, "to", path)
	n.path = path
}

// console holds the provider, cache and store for one process. In the
// shell a single console serves every command.
type console struct {
	in       *bufio.Reader
	out      io.Writer
	errOut   io.Writer
	verbose  bool
	server   string
	cfg      *config.ClientConfig
	table    *route.Table
	nav      *navigator
	api      *client.Client
	provider *session.Provider
	cache    *cache.Client
	store    *data.Store
	notifier notify.Notifier

	area   string
	cancel context.CancelFunc

	ownerMu sync.Mutex
	owner   uuid.UUID
}

func newConsole(in io.Reader, out, errOut io.Writer) *console {
	return &console{
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		table:  route.Default(),
		nav:    &navigator{path: "/"},
	}
}

func (c *console) configure() error {
	if c.cfg != nil {
		return nil
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("loading console configuration: %w", err)
	}
	if c.server != "" {
		cfg.ServerURL = c.server
	}
	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	setupLogger(c.errOut, level)
	c.cfg = cfg
	return nil
}

// open starts the provider and cache once. Later calls are no-ops.
func (c *console) open(ctx context.Context) error {
	if c.provider != nil {
		return nil
	}
	if err := c.configure(); err != nil {
		return err
	}

	path := c.cfg.SessionFile
	if path == "" {
		p, err := session.DefaultTokenPath()
		if err != nil {
			return err
		}
		path = p
	}
	tokens := session.NewFileTokenStore(path)

	c.api = client.New(c.cfg.ServerURL, tokens, client.WithRouteTable(c.table))
	identity := session.NewHTTPIdentity(c.api, tokens)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	c.cache = cache.New(
		cache.WithStaleTime(c.cfg.StaleTime),
		cache.WithGCTime(c.cfg.GCTime),
		cache.WithRetry(c.cfg.Retry),
	)
	go c.cache.Start(runCtx)

	if c.notifier == nil {
		c.notifier = notify.NewTerminal(c.out)
	}
	c.store = data.NewStore(c.cache, c.api, func() string { return c.area }, c.notifier)

	c.provider = session.NewProvider(identity, c.api, c.nav,
		session.WithLoadingTimeout(c.cfg.LoadingTimeout),
		session.WithRouteTable(c.table),
	)
	c.provider.OnChange(c.rescope)
	c.provider.Start(runCtx)
	return nil
}

// rescope empties the cache whenever the signed-in principal changes or
// the session stops being active, so no entry outlives its owner.
func (c *console) rescope(snap session.Snapshot) {
	var id uuid.UUID
	if snap.State == session.Active && snap.Principal != nil {
		id = snap.Principal.ID
	}

	c.ownerMu.Lock()
	changed := id != c.owner
	c.owner = id
	c.ownerMu.Unlock()

	if changed {
		slog.Debug("principal changed, clearing cache", "userId", id)
		c.cache.Clear()
	}
}

func (c *console) close() {
	if c.provider == nil {
		return
	}
	c.store.QuickReplies.Flush()
	c.provider.Stop()
	c.cache.Close()
	c.cancel()
	c.provider = nil
}

// guarded runs fn inside the guard for class, with the store bound to
// area. Denials report where the provider left the caller.
func (c *console) guarded(ctx context.Context, class route.Class, area string, fn func(context.Context) error) error {
	if err := c.open(ctx); err != nil {
		return err
	}
	c.nav.Redirect(area)

	g := guard.New(c.provider, c.table, class, func() {
		fmt.Fprintln(c.errOut, dimStyle.Render("Checking session..."))
	})
	err := g.Render(ctx, func(ctx context.Context) error {
		c.area = area
		return fn(ctx)
	})
	if errors.Is(err, guard.ErrDenied) {
		snap := c.provider.Snapshot()
		if snap.Principal == nil {
			c.nav.Redirect(c.table.LoginPath())
			return fmt.Errorf("%w: not signed in, run 'livia login'", err)
		}
		c.nav.Redirect(c.table.DashboardRoot(snap.Principal.Role))
		return fmt.Errorf("%w: %s cannot open %s", err, snap.Principal.Role, area)
	}
	return err
}

func setupLogger(w io.Writer, level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}
	if w == nil {
		w = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
}
