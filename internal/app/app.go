// Package app wires the backend process, the delivery queue, the per-view
// mirror state, and the terminal into a running editor.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/tidwall/gjson"

	"github.com/glintedit/glint/internal/config"
	"github.com/glintedit/glint/internal/plugin"
	"github.com/glintedit/glint/internal/renderer"
	term "github.com/glintedit/glint/internal/renderer/backend"
	"github.com/glintedit/glint/internal/renderer/style"
	"github.com/glintedit/glint/internal/renderer/viewport"
	"github.com/glintedit/glint/internal/rpc"
)

// Options configures the application.
type Options struct {
	// BackendCmd is the backend executable; BackendArgs its arguments.
	BackendCmd  string
	BackendArgs []string

	// ConfigDir is handed to the backend at startup; the backend owns config
	// resolution.
	ConfigDir string

	// Theme is requested after startup when non-empty.
	Theme string

	// Files to open, one view each. Empty opens a single unnamed view.
	Files []string

	// PluginFile is an optional Lua script run at startup.
	PluginFile string

	LogLevel string
	LogFile  string
}

// cellMetrics adapts the pixel-based viewport math to a character terminal:
// with every metric at one cell, pixel and cell coordinates coincide.
var cellMetrics = viewport.Metrics{Width: 1, Height: 1, Ascent: 1, Descent: 0}

// Application owns all mirror state. Everything below the rpc layer runs on
// the goroutine that calls Run; that single consumer is what lets the line
// caches, style table, and viewports go without locks.
type Application struct {
	opts   Options
	logger *Logger
	logOut io.Writer

	core   *rpc.Backend
	client *rpc.Client
	screen *term.Terminal
	styles *style.Table
	cfg    *config.Config
	hooks  *plugin.Hooks

	views  map[string]*renderer.View
	active string

	themes    []string
	themeIdx  int
	languages []string
	langIdx   int
	status    string
	dragging  bool

	quitErr error
}

// New creates an application from options. The backend process and terminal
// are not touched until Run.
func New(opts Options) (*Application, error) {
	if opts.BackendCmd == "" {
		return nil, fmt.Errorf("%w: no backend command", ErrInitialization)
	}

	logOut := io.Writer(io.Discard)
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("%w: open log file: %v", ErrInitialization, err)
		}
		logOut = f
	}
	logger := NewLogger(logOut, ParseLogLevel(opts.LogLevel))

	a := &Application{
		opts:   opts,
		logger: logger,
		logOut: logOut,
		styles: style.NewTable(),
		cfg:    config.New(),
		hooks:  plugin.NewHooks(),
		views:  make(map[string]*renderer.View),
	}
	a.hooks.LogFn = func(msg string) {
		logger.WithComponent("plugin").Info("%s", msg)
	}

	if opts.PluginFile != "" {
		if err := a.hooks.LoadFile(opts.PluginFile); err != nil {
			a.hooks.Close()
			return nil, NewComponentError("plugin", "load", err)
		}
	}
	return a, nil
}

// Run starts the backend and the terminal, then drives the consumer loop
// until quit, backend exit, or context cancellation. Must not be called
// concurrently; all mirror state is owned by this goroutine.
func (a *Application) Run(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		return err
	}
	defer a.shutdown()

	queue := a.core.Queue()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-queue.C():
			if !ok {
				return a.exitError()
			}
			a.handleMessage(msg)
			a.drain(queue)

		case ev, ok := <-a.screen.Events():
			if !ok {
				return a.exitError()
			}
			a.handleEvent(ev)

		case err := <-a.core.Exited():
			// Usually the transport EOF arrives first and delivers the
			// terminal message; this path covers a process that dies with
			// its pipes still open.
			a.logger.Error("backend: %v", err)
			a.client.FailPending(ErrBackendClosed)
			for _, v := range a.views {
				v.InvalidateAll()
			}
			if a.quitErr == nil {
				a.quitErr = NewComponentError("rpc", "backend", err)
			}
		}

		if a.quitErr != nil {
			return a.exitError()
		}
		a.redraw()
	}
}

// drain handles any messages already sitting in the queue so a burst of
// updates produces one redraw, not one per message.
func (a *Application) drain(queue *rpc.Queue) {
	for {
		select {
		case msg, ok := <-queue.C():
			if !ok {
				return
			}
			a.handleMessage(msg)
		default:
			return
		}
	}
}

func (a *Application) exitError() error {
	if a.quitErr == nil || errors.Is(a.quitErr, ErrQuit) {
		return nil
	}
	return a.quitErr
}

func (a *Application) start(ctx context.Context) error {
	a.core = rpc.NewBackend(rpc.BackendConfig{
		Command: a.opts.BackendCmd,
		Args:    a.opts.BackendArgs,
		// The terminal owns stderr once the screen is up.
		Stderr: a.logOut,
	})
	if err := a.core.Start(ctx); err != nil {
		return NewComponentError("rpc", "start backend", err)
	}
	a.client = a.core.Client()

	if err := a.client.ClientStarted(a.opts.ConfigDir, ""); err != nil {
		a.core.Close()
		return NewComponentError("rpc", "client_started", err)
	}
	if a.opts.Theme != "" {
		if err := a.client.SetTheme(a.opts.Theme); err != nil {
			a.logger.Warn("set_theme failed: %v", err)
		}
	}

	screen, err := term.NewTerminal()
	if err != nil {
		a.core.Close()
		return NewComponentError("terminal", "init", err)
	}
	a.screen = screen
	a.screen.Start()

	if len(a.opts.Files) == 0 {
		a.openView("")
	}
	for _, f := range a.opts.Files {
		a.openView(f)
	}
	return nil
}

func (a *Application) shutdown() {
	if a.screen != nil {
		a.screen.Fini()
	}
	if a.core != nil {
		a.core.Close()
		if q := a.core.Queue(); q != nil {
			// The loop is gone; release the pump even with messages still
			// buffered.
			q.Stop()
		}
	}
	a.hooks.Close()
	if c, ok := a.logOut.(io.Closer); ok {
		c.Close()
	}
}

// openView asks the backend for a view. The view exists front-end side only
// once the reply arrives; until then there is nothing to mirror. Opening a
// file replaces a leftover empty untitled view, so the startup buffer does
// not linger next to the first real file.
func (a *Application) openView(path string) {
	err := a.client.NewView(path, func(result gjson.Result, err error) {
		if err != nil {
			a.logger.Error("new_view %q: %v", path, err)
			a.status = fmt.Sprintf("cannot open %s", path)
			return
		}
		prev := a.activeView()

		viewID := result.String()
		v := renderer.NewView(viewID, path, a.client, cellMetrics)
		w, _ := a.screen.Size()
		v.Viewport().Resize(float64(w), float64(a.screen.ViewHeight()))
		a.views[viewID] = v
		a.active = viewID
		v.Sync()
		a.logger.WithView(viewID).Info("opened %q", path)

		if path != "" && prev != nil && prev.FileName == "" && prev.Pristine && prev.IsEmpty() {
			a.closeView(prev.ID)
		}
	})
	if err != nil {
		a.logger.Error("new_view request: %v", err)
	}
}

// closeView tells the backend a view is gone and drops its mirror state.
// Late replies for it are cancelled so their callbacks never touch freed
// state.
func (a *Application) closeView(viewID string) {
	if err := a.client.CloseView(viewID); err != nil {
		a.logger.Warn("close_view: %v", err)
	}
	a.client.CancelView(viewID)
	a.cfg.Forget(viewID)
	delete(a.views, viewID)
}

// closeActive closes the focused view. Closing the last view quits.
func (a *Application) closeActive() {
	if a.active == "" {
		return
	}
	a.closeView(a.active)

	a.active = ""
	for id := range a.views {
		a.active = id
		break
	}
	if a.active == "" {
		a.quitErr = ErrQuit
	}
}

// saveActive writes the focused view's buffer backend-side.
func (a *Application) saveActive() {
	v := a.activeView()
	if v == nil {
		a.logger.Warn("save: %v", ErrNoActiveView)
		return
	}
	if v.FileName == "" {
		a.status = ErrNoFileName.Error()
		return
	}
	if err := a.client.Save(v.ID, v.FileName); err != nil {
		a.logger.Error("save %q: %v", v.FileName, err)
		return
	}
	a.status = fmt.Sprintf("saved %s", v.FileName)
}

func (a *Application) activeView() *renderer.View {
	return a.views[a.active]
}

// chooseTheme reconciles the configured theme against the backend's
// announced list: an absent or unknown name falls back to the first
// advertised theme, and the pick is always confirmed with set_theme.
func (a *Application) chooseTheme() {
	if len(a.themes) == 0 {
		return
	}

	name := a.themes[0]
	a.themeIdx = 0
	for i, t := range a.themes {
		if t == a.opts.Theme {
			name = t
			a.themeIdx = i
			break
		}
	}
	if a.opts.Theme != "" && name != a.opts.Theme {
		a.logger.Warn("theme %q not available, falling back to %q", a.opts.Theme, name)
	}
	if err := a.client.SetTheme(name); err != nil {
		a.logger.Warn("set_theme %q: %v", name, err)
	}
}

// cycleTheme requests the next theme from the backend's announced list.
func (a *Application) cycleTheme() {
	if len(a.themes) == 0 {
		return
	}
	a.themeIdx = (a.themeIdx + 1) % len(a.themes)
	name := a.themes[a.themeIdx]
	if err := a.client.SetTheme(name); err != nil {
		a.logger.Warn("set_theme %q: %v", name, err)
	}
}

// cycleTabSize steps the focused view's tab width through 2, 4, 8. The
// change is pushed to the backend; the mirror updates when config_changed
// comes back.
func (a *Application) cycleTabSize() {
	v := a.activeView()
	if v == nil {
		return
	}

	var next uint64
	switch a.cfg.TabSize(v.ID) {
	case 2:
		next = 4
	case 4:
		next = 8
	default:
		next = 2
	}
	if err := a.client.ModifyUserConfig("general", map[string]any{"tab_size": next}); err != nil {
		a.logger.Warn("modify_user_config: %v", err)
		return
	}
	a.status = fmt.Sprintf("tab size %d", next)
}

// cycleLanguage requests the next syntax language from the backend's
// announced list for the focused view.
func (a *Application) cycleLanguage() {
	v := a.activeView()
	if v == nil || len(a.languages) == 0 {
		return
	}
	a.langIdx = (a.langIdx + 1) % len(a.languages)
	name := a.languages[a.langIdx]
	if err := a.client.SetLanguage(v.ID, name); err != nil {
		a.logger.Warn("set_language %q: %v", name, err)
	}
}

func (a *Application) redraw() {
	v := a.activeView()
	if v == nil {
		return
	}
	v.Sync()
	a.screen.Draw(v, a.styles, a.statusLine(v), int(a.cfg.TabSize(v.ID)))
}

func (a *Application) statusLine(v *renderer.View) string {
	s := " " + v.Title()
	if a.status != "" {
		s += "  " + a.status
	}
	if n := len(a.views); n > 1 {
		s += fmt.Sprintf("  [%d views]", n)
	}
	return s
}

// handleEvent dispatches one terminal event.
func (a *Application) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		w, _ := a.screen.Size()
		h := a.screen.ViewHeight()
		for _, v := range a.views {
			v.Viewport().Resize(float64(w), float64(h))
			v.Viewport().Clamp(v.Cache().Height())
		}
		if v := a.activeView(); v != nil {
			v.Sync()
		}
	case *tcell.EventKey:
		a.handleKey(ev)
	case *tcell.EventMouse:
		a.handleMouse(ev)
	}
}
