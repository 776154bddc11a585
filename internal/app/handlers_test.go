package app

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/tidwall/gjson"

	"github.com/glintedit/glint/internal/config"
	"github.com/glintedit/glint/internal/plugin"
	"github.com/glintedit/glint/internal/renderer"
	term "github.com/glintedit/glint/internal/renderer/backend"
	"github.com/glintedit/glint/internal/renderer/style"
	"github.com/glintedit/glint/internal/rpc"
)

func newTestApp(t *testing.T) (*Application, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	tr := rpc.NewTransport(strings.NewReader(""), &buf, nil, rpc.NewQueue())

	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("init simulation screen: %v", err)
	}
	t.Cleanup(sim.Fini)

	a := &Application{
		logger: NullLogger,
		logOut: io.Discard,
		client: rpc.NewClient(tr),
		screen: term.NewTerminalWithScreen(sim),
		styles: style.NewTable(),
		cfg:    config.New(),
		hooks:  plugin.NewHooks(),
		views:  make(map[string]*renderer.View),
	}
	t.Cleanup(a.hooks.Close)
	return a, &buf
}

// wireFrames parses every frame written to the transport buffer.
func wireFrames(buf *bytes.Buffer) []gjson.Result {
	var frames []gjson.Result
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line != "" {
			frames = append(frames, gjson.Parse(line))
		}
	}
	return frames
}

// findFrame returns the first frame with the given top-level method.
func findFrame(buf *bytes.Buffer, method string) (gjson.Result, bool) {
	for _, f := range wireFrames(buf) {
		if f.Get("method").String() == method {
			return f, true
		}
	}
	return gjson.Result{}, false
}

func addView(a *Application, id string) *renderer.View {
	v := renderer.NewView(id, id+".txt", a.client, cellMetrics)
	v.Viewport().Resize(80, 24)
	a.views[id] = v
	a.active = id
	return v
}

func notification(method, params string) rpc.Message {
	return rpc.Message{
		Kind:   rpc.KindNotification,
		Method: method,
		Params: gjson.Parse(params),
	}
}

func TestUpdateNotificationPopulatesView(t *testing.T) {
	a, _ := newTestApp(t)
	v := addView(a, "view-1")

	a.handleMessage(notification("update", `{
		"view_id": "view-1",
		"update": {"ops": [{"op": "ins", "n": 1, "lines": [{"text": "hello"}]}], "pristine": true}
	}`))

	if v.Cache().Height() != 1 {
		t.Fatalf("Height = %d, want 1", v.Cache().Height())
	}
	if l := v.Cache().Line(0); l == nil || l.Text != "hello" {
		t.Errorf("line 0 = %+v", l)
	}
}

func TestUpdateForUnknownViewIsIgnored(t *testing.T) {
	a, _ := newTestApp(t)
	// Must not panic or create a view.
	a.handleMessage(notification("update", `{"view_id": "view-9", "update": {"ops": []}}`))
	if len(a.views) != 0 {
		t.Errorf("views = %d, want 0", len(a.views))
	}
}

func TestScrollToMovesViewport(t *testing.T) {
	a, _ := newTestApp(t)
	v := addView(a, "view-1")
	a.handleMessage(notification("update", `{
		"view_id": "view-1",
		"update": {"ops": [{"op": "invalidate", "n": 100}]}
	}`))

	a.handleMessage(notification("scroll_to", `{"view_id": "view-1", "line": 80, "col": 0}`))
	_, y := v.Viewport().Scroll()
	if y == 0 {
		t.Error("scroll_to left the viewport at the top")
	}
}

func TestDefStyleNotification(t *testing.T) {
	a, _ := newTestApp(t)
	a.handleMessage(notification("def_style", `{"id": 3, "fg_color": 4278255360}`))

	if _, ok := a.styles.Get(3); !ok {
		t.Error("style 3 not defined")
	}
}

func TestConfigChangedNotification(t *testing.T) {
	a, _ := newTestApp(t)
	a.handleMessage(notification("config_changed", `{"view_id": "view-1", "changes": {"tab_size": 2}}`))

	if got := a.cfg.TabSize("view-1"); got != 2 {
		t.Errorf("TabSize = %d, want 2", got)
	}
}

func TestAlertSetsStatus(t *testing.T) {
	a, _ := newTestApp(t)
	a.handleMessage(notification("alert", `{"msg": "file changed on disk"}`))
	if a.status != "file changed on disk" {
		t.Errorf("status = %q", a.status)
	}
}

func TestAvailableThemesStored(t *testing.T) {
	a, _ := newTestApp(t)
	a.handleMessage(notification("available_themes", `{"themes": ["light", "dark"]}`))
	if len(a.themes) != 2 || a.themes[1] != "dark" {
		t.Errorf("themes = %v", a.themes)
	}
}

func TestAvailableThemesFallsBackToFirst(t *testing.T) {
	a, buf := newTestApp(t)
	a.opts.Theme = "NotARealTheme"

	a.handleMessage(notification("available_themes", `{"themes": ["InspiredGitHub", "base16-ocean.dark"]}`))

	frame, ok := findFrame(buf, "set_theme")
	if !ok {
		t.Fatalf("no set_theme frame sent after available_themes; wire output: %q", buf.String())
	}
	if got := frame.Get("params.theme_name").String(); got != "InspiredGitHub" {
		t.Errorf("fell back to %q, want the first advertised theme", got)
	}
	if a.themeIdx != 0 {
		t.Errorf("themeIdx = %d, want 0", a.themeIdx)
	}
}

func TestAvailableThemesKeepsConfiguredTheme(t *testing.T) {
	a, buf := newTestApp(t)
	a.opts.Theme = "base16-ocean.dark"

	a.handleMessage(notification("available_themes", `{"themes": ["InspiredGitHub", "base16-ocean.dark"]}`))

	frame, ok := findFrame(buf, "set_theme")
	if !ok {
		t.Fatal("no set_theme frame sent after available_themes")
	}
	if got := frame.Get("params.theme_name").String(); got != "base16-ocean.dark" {
		t.Errorf("chose %q, want the configured theme", got)
	}
	if a.themeIdx != 1 {
		t.Errorf("themeIdx = %d, want 1", a.themeIdx)
	}
}

func TestCycleTabSizeSendsModifyUserConfig(t *testing.T) {
	a, buf := newTestApp(t)
	addView(a, "view-1")

	a.cycleTabSize()

	frame, ok := findFrame(buf, "modify_user_config")
	if !ok {
		t.Fatalf("no modify_user_config frame; wire output: %q", buf.String())
	}
	if got := frame.Get("params.changes.tab_size").Uint(); got != 8 {
		t.Errorf("tab_size = %d, want 8 after the default 4", got)
	}

	// The mirror follows config_changed, not the local request.
	a.handleMessage(notification("config_changed", `{"view_id": "view-1", "changes": {"tab_size": 8}}`))
	buf.Reset()
	a.cycleTabSize()
	frame, ok = findFrame(buf, "modify_user_config")
	if !ok {
		t.Fatal("no modify_user_config frame on second cycle")
	}
	if got := frame.Get("params.changes.tab_size").Uint(); got != 2 {
		t.Errorf("tab_size = %d, want 2 after 8", got)
	}
}

func TestCycleLanguageSendsSetLanguage(t *testing.T) {
	a, buf := newTestApp(t)
	addView(a, "view-1")
	a.handleMessage(notification("available_languages", `{"languages": ["Plain Text", "Go"]}`))

	a.cycleLanguage()

	frame, ok := findFrame(buf, "set_language")
	if !ok {
		t.Fatalf("no set_language frame; wire output: %q", buf.String())
	}
	if got := frame.Get("params.language_id").String(); got != "Go" {
		t.Errorf("language_id = %q, want Go", got)
	}
	if got := frame.Get("params.view_id").String(); got != "view-1" {
		t.Errorf("view_id = %q", got)
	}
}

func TestOpenFileReplacesEmptyUntitledView(t *testing.T) {
	a, buf := newTestApp(t)

	empty := renderer.NewView("view-0", "", a.client, cellMetrics)
	a.views["view-0"] = empty
	a.active = "view-0"

	a.openView("file.txt")
	a.handleMessage(rpc.Message{
		Kind:   rpc.KindResponse,
		ID:     1,
		HasID:  true,
		Result: gjson.Parse(`"view-1"`),
	})

	if _, ok := a.views["view-0"]; ok {
		t.Error("empty untitled view kept after opening a file")
	}
	if a.active != "view-1" {
		t.Errorf("active = %q, want view-1", a.active)
	}
	frame, ok := findFrame(buf, "close_view")
	if !ok {
		t.Fatal("no close_view frame for the replaced view")
	}
	if got := frame.Get("params.view_id").String(); got != "view-0" {
		t.Errorf("closed %q, want view-0", got)
	}
}

func TestOpenFileKeepsDirtyUntitledView(t *testing.T) {
	a, _ := newTestApp(t)

	dirty := renderer.NewView("view-0", "", a.client, cellMetrics)
	dirty.Pristine = false
	a.views["view-0"] = dirty
	a.active = "view-0"

	a.openView("file.txt")
	a.handleMessage(rpc.Message{
		Kind:   rpc.KindResponse,
		ID:     1,
		HasID:  true,
		Result: gjson.Parse(`"view-1"`),
	})

	if _, ok := a.views["view-0"]; !ok {
		t.Error("dirty untitled view was discarded")
	}
}

func TestSaveWithoutActiveView(t *testing.T) {
	a, buf := newTestApp(t)
	// Must not panic or send anything.
	a.saveActive()
	if buf.Len() != 0 {
		t.Errorf("unexpected wire output: %q", buf.String())
	}
}

func TestMeasureWidthRequestGetsReply(t *testing.T) {
	a, buf := newTestApp(t)
	addView(a, "view-1")

	a.handleMessage(rpc.Message{
		Kind:   rpc.KindNotification,
		Method: "measure_width",
		ID:     7,
		HasID:  true,
		Params: gjson.Parse(`[{"id": 1, "strings": ["ab"]}]`),
	})

	reply := gjson.Parse(strings.TrimSpace(buf.String()))
	if got := reply.Get("id").Int(); got != 7 {
		t.Errorf("reply id = %d, want 7", got)
	}
	if got := reply.Get("result.0.0").Float(); got != 2 {
		t.Errorf("measured width = %v, want 2", got)
	}
}

func TestMeasureWidthWithoutViews(t *testing.T) {
	a, buf := newTestApp(t)

	a.handleMessage(rpc.Message{
		Kind:   rpc.KindNotification,
		Method: "measure_width",
		ID:     3,
		HasID:  true,
		Params: gjson.Parse(`[{"id": 1, "strings": ["abc"]}]`),
	})

	reply := gjson.Parse(strings.TrimSpace(buf.String()))
	if got := reply.Get("result.0.0").Float(); got != 3 {
		t.Errorf("measured width = %v, want 3", got)
	}
}

func TestClosedMessageFailsPendingAndInvalidates(t *testing.T) {
	a, _ := newTestApp(t)
	v := addView(a, "view-1")
	a.handleMessage(notification("update", `{
		"view_id": "view-1",
		"update": {"ops": [{"op": "ins", "n": 1, "lines": [{"text": "x"}]}]}
	}`))

	var gotErr error
	a.client.Request("new_view", nil, "", func(_ gjson.Result, err error) { gotErr = err })

	a.handleMessage(rpc.Message{Kind: rpc.KindClosed})

	if !errors.Is(gotErr, ErrBackendClosed) {
		t.Errorf("pending request err = %v, want ErrBackendClosed", gotErr)
	}
	if v.Cache().Line(0) != nil {
		t.Error("cache not invalidated on close")
	}
	if v.Cache().Height() != 1 {
		t.Errorf("invalidation changed height to %d", v.Cache().Height())
	}
	if !errors.Is(a.quitErr, ErrQuit) {
		t.Errorf("quitErr = %v, want ErrQuit for a clean close", a.quitErr)
	}
}

func TestClosedMessageWithErrorIsFatal(t *testing.T) {
	a, _ := newTestApp(t)

	cause := errors.New("read: connection reset")
	a.handleMessage(rpc.Message{Kind: rpc.KindClosed, CloseErr: cause})

	if a.quitErr == nil || errors.Is(a.quitErr, ErrQuit) {
		t.Fatalf("quitErr = %v, want a fatal error", a.quitErr)
	}
	if !errors.Is(a.quitErr, cause) {
		t.Errorf("quitErr = %v does not wrap the cause", a.quitErr)
	}
}

func TestLateReplyIsDiscarded(t *testing.T) {
	a, _ := newTestApp(t)
	// No pending entry for this id; must be a silent no-op.
	a.handleMessage(rpc.Message{Kind: rpc.KindResponse, ID: 42, HasID: true})
}

func TestHooksObserveNotifications(t *testing.T) {
	a, _ := newTestApp(t)

	var logged []string
	a.hooks.LogFn = func(msg string) { logged = append(logged, msg) }
	if err := a.hooks.LoadString(`glint.on("alert", function(e, p) glint.log(e) end)`); err != nil {
		t.Fatalf("LoadString: %v", err)
	}

	a.handleMessage(notification("alert", `{"msg": "hi"}`))
	if len(logged) != 1 || logged[0] != "alert" {
		t.Errorf("hook output = %v", logged)
	}
}
