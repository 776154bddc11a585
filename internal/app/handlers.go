package app

import (
	"github.com/tidwall/gjson"

	"github.com/glintedit/glint/internal/renderer"
	"github.com/glintedit/glint/internal/renderer/style"
	"github.com/glintedit/glint/internal/rpc"
)

// handleMessage routes one drained queue message. Runs on the consumer
// goroutine; response handlers fire from inside DispatchResponse here, never
// on the read goroutine.
func (a *Application) handleMessage(msg rpc.Message) {
	switch msg.Kind {
	case rpc.KindResponse:
		if !a.client.DispatchResponse(msg) {
			// Replies outliving their view land here; not an error.
			a.logger.Debug("dropped reply for id %d", msg.ID)
		}

	case rpc.KindClosed:
		a.client.FailPending(ErrBackendClosed)
		for _, v := range a.views {
			v.InvalidateAll()
		}
		if msg.CloseErr != nil {
			a.quitErr = NewComponentError("rpc", "read", msg.CloseErr)
		} else {
			a.quitErr = ErrQuit
		}

	case rpc.KindNotification:
		if msg.HasID {
			a.handleRequest(msg)
			return
		}
		a.handleNotification(msg)
	}
}

// handleRequest answers a backend-to-front-end request.
func (a *Application) handleRequest(msg rpc.Message) {
	switch msg.Method {
	case "measure_width":
		// Width depends only on font metrics, so any view serves; a scratch
		// view covers the window before the first view reply arrives.
		v := a.activeView()
		if v == nil {
			v = renderer.NewView("", "", nil, cellMetrics)
		}
		if err := a.client.SendResult(msg.ID, v.MeasureWidths(msg.Params)); err != nil {
			a.logger.Warn("measure_width reply: %v", err)
		}
	default:
		a.logger.Warn("unhandled backend request %q", msg.Method)
	}
}

// handleNotification applies one backend notification to mirror state, then
// lets user hooks observe it.
func (a *Application) handleNotification(msg rpc.Message) {
	params := msg.Params
	viewID := params.Get("view_id").String()

	switch msg.Method {
	case "update":
		v, ok := a.views[viewID]
		if !ok {
			a.logger.WithView(viewID).Warn("update: %v", ErrViewNotFound)
			break
		}
		if err := v.ApplyUpdate(params); err != nil {
			// Protocol inconsistency. The affected range is invalid now and
			// the next sync re-requests it.
			a.logger.WithView(viewID).Warn("update: %v", err)
		}
		v.Sync()

	case "scroll_to":
		v, ok := a.views[viewID]
		if !ok {
			a.logger.WithView(viewID).Warn("scroll_to: %v", ErrViewNotFound)
			break
		}
		v.ScrollTo(params.Get("line").Uint(), params.Get("col").Uint())

	case "def_style":
		a.styles.Define(params)

	case "theme_changed":
		a.styles.SetTheme(style.ParseTheme(params))
		a.logger.Info("theme changed to %q", params.Get("name").String())

	case "available_themes":
		a.themes = stringList(params.Get("themes"))
		a.chooseTheme()

	case "available_languages":
		a.languages = stringList(params.Get("languages"))

	case "available_plugins":
		a.logger.WithView(viewID).Debug("plugins: %s", params.Get("plugins").Raw)

	case "language_changed":
		a.status = "language: " + params.Get("language_id").String()

	case "config_changed":
		a.cfg.Apply(viewID, params.Get("changes"))

	case "plugin_started":
		a.logger.WithView(viewID).Info("plugin started: %s", params.Get("plugin").String())

	case "plugin_stopped":
		a.logger.WithView(viewID).Info("plugin stopped: %s (code %d)",
			params.Get("plugin").String(), params.Get("code").Int())

	case "find_status", "replace_status":
		a.logger.WithView(viewID).Debug("%s: %s", msg.Method, params.Raw)

	case "alert":
		a.status = params.Get("msg").String()

	default:
		a.logger.Warn("unhandled notification %q", msg.Method)
	}

	// Hooks run after mirror state settled so they observe the new state.
	if err := a.hooks.Emit(msg.Method, params.Raw); err != nil {
		a.logger.Warn("%v", err)
	}
}

func stringList(v gjson.Result) []string {
	arr := v.Array()
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		out = append(out, e.String())
	}
	return out
}
