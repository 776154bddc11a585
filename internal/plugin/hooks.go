// Package plugin hosts user Lua scripts that react to editor events. Backend
// plugins (syntax, find, autosave) run backend-side; this host is for
// front-end customization such as status line tweaks or logging.
package plugin

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Hooks owns a single Lua state and a table of event handlers registered by
// user scripts via glint.on(event, fn).
//
// Emit runs on the consumer goroutine, so handlers observe mirror state
// between messages and the state carries no lock.
type Hooks struct {
	state    *lua.LState
	handlers map[string][]*lua.LFunction

	// LogFn receives glint.log output; nil discards it.
	LogFn func(msg string)
}

// NewHooks creates a host with the glint API installed.
func NewHooks() *Hooks {
	h := &Hooks{
		state:    lua.NewState(),
		handlers: make(map[string][]*lua.LFunction),
	}
	h.register()
	return h
}

// register installs the glint global table.
func (h *Hooks) register() {
	api := h.state.NewTable()

	h.state.SetField(api, "on", h.state.NewFunction(func(L *lua.LState) int {
		event := L.CheckString(1)
		fn := L.CheckFunction(2)
		h.handlers[event] = append(h.handlers[event], fn)
		return 0
	}))

	h.state.SetField(api, "log", h.state.NewFunction(func(L *lua.LState) int {
		if h.LogFn != nil {
			h.LogFn(L.CheckString(1))
		}
		return 0
	}))

	h.state.SetGlobal("glint", api)
}

// LoadFile runs a user script. Registration happens as a side effect of the
// script calling glint.on.
func (h *Hooks) LoadFile(path string) error {
	if err := h.state.DoFile(path); err != nil {
		return fmt.Errorf("plugin %s: %w", path, err)
	}
	return nil
}

// LoadString runs inline script source, for tests.
func (h *Hooks) LoadString(src string) error {
	if err := h.state.DoString(src); err != nil {
		return fmt.Errorf("plugin: %w", err)
	}
	return nil
}

// HandlerCount returns the number of handlers registered for an event.
func (h *Hooks) HandlerCount(event string) int {
	return len(h.handlers[event])
}

// Emit calls every handler registered for event with the event name and the
// notification's raw JSON parameters. A handler error aborts that handler
// only; the rest still run. The first error is returned for logging.
func (h *Hooks) Emit(event, paramsJSON string) error {
	var first error
	for _, fn := range h.handlers[event] {
		err := h.state.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, lua.LString(event), lua.LString(paramsJSON))
		if err != nil && first == nil {
			first = fmt.Errorf("plugin handler for %s: %w", event, err)
		}
	}
	return first
}

// Close shuts down the Lua state.
func (h *Hooks) Close() {
	h.state.Close()
}
