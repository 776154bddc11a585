package rpc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ResponseHandler receives the outcome of a correlated request. Handlers are
// invoked on the consumer goroutine when the response is drained from the
// delivery queue, never on the transport's read goroutine.
type ResponseHandler func(result gjson.Result, err error)

// request is the wire shape of an outgoing frame.
type request struct {
	ID     int64  `json:"id,omitempty"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// response is the wire shape of a reply to a backend request.
type response struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// editParams wraps per-view edit commands. Every edit the user makes is a
// command to the backend; the front-end never mutates text itself.
type editParams struct {
	Method string `json:"method"`
	ViewID string `json:"view_id"`
	Params any    `json:"params,omitempty"`
}

// Client issues commands to the backend and correlates request/response
// pairs by id.
//
// The pending table guarantees at-most-once delivery per id: an entry is
// removed before its handler runs, and a reply for an id that is absent
// (cancelled view, duplicate, or already failed) is silently discarded.
type Client struct {
	transport *Transport

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]pendingRequest
}

type pendingRequest struct {
	viewID  string
	handler ResponseHandler
}

// NewClient creates a client over the given transport.
func NewClient(t *Transport) *Client {
	return &Client{
		transport: t,
		pending:   make(map[int64]pendingRequest),
	}
}

// Notify sends a fire-and-forget notification.
func (c *Client) Notify(method string, params any) error {
	return c.transport.Send(&request{Method: method, Params: params})
}

// Request sends a correlated request. viewID associates the pending entry
// with a view so CancelView can discard it; pass "" for requests that are not
// view-scoped. The handler runs on the consumer goroutine via
// DispatchResponse, or with an error via FailPending on transport closure.
func (c *Client) Request(method string, params any, viewID string, h ResponseHandler) error {
	id := c.nextID.Add(1)

	c.mu.Lock()
	c.pending[id] = pendingRequest{viewID: viewID, handler: h}
	c.mu.Unlock()

	if err := c.transport.Send(&request{ID: id, Method: method, Params: params}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("send request %q: %w", method, err)
	}
	return nil
}

// DispatchResponse routes a KindResponse message to its waiting handler.
// Returns false if no handler was registered for the id; late replies for
// closed views land here and are not an error.
func (c *Client) DispatchResponse(msg Message) bool {
	c.mu.Lock()
	p, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()

	if !ok || p.handler == nil {
		return ok
	}
	if msg.Err != nil {
		p.handler(gjson.Result{}, msg.Err)
	} else {
		p.handler(msg.Result, nil)
	}
	return true
}

// CancelView discards all pending entries for a view. A reply arriving later
// for one of those ids is dropped by DispatchResponse.
func (c *Client) CancelView(viewID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		if p.viewID == viewID {
			delete(c.pending, id)
		}
	}
}

// FailPending fails every outstanding request with err. Called from the
// consumer goroutine when the terminal message arrives.
func (c *Client) FailPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		if p.handler != nil {
			p.handler(gjson.Result{}, err)
		}
	}
}

// PendingCount returns the number of outstanding requests.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// SendResult answers a backend request (e.g. measure_width) by id.
func (c *Client) SendResult(id int64, result any) error {
	return c.transport.Send(&response{ID: id, Result: result})
}

// Edit sends a per-view edit command notification.
func (c *Client) Edit(viewID, method string, params any) error {
	return c.Notify("edit", &editParams{Method: method, ViewID: viewID, Params: params})
}

// ClientStarted announces the front-end to the backend. Must be the first
// frame sent after the process starts.
func (c *Client) ClientStarted(configDir, clientExtrasDir string) error {
	params := map[string]string{}
	if configDir != "" {
		params["config_dir"] = configDir
	}
	if clientExtrasDir != "" {
		params["client_extras_dir"] = clientExtrasDir
	}
	return c.Notify("client_started", params)
}

// NewView asks the backend to open a view, optionally backed by a file. The
// result is the backend-assigned view id.
func (c *Client) NewView(filePath string, h ResponseHandler) error {
	params := map[string]string{}
	if filePath != "" {
		params["file_path"] = filePath
	}
	return c.Request("new_view", params, "", h)
}

// CloseView tells the backend a view is gone; its buffer may be dropped.
func (c *Client) CloseView(viewID string) error {
	return c.Notify("close_view", map[string]string{"view_id": viewID})
}

// Save writes the view's buffer to the given path, backend-side.
func (c *Client) Save(viewID, filePath string) error {
	return c.Notify("save", map[string]string{"view_id": viewID, "file_path": filePath})
}

// SetTheme selects a highlighting theme by name.
func (c *Client) SetTheme(name string) error {
	return c.Notify("set_theme", map[string]string{"theme_name": name})
}

// SetLanguage selects the syntax language for a view.
func (c *Client) SetLanguage(viewID, languageID string) error {
	return c.Notify("set_language", map[string]string{"view_id": viewID, "language_id": languageID})
}

// ModifyUserConfig pushes configuration changes to the backend. changes maps
// setting names to new values; the payload is assembled with sjson so value
// types survive unmangled.
func (c *Client) ModifyUserConfig(domain string, changes map[string]any) error {
	payload, err := sjson.Set("{}", "domain", domain)
	if err != nil {
		return fmt.Errorf("build modify_user_config: %w", err)
	}
	for key, value := range changes {
		payload, err = sjson.Set(payload, "changes."+key, value)
		if err != nil {
			return fmt.Errorf("build modify_user_config %q: %w", key, err)
		}
	}
	frame, err := sjson.Set(`{"method":"modify_user_config"}`, "params", gjson.Parse(payload).Value())
	if err != nil {
		return fmt.Errorf("build modify_user_config frame: %w", err)
	}
	return c.transport.SendRaw([]byte(frame))
}

// Scroll reports the visible line range [first, last) so the backend can
// prioritize and evict its own line cache. Fire-and-forget; never retried.
func (c *Client) Scroll(viewID string, first, last uint64) error {
	return c.Edit(viewID, "scroll", []uint64{first, last})
}

// RequestLines asks the backend to (re)send the lines in [first, last).
// Requesting already-populated lines is a harmless no-op backend-side.
func (c *Client) RequestLines(viewID string, first, last uint64) error {
	return c.Edit(viewID, "request_lines", []uint64{first, last})
}

// Insert inserts text at every caret.
func (c *Client) Insert(viewID, chars string) error {
	return c.Edit(viewID, "insert", map[string]string{"chars": chars})
}

// Character-level edit commands.

func (c *Client) DeleteForward(viewID string) error  { return c.Edit(viewID, "delete_forward", nil) }
func (c *Client) DeleteBackward(viewID string) error { return c.Edit(viewID, "delete_backward", nil) }
func (c *Client) InsertNewline(viewID string) error  { return c.Edit(viewID, "insert_newline", nil) }
func (c *Client) InsertTab(viewID string) error      { return c.Edit(viewID, "insert_tab", nil) }
func (c *Client) Undo(viewID string) error           { return c.Edit(viewID, "undo", nil) }
func (c *Client) Redo(viewID string) error           { return c.Edit(viewID, "redo", nil) }
func (c *Client) SelectAll(viewID string) error      { return c.Edit(viewID, "select_all", nil) }

// Caret movement commands. The AndModifySelection variants extend the
// selection instead of collapsing it.

func (c *Client) MoveUp(viewID string) error    { return c.Edit(viewID, "move_up", nil) }
func (c *Client) MoveDown(viewID string) error  { return c.Edit(viewID, "move_down", nil) }
func (c *Client) MoveLeft(viewID string) error  { return c.Edit(viewID, "move_left", nil) }
func (c *Client) MoveRight(viewID string) error { return c.Edit(viewID, "move_right", nil) }

func (c *Client) MoveUpAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_up_and_modify_selection", nil)
}

func (c *Client) MoveDownAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_down_and_modify_selection", nil)
}

func (c *Client) MoveLeftAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_left_and_modify_selection", nil)
}

func (c *Client) MoveRightAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_right_and_modify_selection", nil)
}

func (c *Client) MoveWordLeft(viewID string) error  { return c.Edit(viewID, "move_word_left", nil) }
func (c *Client) MoveWordRight(viewID string) error { return c.Edit(viewID, "move_word_right", nil) }

func (c *Client) MoveWordLeftAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_word_left_and_modify_selection", nil)
}

func (c *Client) MoveWordRightAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_word_right_and_modify_selection", nil)
}

func (c *Client) MoveToLeftEndOfLine(viewID string) error {
	return c.Edit(viewID, "move_to_left_end_of_line", nil)
}

func (c *Client) MoveToRightEndOfLine(viewID string) error {
	return c.Edit(viewID, "move_to_right_end_of_line", nil)
}

func (c *Client) MoveToLeftEndOfLineAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_to_left_end_of_line_and_modify_selection", nil)
}

func (c *Client) MoveToRightEndOfLineAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_to_right_end_of_line_and_modify_selection", nil)
}

func (c *Client) MoveToBeginningOfDocument(viewID string) error {
	return c.Edit(viewID, "move_to_beginning_of_document", nil)
}

func (c *Client) MoveToEndOfDocument(viewID string) error {
	return c.Edit(viewID, "move_to_end_of_document", nil)
}

func (c *Client) MoveToBeginningOfDocumentAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_to_beginning_of_document_and_modify_selection", nil)
}

func (c *Client) MoveToEndOfDocumentAndModifySelection(viewID string) error {
	return c.Edit(viewID, "move_to_end_of_document_and_modify_selection", nil)
}

func (c *Client) PageUp(viewID string) error   { return c.Edit(viewID, "scroll_page_up", nil) }
func (c *Client) PageDown(viewID string) error { return c.Edit(viewID, "scroll_page_down", nil) }

func (c *Client) PageUpAndModifySelection(viewID string) error {
	return c.Edit(viewID, "page_up_and_modify_selection", nil)
}

func (c *Client) PageDownAndModifySelection(viewID string) error {
	return c.Edit(viewID, "page_down_and_modify_selection", nil)
}

// Keyboard state mask bits understood by the backend's drag command.
const (
	ShiftMask   uint32 = 1 << 1
	ControlMask uint32 = 1 << 2
	AltMask     uint32 = 1 << 3
)

// gesturePos is the payload for pointer gestures.
type gesturePos struct {
	Line uint64 `json:"line"`
	Col  uint64 `json:"col"`
}

// Pointer gesture commands, in buffer cell coordinates.

func (c *Client) GesturePointSelect(viewID string, line, col uint64) error {
	return c.Edit(viewID, "gesture_point_select", &gesturePos{Line: line, Col: col})
}

func (c *Client) GestureRangeSelect(viewID string, line, col uint64) error {
	return c.Edit(viewID, "gesture_range_select", &gesturePos{Line: line, Col: col})
}

func (c *Client) GestureWordSelect(viewID string, line, col uint64) error {
	return c.Edit(viewID, "gesture_word_select", &gesturePos{Line: line, Col: col})
}

func (c *Client) GestureLineSelect(viewID string, line, col uint64) error {
	return c.Edit(viewID, "gesture_line_select", &gesturePos{Line: line, Col: col})
}

// Drag extends a pointer selection. modifiers uses the same mask bits the
// backend uses for keyboard state.
func (c *Client) Drag(viewID string, line, col uint64, modifiers uint32) error {
	return c.Edit(viewID, "drag", []uint64{line, col, uint64(modifiers)})
}
