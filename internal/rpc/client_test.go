package rpc

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func newTestClient() (*Client, *bytes.Buffer) {
	var buf bytes.Buffer
	tr := NewTransport(strings.NewReader(""), &buf, nil, NewQueue())
	return NewClient(tr), &buf
}

func TestRequestResponseRoundTrip(t *testing.T) {
	c, _ := newTestClient()

	var gotResult string
	var gotErr error
	err := c.Request("new_view", map[string]string{}, "", func(result gjson.Result, err error) {
		gotResult = result.String()
		gotErr = err
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if c.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", c.PendingCount())
	}

	ok := c.DispatchResponse(Message{Kind: KindResponse, ID: 1, HasID: true, Result: gjson.Parse(`"view-id-1"`)})
	if !ok {
		t.Fatal("DispatchResponse did not find the pending request")
	}
	if gotErr != nil {
		t.Errorf("handler err = %v", gotErr)
	}
	if gotResult != "view-id-1" {
		t.Errorf("handler result = %q", gotResult)
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after dispatch, want 0", c.PendingCount())
	}
}

func TestDispatchAtMostOnce(t *testing.T) {
	c, _ := newTestClient()

	calls := 0
	if err := c.Request("new_view", nil, "", func(gjson.Result, error) { calls++ }); err != nil {
		t.Fatalf("Request: %v", err)
	}

	resp := Message{Kind: KindResponse, ID: 1, HasID: true}
	if !c.DispatchResponse(resp) {
		t.Fatal("first dispatch failed")
	}
	if c.DispatchResponse(resp) {
		t.Error("duplicate reply was dispatched")
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestDispatchUnknownID(t *testing.T) {
	c, _ := newTestClient()
	if c.DispatchResponse(Message{Kind: KindResponse, ID: 99, HasID: true}) {
		t.Error("dispatch claimed success for an unknown id")
	}
}

func TestCancelViewDropsPending(t *testing.T) {
	c, _ := newTestClient()

	calls := 0
	c.Request("copy", nil, "view-1", func(gjson.Result, error) { calls++ })
	c.Request("copy", nil, "view-2", func(gjson.Result, error) { calls++ })

	c.CancelView("view-1")
	if c.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d after cancel, want 1", c.PendingCount())
	}

	// The cancelled view's reply is a dropped late reply now.
	if c.DispatchResponse(Message{Kind: KindResponse, ID: 1, HasID: true}) {
		t.Error("reply for cancelled view was dispatched")
	}
	if !c.DispatchResponse(Message{Kind: KindResponse, ID: 2, HasID: true}) {
		t.Error("unrelated view's reply was lost")
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestFailPending(t *testing.T) {
	c, _ := newTestClient()

	var gotErr error
	c.Request("new_view", nil, "", func(_ gjson.Result, err error) { gotErr = err })

	sentinel := errors.New("backend gone")
	c.FailPending(sentinel)

	if !errors.Is(gotErr, sentinel) {
		t.Errorf("handler err = %v, want the sentinel", gotErr)
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", c.PendingCount())
	}
}

func TestResponseError(t *testing.T) {
	c, _ := newTestClient()

	var gotErr error
	c.Request("new_view", nil, "", func(_ gjson.Result, err error) { gotErr = err })

	rpcErr := &RPCError{Code: -32000, Message: "io error"}
	c.DispatchResponse(Message{Kind: KindResponse, ID: 1, HasID: true, Err: rpcErr})

	var got *RPCError
	if !errors.As(gotErr, &got) || got.Code != -32000 {
		t.Errorf("handler err = %v, want the rpc error", gotErr)
	}
}

func TestEditFrameShape(t *testing.T) {
	c, buf := newTestClient()

	if err := c.Insert("view-1", "a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	frame := gjson.Parse(strings.TrimSpace(buf.String()))
	if got := frame.Get("method").String(); got != "edit" {
		t.Errorf("method = %q, want edit", got)
	}
	if got := frame.Get("params.method").String(); got != "insert" {
		t.Errorf("params.method = %q, want insert", got)
	}
	if got := frame.Get("params.view_id").String(); got != "view-1" {
		t.Errorf("params.view_id = %q", got)
	}
	if got := frame.Get("params.params.chars").String(); got != "a" {
		t.Errorf("chars = %q", got)
	}
}

func TestScrollFrameShape(t *testing.T) {
	c, buf := newTestClient()

	if err := c.Scroll("view-1", 3, 17); err != nil {
		t.Fatalf("Scroll: %v", err)
	}

	frame := gjson.Parse(strings.TrimSpace(buf.String()))
	arr := frame.Get("params.params").Array()
	if len(arr) != 2 || arr[0].Uint() != 3 || arr[1].Uint() != 17 {
		t.Errorf("scroll params = %s", frame.Get("params.params").Raw)
	}
}

func TestModifyUserConfigFrame(t *testing.T) {
	c, buf := newTestClient()

	err := c.ModifyUserConfig("general", map[string]any{"tab_size": 8, "word_wrap": true})
	if err != nil {
		t.Fatalf("ModifyUserConfig: %v", err)
	}

	frame := gjson.Parse(strings.TrimSpace(buf.String()))
	if got := frame.Get("method").String(); got != "modify_user_config" {
		t.Errorf("method = %q", got)
	}
	if got := frame.Get("params.domain").String(); got != "general" {
		t.Errorf("domain = %q", got)
	}
	if got := frame.Get("params.changes.tab_size").Int(); got != 8 {
		t.Errorf("tab_size = %d", got)
	}
	if !frame.Get("params.changes.word_wrap").Bool() {
		t.Error("word_wrap not true")
	}
}

func TestSendResultFrame(t *testing.T) {
	c, buf := newTestClient()

	if err := c.SendResult(12, [][]float64{{2, 0}}); err != nil {
		t.Fatalf("SendResult: %v", err)
	}

	frame := gjson.Parse(strings.TrimSpace(buf.String()))
	if got := frame.Get("id").Int(); got != 12 {
		t.Errorf("id = %d, want 12", got)
	}
	if got := frame.Get("result.0.0").Float(); got != 2 {
		t.Errorf("result[0][0] = %v, want 2", got)
	}
}
