package rpc

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTransportDecodesFramesInOrder(t *testing.T) {
	pr, pw := io.Pipe()
	q := NewQueue()
	tr := NewTransport(pr, io.Discard, pr, q)
	tr.Start()

	go func() {
		io.WriteString(pw, `{"method": "update", "params": {"view_id": "view-1"}}`+"\n")
		io.WriteString(pw, `{"id": 1, "result": "ok"}`+"\n")
		pw.Close()
	}()

	msg := recv(t, q)
	if msg.Kind != KindNotification || msg.Method != "update" {
		t.Errorf("first message = %+v", msg)
	}
	msg = recv(t, q)
	if msg.Kind != KindResponse || msg.ID != 1 {
		t.Errorf("second message = %+v", msg)
	}
	msg = recv(t, q)
	if msg.Kind != KindClosed {
		t.Fatalf("terminal message kind = %v", msg.Kind)
	}
	if msg.CloseErr != nil {
		t.Errorf("CloseErr = %v, want nil on clean EOF", msg.CloseErr)
	}

	if _, ok := <-q.C(); ok {
		t.Error("queue still open after terminal message")
	}
}

func TestTransportDropsUndecodableFrames(t *testing.T) {
	pr, pw := io.Pipe()
	q := NewQueue()
	tr := NewTransport(pr, io.Discard, pr, q)
	tr.Start()

	go func() {
		io.WriteString(pw, "this is not json\n")
		io.WriteString(pw, "\r\n")
		io.WriteString(pw, `{"method": "alert", "params": {"msg": "hi"}}`+"\r\n")
		pw.Close()
	}()

	msg := recv(t, q)
	if msg.Method != "alert" {
		t.Errorf("Method = %q, want alert after skipping garbage", msg.Method)
	}
	if msg = recv(t, q); msg.Kind != KindClosed {
		t.Errorf("terminal message kind = %v", msg.Kind)
	}
}

func TestTransportSendFraming(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTransport(strings.NewReader(""), &buf, nil, NewQueue())

	if err := tr.Send(map[string]string{"method": "client_started"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	line := buf.String()
	if !strings.HasSuffix(line, "\n") {
		t.Error("frame not newline terminated")
	}
	if strings.Count(line, "\n") != 1 {
		t.Errorf("frame contains embedded newlines: %q", line)
	}
	if !strings.Contains(line, `"client_started"`) {
		t.Errorf("frame = %q", line)
	}
}

func TestTransportSendAfterClose(t *testing.T) {
	tr := NewTransport(strings.NewReader(""), io.Discard, nil, NewQueue())
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Send(map[string]string{"method": "x"}); !errors.Is(err, ErrShutdown) {
		t.Errorf("Send after close = %v, want ErrShutdown", err)
	}
}

func recv(t *testing.T, q *Queue) Message {
	t.Helper()
	select {
	case msg := <-q.C():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}
