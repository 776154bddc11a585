package rpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Transport speaks the backend wire protocol: one JSON object per line, LF
// terminated, in both directions.
//
// The read loop runs on its own goroutine and absorbs all blocking I/O. Every
// decoded frame is pushed onto the delivery queue in arrival order; transport
// failure or EOF pushes a final KindClosed message and closes the queue.
// Nothing on the consumer side ever blocks on the backend.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	queue *Queue

	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewTransport creates a transport over the given connection, typically the
// backend process's stdout/stdin pipes. Decoded messages are delivered on
// queue.
func NewTransport(r io.Reader, w io.Writer, c io.Closer, queue *Queue) *Transport {
	return &Transport{
		reader: bufio.NewReaderSize(r, 64*1024),
		writer: w,
		closer: c,
		queue:  queue,
	}
}

// Start begins the read loop on a new goroutine.
func (t *Transport) Start() {
	go t.readLoop()
}

// Close shuts the transport down. The read loop terminates on the resulting
// read error and emits the terminal message.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// IsClosed reports whether Close has been called or the read loop has ended.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Send writes one frame. msg is marshaled to JSON and terminated with a
// newline. Safe for concurrent use; frames are never interleaved.
func (t *Transport) Send(msg any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	return t.SendRaw(data)
}

// SendRaw writes a pre-serialized JSON frame.
func (t *Transport) SendRaw(data []byte) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if _, err := t.writer.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("write frame terminator: %w", err)
	}
	return nil
}

// readLoop reads frames until the connection fails, then emits the terminal
// message and closes the queue.
func (t *Transport) readLoop() {
	for {
		line, err := t.reader.ReadBytes('\n')
		if len(line) > 0 {
			frame := bytes.TrimRight(line, "\r\n")
			if len(frame) > 0 {
				if msg, ok := decodeMessage(frame); ok {
					t.queue.Push(msg)
				}
				// Undecodable frames are dropped; the protocol has no
				// recovery for them and the next line resynchronizes.
			}
		}
		if err != nil {
			t.finish(err)
			return
		}
	}
}

// finish marks the transport closed and delivers the terminal message.
func (t *Transport) finish(err error) {
	t.closed.Store(true)

	var closeErr error
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
		closeErr = err
	}
	t.queue.Push(Message{Kind: KindClosed, CloseErr: closeErr})
	t.queue.Close()
}
