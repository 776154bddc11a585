package rpc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// BackendConfig defines how to start the backend process.
type BackendConfig struct {
	// Command is the backend executable.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// WorkDir is the working directory for the process.
	WorkDir string

	// Stderr receives the backend's stderr output. Defaults to os.Stderr.
	Stderr io.Writer
}

// Backend owns the backend process and the transport over its pipes. All
// buffer truth lives on the far side of it.
type Backend struct {
	mu sync.Mutex

	config BackendConfig

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	queue     *Queue
	transport *Transport
	client    *Client

	exitCh    chan error
	closeOnce sync.Once
}

// NewBackend creates a backend handle (not yet started).
func NewBackend(config BackendConfig) *Backend {
	return &Backend{
		config: config,
		exitCh: make(chan error, 1),
	}
}

// Start launches the process and begins reading messages. After Start,
// Queue() delivers decoded messages and Client() accepts commands.
func (b *Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cmd != nil {
		return fmt.Errorf("rpc: backend already started")
	}

	cmd := exec.CommandContext(ctx, b.config.Command, b.config.Args...)
	cmd.Env = os.Environ()
	for k, v := range b.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if b.config.WorkDir != "" {
		cmd.Dir = b.config.WorkDir
	}
	if b.config.Stderr != nil {
		cmd.Stderr = b.config.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("start backend %q: %w", b.config.Command, err)
	}

	b.cmd = cmd
	b.stdin = stdin
	b.stdout = stdout

	b.queue = NewQueue()
	b.transport = NewTransport(stdout, stdin, stdin, b.queue)
	b.client = NewClient(b.transport)
	b.transport.Start()

	go b.monitor()
	return nil
}

// monitor waits for the process to exit and records the result.
func (b *Backend) monitor() {
	err := b.cmd.Wait()
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrBackendExited, err)
	} else {
		err = ErrBackendExited
	}
	b.exitCh <- err
}

// Queue returns the ordered delivery queue. Nil before Start.
func (b *Backend) Queue() *Queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue
}

// Client returns the command client. Nil before Start.
func (b *Backend) Client() *Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

// Exited delivers the process exit result once.
func (b *Backend) Exited() <-chan error {
	return b.exitCh
}

// Close shuts down the transport and signals the process to exit by closing
// its stdin. The read loop delivers the terminal message to the queue.
// Returns ErrNotStarted when the backend never launched.
func (b *Backend) Close() error {
	b.mu.Lock()
	started := b.cmd != nil
	b.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		t := b.transport
		b.mu.Unlock()
		if t != nil {
			err = t.Close()
		}
	})
	return err
}
