package rpc

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrShutdown indicates the transport has been closed.
	ErrShutdown = errors.New("rpc: transport closed")

	// ErrBackendExited indicates the backend process has terminated.
	ErrBackendExited = errors.New("rpc: backend process exited")

	// ErrNotStarted indicates the backend has not been started yet.
	ErrNotStarted = errors.New("rpc: backend not started")
)

// RPCError is an error object returned by the backend in a response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != 0 {
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("rpc error: %s", e.Message)
}
