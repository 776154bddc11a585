package rpc

import (
	"github.com/tidwall/gjson"
)

// MessageKind discriminates the closed set of message variants the backend
// can deliver. The kind set is fixed by the protocol; new notification
// methods arrive as KindNotification with a new Method string.
type MessageKind int

const (
	// KindNotification is a backend notification, or a backend request when
	// HasID is true (e.g. measure_width expects a reply with the same id).
	KindNotification MessageKind = iota

	// KindResponse is the reply to a request previously sent by this client.
	KindResponse

	// KindClosed is the terminal message: the transport has shut down and no
	// further messages will arrive.
	KindClosed
)

// String returns a human-readable kind name.
func (k MessageKind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Message is one decoded frame from the backend. It is immutable once
// constructed and safe to hand across goroutines.
type Message struct {
	Kind MessageKind

	// Method is set for notifications and backend requests.
	Method string

	// ID is valid when HasID is true. For KindResponse it correlates with a
	// pending request; for KindNotification it marks a backend request that
	// wants a reply via Client.SendResult.
	ID    int64
	HasID bool

	// Params holds the notification parameters.
	Params gjson.Result

	// Result holds the response payload for KindResponse.
	Result gjson.Result

	// Err is the response error for KindResponse, if any.
	Err *RPCError

	// CloseErr carries the transport failure for KindClosed. Nil on a clean
	// EOF.
	CloseErr error
}

// decodeMessage classifies one raw frame. Returns false for frames that are
// not valid protocol messages; the caller logs and skips them.
func decodeMessage(frame []byte) (Message, bool) {
	if !gjson.ValidBytes(frame) {
		return Message{}, false
	}
	root := gjson.ParseBytes(frame)

	id := root.Get("id")
	result := root.Get("result")
	rpcErr := root.Get("error")

	// A frame with an id and either result or error is a response to us.
	if id.Exists() && (result.Exists() || rpcErr.Exists()) {
		msg := Message{
			Kind:   KindResponse,
			ID:     id.Int(),
			HasID:  true,
			Result: result,
		}
		if rpcErr.Exists() {
			msg.Err = &RPCError{
				Code:    int(rpcErr.Get("code").Int()),
				Message: rpcErr.Get("message").String(),
			}
		}
		return msg, true
	}

	method := root.Get("method")
	if !method.Exists() {
		return Message{}, false
	}

	msg := Message{
		Kind:   KindNotification,
		Method: method.String(),
		Params: root.Get("params"),
	}
	if id.Exists() {
		msg.ID = id.Int()
		msg.HasID = true
	}
	return msg, true
}
