// Package transport defines the capability set of §4.6: a factory that
// produces an object exposing readyState, send, close, and four
// assignable event hooks. Concrete adapters live in subpackages
// (coderws, gorillaws); the client core depends only on this interface.
package transport

import "context"

// ReadyState mirrors the browser WebSocket readyState values named in
// §4.6 ("readyState (integer; 1 == OPEN)").
type ReadyState int

const (
	Connecting ReadyState = 0
	Open       ReadyState = 1
	Closing    ReadyState = 2
	Closed     ReadyState = 3
)

// Frame is one wire frame: a text frame (Text=true, Data holds the
// UTF-8 bytes) or a binary frame (Text=false).
type Frame struct {
	Text bool
	Data []byte
}

// Transport is the capability set the client core depends on. A
// Transport is constructed in the Connecting state by a Factory; the
// core assigns its event hooks and then calls Start to begin dialing.
// This sequences hook assignment safely ahead of the first possible
// event delivery — the Go analogue of a browser `new WebSocket(url)`
// followed synchronously by `ws.onopen = ...` in a single-threaded
// runtime where no event can fire before the assignment completes.
type Transport interface {
	ReadyState() ReadyState

	// Start begins connecting. It must be called after the four hooks
	// are installed; it returns immediately and delivers OnOpen or
	// OnError asynchronously.
	Start(ctx context.Context)

	// Send transmits one frame. It fails with "WebSocket is not
	// connected" if ReadyState is not Open.
	Send(frame Frame) error

	// Close closes the connection. Idempotent.
	Close() error

	SetOnOpen(func())
	SetOnMessage(func(Frame))
	SetOnError(func(error))
	SetOnClose(func())
}

// Factory produces a new, unstarted Transport for url.
type Factory func(url string) Transport
