package client

import "errors"

var (
	// ErrNotConnected is returned by send-side operations attempted
	// while the transport is not open (§7, "Send while not connected").
	ErrNotConnected = errors.New("WebSocket is not connected")

	// ErrNoTransportFactory is returned by Connect when no transport
	// Factory was configured on the builder (§7, "Transport unavailable").
	ErrNoTransportFactory = errors.New("rosbridge: no transport factory configured")

	// ErrManualClose is the error a caller sees on a Connect completion
	// that was superseded by an explicit Close.
	ErrManualClose = errors.New("rosbridge: client was closed")

	// ErrDisconnected is used to reject pending action completions and
	// cancels on disconnect (§5).
	ErrDisconnected = errors.New("interrupted by disconnect; resend after reconnect")
)
