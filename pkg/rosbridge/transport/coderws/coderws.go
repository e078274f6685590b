// Package coderws adapts github.com/coder/websocket to the
// transport.Transport capability set. This is the "server runtime"
// adapter of §2's Runtime adapters component, grounded in
// pkg/vinculum/websockets/client's use of the same library.
package coderws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/tsarna/rosbridge/pkg/rosbridge/transport"
)

// Options configures the dial performed by Start.
type Options struct {
	DialTimeout time.Duration
	Headers     map[string][]string
}

// NewFactory returns a transport.Factory backed by github.com/coder/websocket.
func NewFactory(opts Options) transport.Factory {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 30 * time.Second
	}
	return func(url string) transport.Transport {
		return &conn{url: url, opts: opts, state: transport.Connecting}
	}
}

type conn struct {
	url  string
	opts Options

	mu    sync.Mutex
	state transport.ReadyState
	ws    *websocket.Conn
	ctx   context.Context
	cnl   context.CancelFunc

	onOpen    func()
	onMessage func(transport.Frame)
	onError   func(error)
	onClose   func()
}

func (c *conn) ReadyState() transport.ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *conn) SetOnOpen(f func()) {
	c.mu.Lock()
	c.onOpen = f
	c.mu.Unlock()
}

func (c *conn) SetOnMessage(f func(transport.Frame)) {
	c.mu.Lock()
	c.onMessage = f
	c.mu.Unlock()
}

func (c *conn) SetOnError(f func(error)) {
	c.mu.Lock()
	c.onError = f
	c.mu.Unlock()
}

func (c *conn) SetOnClose(f func()) {
	c.mu.Lock()
	c.onClose = f
	c.mu.Unlock()
}

func (c *conn) Start(ctx context.Context) {
	go c.dial(ctx)
}

func (c *conn) dial(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	dialOpts := &websocket.DialOptions{}
	if c.opts.Headers != nil {
		dialOpts.HTTPHeader = c.opts.Headers
	}

	ws, _, err := websocket.Dial(dialCtx, c.url, dialOpts)
	if err != nil {
		c.mu.Lock()
		c.state = transport.Closed
		onError := c.onError
		c.mu.Unlock()
		if onError != nil {
			onError(fmt.Errorf("coderws: dial: %w", err))
		}
		return
	}

	runCtx, runCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.ws = ws
	c.ctx = runCtx
	c.cnl = runCancel
	c.state = transport.Open
	onOpen := c.onOpen
	c.mu.Unlock()

	if onOpen != nil {
		onOpen()
	}

	go c.readLoop(runCtx, ws)
}

func (c *conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			c.mu.Lock()
			alreadyClosed := c.state == transport.Closed
			c.state = transport.Closed
			onError := c.onError
			onClose := c.onClose
			c.mu.Unlock()

			if !alreadyClosed {
				if ctx.Err() == nil && onError != nil {
					onError(fmt.Errorf("coderws: read: %w", err))
				}
				if onClose != nil {
					onClose()
				}
			}
			return
		}

		c.mu.Lock()
		onMessage := c.onMessage
		c.mu.Unlock()

		if onMessage != nil {
			onMessage(transport.Frame{Text: typ == websocket.MessageText, Data: data})
		}
	}
}

func (c *conn) Send(frame transport.Frame) error {
	c.mu.Lock()
	if c.state != transport.Open {
		c.mu.Unlock()
		return fmt.Errorf("WebSocket is not connected")
	}
	ws := c.ws
	ctx := c.ctx
	c.mu.Unlock()

	msgType := websocket.MessageBinary
	if frame.Text {
		msgType = websocket.MessageText
	}
	return ws.Write(ctx, msgType, frame.Data)
}

func (c *conn) Close() error {
	c.mu.Lock()
	if c.state == transport.Closed {
		c.mu.Unlock()
		return nil
	}
	c.state = transport.Closed
	ws := c.ws
	cancel := c.cnl
	onClose := c.onClose
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ws != nil {
		_ = ws.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if onClose != nil {
		onClose()
	}
	return nil
}
