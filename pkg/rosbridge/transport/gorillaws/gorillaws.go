// Package gorillaws adapts github.com/gorilla/websocket to the
// transport.Transport capability set. This is the alternate "browser/
// legacy runtime" adapter of §2's Runtime adapters component: identical
// core semantics to coderws, different underlying library, grounded in
// the dialer/read-loop pattern of EgorLis-Rustplusbot's rpclient.
package gorillaws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tsarna/rosbridge/pkg/rosbridge/transport"
)

// Options configures the dial performed by Start.
type Options struct {
	DialTimeout time.Duration
	Headers     http.Header
}

// NewFactory returns a transport.Factory backed by github.com/gorilla/websocket.
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
	go c.dial()
}

func (c *conn) dial() {
	dialer := &websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}

	ws, _, err := dialer.Dial(c.url, c.opts.Headers)
	if err != nil {
		c.mu.Lock()
		c.state = transport.Closed
		onError := c.onError
		c.mu.Unlock()
		if onError != nil {
			onError(fmt.Errorf("gorillaws: dial: %w", err))
		}
		return
	}

	c.mu.Lock()
	c.ws = ws
	c.state = transport.Open
	onOpen := c.onOpen
	c.mu.Unlock()

	if onOpen != nil {
		onOpen()
	}

	go c.readLoop(ws)
}

func (c *conn) readLoop(ws *websocket.Conn) {
	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			alreadyClosed := c.state == transport.Closed
			c.state = transport.Closed
			onError := c.onError
			onClose := c.onClose
			c.mu.Unlock()

			if !alreadyClosed {
				if onError != nil {
					onError(fmt.Errorf("gorillaws: read: %w", err))
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
			onMessage(transport.Frame{Text: typ == websocket.TextMessage, Data: data})
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
	c.mu.Unlock()

	msgType := websocket.BinaryMessage
	if frame.Text {
		msgType = websocket.TextMessage
	}
	return ws.WriteMessage(msgType, frame.Data)
}

func (c *conn) Close() error {
	c.mu.Lock()
	if c.state == transport.Closed {
		c.mu.Unlock()
		return nil
	}
	c.state = transport.Closed
	ws := c.ws
	onClose := c.onClose
	c.mu.Unlock()

	var err error
	if ws != nil {
		err = ws.Close()
	}
	if onClose != nil {
		onClose()
	}
	return err
}
