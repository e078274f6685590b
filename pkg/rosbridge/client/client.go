// Package client implements the connection state machine of §3/§4.4: a
// single WebSocket connection to a rosbridge-compatible server, with
// automatic reconnect, subscription/advertisement replay, and the
// correlation tables backing callService, sendActionGoal,
// cancelActionGoal, and the CLI execution surface.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsarna/rosbridge/pkg/rosbridge/codec"
	"github.com/tsarna/rosbridge/pkg/rosbridge/o11y"
	"github.com/tsarna/rosbridge/pkg/rosbridge/protocol"
	"github.com/tsarna/rosbridge/pkg/rosbridge/reconnect"
	"github.com/tsarna/rosbridge/pkg/rosbridge/rpc"
	"github.com/tsarna/rosbridge/pkg/rosbridge/transport"
)

// State is one of the five connection states of §3.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateActive
	StateWaiting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	case StateWaiting:
		return "waiting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func defaultIDGenerator() string { return uuid.NewString() }

// Client is a single rosbridge connection. Zero value is not usable;
// construct one with NewClient().Build().
type Client struct {
	transportFactory transport.Factory
	codec            codec.Codec
	logger           *zap.Logger
	monitor          ClientMonitor
	defaultTimeout   time.Duration
	resolver         *protocol.Resolver
	metrics          o11y.MetricsProvider
	tracing          o11y.TracingProvider
	idGenerator      func() string
	reconnect        *reconnect.Scheduler

	mu         sync.Mutex
	url        string
	state      State
	tr         transport.Transport
	closing    bool // Close() has been called; no further connects
	generation uint64

	subs        map[string]*subscription
	subOrder    []string
	adverts     map[string]*advertisement
	advertOrder []string

	calls   *rpc.Calls
	actions *rpc.Actions
	cancels *rpc.Cancels

	connectErr  error
	connectDone chan struct{}
}

// URL returns the server URL passed to the most recent Connect call.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials url and blocks until the connection is Active, fails,
// or ctx is canceled. Calling Connect while a connection attempt for
// the same generation is already in flight joins that attempt rather
// than starting a second one (§4.4, "concurrent Connect calls are
// deduplicated").
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrManualClose
	}
	if c.state == StateOpening || c.state == StateActive {
		done := c.connectDone
		c.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
			return c.connectErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.url = url
	c.state = StateOpening
	c.generation++
	gen := c.generation
	c.reconnect.AllowReconnect()
	done := make(chan struct{})
	c.connectDone = done
	c.mu.Unlock()

	if c.transportFactory == nil {
		c.finishConnect(gen, done, ErrNoTransportFactory)
		return ErrNoTransportFactory
	}

	tr := c.transportFactory(url)
	tr.SetOnOpen(func() { c.handleOpen(gen) })
	tr.SetOnMessage(func(f transport.Frame) { c.handleMessage(gen, f) })
	tr.SetOnError(func(err error) { c.handleError(gen, err) })
	tr.SetOnClose(func() { c.handleClose(gen, nil) })

	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()

	tr.Start(ctx)

	select {
	case <-done:
		return c.connectErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) finishConnect(gen uint64, done chan struct{}, err error) {
	c.mu.Lock()
	if gen == c.generation {
		c.connectErr = err
		if err != nil {
			c.state = StateClosed
		}
	}
	c.mu.Unlock()
	close(done)
}

// Close shuts the connection down permanently: it cancels any armed
// reconnect timer, closes the transport, and prevents further Connect
// calls from opening a new socket.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.generation++ // orphan any in-flight transport's callbacks
	tr := c.tr
	c.state = StateClosed
	c.mu.Unlock()

	c.reconnect.ManualClose()

	if tr != nil {
		return tr.Close()
	}
	return nil
}

func (c *Client) isCurrentGeneration(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation
}

func (c *Client) handleOpen(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.state = StateActive
	c.mu.Unlock()

	c.reconnect.ResetAttempt()

	// Replay failures propagate as a connect_error and trigger reconnect
	// scheduling instead of signalling success upward (§4.4, "State
	// replay on reconnect"). handleDisconnect finds connectDone still
	// set (it hasn't been cleared yet) and closes it with err.
	if err := c.replayState(); err != nil {
		c.handleDisconnect(gen, reconnect.ReasonConnectError, err)
		return
	}

	c.mu.Lock()
	done := c.connectDone
	c.connectDone = nil
	c.mu.Unlock()

	if done != nil {
		c.connectErr = nil
		close(done)
	}
	if c.monitor != nil {
		c.monitor.OnConnect(context.Background(), c)
	}
}

func (c *Client) handleMessage(gen uint64, frame transport.Frame) {
	if !c.isCurrentGeneration(gen) {
		return
	}
	var payload any = frame.Data
	if frame.Text {
		payload = string(frame.Data)
	}
	msg, err := c.codec.Decode(payload)
	if err != nil {
		c.logger.Warn("rosbridge dropped undecodable frame", zap.Error(err))
		if c.monitor != nil {
			c.monitor.OnSocketError(context.Background(), c, fmt.Errorf("decode: %w", err))
		}
		return
	}
	envelope, ok := msg.(map[string]any)
	if !ok {
		c.logger.Warn("rosbridge dropped non-object frame")
		return
	}
	c.dispatch(protocol.Envelope(envelope))
}

func (c *Client) handleError(gen uint64, err error) {
	if !c.isCurrentGeneration(gen) {
		return
	}
	if c.monitor != nil {
		c.monitor.OnSocketError(context.Background(), c, err)
	}
	c.handleDisconnect(gen, reconnect.ReasonSocketError, err)
}

func (c *Client) handleClose(gen uint64, err error) {
	if !c.isCurrentGeneration(gen) {
		return
	}
	c.handleDisconnect(gen, reconnect.ReasonSocketClose, err)
}

// handleDisconnect implements §5: pending service calls survive
// unmodified across a disconnect, but pending action completions and
// cancels are rejected with ErrDisconnected and their tables cleared,
// since the server-side goal state is no longer knowable.
func (c *Client) handleDisconnect(gen uint64, reason reconnect.Reason, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	wasActive := c.state == StateActive || c.state == StateOpening
	closing := c.closing
	c.state = StateWaiting
	done := c.connectDone
	c.connectDone = nil
	actions := c.actions.DrainAll()
	cancels := c.cancels.DrainAll()
	c.mu.Unlock()

	for _, p := range actions {
		if p.Timer != nil {
			p.Timer.Stop()
		}
		if p.RejectCompletion != nil {
			p.RejectCompletion(ErrDisconnected)
		}
	}
	for _, p := range cancels {
		if p.Timer != nil {
			p.Timer.Stop()
		}
		if p.Reject != nil {
			p.Reject(ErrDisconnected)
		}
	}

	if wasActive && c.monitor != nil {
		c.monitor.OnDisconnect(context.Background(), c, err)
	}

	if done != nil {
		c.connectErr = err
		if c.connectErr == nil {
			c.connectErr = ErrNotConnected
		}
		close(done)
	}

	if closing {
		return
	}

	c.reconnect.Schedule(reason, err, func() {
		c.mu.Lock()
		url := c.url
		closingNow := c.closing
		c.mu.Unlock()
		if closingNow {
			return
		}
		_ = c.Connect(context.Background(), url)
	})
}

func (c *Client) onReconnectScheduled(ev reconnect.Event) {
	if c.monitor != nil {
		c.monitor.OnReconnectScheduled(context.Background(), c, ev)
	}
	if c.metrics != nil {
		c.metrics.Counter("rosbridge_reconnects_total").Add(context.Background(), 1,
			o11y.Label{Key: "reason", Value: string(ev.Reason)})
		c.metrics.Gauge("rosbridge_reconnect_attempt").Set(context.Background(), float64(ev.Attempt))
	}
}

// traceOperation starts a span named op, when tracing is configured,
// and returns a function that records latency and ends the span. It is
// a no-op when no TracingProvider was installed on the Builder.
func (c *Client) traceOperation(ctx context.Context, op, name string) (context.Context, func(err error)) {
	start := time.Now()
	var span o11y.Span
	if c.tracing != nil {
		ctx, span = c.tracing.StartSpan(ctx, op)
		span.SetAttributes(o11y.Label{Key: "name", Value: name})
	}
	return ctx, func(err error) {
		if c.metrics != nil {
			c.metrics.Histogram("rosbridge_" + op + "_duration_ms").Record(ctx, float64(time.Since(start).Milliseconds()),
				o11y.Label{Key: "name", Value: name})
		}
		if span != nil {
			if err != nil {
				span.SetStatus(o11y.SpanStatusError, err.Error())
			} else {
				span.SetStatus(o11y.SpanStatusOK, "")
			}
			span.End()
		}
	}
}

// replayState resends the subscribe/advertise tables in insertion order
// after a fresh open, per §4.4's reconnect replay rule. It returns the
// first build or send error encountered, stopping the replay there;
// the caller propagates that as a connect_error.
func (c *Client) replayState() error {
	c.mu.Lock()
	subOrder := append([]string(nil), c.subOrder...)
	subs := make(map[string]*subscription, len(c.subs))
	for k, v := range c.subs {
		subs[k] = v
	}
	advertOrder := append([]string(nil), c.advertOrder...)
	adverts := make(map[string]*advertisement, len(c.adverts))
	for k, v := range c.adverts {
		adverts[k] = v
	}
	c.mu.Unlock()

	for _, topic := range subOrder {
		s, ok := subs[topic]
		if !ok {
			continue
		}
		env, err := c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
			return b.Subscribe(s.topic, s.msgType, s.compression)
		})
		if err != nil {
			return fmt.Errorf("rosbridge: replay subscribe %s: %w", topic, err)
		}
		if err := c.send(env); err != nil {
			return fmt.Errorf("rosbridge: replay subscribe %s: %w", topic, err)
		}
	}
	for _, topic := range advertOrder {
		a, ok := adverts[topic]
		if !ok {
			continue
		}
		env, err := c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
			return b.Advertise(a.topic, a.msgType)
		})
		if err != nil {
			return fmt.Errorf("rosbridge: replay advertise %s: %w", topic, err)
		}
		if err := c.send(env); err != nil {
			return fmt.Errorf("rosbridge: replay advertise %s: %w", topic, err)
		}
	}
	return nil
}

// send encodes and transmits one envelope. It returns ErrNotConnected
// if the transport isn't Open.
func (c *Client) send(env protocol.Envelope) error {
	c.mu.Lock()
	tr := c.tr
	cdc := c.codec
	c.mu.Unlock()

	if tr == nil || tr.ReadyState() != transport.Open {
		return ErrNotConnected
	}

	encoded, err := cdc.Encode(map[string]any(env))
	if err != nil {
		return fmt.Errorf("rosbridge: encode: %w", err)
	}

	switch v := encoded.(type) {
	case string:
		return tr.Send(transport.Frame{Text: true, Data: []byte(v)})
	case []byte:
		return tr.Send(transport.Frame{Text: false, Data: v})
	default:
		return fmt.Errorf("rosbridge: codec %s returned unsupported encoding %T", cdc.Name(), encoded)
	}
}

func (c *Client) nextID() string {
	return c.idGenerator()
}
