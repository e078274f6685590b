package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsarna/rosbridge/pkg/rosbridge/codec"
	"github.com/tsarna/rosbridge/pkg/rosbridge/protocol"
	"github.com/tsarna/rosbridge/pkg/rosbridge/reconnect"
	"github.com/tsarna/rosbridge/pkg/rosbridge/transport"
)

// fakeTransport is an in-memory transport.Transport double: Start opens
// immediately (or fails, if failOpen is set), and Sent records every
// frame the client tries to write so tests can assert on the wire
// traffic without a real socket.
type fakeTransport struct {
	mu       sync.Mutex
	state    transport.ReadyState
	failOpen bool
	failSend bool
	sent     []protocol.Envelope

	onOpen    func()
	onMessage func(transport.Frame)
	onError   func(error)
	onClose   func()
}

func newFakeTransport(failOpen bool) *fakeTransport {
	return &fakeTransport{state: transport.Connecting, failOpen: failOpen}
}

func (f *fakeTransport) ReadyState() transport.ReadyState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) Start(ctx context.Context) {
	if f.failOpen {
		f.mu.Lock()
		f.state = transport.Closed
		onError := f.onError
		f.mu.Unlock()
		if onError != nil {
			onError(assertErr)
		}
		return
	}
	f.mu.Lock()
	f.state = transport.Open
	onOpen := f.onOpen
	f.mu.Unlock()
	if onOpen != nil {
		onOpen()
	}
}

func (f *fakeTransport) Send(frame transport.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != transport.Open {
		return ErrNotConnected
	}
	if f.failSend {
		return errSendFailed
	}
	var env map[string]any
	_ = json.Unmarshal(frame.Data, &env)
	f.sent = append(f.sent, protocol.Envelope(env))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.state = transport.Closed
	onClose := f.onClose
	f.mu.Unlock()
	if onClose != nil {
		onClose()
	}
	return nil
}

func (f *fakeTransport) SetOnOpen(fn func())                   { f.onOpen = fn }
func (f *fakeTransport) SetOnMessage(fn func(transport.Frame)) { f.onMessage = fn }
func (f *fakeTransport) SetOnError(fn func(error))             { f.onError = fn }
func (f *fakeTransport) SetOnClose(fn func())                  { f.onClose = fn }

func (f *fakeTransport) deliver(env map[string]any) {
	b, _ := json.Marshal(env)
	f.mu.Lock()
	onMessage := f.onMessage
	f.mu.Unlock()
	onMessage(transport.Frame{Text: true, Data: b})
}

var assertErr = errors.New("connect failed")
var errSendFailed = errors.New("send failed")

func newTestClient(t *testing.T, tr *fakeTransport) *Client {
	t.Helper()
	c, err := NewClient().
		WithTransportFactory(func(url string) transport.Transport { return tr }).
		WithCodec(codec.JSON).
		WithDefaultTimeout(time.Second).
		WithReconnectConfig(reconnect.Config{Enabled: false}).
		Build()
	require.NoError(t, err)
	return c
}

func TestConnectSucceedsAndReplaysNothingOnFirstConnect(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)

	err := c.Connect(context.Background(), "ws://example.invalid")
	require.NoError(t, err)
	assert.Equal(t, StateActive, c.State())
	assert.Equal(t, "ws://example.invalid", c.URL())
}

func TestConnectFailurePropagatesError(t *testing.T) {
	tr := newFakeTransport(true)
	c := newTestClient(t, tr)

	err := c.Connect(context.Background(), "ws://example.invalid")
	assert.Error(t, err)
}

func TestSubscribeSendsSubscribeMessage(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	var got any
	err := c.Subscribe("/topic", "std_msgs/String", "", func(msg any) { got = msg })
	require.NoError(t, err)

	require.Len(t, tr.sent, 1)
	assert.Equal(t, protocol.OpSubscribe, tr.sent[0].Op())
	assert.Equal(t, "/topic", tr.sent[0]["topic"])

	tr.deliver(map[string]any{"op": "publish", "topic": "/topic", "msg": map[string]any{"data": "hi"}})
	assert.Equal(t, map[string]any{"data": "hi"}, got)
}

func TestSecondSubscribeWithSameTypeDoesNotResend(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	require.NoError(t, c.Subscribe("/topic", "std_msgs/String", "", func(any) {}))
	require.NoError(t, c.Subscribe("/topic", "std_msgs/String", "", func(any) {}))

	assert.Len(t, tr.sent, 1)
}

func TestUnsubscribeLastCallbackSendsUnsubscribe(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	cb := func(any) {}
	require.NoError(t, c.Subscribe("/topic", "", "", cb))
	require.NoError(t, c.Unsubscribe("/topic", cb))

	require.Len(t, tr.sent, 2)
	assert.Equal(t, protocol.OpUnsubscribe, tr.sent[1].Op())
}

func TestCallServiceResolvesOnServiceResponse(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	type result struct {
		val any
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		v, err := c.CallService(context.Background(), "/add_two_ints", "", map[string]any{"a": 1, "b": 2}, ServiceOptions{})
		resultCh <- result{v, err}
	}()

	require.Eventually(t, func() bool { return len(tr.sent) == 1 }, time.Second, time.Millisecond)
	id, _ := tr.sent[0]["id"].(string)
	require.NotEmpty(t, id)

	tr.deliver(map[string]any{"op": "service_response", "id": id, "result": true, "values": map[string]any{"sum": 3}})

	r := <-resultCh
	require.NoError(t, r.err)
	assert.Equal(t, map[string]any{"sum": 3.0}, r.val)
}

func TestCallServiceRejectsOnFalseResult(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	type result struct {
		val any
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		v, err := c.CallService(context.Background(), "/fails", "", nil, ServiceOptions{})
		resultCh <- result{v, err}
	}()

	require.Eventually(t, func() bool { return len(tr.sent) == 1 }, time.Second, time.Millisecond)
	id, _ := tr.sent[0]["id"].(string)

	tr.deliver(map[string]any{"op": "service_response", "id": id, "result": false, "values": "boom"})

	r := <-resultCh
	assert.Error(t, r.err)
}

func TestSendActionGoalResolvesOnActionResult(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	handle, err := c.SendActionGoal(context.Background(), "/move", "my_msgs/Move", map[string]any{"dist": 1}, ActionOptions{})
	require.NoError(t, err)

	require.Len(t, tr.sent, 1)
	id, _ := tr.sent[0]["id"].(string)
	require.NotEmpty(t, id)

	tr.deliver(map[string]any{"type": "feedback", "id": id, "feedback": map[string]any{"pct": 50.0}})
	fb := <-handle.Feedback
	assert.Equal(t, map[string]any{"pct": 50.0}, fb)

	tr.deliver(map[string]any{"type": "result", "id": id, "status": 0.0, "result": map[string]any{"done": true}})

	outcome := <-handle.Result
	require.NoError(t, outcome.Err)
	assert.Equal(t, map[string]any{"done": true}, outcome.Value)
}

func TestSendActionGoalRejectsOnNonSuccessStatus(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	handle, err := c.SendActionGoal(context.Background(), "/move", "my_msgs/Move", nil, ActionOptions{})
	require.NoError(t, err)

	require.Len(t, tr.sent, 1)
	id, _ := tr.sent[0]["id"].(string)
	require.NotEmpty(t, id)

	tr.deliver(map[string]any{"type": "result", "id": id, "status": 2.0, "result": nil})

	outcome := <-handle.Result
	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "non-success status 2")
}

func TestSendActionGoalRejectsOnActionResultError(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	handle, err := c.SendActionGoal(context.Background(), "/move", "my_msgs/Move", nil, ActionOptions{})
	require.NoError(t, err)

	require.Len(t, tr.sent, 1)
	id, _ := tr.sent[0]["id"].(string)
	require.NotEmpty(t, id)

	tr.deliver(map[string]any{"op": "action_result", "id": id, "action": "/move", "error": "unknown_action_type"})

	outcome := <-handle.Result
	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "unknown_action_type")
}

func TestCancelActionGoalResolvesOnCancelActionResult(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	type result struct {
		val any
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		v, err := c.CancelActionGoal(context.Background(), "/move", "my_msgs/Move", ActionOptions{})
		resultCh <- result{v, err}
	}()

	require.Eventually(t, func() bool { return len(tr.sent) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, protocol.OpCancelActionGoal, tr.sent[0].Op())

	tr.deliver(map[string]any{"op": "cancel_action_result", "action": "/move", "session_id": ""})

	r := <-resultCh
	require.NoError(t, r.err)
}

func TestCancelActionGoalRejectsOnFalseResult(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	type result struct {
		val any
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		v, err := c.CancelActionGoal(context.Background(), "/move", "my_msgs/Move", ActionOptions{})
		resultCh <- result{v, err}
	}()

	require.Eventually(t, func() bool { return len(tr.sent) == 1 }, time.Second, time.Millisecond)

	tr.deliver(map[string]any{"op": "cancel_action_result", "action": "/move", "session_id": "", "result": false, "error": "no such goal"})

	r := <-resultCh
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "no such goal")
}

func TestDisconnectRejectsPendingActionsButKeepsPendingCalls(t *testing.T) {
	tr := newFakeTransport(false)
	c := newTestClient(t, tr)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	handle, err := c.SendActionGoal(context.Background(), "/move", "my_msgs/Move", nil, ActionOptions{})
	require.NoError(t, err)

	callErrCh := make(chan error, 1)
	go func() {
		_, err := c.CallService(context.Background(), "/svc", "", nil, ServiceOptions{Timeout: 200 * time.Millisecond})
		callErrCh <- err
	}()
	require.Eventually(t, func() bool { return len(tr.sent) == 2 }, time.Second, time.Millisecond)

	tr.Close() // simulate the socket dropping

	outcome := <-handle.Result
	assert.ErrorIs(t, outcome.Err, ErrDisconnected)

	// The pending service call isn't rejected by the disconnect itself;
	// it only fails once its own timeout elapses, well after the
	// disconnect above.
	select {
	case <-callErrCh:
		t.Fatal("pending service call resolved before its own timeout")
	case <-time.After(50 * time.Millisecond):
	}
	err = <-callErrCh
	assert.Error(t, err)
}

func TestReplaySendsSubscriptionsAfterReconnect(t *testing.T) {
	tr1 := newFakeTransport(false)
	generation := 0
	trs := []*fakeTransport{tr1}

	c, err := NewClient().
		WithTransportFactory(func(url string) transport.Transport {
			if generation < len(trs) {
				t := trs[generation]
				generation++
				return t
			}
			return newFakeTransport(false)
		}).
		WithCodec(codec.JSON).
		WithReconnectConfig(reconnect.Config{Enabled: false}).
		Build()
	require.NoError(t, err)

	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))
	require.NoError(t, c.Subscribe("/topic", "std_msgs/String", "", func(any) {}))
	assert.Len(t, tr1.sent, 1)

	tr1.Close() // simulate the socket dropping so State() is Waiting, not Active
	assert.Eventually(t, func() bool { return c.State() == StateWaiting }, time.Second, time.Millisecond)

	tr2 := newFakeTransport(false)
	trs = append(trs, tr2)
	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))

	require.Len(t, tr2.sent, 1)
	assert.Equal(t, protocol.OpSubscribe, tr2.sent[0].Op())
	assert.Equal(t, "/topic", tr2.sent[0]["topic"])
}

func TestReplayFailurePropagatesAsConnectError(t *testing.T) {
	tr1 := newFakeTransport(false)
	generation := 0
	trs := []*fakeTransport{tr1}

	c, err := NewClient().
		WithTransportFactory(func(url string) transport.Transport {
			if generation < len(trs) {
				t := trs[generation]
				generation++
				return t
			}
			return newFakeTransport(false)
		}).
		WithCodec(codec.JSON).
		WithReconnectConfig(reconnect.Config{Enabled: false}).
		Build()
	require.NoError(t, err)

	require.NoError(t, c.Connect(context.Background(), "ws://example.invalid"))
	require.NoError(t, c.Subscribe("/topic", "std_msgs/String", "", func(any) {}))
	assert.Len(t, tr1.sent, 1)

	tr1.Close() // simulate the socket dropping so State() is Waiting, not Active
	assert.Eventually(t, func() bool { return c.State() == StateWaiting }, time.Second, time.Millisecond)

	// The next transport opens fine but can't send: replay of the
	// subscribe table must fail, and that failure must come back out of
	// Connect as a connect_error rather than a false success.
	tr2 := newFakeTransport(false)
	tr2.failSend = true
	trs = append(trs, tr2)

	err = c.Connect(context.Background(), "ws://example.invalid")
	require.Error(t, err)
	assert.ErrorIs(t, err, errSendFailed)
	assert.Equal(t, StateWaiting, c.State())
}
