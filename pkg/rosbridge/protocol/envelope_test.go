package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackSubscribeOmitsEmptyCompression(t *testing.T) {
	e := Fallback.Subscribe("/topic", "std_msgs/String", "")
	assert.Equal(t, OpSubscribe, e.Op())
	assert.Equal(t, "/topic", e["topic"])
	assert.NotContains(t, e, "compression")
}

func TestFallbackSubscribeIncludesCompression(t *testing.T) {
	e := Fallback.Subscribe("/topic", "std_msgs/String", "cbor-raw")
	assert.Equal(t, "cbor-raw", e["compression"])
}

func TestFallbackCallServiceOmitsEmptyID(t *testing.T) {
	e := Fallback.CallService("/svc", "pkg/Type", map[string]any{"a": 1}, "")
	assert.NotContains(t, e, "id")
	assert.Equal(t, "/svc", e["service"])
}

func TestResolverPrefersAlternateWhenValid(t *testing.T) {
	r := NewResolver()
	r.SetAlternate(stubBuilder{op: OpPublish})

	e, err := r.Build(func(b Builder) Envelope { return b.Publish("/t", 1) })
	assert.NoError(t, err)
	assert.Equal(t, OpPublish, e.Op())
}

func TestResolverFallsBackWhenAlternateYieldsNoOp(t *testing.T) {
	r := NewResolver()
	r.SetAlternate(stubBuilder{op: ""})

	e, err := r.Build(func(b Builder) Envelope { return b.Publish("/t", 1) })
	assert.NoError(t, err)
	assert.Equal(t, OpPublish, e.Op())
}

func TestResolverWithNoAlternateUsesFallback(t *testing.T) {
	r := NewResolver()

	e, err := r.Build(func(b Builder) Envelope { return b.Advertise("/t", "std_msgs/String") })
	assert.NoError(t, err)
	assert.Equal(t, OpAdvertise, e.Op())
}

// stubBuilder lets tests simulate an alternate implementation that
// either always succeeds or always yields an op-less envelope.
type stubBuilder struct {
	op string
}

func (s stubBuilder) envelope() Envelope {
	if s.op == "" {
		return Envelope{}
	}
	return Envelope{"op": s.op}
}

func (s stubBuilder) Subscribe(topic, msgType, compression string) Envelope     { return s.envelope() }
func (s stubBuilder) Unsubscribe(topic string) Envelope                        { return s.envelope() }
func (s stubBuilder) Advertise(topic, msgType string) Envelope                 { return s.envelope() }
func (s stubBuilder) Publish(topic string, msg any) Envelope                   { return s.envelope() }
func (s stubBuilder) CallService(service, msgType string, args any, id string) Envelope {
	return s.envelope()
}
func (s stubBuilder) SendActionGoal(action, actionType string, goal any, id, sessionID string) Envelope {
	return s.envelope()
}
func (s stubBuilder) CancelActionGoal(action, actionType, sessionID string) Envelope {
	return s.envelope()
}
func (s stubBuilder) CLIRequest(id, command string, args []string) Envelope { return s.envelope() }
