// Package protocol builds the wire envelopes of §4.5 and §6: pure,
// total functions from arguments to a protocol message. A fallback
// implementation (Fallback) is always present. An alternative
// implementation can be installed at runtime through a Resolver, in
// which case it is tried first and the fallback is used as a safety net
// if it fails to produce a usable envelope.
package protocol

// Op and Type discriminant values recognized by the client core.
const (
	OpSubscribe          = "subscribe"
	OpUnsubscribe        = "unsubscribe"
	OpAdvertise          = "advertise"
	OpPublish            = "publish"
	OpCallService        = "call_service"
	OpServiceResponse    = "service_response"
	OpSendActionGoal     = "send_action_goal"
	OpCancelActionGoal   = "cancel_action_goal"
	OpCancelActionResult = "cancel_action_result"
	OpActionResult       = "action_result"
	OpCLIRequest         = "cli_request"
	OpCLIResponse        = "cli_response"
	OpError              = "error"

	TypeRequest  = "request"
	TypeFeedback = "feedback"
	TypeResult   = "result"
	TypeError    = "error"
)

// Envelope is a single protocol message: an ordered map on the wire,
// represented in memory as a plain map because Go maps have no
// observable iteration order and the codecs normalize key order on
// encode (see pkg/rosbridge/cbor and pkg/rosbridge/codec).
type Envelope map[string]any

// Op returns the envelope's "op" discriminant, or "" if absent or not a
// string.
func (e Envelope) Op() string { return stringField(e, "op") }

// Type returns the envelope's "type" discriminant, or "" if absent or
// not a string.
func (e Envelope) Type() string { return stringField(e, "type") }

func stringField(e Envelope, key string) string {
	if e == nil {
		return ""
	}
	s, _ := e[key].(string)
	return s
}

func set(e Envelope, key string, value any) {
	if value == nil {
		return
	}
	if s, ok := value.(string); ok && s == "" {
		return
	}
	e[key] = value
}

// Builder is the capability set of the protocol message builder: one
// pure function per outgoing operation named in §6.
type Builder interface {
	Subscribe(topic, msgType, compression string) Envelope
	Unsubscribe(topic string) Envelope
	Advertise(topic, msgType string) Envelope
	Publish(topic string, msg any) Envelope
	CallService(service, msgType string, args any, id string) Envelope
	SendActionGoal(action, actionType string, goal any, id, sessionID string) Envelope
	CancelActionGoal(action, actionType, sessionID string) Envelope
	CLIRequest(id, command string, args []string) Envelope
}

// Fallback is the always-available pure-function implementation of
// Builder. It never fails: every method returns an Envelope with a
// non-empty "op".
var Fallback Builder = fallbackBuilder{}

type fallbackBuilder struct{}

func (fallbackBuilder) Subscribe(topic, msgType, compression string) Envelope {
	e := Envelope{"op": OpSubscribe, "topic": topic}
	set(e, "type", msgType)
	set(e, "compression", compression)
	return e
}

func (fallbackBuilder) Unsubscribe(topic string) Envelope {
	return Envelope{"op": OpUnsubscribe, "topic": topic}
}

func (fallbackBuilder) Advertise(topic, msgType string) Envelope {
	e := Envelope{"op": OpAdvertise, "topic": topic}
	set(e, "type", msgType)
	return e
}

func (fallbackBuilder) Publish(topic string, msg any) Envelope {
	e := Envelope{"op": OpPublish, "topic": topic}
	set(e, "msg", msg)
	return e
}

func (fallbackBuilder) CallService(service, msgType string, args any, id string) Envelope {
	e := Envelope{"op": OpCallService, "service": service}
	set(e, "type", msgType)
	set(e, "args", args)
	set(e, "id", id)
	return e
}

func (fallbackBuilder) SendActionGoal(action, actionType string, goal any, id, sessionID string) Envelope {
	e := Envelope{"op": OpSendActionGoal, "action": action}
	set(e, "action_type", actionType)
	set(e, "goal", goal)
	set(e, "id", id)
	set(e, "session_id", sessionID)
	return e
}

func (fallbackBuilder) CancelActionGoal(action, actionType, sessionID string) Envelope {
	e := Envelope{"op": OpCancelActionGoal, "action": action}
	set(e, "action_type", actionType)
	set(e, "session_id", sessionID)
	return e
}

func (fallbackBuilder) CLIRequest(id, command string, args []string) Envelope {
	e := Envelope{"op": OpCLIRequest, "command": command}
	set(e, "id", id)
	if len(args) > 0 {
		e["args"] = args
	}
	return e
}
