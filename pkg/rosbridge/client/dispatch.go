package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tsarna/rosbridge/pkg/rosbridge/protocol"
	"github.com/tsarna/rosbridge/pkg/rosbridge/rpc"
)

// dispatch routes one decoded incoming envelope to the correlation
// table or subscription it belongs to, in the priority order of §4.4:
// publish, service_response, cli_response, cancel_action_result,
// action_result, then the top-level type field carrying an action
// event (request/feedback/result/error, which never carries an op).
// The first matching kind wins; an envelope that matches none of them
// is dropped, since a rosbridge server may emit op values this client
// doesn't understand.
func (c *Client) dispatch(env protocol.Envelope) {
	switch {
	case env.Op() == protocol.OpPublish:
		c.dispatchPublish(env)
	case env.Op() == protocol.OpServiceResponse:
		c.dispatchCall(env, "service")
	case env.Op() == protocol.OpCLIResponse:
		c.dispatchCall(env, "cli")
	case env.Op() == protocol.OpCancelActionResult:
		c.dispatchCancel(env)
	case env.Op() == protocol.OpActionResult:
		c.dispatchActionResult(env)
	case env.Op() == "" && env.Type() != "":
		c.dispatchActionEvent(env)
	case env.Op() == protocol.OpError:
		if c.monitor != nil {
			msg, _ := env["msg"].(string)
			if msg == "" {
				msg = "protocol error"
			}
			c.monitor.OnSocketError(context.Background(), c, fmt.Errorf("rosbridge: server error: %s", msg))
		}
	default:
		c.logger.Warn("rosbridge dropped unrecognized envelope", zap.String("op", env.Op()))
	}
}

func (c *Client) dispatchCall(env protocol.Envelope, kind string) {
	id, _ := env["id"].(string)
	if id == "" {
		return
	}

	c.mu.Lock()
	pending, ok := c.calls.Take(id)
	c.mu.Unlock()
	if !ok {
		return
	}
	if pending.Timer != nil {
		pending.Timer.Stop()
	}

	if success, ok := env["result"].(bool); ok && !success {
		errMsg, _ := env["values"].(string)
		if errMsg == "" {
			errMsg, _ = env["error"].(string)
		}
		if errMsg == "" {
			errMsg = fmt.Sprintf("%s call failed", kind)
		}
		if pending.Reject != nil {
			pending.Reject(fmt.Errorf("rosbridge: %s: %s", pending.Name, errMsg))
		}
		return
	}

	value, ok := env["values"]
	if !ok {
		value = env["output"]
	}
	if pending.Resolve != nil {
		pending.Resolve(value)
	}
}

// dispatchActionResult handles {op:"action_result", ...}, the
// out-of-band terminal/error path of §4.4 item 4. It carries no "type"
// field.
func (c *Client) dispatchActionResult(env protocol.Envelope) {
	id, _ := env["id"].(string)
	sessionID, _ := env["session_id"].(string)

	c.mu.Lock()
	pending, ok := c.actions.Find(id, sessionID)
	c.mu.Unlock()
	if !ok {
		return
	}

	c.completeAction(pending.ID, func() {
		if errMsg, ok := env["error"].(string); ok && errMsg != "" {
			if pending.RejectCompletion != nil {
				pending.RejectCompletion(fmt.Errorf("rosbridge: action %s: %s", pending.Action, errMsg))
			}
			return
		}
		result, ok := env["result"]
		if !ok {
			result = env
		}
		if pending.OnResult != nil {
			pending.OnResult(result)
		}
		if pending.ResolveCompletion != nil {
			pending.ResolveCompletion(result)
		}
	})
}

// dispatchActionEvent handles the top-level type-discriminated action
// events of §4.4 item 5: {type:"request"|"feedback"|"result"|"error",
// ...}. These envelopes carry no "op" field.
func (c *Client) dispatchActionEvent(env protocol.Envelope) {
	id, _ := env["id"].(string)
	sessionID, _ := env["session_id"].(string)

	c.mu.Lock()
	pending, ok := c.actions.Find(id, sessionID)
	c.mu.Unlock()
	if !ok {
		return
	}

	switch env.Type() {
	case protocol.TypeRequest:
		if pending.OnRequest != nil {
			pending.OnRequest(env)
		}
	case protocol.TypeFeedback:
		feedback, ok := env["feedback"]
		if !ok {
			feedback = env
		}
		if pending.OnFeedback != nil {
			pending.OnFeedback(feedback)
		}
	case protocol.TypeResult:
		c.completeAction(pending.ID, func() {
			result := env["result"]
			if pending.OnResult != nil {
				pending.OnResult(result)
			}
			if status, ok := numericStatus(env["status"]); ok && status != 0 {
				if pending.RejectCompletion != nil {
					pending.RejectCompletion(fmt.Errorf("rosbridge: action %s: non-success status %d", pending.Action, status))
				}
				return
			}
			if pending.ResolveCompletion != nil {
				pending.ResolveCompletion(result)
			}
		})
	case protocol.TypeError:
		errMsg, _ := env["message"].(string)
		if errMsg == "" {
			errMsg = "action failed"
		}
		c.completeAction(pending.ID, func() {
			if pending.RejectCompletion != nil {
				pending.RejectCompletion(fmt.Errorf("rosbridge: action %s: %s", pending.Action, errMsg))
			}
		})
	}
}

// numericStatus extracts an integer status from a decoded envelope
// field, which may arrive as any numeric type depending on the codec
// (float64 from encoding/json, integer types from CBOR).
func numericStatus(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

// completeAction removes id from the pending-action table before
// invoking finish, so a completion callback that itself inspects the
// table (or a racing timeout) never observes a stale entry.
func (c *Client) completeAction(id string, finish func()) {
	c.mu.Lock()
	p, ok := c.actions.Get(id)
	c.actions.Remove(id)
	c.mu.Unlock()
	if ok && p.Timer != nil {
		p.Timer.Stop()
	}
	finish()
}

func (c *Client) dispatchCancel(env protocol.Envelope) {
	action, _ := env["action"].(string)
	sessionID, _ := env["session_id"].(string)
	key := rpc.CancelKey(action, sessionID)

	c.mu.Lock()
	pending, ok := c.cancels.Take(key)
	c.mu.Unlock()
	if !ok {
		return
	}
	if pending.Timer != nil {
		pending.Timer.Stop()
	}

	if success, ok := env["result"].(bool); ok && !success {
		errMsg, _ := env["error"].(string)
		if errMsg == "" {
			errMsg = "cancel_action_goal failed"
		}
		if pending.Reject != nil {
			pending.Reject(fmt.Errorf("rosbridge: cancel_action_goal %s: %s", action, errMsg))
		}
		return
	}

	if pending.Resolve != nil {
		pending.Resolve(env)
	}
}

func (c *Client) dispatchPublish(env protocol.Envelope) {
	topic, _ := env["topic"].(string)
	if topic == "" {
		return
	}

	c.mu.Lock()
	s, ok := c.subs[topic]
	var callbacks []Callback
	if ok {
		callbacks = s.snapshot()
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	msg := env["msg"]
	for _, cb := range callbacks {
		cb(msg)
	}
}
