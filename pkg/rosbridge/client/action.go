package client

import (
	"context"
	"fmt"
	"time"

	"github.com/tsarna/rosbridge/pkg/rosbridge/protocol"
	"github.com/tsarna/rosbridge/pkg/rosbridge/rpc"
)

// ActionOptions configures a single sendActionGoal or cancelActionGoal
// invocation.
type ActionOptions struct {
	ID        string
	SessionID string
	Timeout   time.Duration
}

// ActionHandle is returned by SendActionGoal. Feedback delivers every
// feedback message for the goal until the goal reaches a terminal
// state; Result resolves once with the terminal result or an error.
type ActionHandle struct {
	ID        string
	SessionID string
	Feedback  <-chan any
	Result    <-chan ActionOutcome
}

// ActionOutcome carries the terminal result of an action goal: exactly
// one of Value or Err is set.
type ActionOutcome struct {
	Value any
	Err   error
}

// SendActionGoal sends an action goal and returns a handle for
// observing feedback and the eventual result. Bookkeeping for the goal
// is recorded before the send completes so that a request or feedback
// event racing the send's own return is never dropped; if the send
// itself fails, that bookkeeping is rolled back (§4.4, §6).
func (c *Client) SendActionGoal(ctx context.Context, action, actionType string, goal any, opts ActionOptions) (*ActionHandle, error) {
	_, finishSpan := c.traceOperation(ctx, "action", action)

	id := opts.ID
	if id == "" {
		id = c.nextID()
	}

	feedbackCh := make(chan any, 16)
	resultCh := make(chan ActionOutcome, 1)

	pending := &rpc.PendingAction{
		ID:         id,
		SessionID:  opts.SessionID,
		Action:     action,
		ActionType: actionType,
		OnFeedback: func(fb any) {
			select {
			case feedbackCh <- fb:
			default:
			}
		},
		ResolveCompletion: func(result any) {
			finishSpan(nil)
			resultCh <- ActionOutcome{Value: result}
			close(feedbackCh)
		},
		RejectCompletion: func(err error) {
			finishSpan(err)
			resultCh <- ActionOutcome{Err: err}
			close(feedbackCh)
		},
	}

	c.mu.Lock()
	c.actions.Put(pending)
	c.mu.Unlock()

	if opts.Timeout != 0 || c.defaultTimeout > 0 {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = c.defaultTimeout
		}
		if timeout > 0 {
			pending.Timer = time.AfterFunc(timeout, func() {
				c.mu.Lock()
				c.actions.Remove(id)
				c.mu.Unlock()
				pending.RejectCompletion(fmt.Errorf("rosbridge: action %s: %w", action, context.DeadlineExceeded))
			})
		}
	}

	env, err := c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
		return b.SendActionGoal(action, actionType, goal, id, opts.SessionID)
	})
	if err != nil {
		c.rollbackAction(id)
		finishSpan(err)
		return nil, err
	}

	if err := c.send(env); err != nil {
		c.rollbackAction(id)
		wrapped := fmt.Errorf("rosbridge: send_action_goal %s: %w", action, err)
		finishSpan(wrapped)
		return nil, wrapped
	}

	return &ActionHandle{ID: id, SessionID: opts.SessionID, Feedback: feedbackCh, Result: resultCh}, nil
}

func (c *Client) rollbackAction(id string) {
	c.mu.Lock()
	p, ok := c.actions.Get(id)
	c.actions.Remove(id)
	c.mu.Unlock()
	if ok && p.Timer != nil {
		p.Timer.Stop()
	}
}

// CancelActionGoal sends a cancel_action_goal for action and blocks
// until the matching cancel_action_result arrives or ctx/opts.Timeout
// elapses.
func (c *Client) CancelActionGoal(ctx context.Context, action, actionType string, opts ActionOptions) (value any, err error) {
	ctx, finishSpan := c.traceOperation(ctx, "cancel_action", action)
	defer func() { finishSpan(err) }()

	key := rpc.CancelKey(action, opts.SessionID)

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)

	pending := &rpc.PendingCancel{
		Key:     key,
		Resolve: func(v any) { resultCh <- v },
		Reject:  func(err error) { errCh <- err },
	}

	c.mu.Lock()
	c.cancels.Put(pending)
	c.mu.Unlock()

	env, err := c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
		return b.CancelActionGoal(action, actionType, opts.SessionID)
	})
	if err != nil {
		c.mu.Lock()
		c.cancels.Take(key)
		c.mu.Unlock()
		return nil, err
	}

	if err := c.send(env); err != nil {
		c.mu.Lock()
		c.cancels.Take(key)
		c.mu.Unlock()
		return nil, fmt.Errorf("rosbridge: cancel_action_goal %s: %w", action, err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = c.defaultTimeout
	}
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case v := <-resultCh:
		return v, nil
	case err := <-errCh:
		return nil, err
	case <-timeoutCh:
		c.mu.Lock()
		c.cancels.Take(key)
		c.mu.Unlock()
		return nil, fmt.Errorf("rosbridge: cancel_action_goal %s: %w", action, context.DeadlineExceeded)
	case <-ctx.Done():
		c.mu.Lock()
		c.cancels.Take(key)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}
