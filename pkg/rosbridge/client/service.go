package client

import (
	"context"
	"fmt"
	"time"

	"github.com/tsarna/rosbridge/pkg/rosbridge/protocol"
	"github.com/tsarna/rosbridge/pkg/rosbridge/rpc"
)

// ServiceOptions configures a single callService or CLIRequest
// invocation.
type ServiceOptions struct {
	// ID overrides the auto-generated correlation id.
	ID string
	// Timeout overrides the client's default timeout. Zero means "use
	// the default"; a negative value disables the timeout entirely.
	Timeout time.Duration
}

// CallService invokes service, encoding args as the request payload,
// and returns the decoded "values" field of the matching
// service_response (§4.4, §6). A response arriving after disconnect
// still resolves the call once reconnected, since pending service
// calls are not rejected on disconnect (§9 Open Question).
func (c *Client) CallService(ctx context.Context, service, msgType string, args any, opts ServiceOptions) (any, error) {
	return c.callAndWait(ctx, opts, "service", service, func(id string) (protocol.Envelope, error) {
		return c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
			return b.CallService(service, msgType, args, id)
		})
	})
}

// CLIRequest invokes the supplemented CLI execution surface: it sends a
// cli_request envelope and resolves with the "result"/"output" payload
// of the matching cli_response. It shares the same correlation table as
// CallService, distinguished only by Kind for logging.
func (c *Client) CLIRequest(ctx context.Context, command string, args []string, opts ServiceOptions) (any, error) {
	return c.callAndWait(ctx, opts, "cli", command, func(id string) (protocol.Envelope, error) {
		return c.resolver.Build(func(b protocol.Builder) protocol.Envelope {
			return b.CLIRequest(id, command, args)
		})
	})
}

func (c *Client) callAndWait(ctx context.Context, opts ServiceOptions, kind, name string, build func(id string) (protocol.Envelope, error)) (value any, err error) {
	ctx, finishSpan := c.traceOperation(ctx, kind, name)
	defer func() { finishSpan(err) }()

	id := opts.ID
	if id == "" {
		id = c.nextID()
	}

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)

	pending := &rpc.PendingCall{
		ID:      id,
		Kind:    kind,
		Name:    name,
		Resolve: func(values any) { resultCh <- values },
		Reject:  func(err error) { errCh <- err },
	}

	c.mu.Lock()
	c.calls.Put(pending)
	c.mu.Unlock()

	env, err := build(id)
	if err != nil {
		c.mu.Lock()
		c.calls.Delete(id)
		c.mu.Unlock()
		return nil, err
	}

	if err := c.send(env); err != nil {
		c.mu.Lock()
		c.calls.Delete(id)
		c.mu.Unlock()
		return nil, fmt.Errorf("rosbridge: %s %s: %w", kind, name, err)
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
		c.calls.Delete(id)
		c.mu.Unlock()
		return nil, fmt.Errorf("rosbridge: %s %s: %w", kind, name, context.DeadlineExceeded)
	case <-ctx.Done():
		c.mu.Lock()
		c.calls.Delete(id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}
