package client

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tsarna/rosbridge/pkg/rosbridge/reconnect"
)

// Callback receives one decoded message delivered to a subscribed
// topic. Two callback values registered on the same topic are
// deduplicated by identity (§3, Subscription entry) using their
// function pointer, matching Go's usual notion of "the same handler"
// for named functions and method values.
type Callback func(msg any)

// Subscriber is a convenience adapter for callers who would rather
// implement one object with OnEvent/OnSubscribe/OnUnsubscribe than pass
// bare closures to Subscribe. AsCallback turns it into a Callback for
// one topic.
type Subscriber interface {
	OnSubscribe(ctx context.Context, topic string) error
	OnUnsubscribe(ctx context.Context, topic string) error
	OnEvent(ctx context.Context, topic string, message any, fields map[string]string) error
}

// BaseSubscriber is a Subscriber with no-op methods, meant to be
// embedded so implementers override only what they need.
type BaseSubscriber struct{}

func (BaseSubscriber) OnSubscribe(ctx context.Context, topic string) error   { return nil }
func (BaseSubscriber) OnUnsubscribe(ctx context.Context, topic string) error { return nil }
func (BaseSubscriber) OnEvent(ctx context.Context, topic string, message any, fields map[string]string) error {
	return nil
}

// LoggingSubscriber logs every call before delegating to Wrapped (which
// may be nil, in which case it behaves as a standalone logger).
type LoggingSubscriber struct {
	Wrapped  Subscriber
	logger   *zap.Logger
	logLevel zapcore.Level
	name     string
}

// NewLoggingSubscriber returns a LoggingSubscriber that wraps wrapped
// (nil is allowed).
func NewLoggingSubscriber(wrapped Subscriber, logger *zap.Logger, level zapcore.Level) *LoggingSubscriber {
	return &LoggingSubscriber{Wrapped: wrapped, logger: logger, logLevel: level, name: "LoggingSubscriber"}
}

func (l *LoggingSubscriber) OnSubscribe(ctx context.Context, topic string) error {
	l.logger.Log(l.logLevel, "OnSubscribe called", zap.String("subscriber", l.name), zap.String("topic", topic))
	if l.Wrapped != nil {
		return l.Wrapped.OnSubscribe(ctx, topic)
	}
	return nil
}

func (l *LoggingSubscriber) OnUnsubscribe(ctx context.Context, topic string) error {
	l.logger.Log(l.logLevel, "OnUnsubscribe called", zap.String("subscriber", l.name), zap.String("topic", topic))
	if l.Wrapped != nil {
		return l.Wrapped.OnUnsubscribe(ctx, topic)
	}
	return nil
}

func (l *LoggingSubscriber) OnEvent(ctx context.Context, topic string, message any, fields map[string]string) error {
	l.logger.Log(l.logLevel, "OnEvent called",
		zap.String("subscriber", l.name),
		zap.String("topic", topic),
		zap.Any("message", message),
	)
	if l.Wrapped != nil {
		return l.Wrapped.OnEvent(ctx, topic, message, fields)
	}
	return nil
}

// AsCallback adapts a Subscriber into a Callback bound to one topic, for
// use with Client.Subscribe.
func AsCallback(ctx context.Context, s Subscriber, topic string) Callback {
	return func(msg any) {
		_ = s.OnEvent(ctx, topic, msg, nil)
	}
}

// ClientMonitor receives lifecycle notifications from a Client. It is
// the integration point for logging and metrics named in §7 ("No error
// is logged by the core; observers ... are the integration point").
type ClientMonitor interface {
	OnConnect(ctx context.Context, c *Client)
	OnDisconnect(ctx context.Context, c *Client, err error)
	OnSocketError(ctx context.Context, c *Client, err error)
	OnReconnectScheduled(ctx context.Context, c *Client, ev reconnect.Event)
	OnSubscribe(ctx context.Context, c *Client, topic string)
	OnUnsubscribe(ctx context.Context, c *Client, topic string)
}

// BaseClientMonitor is a ClientMonitor with no-op methods.
type BaseClientMonitor struct{}

func (BaseClientMonitor) OnConnect(ctx context.Context, c *Client)                              {}
func (BaseClientMonitor) OnDisconnect(ctx context.Context, c *Client, err error)                {}
func (BaseClientMonitor) OnSocketError(ctx context.Context, c *Client, err error)                {}
func (BaseClientMonitor) OnReconnectScheduled(ctx context.Context, c *Client, ev reconnect.Event) {}
func (BaseClientMonitor) OnSubscribe(ctx context.Context, c *Client, topic string)               {}
func (BaseClientMonitor) OnUnsubscribe(ctx context.Context, c *Client, topic string)             {}

// LoggingClientMonitor logs every lifecycle event via zap, matching the
// density of pkg/vinculum/websockets/client's own Info/Error logging.
type LoggingClientMonitor struct {
	BaseClientMonitor
	Logger *zap.Logger
}

func (m *LoggingClientMonitor) OnConnect(ctx context.Context, c *Client) {
	m.Logger.Info("rosbridge client connected", zap.String("url", c.URL()))
}

func (m *LoggingClientMonitor) OnDisconnect(ctx context.Context, c *Client, err error) {
	if err != nil {
		m.Logger.Warn("rosbridge client disconnected", zap.Error(err))
		return
	}
	m.Logger.Info("rosbridge client disconnected")
}

func (m *LoggingClientMonitor) OnSocketError(ctx context.Context, c *Client, err error) {
	m.Logger.Error("rosbridge socket error", zap.Error(err))
}

func (m *LoggingClientMonitor) OnReconnectScheduled(ctx context.Context, c *Client, ev reconnect.Event) {
	m.Logger.Info("rosbridge reconnect scheduled",
		zap.Int("attempt", ev.Attempt),
		zap.Duration("nextDelay", ev.NextDelay),
		zap.String("reason", string(ev.Reason)),
	)
}

func (m *LoggingClientMonitor) OnSubscribe(ctx context.Context, c *Client, topic string) {
	m.Logger.Debug("rosbridge subscribed", zap.String("topic", topic))
}

func (m *LoggingClientMonitor) OnUnsubscribe(ctx context.Context, c *Client, topic string) {
	m.Logger.Debug("rosbridge unsubscribed", zap.String("topic", topic))
}
