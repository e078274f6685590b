package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/tsarna/rosbridge/pkg/rosbridge/codec"
	"github.com/tsarna/rosbridge/pkg/rosbridge/o11y"
	"github.com/tsarna/rosbridge/pkg/rosbridge/protocol"
	"github.com/tsarna/rosbridge/pkg/rosbridge/reconnect"
	"github.com/tsarna/rosbridge/pkg/rosbridge/rpc"
	"github.com/tsarna/rosbridge/pkg/rosbridge/transport"
)

// Builder provides a fluent interface for constructing a Client,
// following the shape of pkg/vinculum/websockets/client's ClientBuilder.
type Builder struct {
	transportFactory transport.Factory
	codec            codec.Codec
	logger           *zap.Logger
	monitor          ClientMonitor
	reconnectCfg     reconnect.Config
	defaultTimeout   time.Duration
	altBuilder       protocol.Builder
	metrics          o11y.MetricsProvider
	tracing          o11y.TracingProvider
	idGenerator      func() string
}

// NewClient returns a Builder with the documented defaults.
func NewClient() *Builder {
	return &Builder{
		codec:          codec.JSON,
		logger:         zap.NewNop(),
		reconnectCfg:   reconnect.DefaultConfig(),
		defaultTimeout: 10 * time.Second,
	}
}

// WithTransportFactory sets the transport.Factory used to open new
// connections. Required.
func (b *Builder) WithTransportFactory(f transport.Factory) *Builder {
	b.transportFactory = f
	return b
}

// WithCodec sets the codec, accepting either a codec.Codec or one of
// "json"/"cbor"/"auto" (resolved via codec.Resolve at Build time).
func (b *Builder) WithCodec(c any) *Builder {
	resolved, err := codec.Resolve(c)
	if err == nil {
		b.codec = resolved
	}
	return b
}

// WithLogger sets the logger. A nil logger is ignored.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithMonitor sets an optional lifecycle observer.
func (b *Builder) WithMonitor(monitor ClientMonitor) *Builder {
	b.monitor = monitor
	return b
}

// WithReconnectConfig overrides the reconnect scheduler configuration.
func (b *Builder) WithReconnectConfig(cfg reconnect.Config) *Builder {
	b.reconnectCfg = cfg
	return b
}

// WithDefaultTimeout sets the default timeout applied to callService,
// sendActionGoal, and cancelActionGoal when the caller supplies none.
// Non-positive values are ignored.
func (b *Builder) WithDefaultTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.defaultTimeout = d
	}
	return b
}

// WithAlternateBuilder installs an alternative protocol.Builder
// implementation (§4.5's "alternative implementation... loaded
// asynchronously"). The fallback remains available as a safety net.
func (b *Builder) WithAlternateBuilder(alt protocol.Builder) *Builder {
	b.altBuilder = alt
	return b
}

// WithObservability sets optional metrics/tracing providers (see
// pkg/rosbridge/o11y).
func (b *Builder) WithObservability(metrics o11y.MetricsProvider, tracing o11y.TracingProvider) *Builder {
	b.metrics = metrics
	b.tracing = tracing
	return b
}

// WithIDGenerator overrides how correlation ids are generated when the
// caller doesn't supply one. Defaults to uuid.NewString.
func (b *Builder) WithIDGenerator(gen func() string) *Builder {
	if gen != nil {
		b.idGenerator = gen
	}
	return b
}

// Build validates the configuration and returns a new Client.
func (b *Builder) Build() (*Client, error) {
	if b.transportFactory == nil {
		return nil, ErrNoTransportFactory
	}
	if b.idGenerator == nil {
		b.idGenerator = defaultIDGenerator
	}
	if b.monitor == nil {
		b.monitor = &LoggingClientMonitor{Logger: b.logger}
	}

	resolver := protocol.NewResolver()
	if b.altBuilder != nil {
		resolver.SetAlternate(b.altBuilder)
	}

	c := &Client{
		transportFactory: b.transportFactory,
		codec:            b.codec,
		logger:           b.logger,
		monitor:          b.monitor,
		defaultTimeout:   b.defaultTimeout,
		resolver:         resolver,
		metrics:          b.metrics,
		tracing:          b.tracing,
		idGenerator:      b.idGenerator,
		subs:             make(map[string]*subscription),
		adverts:          make(map[string]*advertisement),
		calls:            rpc.NewCalls(),
		actions:          rpc.NewActions(),
		cancels:          rpc.NewCancels(),
	}
	c.reconnect = reconnect.New(b.reconnectCfg, c.onReconnectScheduled)

	return c, nil
}
