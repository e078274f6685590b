package cmd

import (
	"time"

	"go.uber.org/zap"

	"github.com/tsarna/rosbridge/pkg/rosbridge/client"
	"github.com/tsarna/rosbridge/pkg/rosbridge/transport/coderws"
)

// newClient builds a client.Client wired to a coder/websocket transport,
// the default for every subcommand. It doesn't call Connect; callers
// decide the connect context and timeout.
func newClient(logger *zap.Logger, dialTimeout, defaultTimeout time.Duration) (*client.Client, error) {
	factory := coderws.NewFactory(coderws.Options{DialTimeout: dialTimeout})

	return client.NewClient().
		WithTransportFactory(factory).
		WithLogger(logger).
		WithMonitor(&client.LoggingClientMonitor{Logger: logger}).
		WithDefaultTimeout(defaultTimeout).
		Build()
}
