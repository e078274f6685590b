package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <websocket-url> <topic> [message-type]",
	Short: "Subscribe to a topic on a rosbridge server and print incoming messages",
	Long: `Subscribe to a topic on a rosbridge server and print each message as
JSON to stdout, one per line, until interrupted.

Examples:
  rosbridge subscribe ws://localhost:9090 /rosout
  rosbridge subscribe ws://localhost:9090 /scan sensor_msgs/LaserScan`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSubscribe,
}

var subscribeDialTimeout time.Duration

func init() {
	rootCmd.AddCommand(subscribeCmd)
	subscribeCmd.Flags().DurationVar(&subscribeDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	url := args[0]
	topic := args[1]
	msgType := ""
	if len(args) == 3 {
		msgType = args[2]
	}

	c, err := newClient(logger, subscribeDialTimeout, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx, url); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if err := c.Subscribe(topic, msgType, "", func(msg any) {
		out, err := json.Marshal(msg)
		if err != nil {
			logger.Warn("failed to marshal message", zap.Error(err))
			return
		}
		fmt.Printf("%s\t%s\n", topic, string(out))
	}); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	logger.Info("subscribed, waiting for messages", zap.String("topic", topic))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	<-sigCh
	logger.Info("shutting down")
	return c.Close()
}
