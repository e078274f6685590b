package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <websocket-url> <topic> <json-message>",
	Short: "Publish a message to a topic on a rosbridge server",
	Long: `Publish one message to a topic on a rosbridge server. The message
argument is parsed as JSON; if it doesn't parse, it is sent as a plain
string.

Examples:
  rosbridge publish ws://localhost:9090 /cmd_vel '{"linear":{"x":0.5}}'
  rosbridge publish ws://localhost:9090 /chatter "hello"`,
	Args: cobra.ExactArgs(3),
	RunE: runPublish,
}

var (
	publishDialTimeout time.Duration
	publishTimeout     time.Duration
)

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().DurationVar(&publishDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	publishCmd.Flags().DurationVar(&publishTimeout, "timeout", 10*time.Second, "total operation timeout")
}

func runPublish(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	url := args[0]
	topic := args[1]

	var msg any
	if err := json.Unmarshal([]byte(args[2]), &msg); err != nil {
		msg = args[2]
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	c, err := newClient(logger, publishDialTimeout, publishTimeout)
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	if err := c.Connect(ctx, url); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	if err := c.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	return nil
}
