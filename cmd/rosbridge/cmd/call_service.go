package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsarna/rosbridge/pkg/rosbridge/client"
)

var callServiceCmd = &cobra.Command{
	Use:   "call-service <websocket-url> <service> [json-args]",
	Short: "Call a service on a rosbridge server and print the result",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runCallService,
}

var (
	callServiceDialTimeout time.Duration
	callServiceTimeout     time.Duration
)

func init() {
	rootCmd.AddCommand(callServiceCmd)
	callServiceCmd.Flags().DurationVar(&callServiceDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	callServiceCmd.Flags().DurationVar(&callServiceTimeout, "timeout", 30*time.Second, "service call timeout")
}

func runCallService(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	url := args[0]
	service := args[1]

	var svcArgs any
	if len(args) == 3 {
		if err := json.Unmarshal([]byte(args[2]), &svcArgs); err != nil {
			return fmt.Errorf("failed to parse service args as JSON: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), callServiceTimeout+callServiceDialTimeout)
	defer cancel()

	c, err := newClient(logger, callServiceDialTimeout, callServiceTimeout)
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	if err := c.Connect(ctx, url); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	result, err := c.CallService(ctx, service, "", svcArgs, client.ServiceOptions{})
	if err != nil {
		return fmt.Errorf("service call failed: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
