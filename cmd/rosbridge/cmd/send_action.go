package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tsarna/rosbridge/pkg/rosbridge/client"
)

var sendActionCmd = &cobra.Command{
	Use:   "send-action <websocket-url> <action> <action-type> [json-goal]",
	Short: "Send an action goal to a rosbridge server and print feedback and the result",
	Args:  cobra.RangeArgs(3, 4),
	RunE:  runSendAction,
}

var (
	sendActionDialTimeout time.Duration
	sendActionTimeout     time.Duration
)

func init() {
	rootCmd.AddCommand(sendActionCmd)
	sendActionCmd.Flags().DurationVar(&sendActionDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	sendActionCmd.Flags().DurationVar(&sendActionTimeout, "timeout", 60*time.Second, "action completion timeout")
}

func runSendAction(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	url := args[0]
	action := args[1]
	actionType := args[2]

	var goal any
	if len(args) == 4 {
		if err := json.Unmarshal([]byte(args[3]), &goal); err != nil {
			return fmt.Errorf("failed to parse goal as JSON: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendActionTimeout+sendActionDialTimeout)
	defer cancel()

	c, err := newClient(logger, sendActionDialTimeout, sendActionTimeout)
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	if err := c.Connect(ctx, url); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	handle, err := c.SendActionGoal(ctx, action, actionType, goal, client.ActionOptions{Timeout: sendActionTimeout})
	if err != nil {
		return fmt.Errorf("failed to send action goal: %w", err)
	}

	go func() {
		for fb := range handle.Feedback {
			out, _ := json.Marshal(fb)
			logger.Info("feedback", zap.String("action", action), zap.ByteString("payload", out))
		}
	}()

	select {
	case outcome := <-handle.Result:
		if outcome.Err != nil {
			return fmt.Errorf("action failed: %w", outcome.Err)
		}
		out, err := json.MarshalIndent(outcome.Value, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
