package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsarna/rosbridge/pkg/rosbridge/client"
)

var cliExecCmd = &cobra.Command{
	Use:   "cli-exec <websocket-url> <command> [args...]",
	Short: "Run a remote CLI command through a rosbridge server's CLI execution surface",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCLIExec,
}

var (
	cliExecDialTimeout time.Duration
	cliExecTimeout     time.Duration
)

func init() {
	rootCmd.AddCommand(cliExecCmd)
	cliExecCmd.Flags().DurationVar(&cliExecDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	cliExecCmd.Flags().DurationVar(&cliExecTimeout, "timeout", 30*time.Second, "command timeout")
}

func runCLIExec(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	url := args[0]
	command := args[1]
	commandArgs := args[2:]

	ctx, cancel := context.WithTimeout(context.Background(), cliExecTimeout+cliExecDialTimeout)
	defer cancel()

	c, err := newClient(logger, cliExecDialTimeout, cliExecTimeout)
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	if err := c.Connect(ctx, url); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	result, err := c.CLIRequest(ctx, command, commandArgs, client.ServiceOptions{})
	if err != nil {
		return fmt.Errorf("cli command failed: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
