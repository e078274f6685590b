package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose  bool
	debug    bool
	logLevel string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rosbridge",
	Short: "rosbridge protocol client",
	Long: `rosbridge is a command-line client for rosbridge-compatible WebSocket
servers: subscribe to topics, publish messages, call services, send
action goals, and run remote CLI commands from the shell.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to run
// once.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
}

func setupLogger() (*zap.Logger, error) {
	level := logLevel
	if debug {
		level = "debug"
	} else if verbose && level == "info" {
		level = "debug"
	}

	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn", "warning":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zapLevel
	cfg.Development = debug

	return cfg.Build()
}
