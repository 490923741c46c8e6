// Package cmd implements the carelink command line: the server (`serve`),
// token utilities, and the device-side connection commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/carelink/internal/config"
)

var configPath string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carelink",
		Short: "Caregiver-to-elderly pairing service and client",
		Long: "carelink runs the connection directory and notification hub,\n" +
			"and provides device-side commands for pairing tokens, connection\n" +
			"requests, and live notification watching.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default carelink.yaml)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(tokenCmd())
	cmd.AddCommand(connectionsCmd())
	cmd.AddCommand(watchCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("CARELINK_CONFIG"); env != "" {
		return env
	}
	return "carelink.yaml"
}

func loadConfig() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// setupLogging configures slog from the config file. Runs before every
// command; failures fall back to defaults silently since logging itself is
// the thing being configured.
func setupLogging() {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return
	}
	ApplyLogConfig(cfg.Log)
}

// logLevel backs the default handler so the level can change at runtime
// (config hot-reload) without swapping handlers.
var logLevel = new(slog.LevelVar)

// ApplyLogConfig installs the default slog handler per config.
func ApplyLogConfig(lc config.LogConfig) {
	logLevel.Set(parseLogLevel(lc.Level))

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLogLevel adjusts the active log level in place.
func SetLogLevel(level string) {
	logLevel.Set(parseLogLevel(level))
}
