/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fastcrud/apiserver/config"
	"github.com/fastcrud/apiserver/internal/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fastcrud",
	Short: "User registration and authentication service",
	Long: `fastcrud runs the user registration and authentication API and its
maintenance tasks. Usage:

	fastcrud server
	fastcrud migrate up
	fastcrud users export
	fastcrud events tail --channel users.registered
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the environment once per command.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg := config.LoadConfig()
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err := cfg.Validate(); err != nil {
		return cfg, logger, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}
