// Package cli implements the agentcrew command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew/config"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
)

var (
	// Version is the version of the CLI.
	Version = "dev"
)

type globalOptions struct {
	EnvFile  string
	LogLevel string
}

// deps carries overrides used by tests.
type deps struct {
	model model.Model
}

type cliState struct {
	options globalOptions
	deps    deps

	cfg    *config.Config
	logger *logging.StructuredLogger
}

// NewRootCmd creates the agentcrew root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(deps{})
}

func newRootCmd(d deps) *cobra.Command {
	state := &cliState{deps: d}

	cmd := &cobra.Command{
		Use:           "agentcrew",
		Short:         "agentcrew: a supervised crew of data-scientist agents.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(state.options.EnvFile)
			if err != nil {
				return err
			}

			if state.options.LogLevel != "" {
				if _, err := logging.ParseLevel(state.options.LogLevel); err != nil {
					return err
				}
				cfg.Log.Level = state.options.LogLevel
			}

			state.cfg = cfg
			state.logger = cfg.Logger().WithComponent("cli")

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&state.options.EnvFile, "env-file", ".env", "file to load environment variables from")
	cmd.PersistentFlags().StringVar(&state.options.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(newChatCmd(state))
	cmd.AddCommand(newIngestCmd(state))
	cmd.AddCommand(newHistoryCmd(state))
	cmd.AddCommand(newServeCmd(state))

	return cmd
}

// Execute runs the root command until it completes or the process receives
// SIGINT or SIGTERM.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
