// Package cli implements the memsched command tree.
package cli

import (
	"log/slog"

	"github.com/me/memsched/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the memsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "memsched",
		Short: "memsched computes memory-minimizing operator schedules for NN graphs",
		Long: `memsched computes execution orders for neural-network computation graphs
that minimize peak live tensor memory during inference.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newScheduleCmd(),
		newVizCmd(),
		newRunsCmd(),
		newServeCmd(),
	)

	return root
}
