package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/me/memsched/internal/config"
	"github.com/me/memsched/internal/store"
	"github.com/me/memsched/pkg/model"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded scheduling runs",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Run database path (default ~/.memsched/memsched.db)")

	openStore := func() (*store.SQLiteStore, error) {
		cfg := config.Default()
		cfg.DBPath = dbPath
		path, err := cfg.ResolveDBPath()
		if err != nil {
			return nil, err
		}
		st, err := store.NewSQLiteStore(path, logger)
		if err != nil {
			return nil, fmt.Errorf("open run store: %w", err)
		}
		if err := st.Migrate(context.Background()); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate run store: %w", err)
		}
		return st, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, total, err := st.ListRuns(context.Background(), model.DefaultListOptions())
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-16s  %-6s  %5s  %10s  %s\n", "ID", "MODEL", "ALGO", "OPS", "PEAK", "CREATED")
			for _, run := range runs {
				fmt.Fprintf(out, "%-40s  %-16s  %-6s  %5d  %10s  %s\n",
					run.ID, run.ModelName, run.Algorithm, run.OpCount,
					humanize.IBytes(run.PeakBytes), run.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			if total > len(runs) {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), total)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run including its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			if run == nil {
				return fmt.Errorf("run %q not found", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:         %s\n", run.ID)
			fmt.Fprintf(out, "Model:      %s (%s)\n", run.ModelName, run.ContentHash[:min(12, len(run.ContentHash))])
			fmt.Fprintf(out, "Algorithm:  %s\n", run.Algorithm)
			fmt.Fprintf(out, "Ops:        %d\n", run.OpCount)
			fmt.Fprintf(out, "Peak:       %s (%d bytes)\n", humanize.IBytes(run.PeakBytes), run.PeakBytes)
			fmt.Fprintf(out, "Iterations: %d\n", run.Iterations)
			fmt.Fprintf(out, "Created:    %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintln(out, "Schedule:")
			for i, name := range run.Schedule {
				fmt.Fprintf(out, "  %4d  %s\n", i, name)
			}
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <run-id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteRun(context.Background(), args[0]); err != nil {
				return fmt.Errorf("delete run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, rm)
	return cmd
}
