package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/me/memsched/internal/config"
	"github.com/me/memsched/internal/engine"
	"github.com/me/memsched/internal/store"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	var algo string
	var seed int64
	var dbPath string
	var noStore bool

	cmd := &cobra.Command{
		Use:   "schedule <model.yaml>",
		Short: "Compute a memory-minimizing execution order for a model",
		Long: `schedule parses a YAML model-graph document, runs the selected scheduling
algorithm, prints the op order to stdout, and records the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read model file: %w", err)
			}

			result, err := engine.Execute(engine.Request{
				Model:     data,
				Algorithm: algo,
				Seed:      seed,
			}, logger)
			if err != nil {
				return err
			}
			run := result.Run

			for _, name := range run.Schedule {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			logger.Info("schedule computed",
				"model", run.ModelName,
				"algorithm", run.Algorithm,
				"ops", run.OpCount,
				"peak", humanize.IBytes(run.PeakBytes),
				"iterations", run.Iterations,
			)

			if noStore {
				return nil
			}
			cfg := config.Default()
			cfg.DBPath = dbPath
			path, err := cfg.ResolveDBPath()
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(path, logger)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer st.Close()
			ctx := context.Background()
			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate run store: %w", err)
			}
			if err := st.CreateRun(ctx, run); err != nil {
				return fmt.Errorf("record run: %w", err)
			}
			logger.Debug("run recorded", "id", run.ID, "db", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&algo, "algo", "hier", "Scheduling algorithm: hier, rpo, random")
	cmd.Flags().Int64Var(&seed, "seed", 0, "RNG seed for --algo random")
	cmd.Flags().StringVar(&dbPath, "db", "", "Run database path (default ~/.memsched/memsched.db)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Skip recording the run")

	return cmd
}
