package cli

import (
	"fmt"
	"os"

	"github.com/me/memsched/internal/engine"
	"github.com/me/memsched/internal/parser"
	"github.com/me/memsched/internal/viz"
	"github.com/spf13/cobra"
)

func newVizCmd() *cobra.Command {
	var outPath string
	var withSched bool

	cmd := &cobra.Command{
		Use:   "viz <model.yaml>",
		Short: "Export a model graph as Graphviz DOT",
		Long: `viz renders the operator graph as DOT text. With --sched the ops are
labeled with their position in the computed schedule.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read model file: %w", err)
			}

			var dot string
			if withSched {
				result, err := engine.Execute(engine.Request{Model: data}, logger)
				if err != nil {
					return err
				}
				dot, err = viz.Schedule(result.Order, result.Graph)
				if err != nil {
					return err
				}
			} else {
				g, err := parser.New(logger).Parse(data)
				if err != nil {
					return err
				}
				dot = viz.Graph(g)
			}

			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), dot)
				return nil
			}
			if err := os.WriteFile(outPath, []byte(dot), 0o644); err != nil {
				return fmt.Errorf("write DOT file: %w", err)
			}
			logger.Info("DOT written", "path", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&withSched, "sched", false, "Label ops with schedule positions")

	return cmd
}
