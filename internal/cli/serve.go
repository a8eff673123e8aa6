package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/memsched/internal/config"
	"github.com/me/memsched/internal/server"
	"github.com/me/memsched/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.Addr = addr
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
			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate run store: %w", err)
			}

			srv := &http.Server{
				Addr:    cfg.Addr,
				Handler: server.New(cfg, st, logger),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server listening", "addr", cfg.Addr, "db", path)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "Run database path (default ~/.memsched/memsched.db)")

	return cmd
}
