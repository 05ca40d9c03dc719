package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew/crew"
	"github.com/hupe1980/agentcrew/internal/api"
	"github.com/hupe1980/agentcrew/logging"
)

type serveOptions struct {
	Addr string
}

func newServeCmd(state *cliState) *cobra.Command {
	var options serveOptions

	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Serve the crew over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := options.Addr
			if addr == "" {
				addr = state.cfg.HTTPAddr
			}

			c, err := crew.Open(state.cfg, func(o *crew.OpenOptions) {
				o.Model = state.deps.model
				o.Logger = state.logger
			})
			if err != nil {
				return err
			}
			defer c.Close()

			handler := api.NewHandler(c.Runner, c.Store, c.Registry, state.logger)

			// Runs can take minutes, so responses have no write timeout.
			srv := &http.Server{
				Addr:              addr,
				Handler:           handler.Router(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			return serve(cmd.Context(), srv, state.logger)
		},
	}

	cmd.Flags().StringVar(&options.Addr, "addr", "", "listen address (default: HTTP_ADDR)")

	return cmd
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger logging.Logger) error {
	errCh := make(chan error, 1)

	go func() {
		logger.Info("server.listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server.shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server.shutdown_failed", "error", err)
		return err
	}

	logger.Info("server.stopped")

	return nil
}
