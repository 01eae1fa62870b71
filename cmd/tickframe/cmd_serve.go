package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/visualization"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve runs, metrics and graphs over HTTP",
		Long: `Start a read-only JSON API over the run store and block until Ctrl+C.

Endpoints:
  GET /api/runs?limit=N
  GET /api/runs/{id}
  GET /api/runs/{id}/graph?format=json|dot
  GET /api/runs/{id}/metrics
  GET /api/runs/{id}/metrics/{name}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			addr, _ := cmd.Flags().GetString("addr")

			rs, err := e.openStore()
			if err != nil {
				return err
			}
			defer rs.Close()

			srv := visualization.NewServer(rs)
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(ctx, addr) }()

			// Wait for server to start
			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) && srv.Addr() == "" {
				select {
				case err := <-errCh:
					return err
				case <-time.After(10 * time.Millisecond):
				}
			}
			if srv.Addr() == "" {
				cancel()
				<-errCh
				return fmt.Errorf("server did not start within 3s")
			}

			e.logger.Info("serving", "addr", srv.Addr())
			fmt.Fprintf(cmd.OutOrStdout(), "Serving at http://%s/api/runs (Ctrl+C to stop)\n", srv.Addr())
			return <-errCh
		},
	}

	cmd.Flags().String("addr", "localhost:8080", "Listen address (port 0 picks a free port)")

	return cmd
}
