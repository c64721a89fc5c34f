package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hupe1980/ghwhisper/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(g *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (GET /health, POST /chat)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newAssistant(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.Runner(), func(o *server.Options) {
				o.Addr = cfg.Server.Addr()
				o.Logger = logger.WithComponent("server")
			})

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(srv.ListenAndServe)
			eg.Go(func() error {
				<-egCtx.Done()
				logger.Info("server.shutdown")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return eg.Wait()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides PORT)")
	return cmd
}
