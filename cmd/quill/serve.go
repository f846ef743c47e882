package main

import (
	"context"
	"fmt"

	"github.com/FranksOps/quill/internal/metrics"
	"github.com/FranksOps/quill/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the article API and, when configured, Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return server.New(store, a.logger).Run(ctx, fmt.Sprintf(":%d", a.cfg.Server.Port))
			})

			if a.cfg.Metrics.Port > 0 {
				ms, err := metrics.Start(a.cfg.Metrics.Port, a.logger)
				if err != nil {
					return err
				}
				g.Go(func() error {
					<-ctx.Done()
					return ms.Stop(context.Background())
				})
			}

			return g.Wait()
		},
	}
}
