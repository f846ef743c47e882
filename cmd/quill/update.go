package main

import (
	"errors"
	"fmt"

	"github.com/FranksOps/quill/internal/report"
	"github.com/spf13/cobra"
)

func updateCmd(flags *rootFlags) *cobra.Command {
	var (
		format string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rewrite stored articles that have no updated version yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("--limit must be non-negative")
			}
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

			ctrl, err := a.controller(ctx, store, limit)
			if err != nil {
				return err
			}

			sum, runErr := ctrl.Run(ctx)
			if sum != nil && (runErr == nil || errors.Is(runErr, ctx.Err())) {
				if err := report.Write(cmd.OutOrStdout(), f, sum); err != nil {
					return err
				}
			}
			if runErr != nil {
				return fmt.Errorf("update run: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "process at most N articles, oldest first (0 = all)")
	cmd.Flags().StringVar(&format, "report", "text", "summary format: text, json or yaml")
	return cmd
}
