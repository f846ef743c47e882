package main

import (
	"github.com/FranksOps/quill/internal/report"
	"github.com/spf13/cobra"
)

func ingestCmd(flags *rootFlags) *cobra.Command {
	var (
		format string
		count  int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store the oldest articles from the blog listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			a, err := load(flags)
			if err != nil {
				return err
			}
			if count > 0 {
				a.cfg.Blog.TargetCount = count
			}
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			in, err := a.ingestor(store)
			if err != nil {
				return err
			}
			sum, err := in.Run(ctx)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), f, sum)
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "articles to ingest (overrides blog.target_count)")
	cmd.Flags().StringVar(&format, "report", "text", "summary format: text, json or yaml")
	return cmd
}
