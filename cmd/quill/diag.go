package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/FranksOps/quill/internal/rewrite"
	"github.com/spf13/cobra"
)

const previewLength = 500

func searchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Run the competitor search for a title and print usable links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(flags)
			if err != nil {
				return err
			}
			finder, err := a.finder(cmd.Context())
			if err != nil {
				return err
			}
			links, err := finder.SearchWithVariations(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d link(s)\n", len(links))
			for i, l := range links {
				fmt.Fprintf(out, "%d. %s\n", i+1, l)
			}
			return nil
		},
	}
}

func scrapeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Fetch a page with the competitor profile and print a preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(flags)
			if err != nil {
				return err
			}
			s, err := a.scraper()
			if err != nil {
				return err
			}
			text, err := s.Scrape(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Content length: %d\n", utf8.RuneCountInString(text))
			fmt.Fprintf(out, "Preview:\n%s\n", preview(text, previewLength))
			return nil
		},
	}
}

func rewriteCmd(flags *rootFlags) *cobra.Command {
	var (
		original    string
		competitors []string
	)
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Ask the model for a rewrite of the given texts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(flags)
			if err != nil {
				return err
			}
			engine, err := a.rewriter(cmd.Context())
			if err != nil {
				return err
			}

			text := engine.Rewrite(cmd.Context(), rewrite.Request{Original: original, Competitors: competitors})
			if text == "" {
				return fmt.Errorf("model returned no rewrite")
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&original, "original", "", "original article text")
	cmd.Flags().StringArrayVar(&competitors, "competitor", nil, "competitor article text (repeat twice)")
	cmd.MarkFlagRequired("original")
	return cmd
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
