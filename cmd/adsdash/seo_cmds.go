package main

import (
	"strings"

	"github.com/spf13/cobra"

	"adsdash/internal/views"
)

func newSEOCmd(a *app) *cobra.Command {
	var (
		ctr, limit int
		start, end string
		analyze    bool
	)
	cmd := &cobra.Command{
		Use:   "seo",
		Short: "List pages with a low click-through rate",
		Long: `List search pages whose CTR is below a threshold. Parameters are remembered between
runs; without dates the full range reported by the backend is used. --analyze sends the
pages to the SEO agent and streams its suggestions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			ctx := cmd.Context()
			v, err := views.NewSEOView(a.api, a.store)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("ctr") {
				if err := v.SetCTRThreshold(ctr); err != nil {
					return err
				}
			}
			if flags.Changed("limit") {
				if err := v.SetRowLimit(limit); err != nil {
					return err
				}
			}
			q := v.Query()
			switch {
			case flags.Changed("start") || flags.Changed("end"):
				if !flags.Changed("start") {
					start = q.StartDate
				}
				if !flags.Changed("end") {
					end = q.EndDate
				}
				if err := v.SetDates(start, end); err != nil {
					return err
				}
			case q.StartDate == "" || q.EndDate == "":
				if err := v.LoadDateRange(ctx); err != nil {
					a.printer.Warning("Date range unavailable: " + err.Error())
				}
			}

			fetchErr := v.Fetch(ctx)
			a.printer.Print(a.renderer.SEOPages(v))
			if fetchErr != nil || !analyze {
				return fetchErr
			}

			a.printer.Println("SEO agent:")
			shown := ""
			answer, err := v.Analyze(ctx, func(text string) {
				a.printer.Print(strings.TrimPrefix(text, shown))
				shown = text
			})
			if err != nil {
				a.printer.Println("")
				a.printer.Error(answer)
				return err
			}
			a.printer.Println("")
			return nil
		},
	}
	cmd.Flags().IntVar(&ctr, "ctr", 0, "CTR threshold in percent (1-100)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of pages (1-25000)")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Ask the SEO agent to analyze the pages")
	return cmd
}
