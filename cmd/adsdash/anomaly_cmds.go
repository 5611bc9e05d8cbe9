package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"adsdash/internal/views"
)

// loadPanel selects the date when one was given and loads the panel.
func loadPanel(ctx context.Context, p interface {
	Load(context.Context) error
	SetTargetDate(context.Context, string) error
}, date string, changed bool) error {
	if changed {
		return p.SetTargetDate(ctx, date)
	}
	return p.Load(ctx)
}

func newAnomaliesCmd(a *app) *cobra.Command {
	var (
		campaignDate, productDate string
		campaignSort, productSort []string
		showRange, routes         bool
	)
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Show the campaign and product anomaly monitors",
		Long: `Show the campaign and product anomaly monitors. Both load concurrently.
--date and --product-date select the analysis day and are remembered; pass an empty
value to return to the latest day.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			campaigns, err := views.NewCampaignPanel(a.api, a.store)
			if err != nil {
				return err
			}
			products, err := views.NewProductPanel(a.api, a.store)
			if err != nil {
				return err
			}

			// The panels are independent: one failing does not cancel the other.
			var g errgroup.Group
			ctx := cmd.Context()
			var campaignErr, productErr error
			g.Go(func() error {
				campaignErr = loadPanel(ctx, campaigns, campaignDate, cmd.Flags().Changed("date"))
				return campaignErr
			})
			g.Go(func() error {
				productErr = loadPanel(ctx, products, productDate, cmd.Flags().Changed("product-date"))
				return productErr
			})
			_ = g.Wait()

			for _, m := range campaignSort {
				if err := campaigns.ToggleSort(m); err != nil {
					return err
				}
			}
			for _, m := range productSort {
				if err := products.ToggleSort(m); err != nil {
					return err
				}
			}

			if showRange {
				if dr, err := campaigns.DateRange(ctx); err == nil {
					a.printer.Info("Anomaly data: " + dr.MinDate + " … " + dr.MaxDate)
				} else {
					a.printer.Warning("Date range unavailable: " + err.Error())
				}
			}

			reportPanel(a, "Anomaly Monitor", campaignErr)
			a.printer.Print(a.renderer.CampaignPanel(campaigns))
			if routes {
				for _, an := range campaigns.Items() {
					if route, ok := campaigns.Route(an); ok {
						a.printer.Println(route)
					}
				}
			}
			reportPanel(a, "Product Monitor", productErr)
			a.printer.Print(a.renderer.ProductPanel(products))

			if !campaigns.Visible() && !products.Visible() && campaignErr == nil && productErr == nil {
				a.printer.Success("No anomalies")
			}
			return errors.Join(campaignErr, productErr)
		},
	}
	cmd.Flags().StringVar(&campaignDate, "date", "", "Campaign analysis date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&productDate, "product-date", "", "Product analysis date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&campaignSort, "sort", nil, "Toggle a campaign sort metric; repeat for more keys or to flip direction")
	cmd.Flags().StringSliceVar(&productSort, "product-sort", nil, "Toggle a product sort metric")
	cmd.Flags().BoolVar(&showRange, "range", false, "Show the dates covered by the anomaly data")
	cmd.Flags().BoolVar(&routes, "routes", false, "Print the detail route of every campaign anomaly")
	return cmd
}

func reportPanel(a *app, name string, err error) {
	if err != nil {
		a.printer.Warning(name + ": " + err.Error())
	}
}
