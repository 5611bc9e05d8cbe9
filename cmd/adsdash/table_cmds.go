package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"adsdash/internal/table"
	"adsdash/internal/views"
	"adsdash/pkg/adtypes"
)

var tableKinds = map[string]adtypes.TableKind{
	"campaigns": adtypes.TableCampaign,
	"campaign":  adtypes.TableCampaign,
	"products":  adtypes.TableProduct,
	"product":   adtypes.TableProduct,
}

func (a *app) tableView(kind adtypes.TableKind) (*views.TableView, error) {
	return views.NewTableView(kind, a.api, a.store, a.cfg.PageSize())
}

// parseSort reads "key" or "key:asc|desc".
func parseSort(s string) (table.SortConfig, error) {
	key, dir, _ := strings.Cut(s, ":")
	key = strings.TrimSpace(key)
	if key == "" {
		return table.SortConfig{}, fmt.Errorf("sort needs a column")
	}
	switch table.Direction(strings.ToLower(dir)) {
	case "", table.Ascending:
		return table.SortConfig{Key: key, Direction: table.Ascending}, nil
	case table.Descending:
		return table.SortConfig{Key: key, Direction: table.Descending}, nil
	}
	return table.SortConfig{}, fmt.Errorf("unknown sort direction %q", dir)
}

func newTableCmd(a *app, name string) *cobra.Command {
	kind := tableKinds[name]
	var (
		dates  adtypes.DateRange
		sortBy string
		pages  int
		all    bool
		routes bool
	)
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Show the %s table", kind),
		Long: fmt.Sprintf(`Show the %s table. Saved filters (see 'adsdash filters') apply, and the
sort chosen with --sort is remembered for the next run.`, kind),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			v, err := a.tableView(kind)
			if err != nil {
				return err
			}
			if sortBy != "" {
				cfg, err := parseSort(sortBy)
				if err != nil {
					return err
				}
				if err := v.SetSort(cfg); err != nil {
					return err
				}
			}

			// A failed load is shown in the table itself.
			_ = v.SetDateRange(cmd.Context(), dates)
			for i := 0; all || i < pages; i++ {
				if !v.ShowMore() {
					break
				}
			}

			a.printer.Print(a.renderer.TableView(v))
			if routes && kind == adtypes.TableCampaign {
				for _, row := range v.Rows() {
					if route, ok := v.RouteFor(row); ok {
						a.printer.Println(route)
					}
				}
			}
			return v.Err()
		},
	}
	cmd.Flags().StringVar(&dates.Start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dates.End, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort by column, as column or column:desc")
	cmd.Flags().IntVar(&pages, "more", 0, "Reveal this many more pages of rows")
	cmd.Flags().BoolVar(&all, "all", false, "Show every row")
	if kind == adtypes.TableCampaign {
		cmd.Flags().BoolVar(&routes, "routes", false, "Print the detail route of every shown row")
	}
	return cmd
}

func newFiltersCmd(a *app) *cobra.Command {
	var tableName string
	view := func() (*views.TableView, error) {
		kind, ok := tableKinds[tableName]
		if !ok {
			return nil, fmt.Errorf("unknown table %q (campaign|product)", tableName)
		}
		if err := a.start(); err != nil {
			return nil, err
		}
		return a.tableView(kind)
	}
	list := func(v *views.TableView) {
		filters := v.Filters()
		if len(filters) == 0 {
			a.printer.Info("No filters")
			return
		}
		for i, c := range filters {
			a.printer.Println(fmt.Sprintf("%d. %s  %s", i+1, c.String(), c.ID))
		}
	}

	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Manage the saved table filters",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			v, err := view()
			if err != nil {
				return err
			}
			list(v)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&tableName, "table", "t", "campaign", "Table the filters belong to (campaign|product)")

	cmd.AddCommand(&cobra.Command{
		Use:     "add <condition>",
		Short:   "Add a filter such as 'roas>=2' or 'campaign contains brand'",
		Example: "  adsdash filters add 'roas>=2'\n  adsdash filters add date range 2025-03-01..2025-03-31",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cond, err := table.ParseCondition(strings.Join(args, " "))
			if err != nil {
				return err
			}
			v, err := view()
			if err != nil {
				return err
			}
			if err := v.AddFilter(cond); err != nil {
				return err
			}
			list(v)
			return nil
		},
	}, &cobra.Command{
		Use:   "remove <n|id>",
		Short: "Remove a filter by position or id",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := view()
			if err != nil {
				return err
			}
			id := args[0]
			if n, err := strconv.Atoi(id); err == nil {
				filters := v.Filters()
				if n < 1 || n > len(filters) {
					return fmt.Errorf("no filter %d", n)
				}
				id = filters[n-1].ID
			}
			if err := v.RemoveFilter(id); err != nil {
				return err
			}
			list(v)
			return nil
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Remove every filter",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			v, err := view()
			if err != nil {
				return err
			}
			if err := v.ClearFilters(); err != nil {
				return err
			}
			a.printer.Success("Filters cleared")
			return nil
		},
	})
	return cmd
}

func newCampaignCmd(a *app) *cobra.Command {
	var (
		dates adtypes.DateRange
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "campaign <name|route>",
		Short: "Show the breakdown tables of one campaign",
		Long: `Show the breakdown tables of one campaign. The argument is a campaign name or a
detail route such as those printed by 'adsdash campaigns --routes' and 'adsdash anomalies'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			route, err := views.ParseRoute(args[0])
			if err != nil {
				return err
			}
			if !dates.IsZero() {
				route.DateRange = dates
			}

			v := views.NewDetailView(a.api, route, a.cfg.PageSize())
			loadErr := v.Load(cmd.Context())
			if all {
				for _, t := range v.Tables() {
					revealAll(t)
				}
			}
			a.printer.Print(a.renderer.Detail(v))
			return loadErr
		},
	}
	cmd.Flags().StringVar(&dates.Start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dates.End, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&all, "all", false, "Show every row of every table")
	return cmd
}

func revealAll(t *views.DetailTable) {
	for t.ShowMore() {
	}
}
