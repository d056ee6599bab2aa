package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/client-intake/internal/labels"
	"github.com/ignatzorin/client-intake/internal/service"
)

var (
	listFilter   service.Filter
	listPage     int
	listPageSize int
)

// listCmd печатает страницу заявок с фильтром дашборда.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored requests",
	Long: `List stored requests, most recent first, using the dashboard filter rules.

Examples:
  intakectl list --status new
  intakectl list --budget 800-1200 --search bakery --page 2`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listFilter.Status, "status", "all", "Status code or all")
	listCmd.Flags().StringVar(&listFilter.Budget, "budget", "all", "Budget code or all")
	listCmd.Flags().StringVar(&listFilter.Search, "search", "", "Case-insensitive text search")
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listPageSize, "page-size", service.DefaultPageSize, "Requests per page")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	store, closeFn, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	all, err := store.Load(ctx)
	if err != nil {
		return err
	}
	filtered := service.FilterSubmissions(all, listFilter.Normalize())
	pages := service.TotalPages(len(filtered), listPageSize)
	items := service.Paginate(filtered, listPage, listPageSize)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tCLIENT\tEMAIL\tBUDGET\tSTATUS")
	for i := range items {
		s := &items[i]
		date := s.Date
		if t, ok := s.CreatedAt(); ok {
			date = t.UTC().Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, date, s.Client.FullName, s.Client.Email,
			labels.Resolve(labels.Budget, s.Timeline.Budget),
			labels.Resolve(labels.Status, s.Status),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d of %d request(s), page %d/%d\n", len(filtered), len(all), listPage, pages)
	return nil
}
