package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Spok95/fbo-sync/internal/domain/supply"
	"github.com/Spok95/fbo-sync/internal/report"
)

type ListOptions struct {
	*RootOptions
	Cabinet  string
	States   []string
	From     string
	XLSXPath string
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Список заявок FBO кабинета",
		Long: `Выводит заявки на поставку FBO одного кабинета без изменений в МойСклад.

Пример:
  fbosync list --cabinet cab1 --state ready --state draft --from 2025-12-01
  fbosync list --cabinet cab2 --xlsx supplies.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Cabinet, "cabinet", "", "cabinet name (default: first configured)")
	cmd.Flags().StringSliceVar(&opts.States, "state", []string{string(supply.StateReady), string(supply.StateDraft)}, "supply order states")
	cmd.Flags().StringVar(&opts.From, "from", "", "only orders with timeslot on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.XLSXPath, "xlsx", "", "also write the list to this xlsx file")

	return cmd
}

func parseStates(names []string) ([]supply.State, error) {
	out := make([]supply.State, 0, len(names))
	for _, n := range names {
		st, ok := supply.ParseState(n)
		if !ok {
			return nil, fmt.Errorf("unknown state %q", n)
		}
		out = append(out, st)
	}
	return out, nil
}

// filterFrom оставляет заявки с таймслотом не раньше from. Заявки без таймслота отбрасываются.
func filterFrom(orders []supply.Order, from time.Time) []supply.Order {
	if from.IsZero() {
		return orders
	}
	out := orders[:0:0]
	for _, o := range orders {
		if o.Timeslot != nil && !o.Timeslot.Before(from) {
			out = append(out, o)
		}
	}
	return out
}

func runList(ctx context.Context, opts *ListOptions, w io.Writer) error {
	a, err := loadApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	cab := a.cfg.Cabinets[0]
	if opts.Cabinet != "" {
		var ok bool
		if cab, ok = a.cfg.Cabinet(opts.Cabinet); !ok {
			return fmt.Errorf("unknown cabinet %q", opts.Cabinet)
		}
	}
	states, err := parseStates(opts.States)
	if err != nil {
		return err
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	var from time.Time
	if opts.From != "" {
		if from, err = time.ParseInLocation(time.DateOnly, opts.From, loc); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}

	client := a.ozon(cab)
	var ids []int64
	for id, err := range client.ListOrderIDs(ctx, states, a.cfg.Ozon.PageSize) {
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	orders, err := client.GetOrderDetails(ctx, ids)
	if err != nil {
		return err
	}
	orders = filterFrom(orders, from)

	if err := printOrders(w, orders, loc); err != nil {
		return err
	}
	if opts.XLSXPath == "" {
		return nil
	}
	f, err := os.Create(opts.XLSXPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return report.Orders(f, orders, loc)
}

func printOrders(w io.Writer, orders []supply.Order, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tSTATE\tTIMESLOT\tWAREHOUSE")
	for _, o := range orders {
		slot := "-"
		if o.Timeslot != nil {
			slot = o.Timeslot.In(loc).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.ID, o.Number, o.State, slot, o.Warehouse)
	}
	fmt.Fprintf(tw, "total: %d\n", len(orders))
	return tw.Flush()
}
