package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Spok95/fbo-sync/internal/audit"
)

func NewOutcomesCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		order string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "История решений по заявке из журнала в Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.pool == nil {
				return errors.New("postgres.dsn is not configured")
			}

			events, err := audit.NewRepo(a.pool).ListByOrder(ctx, order, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tCABINET\tSTAGE\tACTION\tDOCUMENT\tREASON\tDRY")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
					e.At.Format("2006-01-02 15:04:05"), e.Cabinet, e.Stage, e.Action, e.DocumentID, e.Reason, e.DryRun)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&order, "order", "", "supply order number")
	cmd.Flags().IntVar(&limit, "limit", 50, "max records")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}
