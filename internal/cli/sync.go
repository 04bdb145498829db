package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Spok95/fbo-sync/internal/audit"
	"github.com/Spok95/fbo-sync/internal/report"
)

type SyncOptions struct {
	*RootOptions
	Cabinets   []string
	DryRun     bool
	Apply      bool
	ReportPath string
	SendReport bool
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Один прогон синхронизации",
		Long: `Один прогон по всем (или выбранным) кабинетам.

По умолчанию режим берётся из sync.dry_run (по умолчанию true): решения
считаются и пишутся в журнал, но МойСклад не меняется.

Пример:
  fbosync sync --cabinet cab1 --report fbo.xlsx
  fbosync sync --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Cabinets, "cabinet", nil, "cabinet names to sync (default: all)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "compute and log decisions without writes")
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "write documents even if config says dry_run")
	cmd.Flags().StringVar(&opts.ReportPath, "report", "", "write run journal to this xlsx file")
	cmd.Flags().BoolVar(&opts.SendReport, "send-report", false, "send run journal xlsx to the telegram admin chat")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "apply")

	return cmd
}

// resolveDryRun: флаги важнее конфигурации.
func resolveDryRun(cfgDryRun, dryRunFlag, applyFlag bool) bool {
	switch {
	case dryRunFlag:
		return true
	case applyFlag:
		return false
	}
	return cfgDryRun
}

func runSync(ctx context.Context, opts *SyncOptions, cmd *cobra.Command) error {
	a, err := loadApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	cabinets, err := a.cabinets(opts.Cabinets)
	if err != nil {
		return err
	}

	rec := audit.NewRecorder()
	dryRun := resolveDryRun(a.cfg.Sync.DryRun, opts.DryRun, opts.Apply)
	o, err := a.orchestrator(dryRun, []audit.Sink{rec}, nil)
	if err != nil {
		return err
	}

	runErr := o.Run(ctx, cabinets)
	fmt.Fprintln(cmd.OutOrStdout(), rec.Summary().String())

	if opts.ReportPath != "" || opts.SendReport {
		if err := writeJournal(ctx, a, opts, rec.Events()); err != nil {
			a.log.Error("report failed", "err", err)
		}
	}
	return runErr
}

func writeJournal(ctx context.Context, a *app, opts *SyncOptions, events []audit.Event) error {
	buf := &bytes.Buffer{}
	if err := report.Outcomes(buf, events); err != nil {
		return err
	}
	if opts.ReportPath != "" {
		if err := os.WriteFile(opts.ReportPath, buf.Bytes(), 0o644); err != nil {
			return err
		}
		a.log.Info("report written", "path", opts.ReportPath, "events", len(events))
	}
	if opts.SendReport {
		if a.telegram == nil {
			return fmt.Errorf("telegram is not configured")
		}
		name := fmt.Sprintf("fbo_sync_%s.xlsx", time.Now().Format("20060102_150405"))
		return a.telegram.SendReport(ctx, name, buf.Bytes(), "Журнал синхронизации FBO")
	}
	return nil
}
