package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Spok95/fbo-sync/internal/audit"
	httpx "github.com/Spok95/fbo-sync/internal/infra/http"
	"github.com/Spok95/fbo-sync/internal/infra/notify"
)

type ServeOptions struct {
	*RootOptions
	Interval time.Duration
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Синхронизация по расписанию с /health, /status и /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "pause between runs (default: sync.interval)")
	return cmd
}

// boardNotifier кладёт итог прогона на /status.
type boardNotifier struct{ b *httpx.Board }

func (n boardNotifier) RunFinished(_ context.Context, cabinet string, s audit.Summary, runErr error) {
	n.b.Record(cabinet, s.String(), runErr, time.Now())
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	interval := opts.Interval
	if interval <= 0 {
		interval = a.cfg.Sync.Interval
	}

	board := httpx.NewBoard()
	o, err := a.orchestrator(a.cfg.Sync.DryRun, nil, []notify.Notifier{boardNotifier{board}})
	if err != nil {
		return err
	}
	cabinets, err := a.cabinets(nil)
	if err != nil {
		return err
	}

	srv := httpx.New(a.cfg.HTTP.Addr, a.cfg.Metrics.Enabled, board)
	go func() {
		if err := srv.Start(); err != nil {
			a.log.Error("http server error", "err", err)
		}
	}()
	a.log.Info("HTTP server started", "addr", a.cfg.HTTP.Addr, "interval", interval, "dry_run", a.cfg.Sync.DryRun)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := o.Run(ctx, cabinets); err != nil && ctx.Err() == nil {
			a.log.Error("scheduled run failed", "err", err)
		}
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			a.log.Info("graceful shutdown complete")
			return nil
		case <-t.C:
		}
	}
}
