package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Spok95/fbo-sync/internal/accounting"
	"github.com/Spok95/fbo-sync/internal/audit"
	"github.com/Spok95/fbo-sync/internal/config"
	"github.com/Spok95/fbo-sync/internal/expand"
	"github.com/Spok95/fbo-sync/internal/infra/db"
	"github.com/Spok95/fbo-sync/internal/infra/httpclient"
	"github.com/Spok95/fbo-sync/internal/infra/lock"
	"github.com/Spok95/fbo-sync/internal/infra/logger"
	"github.com/Spok95/fbo-sync/internal/infra/notify"
	"github.com/Spok95/fbo-sync/internal/marketplace"
	"github.com/Spok95/fbo-sync/internal/reconcile"
	"github.com/Spok95/fbo-sync/internal/upsert"
)

// app — собранные из конфигурации зависимости одной команды.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	ms       *accounting.Client
	pool     *pgxpool.Pool
	rdb      *redis.Client
	telegram *notify.Telegram
	closers  []func()
}

func loadApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg, log: logger.New(cfg.App.Env)}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a.ms = accounting.NewClient(cfg.MoySklad.BaseURL, cfg.MoySklad.Token, loc, a.httpClient("moysklad"))

	if cfg.Postgres.DSN != "" {
		pool, err := db.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		a.log.Info("db connected")
	}

	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, func() { _ = a.rdb.Close() })
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.AdminChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminChatID, cfg.Telegram.Quiet, a.log)
		if err != nil {
			// без уведомлений синхронизация всё равно нужна
			a.log.Warn("telegram disabled", "err", err)
		} else {
			a.telegram = tg
		}
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) httpClient(api string) *httpclient.Client {
	return httpclient.New(httpclient.Options{
		API:         api,
		MaxAttempts: a.cfg.HTTPClient.Attempts,
		Timeout:     a.cfg.HTTPClient.Timeout,
	})
}

func (a *app) ozon(cab config.Cabinet) *marketplace.Client {
	return marketplace.NewClient(a.cfg.Ozon.BaseURL, cab.ClientID, cab.APIKey, a.httpClient("ozon"))
}

// cabinets отбирает кабинеты по имени; пустой список — все.
func (a *app) cabinets(names []string) ([]reconcile.Cabinet, error) {
	selected := a.cfg.Cabinets
	if len(names) > 0 {
		selected = selected[:0:0]
		for _, n := range names {
			cab, ok := a.cfg.Cabinet(n)
			if !ok {
				return nil, fmt.Errorf("unknown cabinet %q", n)
			}
			selected = append(selected, cab)
		}
	}
	out := make([]reconcile.Cabinet, 0, len(selected))
	for _, cab := range selected {
		out = append(out, reconcile.Cabinet{
			Name:           cab.Name,
			SalesChannelID: cab.SalesChannelID,
			Orders:         a.ozon(cab),
		})
	}
	return out, nil
}

// orchestrator собирает оркестратор; sinks и notifiers добавляются к стандартным.
func (a *app) orchestrator(dryRun bool, sinks []audit.Sink, notifiers []notify.Notifier) (*reconcile.Orchestrator, error) {
	cfg := a.cfg
	policy, err := cfg.DedupPolicy()
	if err != nil {
		return nil, err
	}
	plannedFrom, err := cfg.PlannedFrom()
	if err != nil {
		return nil, err
	}
	states, err := cfg.States()
	if err != nil {
		return nil, err
	}

	sink := audit.Multi{audit.NewLogSink(a.log)}
	if a.pool != nil {
		sink = append(sink, audit.NewRepo(a.pool))
	}
	sink = append(sink, sinks...)

	var locker lock.Locker = lock.Noop{}
	if a.rdb != nil {
		locker = lock.NewRedis(a.rdb, "fbosync:lock:", cfg.Redis.LockTTL, a.log)
	}

	notifier := notify.Multi{notify.Log{L: a.log}}
	if a.telegram != nil {
		notifier = append(notifier, a.telegram)
	}
	notifier = append(notifier, notifiers...)

	return reconcile.New(reconcile.Deps{
		Accounting: a.ms,
		Expander:   expand.New(a.ms, cfg.Sync.ExpandMaxDepth, a.log),
		Engine:     upsert.New(a.ms.Documents(), upsert.Options{Policy: policy, DryRun: dryRun, Log: a.log}),
		Sink:       sink,
		Locker:     locker,
		Notifier:   notifier,
		Log:        a.log,
	}, reconcile.Config{
		OrganizationID:     cfg.MoySklad.OrganizationID,
		AgentID:            cfg.MoySklad.AgentID,
		StateID:            cfg.MoySklad.StateID,
		SourceStoreID:      cfg.MoySklad.SourceStoreID,
		DestinationStoreID: cfg.MoySklad.DestinationStoreID,
		PlannedFrom:        plannedFrom,
		Excluded:           cfg.Sync.ExcludedOrders,
		States:             states,
		PageSize:           cfg.Ozon.PageSize,
	}), nil
}
