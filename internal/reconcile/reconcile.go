package reconcile

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/fbo-sync/internal/accounting"
	"github.com/Spok95/fbo-sync/internal/audit"
	"github.com/Spok95/fbo-sync/internal/domain/supply"
	"github.com/Spok95/fbo-sync/internal/expand"
	"github.com/Spok95/fbo-sync/internal/infra/lock"
	"github.com/Spok95/fbo-sync/internal/infra/metrics"
	"github.com/Spok95/fbo-sync/internal/infra/notify"
	"github.com/Spok95/fbo-sync/internal/upsert"
)

/* Зависимости */

// Marketplace — чтение заявок FBO одного кабинета Ozon.
type Marketplace interface {
	ListOrderIDs(ctx context.Context, states []supply.State, pageSize int) iter.Seq2[int64, error]
	GetOrderDetails(ctx context.Context, ids []int64) ([]supply.Order, error)
	GetBundleContents(ctx context.Context, bundleID string) ([]supply.BundleItem, error)
}

type Expander interface {
	Expand(ctx context.Context, items []supply.BundleItem) (expand.Result, error)
}

type Engine interface {
	Upsert(ctx context.Context, doc upsert.Document) (upsert.Result, error)
	Exists(ctx context.Context, kind upsert.Kind, key string) (bool, error)
	DryRun() bool
}

// Accounting — то, что оркестратору нужно от МойСклад помимо upsert.
type Accounting interface {
	Ref(entity, id string) *accounting.Ref
	Moment(t time.Time) string
	Apply(ctx context.Context, entity, id string) error
}

// Cabinet — кабинет Ozon и его канал продаж в МойСклад.
type Cabinet struct {
	Name           string
	SalesChannelID string
	Orders         Marketplace
}

// DefaultStates — какие заявки забираем из Ozon: всё, что ещё может породить документы.
var DefaultStates = []supply.State{
	supply.StateDraft,
	supply.StateReady,
	supply.StateAcceptedAtOrigin,
	supply.StateInTransit,
	supply.StateAcceptedAtDestination,
	supply.StateCompleted,
}

// Config — статические ссылки МойСклад и правила отбора заявок.
type Config struct {
	OrganizationID     string
	AgentID            string
	StateID            string
	SourceStoreID      string // свой склад: откуда перемещаем
	DestinationStoreID string // склад FBO: куда перемещаем и откуда отгружаем
	PlannedFrom        time.Time
	Excluded           []int64
	States             []supply.State
	PageSize           int
}

type Deps struct {
	Accounting Accounting
	Expander   Expander
	Engine     Engine
	Sink       audit.Sink
	Locker     lock.Locker
	Notifier   notify.Notifier
	Log        *slog.Logger
}

type Orchestrator struct {
	acc      Accounting
	exp      Expander
	eng      Engine
	sink     audit.Sink
	locker   lock.Locker
	notifier notify.Notifier
	log      *slog.Logger

	cfg      Config
	excluded map[int64]struct{}
	now      func() time.Time
}

func New(d Deps, cfg Config) *Orchestrator {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Locker == nil {
		d.Locker = lock.Noop{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.Log{L: d.Log}
	}
	if len(cfg.States) == 0 {
		cfg.States = DefaultStates
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	excluded := make(map[int64]struct{}, len(cfg.Excluded))
	for _, id := range cfg.Excluded {
		excluded[id] = struct{}{}
	}
	return &Orchestrator{
		acc:      d.Accounting,
		exp:      d.Expander,
		eng:      d.Engine,
		sink:     d.Sink,
		locker:   d.Locker,
		notifier: d.Notifier,
		log:      d.Log,
		cfg:      cfg,
		excluded: excluded,
		now:      time.Now,
	}
}

// Run проходит кабинеты по очереди. Ошибка одного кабинета не останавливает остальные.
func (o *Orchestrator) Run(ctx context.Context, cabinets []Cabinet) error {
	var errs []error
	for _, cab := range cabinets {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if _, err := o.RunCabinet(ctx, cab); err != nil {
			if errors.Is(err, lock.ErrBusy) {
				o.log.Warn("cabinet is locked by another run, skipped", "cabinet", cab.Name)
				continue
			}
			errs = append(errs, fmt.Errorf("cabinet %s: %w", cab.Name, err))
		}
	}
	return errors.Join(errs...)
}

// RunCabinet — один прогон по кабинету под блокировкой.
func (o *Orchestrator) RunCabinet(ctx context.Context, cab Cabinet) (audit.Summary, error) {
	release, err := o.locker.Acquire(ctx, cab.Name)
	if err != nil {
		return audit.Summary{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			o.log.Warn("lock release failed", "cabinet", cab.Name, "err", err)
		}
	}()

	started := o.now()
	rec := audit.NewRecorder()
	r := &run{
		o:       o,
		id:      uuid.NewString(),
		cabinet: cab,
		sink:    audit.Multi{o.sink, rec},
		dryRun:  o.eng.DryRun(),
	}
	log := o.log.With("cabinet", cab.Name, "run_id", r.id, "dry_run", r.dryRun)
	log.Info("sync started")

	err = r.sync(ctx)
	summary := rec.Summary()

	metrics.RunDuration.WithLabelValues(cab.Name).Observe(o.now().Sub(started).Seconds())
	if err == nil {
		metrics.LastRunSuccess.WithLabelValues(cab.Name).SetToCurrentTime()
		log.Info("sync finished", "summary", summary.String())
	} else {
		log.Error("sync aborted", "summary", summary.String(), "err", err)
	}
	o.notifier.RunFinished(ctx, cab.Name, summary, err)
	return summary, err
}

// run — состояние одного прогона по кабинету.
type run struct {
	o       *Orchestrator
	id      string
	cabinet Cabinet
	sink    audit.Sink
	dryRun  bool
}

func (r *run) sync(ctx context.Context) error {
	var ids []int64
	for id, err := range r.cabinet.Orders.ListOrderIDs(ctx, r.o.cfg.States, r.o.cfg.PageSize) {
		if err != nil {
			return fmt.Errorf("list supply orders: %w", err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	orders, err := r.cabinet.Orders.GetOrderDetails(ctx, ids)
	if err != nil {
		return fmt.Errorf("supply order details: %w", err)
	}

	got := make(map[int64]struct{}, len(orders))
	for _, ord := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		got[ord.ID] = struct{}{}
		r.reconcile(ctx, ord)
	}

	// Ozon вернул не все заявки из списка: каждая всё равно получает итог
	for _, id := range ids {
		if _, ok := got[id]; ok {
			continue
		}
		r.o.log.Warn("supply order details missing", "cabinet", r.cabinet.Name, "order_id", id)
		r.emit(ctx, supply.Order{ID: id}, audit.StageOrder, audit.ActionSkipped, "", audit.ReasonNoDetail)
	}
	return nil
}

// reconcile обрабатывает одну заявку и пишет по ней ровно одну итоговую запись.
func (r *run) reconcile(ctx context.Context, ord supply.Order) {
	out, err := r.process(ctx, ord)
	if err != nil {
		r.o.log.Error("supply order failed", "cabinet", r.cabinet.Name, "order", ord.Number, "err", err)
		r.emit(ctx, ord, audit.StageOrder, audit.ActionFailed, "", truncate(err.Error(), 500))
		return
	}
	r.emit(ctx, ord, audit.StageOrder, out.action, out.documentID, out.reason)
}

func (r *run) emit(ctx context.Context, ord supply.Order, stage audit.Stage, action audit.Action, docID, reason string) {
	metrics.Outcomes.WithLabelValues(r.cabinet.Name, string(stage), string(action)).Inc()
	e := audit.Event{
		RunID:       r.id,
		At:          r.o.now(),
		Cabinet:     r.cabinet.Name,
		OrderID:     ord.ID,
		OrderNumber: ord.Number,
		Stage:       stage,
		Action:      action,
		DocumentID:  docID,
		Reason:      reason,
		DryRun:      r.dryRun,
	}
	if err := r.sink.Emit(ctx, e); err != nil {
		r.o.log.Warn("audit emit failed", "err", err)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
