package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Spok95/fbo-sync/internal/accounting"
	"github.com/Spok95/fbo-sync/internal/audit"
	"github.com/Spok95/fbo-sync/internal/domain/supply"
	"github.com/Spok95/fbo-sync/internal/upsert"
)

// outcome — итог заявки для записи StageOrder.
type outcome struct {
	action     audit.Action
	documentID string
	reason     string
}

func skipped(reason string) outcome { return outcome{action: audit.ActionSkipped, reason: reason} }

// skipReason — отбор заявки до обращений к МойСклад. Пустая строка: заявка проходит.
func (o *Orchestrator) skipReason(ord supply.Order) string {
	if _, ok := o.excluded[ord.ID]; ok {
		return audit.ReasonExcluded
	}
	if ord.State == supply.StateCancelled {
		return audit.ReasonCancelled
	}
	if ord.Timeslot == nil {
		return audit.ReasonNoTimeslot
	}
	if !o.cfg.PlannedFrom.IsZero() && ord.Timeslot.Before(o.cfg.PlannedFrom) {
		return audit.ReasonBeforeCutoff
	}
	if len(ord.BundleIDs) == 0 {
		return audit.ReasonNoBundle
	}
	return ""
}

func (r *run) process(ctx context.Context, ord supply.Order) (outcome, error) {
	if reason := r.o.skipReason(ord); reason != "" {
		return skipped(reason), nil
	}

	// заявка с отгрузкой закрыта: дальше ничего не трогаем
	key := ord.ExternalCode()
	exists, err := r.o.eng.Exists(ctx, accounting.KindDispatch, key)
	if err != nil {
		return outcome{}, err
	}
	if exists {
		return skipped(audit.ReasonDispatchExists), nil
	}

	positions, err := r.positions(ctx, ord)
	if err != nil {
		return outcome{}, err
	}
	if len(positions) == 0 {
		return skipped(audit.ReasonNoPositions), nil
	}

	orderID, err := r.upsert(ctx, ord, audit.StageSalesOrder, r.salesOrder(ord, positions))
	if err != nil {
		return outcome{}, err
	}

	moveID, err := r.upsert(ctx, ord, audit.StageTransfer, r.transfer(ord, orderID, positions))
	if err != nil {
		return outcome{}, err
	}
	if err := r.apply(ctx, ord, audit.StageTransfer, accounting.EntityMove, moveID); err != nil {
		return outcome{}, err
	}

	if !ord.State.DispatchEligible() {
		r.emit(ctx, ord, audit.StageDispatch, audit.ActionSkipped, "", audit.ReasonNotDispatchable)
		return outcome{action: audit.ActionDone, documentID: orderID}, nil
	}

	demandID, err := r.upsert(ctx, ord, audit.StageDispatch, r.dispatch(ord, orderID, positions))
	if err != nil {
		return outcome{}, err
	}
	if err := r.apply(ctx, ord, audit.StageDispatch, accounting.EntityDemand, demandID); err != nil {
		return outcome{}, err
	}
	return outcome{action: audit.ActionDone, documentID: orderID}, nil
}

// positions собирает состав всех поставок заявки и разворачивает его в позиции.
func (r *run) positions(ctx context.Context, ord supply.Order) ([]accounting.Position, error) {
	var items []supply.BundleItem
	for _, bundleID := range ord.BundleIDs {
		got, err := r.cabinet.Orders.GetBundleContents(ctx, bundleID)
		if err != nil {
			return nil, fmt.Errorf("bundle %s: %w", bundleID, err)
		}
		items = append(items, got...)
	}

	res, err := r.o.exp.Expand(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("expand positions: %w", err)
	}
	for _, code := range res.Missing {
		r.emit(ctx, ord, audit.StageExpand, audit.ActionItemMissing, "", code)
	}
	for _, code := range res.TooDeep {
		r.emit(ctx, ord, audit.StageExpand, audit.ActionSkipped, "", audit.ReasonNestingTooDeep+": "+code)
	}
	return res.Positions, nil
}

// upsert пишет документ через Engine и отражает результат в журнале.
func (r *run) upsert(ctx context.Context, ord supply.Order, stage audit.Stage, doc upsert.Document) (string, error) {
	res, err := r.o.eng.Upsert(ctx, doc)
	for _, id := range res.Deleted {
		r.emit(ctx, ord, stage, audit.ActionDuplicateDeleted, id, "")
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	r.emit(ctx, ord, stage, audit.Action(res.Action), res.ID, "")
	return res.ID, nil
}

// apply проводит документ. Нехватка остатков — мягкий исход, остальное прерывает заявку.
func (r *run) apply(ctx context.Context, ord supply.Order, stage audit.Stage, entity, id string) error {
	if r.dryRun || id == "" {
		return nil
	}
	err := r.o.acc.Apply(ctx, entity, id)
	var sf *accounting.SoftFailure
	switch {
	case err == nil:
		r.emit(ctx, ord, stage, audit.ActionApplied, id, "")
		return nil
	case errors.As(err, &sf):
		r.o.log.Warn("document left unapplied", "entity", entity, "id", id, "order", ord.Number, "reason", sf.Kind)
		r.emit(ctx, ord, stage, audit.ActionLeftUnapplied, id, string(sf.Kind))
		return nil
	default:
		return fmt.Errorf("apply %s %s: %w", entity, id, err)
	}
}

/* Документы */

func (r *run) ref(entity, id string) *accounting.Ref {
	if id == "" {
		return nil
	}
	return r.o.acc.Ref(entity, id)
}

func description(ord supply.Order) string {
	if ord.Warehouse == "" {
		return ord.Number
	}
	return ord.Number + " - " + ord.Warehouse
}

func (r *run) salesOrder(ord supply.Order, positions []accounting.Position) accounting.CustomerOrder {
	cfg := r.o.cfg
	return accounting.CustomerOrder{
		Name:                  ord.Number,
		ExternalCode:          ord.ExternalCode(),
		Organization:          r.ref(accounting.EntityOrganization, cfg.OrganizationID),
		Agent:                 r.ref(accounting.EntityCounterparty, cfg.AgentID),
		State:                 r.ref(accounting.EntityState, cfg.StateID),
		SalesChannel:          r.ref(accounting.EntitySalesChannel, r.cabinet.SalesChannelID),
		Store:                 r.ref(accounting.EntityStore, cfg.SourceStoreID),
		DeliveryPlannedMoment: r.o.acc.Moment(*ord.Timeslot),
		Description:           description(ord),
		Positions:             positions,
	}
}

func (r *run) transfer(ord supply.Order, orderID string, positions []accounting.Position) accounting.Move {
	cfg := r.o.cfg
	return accounting.Move{
		Name:          ord.Number,
		ExternalCode:  ord.ExternalCode(),
		Organization:  r.ref(accounting.EntityOrganization, cfg.OrganizationID),
		SourceStore:   r.ref(accounting.EntityStore, cfg.SourceStoreID),
		TargetStore:   r.ref(accounting.EntityStore, cfg.DestinationStoreID),
		CustomerOrder: r.ref(accounting.EntityCustomerOrder, orderID),
		Description:   description(ord),
		Positions:     positions,
	}
}

func (r *run) dispatch(ord supply.Order, orderID string, positions []accounting.Position) accounting.Demand {
	cfg := r.o.cfg
	return accounting.Demand{
		Name:          ord.Number,
		ExternalCode:  ord.ExternalCode(),
		Organization:  r.ref(accounting.EntityOrganization, cfg.OrganizationID),
		Agent:         r.ref(accounting.EntityCounterparty, cfg.AgentID),
		Store:         r.ref(accounting.EntityStore, cfg.DestinationStoreID),
		SalesChannel:  r.ref(accounting.EntitySalesChannel, r.cabinet.SalesChannelID),
		CustomerOrder: r.ref(accounting.EntityCustomerOrder, orderID),
		Description:   description(ord),
		Positions:     positions,
	}
}
