package audit

import (
	"context"
	"errors"
	"time"
)

type Stage string

const (
	StageFilter     Stage = "filter"
	StageExpand     Stage = "expand"
	StageSalesOrder Stage = "sales_order"
	StageTransfer   Stage = "transfer"
	StageDispatch   Stage = "dispatch"
	StageOrder      Stage = "order" // итог по заявке, ровно одна запись на заявку
)

type Action string

const (
	ActionSkipped          Action = "skipped"
	ActionCreated          Action = "created"
	ActionUpdated          Action = "updated"
	ActionUnchanged        Action = "unchanged"
	ActionApplied          Action = "applied"
	ActionLeftUnapplied    Action = "left_unapplied"
	ActionDuplicateDeleted Action = "duplicate_deleted"
	ActionItemMissing      Action = "item_missing"
	ActionFailed           Action = "failed"
	ActionDone             Action = "done"
)

// причины пропуска и мягких отказов
const (
	ReasonExcluded          = "excluded"
	ReasonCancelled         = "cancelled"
	ReasonNoTimeslot        = "no_timeslot"
	ReasonBeforeCutoff      = "before_cutoff"
	ReasonDispatchExists    = "dispatch_exists"
	ReasonNoBundle          = "no_bundle"
	ReasonNoPositions       = "no_positions"
	ReasonNotDispatchable   = "state_not_dispatchable"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonNestingTooDeep    = "nesting_too_deep"
	ReasonNoDetail          = "no_detail"
)

// Event — запись журнала решений. Схема (action, ids, reason) стабильна,
// способ вывода задаёт Sink.
type Event struct {
	RunID       string
	At          time.Time
	Cabinet     string
	OrderID     int64
	OrderNumber string
	Stage       Stage
	Action      Action
	DocumentID  string
	Reason      string
	DryRun      bool
}

type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// Multi рассылает событие во все приёмники; ошибки объединяются.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
