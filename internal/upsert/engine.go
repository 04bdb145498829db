package upsert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

type Kind string

type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

// Document — желаемое состояние документа одного типа, привязанное к ключу идемпотентности.
type Document interface {
	Kind() Kind
	Key() string
	// CreatePayload — полное тело для создания.
	CreatePayload() any
	// PatchPayload — только изменяемые поля; имя, ключ и организацию не содержит.
	PatchPayload() any
}

// WriteOnce реализуют документы, которые после создания больше не изменяются.
type WriteOnce interface {
	WriteOnce() bool
}

type Existing struct {
	ID      string
	Updated time.Time
}

// Store — хранилище документов (МойСклад). Уникальность ключа обеспечивает Engine, не Store.
type Store interface {
	FindByKey(ctx context.Context, kind Kind, key string) ([]Existing, error)
	Create(ctx context.Context, kind Kind, payload any) (string, error)
	Update(ctx context.Context, kind Kind, id string, patch any) error
	Delete(ctx context.Context, kind Kind, id string) error
}

// Policy выбирает, какой из дублей остаётся.
type Policy string

const (
	KeepLatest   Policy = "latest"   // последний по updated, при равенстве — меньший id
	KeepEarliest Policy = "earliest" // первый по updated, при равенстве — меньший id
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", KeepLatest:
		return KeepLatest, nil
	case KeepEarliest:
		return KeepEarliest, nil
	}
	return "", fmt.Errorf("unknown dedup policy %q", s)
}

type Result struct {
	ID      string // пусто для создания в dry-run
	Action  Action
	Deleted []string // id удалённых (или подлежащих удалению в dry-run) дублей
	DryRun  bool
}

type Options struct {
	Policy Policy
	DryRun bool
	Log    *slog.Logger
}

type Engine struct {
	store  Store
	policy Policy
	dryRun bool
	log    *slog.Logger
}

func New(store Store, opts Options) *Engine {
	if opts.Policy == "" {
		opts.Policy = KeepLatest
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Engine{store: store, policy: opts.Policy, dryRun: opts.DryRun, log: opts.Log}
}

func (e *Engine) DryRun() bool { return e.dryRun }

// SelectSurvivor упорядочивает документы по политике и возвращает выжившего и остальных.
func SelectSurvivor(rows []Existing, policy Policy) (Existing, []Existing) {
	sorted := make([]Existing, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Updated.Equal(b.Updated) {
			if policy == KeepEarliest {
				return a.Updated.Before(b.Updated)
			}
			return a.Updated.After(b.Updated)
		}
		return a.ID < b.ID
	})
	return sorted[0], sorted[1:]
}

// Exists сообщает, есть ли хоть один документ с ключом. Ничего не удаляет.
func (e *Engine) Exists(ctx context.Context, kind Kind, key string) (bool, error) {
	if key == "" {
		return false, errors.New("upsert: empty idempotency key")
	}
	rows, err := e.store.FindByKey(ctx, kind, key)
	if err != nil {
		return false, fmt.Errorf("find %s by key: %w", kind, err)
	}
	return len(rows) > 0, nil
}

// Dedup сводит документы с ключом к одному. Возвращает выжившего (nil, если документов нет)
// и id удалённых дублей.
func (e *Engine) Dedup(ctx context.Context, kind Kind, key string) (*Existing, []string, error) {
	if key == "" {
		return nil, nil, errors.New("upsert: empty idempotency key")
	}
	rows, err := e.store.FindByKey(ctx, kind, key)
	if err != nil {
		return nil, nil, fmt.Errorf("find %s by key: %w", kind, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	keep, extras := SelectSurvivor(rows, e.policy)
	deleted := make([]string, 0, len(extras))
	for _, d := range extras {
		if d.ID == "" || d.ID == keep.ID {
			continue
		}
		if e.dryRun {
			e.log.Info("dry run: duplicate would be deleted", "kind", kind, "id", d.ID, "key", key, "keep", keep.ID)
		} else {
			if err := e.store.Delete(ctx, kind, d.ID); err != nil {
				return nil, deleted, fmt.Errorf("delete duplicate %s %s: %w", kind, d.ID, err)
			}
			e.log.Info("duplicate deleted", "kind", kind, "id", d.ID, "key", key, "keep", keep.ID)
		}
		deleted = append(deleted, d.ID)
	}
	return &keep, deleted, nil
}

// Upsert находит или создаёт документ по ключу, по пути удаляя дубли.
func (e *Engine) Upsert(ctx context.Context, doc Document) (Result, error) {
	kind, key := doc.Kind(), doc.Key()
	keep, deleted, err := e.Dedup(ctx, kind, key)
	if err != nil {
		return Result{Deleted: deleted, DryRun: e.dryRun}, err
	}
	res := Result{Deleted: deleted, DryRun: e.dryRun}

	if keep == nil {
		res.Action = ActionCreated
		if e.dryRun {
			e.log.Info("dry run: document would be created", "kind", kind, "key", key)
			return res, nil
		}
		id, err := e.store.Create(ctx, kind, doc.CreatePayload())
		if err != nil {
			return res, fmt.Errorf("create %s: %w", kind, err)
		}
		res.ID = id
		return res, nil
	}

	res.ID = keep.ID
	if wo, ok := doc.(WriteOnce); ok && wo.WriteOnce() {
		res.Action = ActionUnchanged
		return res, nil
	}

	res.Action = ActionUpdated
	if e.dryRun {
		e.log.Info("dry run: document would be updated", "kind", kind, "id", keep.ID, "key", key)
		return res, nil
	}
	if err := e.store.Update(ctx, kind, keep.ID, doc.PatchPayload()); err != nil {
		return res, fmt.Errorf("update %s %s: %w", kind, keep.ID, err)
	}
	return res, nil
}
