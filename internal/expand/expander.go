package expand

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Spok95/fbo-sync/internal/accounting"
	"github.com/Spok95/fbo-sync/internal/domain/supply"
)

// DefaultMaxDepth: комплект раскрывается, и его компонент-комплект раскрывается ещё раз.
// Более глубокая вложенность пропускается с предупреждением.
const DefaultMaxDepth = 2

// Catalog — то, что нужно от МойСклад для разворачивания позиций.
type Catalog interface {
	FindByCode(ctx context.Context, code string) (*accounting.Assortment, error)
	BundleComponents(ctx context.Context, bundleID string) ([]accounting.Component, error)
	ResolvePrice(ctx context.Context, a accounting.Assortment) (decimal.Decimal, error)
}

type Result struct {
	Positions []accounting.Position
	Missing   []string // offer_id, не найденные в МойСклад
	TooDeep   []string // offer_id, упёршиеся в ограничение вложенности
}

type Expander struct {
	cat      Catalog
	maxDepth int
	log      *slog.Logger
}

func New(cat Catalog, maxDepth int, log *slog.Logger) *Expander {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if log == nil {
		log = slog.Default()
	}
	return &Expander{cat: cat, maxDepth: maxDepth, log: log}
}

// Expand превращает строки состава поставки в позиции документов.
// Ненайденные артикулы пропускаются; одинаковый ассортимент схлопывается в одну позицию.
func (e *Expander) Expand(ctx context.Context, items []supply.BundleItem) (Result, error) {
	var (
		res   Result
		acc   = newAccumulator()
		found = map[string]*accounting.Assortment{}
	)
	for _, it := range items {
		if !it.Quantity.IsPositive() {
			e.log.Debug("non-positive quantity dropped", "offer_id", it.OfferID, "qty", it.Quantity.String())
			continue
		}

		a, ok := found[it.OfferID]
		if !ok {
			var err error
			a, err = e.cat.FindByCode(ctx, it.OfferID)
			if err != nil {
				return Result{}, err
			}
			found[it.OfferID] = a
		}
		if a == nil {
			e.log.Warn("assortment not found", "offer_id", it.OfferID)
			res.Missing = append(res.Missing, it.OfferID)
			continue
		}

		// строка попадает в позиции только целиком
		line := newAccumulator()
		ok, err := e.expandOne(ctx, line, *a, it.Quantity, 0)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			res.TooDeep = append(res.TooDeep, it.OfferID)
			continue
		}
		acc.merge(line)
	}
	res.Positions = acc.positions()
	return res, nil
}

// expandOne добавляет позиции ассортимента a в количестве qty. false — превышена вложенность.
func (e *Expander) expandOne(ctx context.Context, acc *accumulator, a accounting.Assortment, qty decimal.Decimal, depth int) (bool, error) {
	if !qty.IsPositive() {
		return true, nil
	}
	if !a.IsComposite() {
		acc.add(a.Ref(), qty, e.price(ctx, a))
		return true, nil
	}

	if depth >= e.maxDepth {
		e.log.Warn("bundle nesting too deep, skipped", "bundle_id", a.ID, "max_depth", e.maxDepth)
		return false, nil
	}
	id := a.ID
	if id == "" {
		id = a.Ref().ID()
	}
	comps, err := e.cat.BundleComponents(ctx, id)
	if err != nil {
		return false, err
	}
	ok := true
	for _, c := range comps {
		sub, err := e.expandOne(ctx, acc, c.Assortment, qty.Mul(c.Quantity), depth+1)
		if err != nil {
			return false, err
		}
		ok = ok && sub
	}
	return ok, nil
}

// price — цена best-effort: ошибка загрузки даёт ноль, а не провал заявки.
func (e *Expander) price(ctx context.Context, a accounting.Assortment) decimal.Decimal {
	p, err := e.cat.ResolvePrice(ctx, a)
	if err != nil {
		e.log.Warn("sale price not resolved", "href", a.Meta.Href, "err", err)
		return decimal.Zero
	}
	return p
}

type accumulator struct {
	order []string
	byRef map[string]*accounting.Position
}

func newAccumulator() *accumulator {
	return &accumulator{byRef: map[string]*accounting.Position{}}
}

func (a *accumulator) add(ref accounting.Ref, qty, price decimal.Decimal) {
	key := ref.Meta.Href
	if p, ok := a.byRef[key]; ok {
		p.Quantity = p.Quantity.Add(qty)
		if !p.Price.IsPositive() {
			p.Price = price
		}
		return
	}
	a.order = append(a.order, key)
	a.byRef[key] = &accounting.Position{Assortment: ref, Quantity: qty, Price: price}
}

func (a *accumulator) merge(other *accumulator) {
	for _, k := range other.order {
		p := other.byRef[k]
		a.add(p.Assortment, p.Quantity, p.Price)
	}
}

func (a *accumulator) positions() []accounting.Position {
	out := make([]accounting.Position, 0, len(a.order))
	for _, k := range a.order {
		if p := a.byRef[k]; p.Quantity.IsPositive() {
			out = append(out, *p)
		}
	}
	return out
}
