package accounting

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/Spok95/fbo-sync/internal/upsert"
)

const (
	KindSalesOrder upsert.Kind = EntityCustomerOrder
	KindTransfer   upsert.Kind = EntityMove
	KindDispatch   upsert.Kind = EntityDemand
)

// Position — строка документа: ссылка на ассортимент, количество, цена (в копейках).
type Position struct {
	Assortment Ref
	Quantity   decimal.Decimal
	Price      decimal.Decimal
}

type positionJSON struct {
	Assortment Ref      `json:"assortment"`
	Quantity   float64  `json:"quantity"`
	Price      *float64 `json:"price,omitempty"`
}

func (p Position) MarshalJSON() ([]byte, error) {
	out := positionJSON{Assortment: p.Assortment, Quantity: p.Quantity.InexactFloat64()}
	if p.Price.IsPositive() {
		v := p.Price.InexactFloat64()
		out.Price = &v
	}
	return json.Marshal(out)
}

func (p *Position) UnmarshalJSON(b []byte) error {
	var in struct {
		Assortment Ref             `json:"assortment"`
		Quantity   decimal.Decimal `json:"quantity"`
		Price      decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*p = Position{Assortment: in.Assortment, Quantity: in.Quantity, Price: in.Price}
	return nil
}

// WithoutPrices копирует позиции без цен.
func WithoutPrices(ps []Position) []Position {
	out := make([]Position, len(ps))
	for i, p := range ps {
		out[i] = Position{Assortment: p.Assortment, Quantity: p.Quantity}
	}
	return out
}

/* Заказ покупателя */

type CustomerOrder struct {
	Name                  string     `json:"name,omitempty"`
	ExternalCode          string     `json:"externalCode,omitempty"`
	Organization          *Ref       `json:"organization,omitempty"`
	Agent                 *Ref       `json:"agent,omitempty"`
	State                 *Ref       `json:"state,omitempty"`
	SalesChannel          *Ref       `json:"salesChannel,omitempty"`
	Store                 *Ref       `json:"store,omitempty"`
	DeliveryPlannedMoment string     `json:"deliveryPlannedMoment,omitempty"`
	Description           string     `json:"description,omitempty"`
	Positions             []Position `json:"positions"`
}

func (d CustomerOrder) Kind() upsert.Kind  { return KindSalesOrder }
func (d CustomerOrder) Key() string        { return d.ExternalCode }
func (d CustomerOrder) CreatePayload() any { return d }

// PatchPayload: позиции, плановая дата, описание, склад.
func (d CustomerOrder) PatchPayload() any {
	return CustomerOrder{
		Store:                 d.Store,
		DeliveryPlannedMoment: d.DeliveryPlannedMoment,
		Description:           d.Description,
		Positions:             d.Positions,
	}
}

/* Перемещение */

type Move struct {
	Name          string     `json:"name,omitempty"`
	ExternalCode  string     `json:"externalCode,omitempty"`
	Organization  *Ref       `json:"organization,omitempty"`
	SourceStore   *Ref       `json:"sourceStore,omitempty"`
	TargetStore   *Ref       `json:"targetStore,omitempty"`
	CustomerOrder *Ref       `json:"customerOrder,omitempty"`
	Description   string     `json:"description,omitempty"`
	Applicable    *bool      `json:"applicable,omitempty"`
	Positions     []Position `json:"positions"`
}

func (d Move) Kind() upsert.Kind { return KindTransfer }
func (d Move) Key() string       { return d.ExternalCode }

// CreatePayload: перемещение создаётся непроведённым, проводим отдельным шагом.
func (d Move) CreatePayload() any {
	d.Applicable = new(bool)
	return d
}

func (d Move) PatchPayload() any {
	return Move{
		SourceStore:   d.SourceStore,
		TargetStore:   d.TargetStore,
		CustomerOrder: d.CustomerOrder,
		Description:   d.Description,
		Positions:     d.Positions,
	}
}

/* Отгрузка */

type Demand struct {
	Name          string     `json:"name,omitempty"`
	ExternalCode  string     `json:"externalCode,omitempty"`
	Organization  *Ref       `json:"organization,omitempty"`
	Agent         *Ref       `json:"agent,omitempty"`
	Store         *Ref       `json:"store,omitempty"`
	SalesChannel  *Ref       `json:"salesChannel,omitempty"`
	CustomerOrder *Ref       `json:"customerOrder,omitempty"`
	Description   string     `json:"description,omitempty"`
	Applicable    *bool      `json:"applicable,omitempty"`
	Positions     []Position `json:"positions"`
}

func (d Demand) Kind() upsert.Kind { return KindDispatch }
func (d Demand) Key() string       { return d.ExternalCode }

func (d Demand) CreatePayload() any {
	d.Applicable = new(bool)
	return d
}

// PatchPayload не используется: отгрузка пишется один раз.
func (d Demand) PatchPayload() any { return nil }

func (d Demand) WriteOnce() bool { return true }
