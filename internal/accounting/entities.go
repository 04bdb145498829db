package accounting

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EntityCustomerOrder = "customerorder"
	EntityMove          = "move"
	EntityDemand        = "demand"
	EntityProduct       = "product"
	EntityBundle        = "bundle"
	EntityVariant       = "variant"
	EntityAssortment    = "assortment"
	EntityOrganization  = "organization"
	EntityCounterparty  = "counterparty"
	EntityStore         = "store"
	EntitySalesChannel  = "saleschannel"
	EntityState         = "state"
)

const momentLayout = "2006-01-02 15:04:05.000"

type Meta struct {
	Href      string `json:"href"`
	Type      string `json:"type"`
	MediaType string `json:"mediaType"`
}

// Ref — конверт {"meta": ...} для ссылок между сущностями.
type Ref struct {
	Meta Meta `json:"meta"`
}

// ID достаёт UUID сущности из href.
func (r Ref) ID() string {
	href := r.Meta.Href
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	return href[strings.LastIndexByte(href, '/')+1:]
}

type List[T any] struct {
	Rows []T `json:"rows"`
}

// Moment — время в формате МойСклад ("2006-01-02 15:04:05.000").
type Moment struct{ time.Time }

func (m *Moment) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		m.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(momentLayout, s)
	if err != nil {
		// старые ответы бывают без миллисекунд
		t, err = time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return err
		}
	}
	m.Time = t
	return nil
}

// PriceValue — одна из цен продажи товара.
type PriceValue struct {
	Value decimal.Decimal `json:"value"`
}

// Assortment — товар, комплект или модификация из /entity/assortment.
type Assortment struct {
	Meta       Meta        `json:"meta"`
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Code       string      `json:"code"`
	Article    string      `json:"article"`
	SalePrices []PriceValue `json:"salePrices"`
}

func (a Assortment) IsComposite() bool { return a.Meta.Type == EntityBundle }

func (a Assortment) Ref() Ref { return Ref{Meta: a.Meta} }

// Component — строка состава комплекта.
type Component struct {
	Assortment Assortment      `json:"assortment"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// SalePrice — первая строго положительная цена продажи, иначе ноль.
func SalePrice(a Assortment) decimal.Decimal {
	for _, p := range a.SalePrices {
		if p.Value.IsPositive() {
			return p.Value
		}
	}
	return decimal.Zero
}

// DocumentRow — общие поля документов в списках (для дедупликации).
type DocumentRow struct {
	Meta         Meta   `json:"meta"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExternalCode string `json:"externalCode"`
	Updated      Moment `json:"updated"`
	Applicable   bool   `json:"applicable"`
}
