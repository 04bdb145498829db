package accounting

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Spok95/fbo-sync/internal/infra/httpclient"
)

// сколько строк смотрим при нечётком поиске
const fuzzySearchLimit = 50

// FindByCode ищет товар или комплект по артикулу Ozon (offer_id).
// 1) точный фильтр по article; 2) контекстный поиск с совпадением article или code.
// Не найдено — (nil, nil).
func (c *Client) FindByCode(ctx context.Context, code string) (*Assortment, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	var exact List[Assortment]
	if err := c.Find(ctx, EntityAssortment, Eq("article", code), 1, &exact); err != nil {
		return nil, err
	}
	if len(exact.Rows) > 0 {
		return &exact.Rows[0], nil
	}

	var fuzzy List[Assortment]
	if err := c.Find(ctx, EntityAssortment, Search(code), fuzzySearchLimit, &fuzzy); err != nil {
		return nil, err
	}
	for i := range fuzzy.Rows {
		r := fuzzy.Rows[i]
		if r.Article == code || r.Code == code {
			return &r, nil
		}
	}
	return nil, nil
}

// BundleComponents возвращает состав комплекта с развёрнутым ассортиментом.
func (c *Client) BundleComponents(ctx context.Context, bundleID string) ([]Component, error) {
	var res List[Component]
	err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.entityURL(EntityBundle, bundleID, "components"),
		Header: c.headers(false),
		Query:  url.Values{"expand": {"assortment"}},
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("bundle %s components: %w", bundleID, err)
	}
	return res.Rows, nil
}

// ResolvePrice — цена продажи ассортимента. Если в кратком представлении цен нет,
// загружаем полную карточку по href.
func (c *Client) ResolvePrice(ctx context.Context, a Assortment) (decimal.Decimal, error) {
	if p := SalePrice(a); p.IsPositive() || len(a.SalePrices) > 0 {
		return p, nil
	}
	if a.Meta.Href == "" {
		return decimal.Zero, nil
	}
	var full Assortment
	if err := c.GetByHref(ctx, a.Meta.Href, &full); err != nil {
		return decimal.Zero, err
	}
	return SalePrice(full), nil
}
