package marketplace

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Spok95/fbo-sync/internal/domain/supply"
	"github.com/Spok95/fbo-sync/internal/infra/httpclient"
)

const DefaultBaseURL = "https://api-seller.ozon.ru"

const (
	detailBatchSize = 50
	bundlePageSize  = 100
)

// Client — шлюз к заявкам на поставку FBO одного кабинета Ozon. Только чтение.
type Client struct {
	baseURL string
	header  http.Header
	http    *httpclient.Client
}

func NewClient(baseURL, clientID, apiKey string, hc *httpclient.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	h := http.Header{}
	h.Set("Client-Id", clientID)
	h.Set("Api-Key", apiKey)
	h.Set("Content-Type", "application/json")
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), header: h, http: hc}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + path,
		Header: c.header,
		Body:   body,
	}, out)
}

// postWithFallback: если на аккаунте не включён v3, пробуем v2.
func (c *Client) postWithFallback(ctx context.Context, primary, fallback string, body, out any) error {
	err := c.post(ctx, primary, body, out)
	if err != nil && httpclient.StatusOf(err) == http.StatusNotFound {
		return c.post(ctx, fallback, body, out)
	}
	return err
}

// ListOrderIDs лениво отдаёт id заявок в заданных состояниях, постранично по курсору.
// Останавливается на пустой странице, has_next=false или если курсор не сдвинулся.
// Повторы id на границах страниц отбрасываются.
func (c *Client) ListOrderIDs(ctx context.Context, states []supply.State, pageSize int) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		codes := make([]int, 0, len(states))
		for _, s := range states {
			code, ok := s.FilterCode()
			if !ok {
				yield(0, fmt.Errorf("marketplace: no list filter for state %q", s))
				return
			}
			codes = append(codes, code)
		}
		if pageSize <= 0 {
			pageSize = 100
		}

		seen := make(map[int64]struct{})
		cursor := ""
		for {
			req := listRequest{
				Filter:  listFilter{States: codes},
				LastID:  cursor,
				Limit:   pageSize,
				SortBy:  1,
				SortDir: "DESC",
			}
			var resp listResponse
			if err := c.postWithFallback(ctx, "/v3/supply-order/list", "/v2/supply-order/list", req, &resp); err != nil {
				yield(0, err)
				return
			}
			if len(resp.OrderIDs) == 0 {
				return
			}

			for _, id := range resp.OrderIDs {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				if !yield(id, nil) {
					return
				}
			}

			if resp.HasNext != nil && !*resp.HasNext {
				return
			}
			next := resp.LastID
			if next == "" {
				next = strconv.FormatInt(resp.OrderIDs[len(resp.OrderIDs)-1], 10)
			}
			if next == cursor {
				return
			}
			cursor = next
		}
	}
}

// GetOrderDetails возвращает детали заявок; запросы идут пачками.
func (c *Client) GetOrderDetails(ctx context.Context, ids []int64) ([]supply.Order, error) {
	out := make([]supply.Order, 0, len(ids))
	for start := 0; start < len(ids); start += detailBatchSize {
		end := min(start+detailBatchSize, len(ids))
		var resp getResponse
		if err := c.postWithFallback(ctx, "/v3/supply-order/get", "/v2/supply-order/get", getRequest{OrderIDs: ids[start:end]}, &resp); err != nil {
			return nil, err
		}
		for _, o := range resp.Orders {
			out = append(out, o.toDomain())
		}
	}
	return out, nil
}

// GetBundleContents возвращает состав поставки по bundle_id.
func (c *Client) GetBundleContents(ctx context.Context, bundleID string) ([]supply.BundleItem, error) {
	var out []supply.BundleItem
	cursor := ""
	for {
		var resp bundleResponse
		req := bundleRequest{BundleIDs: []string{bundleID}, Limit: bundlePageSize, LastID: cursor}
		if err := c.post(ctx, "/v1/supply-order/bundle", req, &resp); err != nil {
			return nil, err
		}
		for _, it := range resp.Items {
			out = append(out, supply.BundleItem{OfferID: strings.TrimSpace(it.OfferID), Quantity: it.Quantity})
		}
		if !resp.HasNext || resp.LastID == "" || resp.LastID == cursor {
			return out, nil
		}
		cursor = resp.LastID
	}
}

func (o orderDTO) toDomain() supply.Order {
	out := supply.Order{
		ID:     o.OrderID,
		Number: strings.TrimSpace(o.OrderNumber),
		State:  supply.ParseWireState(o.State),
	}
	if o.Timeslot != nil && o.Timeslot.Timeslot != nil {
		if t, ok := parseTime(o.Timeslot.Timeslot.From); ok {
			out.Timeslot = &t
		}
	}
	for _, s := range o.Supplies {
		if s.BundleID != "" {
			out.BundleIDs = append(out.BundleIDs, s.BundleID)
		}
		if out.Warehouse == "" && s.StorageWarehouse != nil {
			out.Warehouse = s.StorageWarehouse.Name
		}
	}
	if out.Warehouse == "" && o.DropOff != nil {
		out.Warehouse = o.DropOff.Name
	}
	return out
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
