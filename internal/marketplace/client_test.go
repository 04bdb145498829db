package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/fbo-sync/internal/domain/supply"
	"github.com/Spok95/fbo-sync/internal/infra/httpclient"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := httpclient.New(httpclient.Options{API: "ozon", MaxAttempts: 2, BaseDelay: time.Millisecond})
	return NewClient(srv.URL, "cid", "key", hc)
}

func collect(t *testing.T, c *Client, states ...supply.State) []int64 {
	t.Helper()
	var ids []int64
	for id, err := range c.ListOrderIDs(context.Background(), states, 2) {
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestListOrderIDsPaginatesAndDedups(t *testing.T) {
	pages := map[string]string{
		"":  `{"order_ids":[1,2],"last_id":"c1"}`,
		"c1": `{"order_ids":[2,3],"last_id":"c2"}`,
		"c2": `{"order_ids":[]}`,
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/supply-order/list", r.URL.Path)
		assert.Equal(t, "cid", r.Header.Get("Client-Id"))
		assert.Equal(t, "key", r.Header.Get("Api-Key"))
		var req listRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int{2}, req.Filter.States)
		_, _ = w.Write([]byte(pages[req.LastID]))
	})

	assert.Equal(t, []int64{1, 2, 3}, collect(t, c, supply.StateReady))
}

func TestListOrderIDsStopsWhenCursorStalls(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"order_ids":[7,8],"last_id":"same"}`))
	})

	assert.Equal(t, []int64{7, 8}, collect(t, c, supply.StateReady))
	assert.Equal(t, 2, calls)
}

func TestListOrderIDsCursorFromLastIDAndHasNext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req listRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.LastID {
		case "":
			_, _ = w.Write([]byte(`{"order_ids":[10,11]}`))
		case "11":
			_, _ = w.Write([]byte(`{"order_ids":[12],"has_next":false}`))
		default:
			t.Fatalf("unexpected cursor %q", req.LastID)
		}
	})

	assert.Equal(t, []int64{10, 11, 12}, collect(t, c, supply.StateReady, supply.StateDraft))
}

func TestListOrderIDsFallsBackToV2(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v3/supply-order/list" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"order_ids":[5],"has_next":false}`))
	})

	assert.Equal(t, []int64{5}, collect(t, c, supply.StateReady))
}

func TestListOrderIDsEarlyBreak(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"order_ids":[1,2,3],"last_id":"x"}`))
	})
	for id, err := range c.ListOrderIDs(context.Background(), []supply.State{supply.StateReady}, 3) {
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
		break
	}
}

func TestGetOrderDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/supply-order/get", r.URL.Path)
		_, _ = w.Write([]byte(`{"orders":[{
			"order_id": 12345,
			"order_number": "2000012345",
			"state": "READY_TO_SUPPLY",
			"timeslot": {"timeslot": {"from": "2025-12-25T11:00:00Z", "to": "2025-12-25T12:00:00Z"}},
			"supplies": [{"bundle_id": "b-1", "storage_warehouse": {"name": "ХОРУГВИНО_РФЦ"}}]
		}]}`))
	})

	orders, err := c.GetOrderDetails(context.Background(), []int64{12345})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, int64(12345), o.ID)
	assert.Equal(t, "2000012345", o.Number)
	assert.Equal(t, supply.StateReady, o.State)
	require.NotNil(t, o.Timeslot)
	assert.True(t, o.Timeslot.Equal(time.Date(2025, 12, 25, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, "ХОРУГВИНО_РФЦ", o.Warehouse)
	assert.Equal(t, []string{"b-1"}, o.BundleIDs)
}

func TestGetOrderDetailsWithoutTimeslot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[{"order_id": 1, "order_number": "1", "state": "DATA_FILLING", "timeslot": {}}]}`))
	})

	orders, err := c.GetOrderDetails(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Nil(t, orders[0].Timeslot)
	assert.Equal(t, supply.StateDraft, orders[0].State)
}

func TestGetBundleContentsPaginates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req bundleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"b-1"}, req.BundleIDs)
		if req.LastID == "" {
			_, _ = w.Write([]byte(`{"items":[{"offer_id":"ABC","quantity":3}],"has_next":true,"last_id":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"offer_id":" KIT ","quantity":2}],"has_next":false}`))
	})

	items, err := c.GetBundleContents(context.Background(), "b-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ABC", items[0].OfferID)
	assert.True(t, items[0].Quantity.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "KIT", items[1].OfferID)
}

func TestListOrderIDsPropagatesRequestFailed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	for _, err := range c.ListOrderIDs(context.Background(), []supply.State{supply.StateReady}, 10) {
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, httpclient.StatusOf(err))
	}
}
