package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/fbo-sync/internal/infra/httpclient"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := httpclient.New(httpclient.Options{API: "moysklad", MaxAttempts: 1})
	return NewClient(srv.URL, "tok", time.UTC, hc), srv.URL
}

func TestRefAndID(t *testing.T) {
	c := NewClient("https://ms.example/api/remap/1.2/", "tok", nil, nil)
	r := c.Ref(EntityStore, "77b4a517-3b82-11f0-0a80-18cb00037a24")
	assert.Equal(t, "https://ms.example/api/remap/1.2/entity/store/77b4a517-3b82-11f0-0a80-18cb00037a24", r.Meta.Href)
	assert.Equal(t, "store", r.Meta.Type)
	assert.Equal(t, "application/json", r.Meta.MediaType)
	assert.Equal(t, "77b4a517-3b82-11f0-0a80-18cb00037a24", r.ID())

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"meta":{"href":"https://ms.example/api/remap/1.2/entity/store/77b4a517-3b82-11f0-0a80-18cb00037a24","type":"store","mediaType":"application/json"}}`, string(b))
}

func TestMoment(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	c := NewClient("", "tok", msk, nil)
	assert.Equal(t, "2025-12-25 14:00:00.000", c.Moment(time.Date(2025, 12, 25, 11, 0, 0, 0, time.UTC)))
}

func TestSalePrice(t *testing.T) {
	a := Assortment{SalePrices: []PriceValue{{Value: decimal.Zero}, {Value: decimal.NewFromInt(500)}, {Value: decimal.NewFromInt(700)}}}
	assert.True(t, SalePrice(a).Equal(decimal.NewFromInt(500)))
	assert.True(t, SalePrice(Assortment{}).IsZero())
}

func TestFindByCodeExact(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entity/assortment", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json;charset=utf-8", r.Header.Get("Accept"))
		assert.Equal(t, "article=ABC", r.URL.Query().Get("filter"))
		_, _ = w.Write([]byte(`{"rows":[{"meta":{"href":"h","type":"product"},"id":"p1","article":"ABC","salePrices":[{"value":500}]}]}`))
	})

	a, err := c.FindByCode(context.Background(), "ABC")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "p1", a.ID)
	assert.False(t, a.IsComposite())
}

func TestFindByCodeFuzzyFallback(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") != "" {
			_, _ = w.Write([]byte(`{"rows":[]}`))
			return
		}
		assert.Equal(t, "KIT", r.URL.Query().Get("search"))
		_, _ = w.Write([]byte(`{"rows":[
			{"meta":{"type":"product"},"id":"x","article":"KIT-2","code":"KIT-2"},
			{"meta":{"type":"bundle"},"id":"k1","code":"KIT"}
		]}`))
	})

	a, err := c.FindByCode(context.Background(), "KIT")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "k1", a.ID)
	assert.True(t, a.IsComposite())
}

func TestFindByCodeAbsent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rows":[]}`))
	})
	a, err := c.FindByCode(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestBundleComponents(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entity/bundle/k1/components", r.URL.Path)
		assert.Equal(t, "assortment", r.URL.Query().Get("expand"))
		_, _ = w.Write([]byte(`{"rows":[
			{"quantity":1,"assortment":{"meta":{"href":"ha","type":"product"},"id":"A"}},
			{"quantity":3,"assortment":{"meta":{"href":"hb","type":"product"},"id":"B"}}
		]}`))
	})

	comps, err := c.BundleComponents(context.Background(), "k1")
	require.NoError(t, err)
	require.Len(t, comps, 2)
	assert.Equal(t, "B", comps[1].Assortment.ID)
	assert.True(t, comps[1].Quantity.Equal(decimal.NewFromInt(3)))
}

func TestResolvePriceFetchesFullRecord(t *testing.T) {
	c, base := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entity/product/A", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"A","salePrices":[{"value":0},{"value":100}]}`))
	})

	a := Assortment{Meta: Meta{Href: base + "/entity/product/A", Type: "product"}}
	p, err := c.ResolvePrice(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(100)))

	_, err = c.ResolvePrice(context.Background(), Assortment{Meta: Meta{Href: "https://evil.example/x"}})
	require.Error(t, err)
}

func TestApplySoftFailureByCode(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"applicable":true}`, string(b))
		w.WriteHeader(http.StatusPreconditionFailed)
		_, _ = w.Write([]byte(`{"errors":[{"error":"Нельзя переместить товар, которого нет на складе","code":3007}]}`))
	})

	err := c.Apply(context.Background(), EntityMove, "m1")
	var sf *SoftFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, SoftInsufficientStock, sf.Kind)
	assert.Equal(t, "m1", sf.ID)
}

func TestApplySoftFailureByMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"error":"Нельзя отгрузить товар, которого нет на складе"}]}`))
	})

	var sf *SoftFailure
	require.ErrorAs(t, c.Apply(context.Background(), EntityDemand, "d1"), &sf)
}

func TestApplyOtherErrorPropagates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"error":"Доступ запрещён","code":1016}]}`))
	})

	err := c.Apply(context.Background(), EntityMove, "m1")
	require.Error(t, err)
	var sf *SoftFailure
	assert.False(t, errors.As(err, &sf))
	assert.Equal(t, http.StatusForbidden, httpclient.StatusOf(err))
}

func TestDocumentStoreFindByKey(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entity/customerorder", r.URL.Path)
		assert.Equal(t, "externalCode=OZON_FBO:1", r.URL.Query().Get("filter"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"rows":[
			{"id":"a","externalCode":"OZON_FBO:1","updated":"2025-12-01 10:00:00.000"},
			{"id":"b","externalCode":"OZON_FBO:10","updated":"2025-12-01 11:00:00.000"},
			{"id":"c","externalCode":"OZON_FBO:1","updated":"2025-12-02 09:30:00"}
		]}`))
	})

	rows, err := c.Documents().FindByKey(context.Background(), KindSalesOrder, "OZON_FBO:1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC), rows[0].Updated)
	assert.Equal(t, time.Date(2025, 12, 2, 9, 30, 0, 0, time.UTC), rows[1].Updated)
}

func TestDocumentStoreCreateUpdateDelete(t *testing.T) {
	var calls []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost {
			assert.Equal(t, "application/json;charset=utf-8", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"id":"new-id"}`))
		}
	})

	s := c.Documents()
	id, err := s.Create(context.Background(), KindTransfer, Move{Name: "1"}.CreatePayload())
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)
	require.NoError(t, s.Update(context.Background(), KindTransfer, id, map[string]string{"description": "x"}))
	require.NoError(t, s.Delete(context.Background(), KindTransfer, id))

	assert.Equal(t, []string{"POST /entity/move", "PUT /entity/move/new-id", "DELETE /entity/move/new-id"}, calls)
}

func TestPositionJSON(t *testing.T) {
	p := Position{
		Assortment: Ref{Meta: Meta{Href: "h", Type: "product", MediaType: "application/json"}},
		Quantity:   decimal.NewFromInt(6),
		Price:      decimal.NewFromInt(50),
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"assortment":{"meta":{"href":"h","type":"product","mediaType":"application/json"}},"quantity":6,"price":50}`, string(b))

	b, err = json.Marshal(WithoutPrices([]Position{p}))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(b), "price"))

	var back Position
	require.NoError(t, json.Unmarshal([]byte(`{"assortment":{"meta":{"href":"h"}},"quantity":2.5,"price":10}`), &back))
	assert.True(t, back.Quantity.Equal(decimal.RequireFromString("2.5")))
}

func TestPatchPayloadsKeepIdentityFields(t *testing.T) {
	c := NewClient("", "tok", nil, nil)
	o := CustomerOrder{
		Name:         "2000012345",
		ExternalCode: "OZON_FBO:2000012345",
		Organization: c.Ref(EntityOrganization, "org"),
		Description:  "d",
	}
	b, err := json.Marshal(o.PatchPayload())
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotContains(t, m, "name")
	assert.NotContains(t, m, "externalCode")
	assert.NotContains(t, m, "organization")
	assert.Equal(t, "d", m["description"])

	mv := Move{Name: "n", ExternalCode: "k"}
	b, err = json.Marshal(mv.CreatePayload())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"applicable":false`)
	assert.True(t, Demand{}.WriteOnce())
}
