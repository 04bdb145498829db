package accounting

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Spok95/fbo-sync/internal/infra/httpclient"
)

const DefaultBaseURL = "https://api.moysklad.ru/api/remap/1.2"

// Client — шлюз к API МойСклад: CRUD по сущностям, ссылки, поиск ассортимента.
type Client struct {
	baseURL string
	token   string
	loc     *time.Location
	http    *httpclient.Client
}

// NewClient. loc — часовой пояс, в котором МойСклад ожидает моменты документов.
func NewClient(baseURL, token string, loc *time.Location, hc *httpclient.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, loc: loc, http: hc}
}

// ВАЖНО: Accept именно application/json;charset=utf-8, иначе МойСклад отвечает 400.
func (c *Client) headers(withBody bool) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.token)
	h.Set("Accept", "application/json;charset=utf-8")
	if withBody {
		h.Set("Content-Type", "application/json;charset=utf-8")
	}
	return h
}

func (c *Client) entityURL(entity string, parts ...string) string {
	u := c.baseURL + "/entity/" + entity
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

func (c *Client) Get(ctx context.Context, entity, id string, out any) error {
	return c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.entityURL(entity, id),
		Header: c.headers(false),
	}, out)
}

// GetByHref загружает сущность по полной ссылке из meta.href.
func (c *Client) GetByHref(ctx context.Context, href string, out any) error {
	if !strings.HasPrefix(href, c.baseURL+"/") {
		return fmt.Errorf("accounting: foreign href %q", href)
	}
	return c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    href,
		Header: c.headers(false),
	}, out)
}

func (c *Client) Create(ctx context.Context, entity string, payload, out any) error {
	return c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.entityURL(entity),
		Header: c.headers(true),
		Body:   payload,
	}, out)
}

// Update — частичное изменение (PUT в МойСклад меняет только переданные поля).
func (c *Client) Update(ctx context.Context, entity, id string, payload, out any) error {
	return c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPut,
		URL:    c.entityURL(entity, id),
		Header: c.headers(true),
		Body:   payload,
	}, out)
}

func (c *Client) Delete(ctx context.Context, entity, id string) error {
	return c.http.Do(ctx, httpclient.Request{
		Method: http.MethodDelete,
		URL:    c.entityURL(entity, id),
		Header: c.headers(false),
	}, nil)
}

// Filter — выражение фильтра МойСклад и/или контекстный поиск.
type Filter struct {
	Expr   string
	Search string
}

// Eq — точное совпадение поля.
func Eq(field, value string) Filter { return Filter{Expr: field + "=" + value} }

// Like — вхождение подстроки в поле.
func Like(field, value string) Filter { return Filter{Expr: field + "~" + value} }

// Search — контекстный поиск по всем текстовым полям.
func Search(q string) Filter { return Filter{Search: q} }

// Find возвращает строки списка сущностей по фильтру; out — указатель на List[T].
func (c *Client) Find(ctx context.Context, entity string, f Filter, limit int, out any) error {
	q := url.Values{}
	if f.Expr != "" {
		q.Set("filter", f.Expr)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.entityURL(entity),
		Header: c.headers(false),
		Query:  q,
	}, out)
}

// Ref строит ссылку на сущность для вложения в документ.
func (c *Client) Ref(entity, id string) *Ref {
	return &Ref{Meta: Meta{
		Href:      c.entityURL(entity, id),
		Type:      entity,
		MediaType: "application/json",
	}}
}

// Moment форматирует время в формат моментов МойСклад в часовом поясе аккаунта.
func (c *Client) Moment(t time.Time) string {
	return t.In(c.loc).Format(momentLayout)
}
