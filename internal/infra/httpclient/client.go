package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Spok95/fbo-sync/internal/infra/metrics"
)

// сколько символов тела ответа сохраняем в ошибке
const maxErrorBody = 1500

const (
	defaultMaxAttempts = 6
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 20 * time.Second
	defaultTimeout     = 60 * time.Second
)

type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	Body   any // сериализуется в JSON; nil — без тела
}

type Options struct {
	API         string // метка для метрик: "ozon", "moysklad"
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client выполняет JSON-запросы с повторами на временных ошибках.
type Client struct {
	api         string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	http        *http.Client
}

func New(opts Options) *Client {
	c := &Client{
		api:         opts.API,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
		http:        opts.HTTPClient,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = defaultMaxDelay
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c
}

// Call выполняет запрос и возвращает тело ответа как JSON. Пустой ответ -> {}.
func (c *Client) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}

	endpoint, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, err
	}

	backoff := retry.NewExponential(c.baseDelay)
	backoff = retry.WithCappedDuration(c.maxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(c.maxAttempts-1), backoff)

	var (
		out     json.RawMessage
		attempt int
	)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.HTTPRetries.WithLabelValues(c.api).Inc()
		}
		raw, err := c.once(ctx, req.Method, endpoint, req.Header, payload)
		if err != nil {
			var rf *RequestFailedError
			if errors.As(err, &rf) {
				rf.Attempts = attempt
			}
			if ctx.Err() == nil && isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		out = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Do — Call с разбором ответа в out (если out != nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	raw, err := c.Call(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RequestFailedError{Method: req.Method, URL: req.URL, Body: truncate(string(raw)), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, endpoint string, header http.Header, payload []byte) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.HTTPRequests.WithLabelValues(c.api, "0").Inc()
		return nil, &RequestFailedError{Method: method, URL: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.HTTPRequests.WithLabelValues(c.api, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestFailedError{Status: resp.StatusCode, Method: method, URL: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return nil, &RequestFailedError{Status: resp.StatusCode, Method: method, URL: endpoint, Body: truncate(string(data))}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(data) {
		return nil, &RequestFailedError{Status: resp.StatusCode, Method: method, URL: endpoint, Body: truncate(string(data)), Err: errors.New("invalid JSON")}
	}
	return json.RawMessage(data), nil
}

func buildURL(raw string, query url.Values) (string, error) {
	if len(query) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxErrorBody {
		return s
	}
	return string(r[:maxErrorBody])
}
