package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/triarii/pkg/triariidto"
)

// HeaderProvider injects per-request headers.
type HeaderProvider func() map[string]string

// Client talks to a triarii-server over HTTP.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets the attempt budget for idempotent reads.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, call{method: fasthttp.MethodGet, path: "/healthz", retry: true})
}

func (c *Client) Create(ctx context.Context, name, color string) (*triariidto.SeatResponse, error) {
	var out triariidto.SeatResponse
	in := triariidto.CreateRequest{Name: name, Color: color}
	if err := c.doJSON(ctx, call{method: fasthttp.MethodPost, path: "/games", in: in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Join(ctx context.Context, id, name string) (*triariidto.SeatResponse, error) {
	var out triariidto.SeatResponse
	in := triariidto.JoinRequest{Name: name}
	if err := c.doJSON(ctx, call{method: fasthttp.MethodPost, path: gamePath(id, "/join"), in: in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Snapshot(ctx context.Context, id string) (*triariidto.Snapshot, error) {
	var out triariidto.Snapshot
	if err := c.doJSON(ctx, call{method: fasthttp.MethodGet, path: gamePath(id, ""), out: &out, retry: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context, id string) (*triariidto.HistoryResponse, error) {
	var out triariidto.HistoryResponse
	if err := c.doJSON(ctx, call{method: fasthttp.MethodGet, path: gamePath(id, "/history"), out: &out, retry: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Select(ctx context.Context, id, token string, row, col int) (*triariidto.Snapshot, error) {
	var out triariidto.Snapshot
	in := triariidto.SelectRequest{Row: row, Col: col}
	if err := c.doJSON(ctx, call{method: fasthttp.MethodPut, path: gamePath(id, "/selection"), token: token, in: in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Move(ctx context.Context, id, token string, mv triariidto.MoveRequest) (*triariidto.MoveResponse, error) {
	var out triariidto.MoveResponse
	if err := c.doJSON(ctx, call{method: fasthttp.MethodPost, path: gamePath(id, "/moves"), token: token, in: mv, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EndTurn(ctx context.Context, id, token string) (*triariidto.Snapshot, error) {
	var out triariidto.Snapshot
	if err := c.doJSON(ctx, call{method: fasthttp.MethodPost, path: gamePath(id, "/end-turn"), token: token, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Resign(ctx context.Context, id, token string) (*triariidto.Snapshot, error) {
	var out triariidto.Snapshot
	if err := c.doJSON(ctx, call{method: fasthttp.MethodPost, path: gamePath(id, "/resign"), token: token, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Results(ctx context.Context, limit int) (*triariidto.ResultsResponse, error) {
	path := "/results"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out triariidto.ResultsResponse
	if err := c.doJSON(ctx, call{method: fasthttp.MethodGet, path: path, out: &out, retry: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Board fetches the rendered PNG of a game.
func (c *Client) Board(ctx context.Context, id string) ([]byte, error) {
	var png []byte
	err := c.do(ctx, call{method: fasthttp.MethodGet, path: gamePath(id, "/board.png"), retry: true}, func(resp *fasthttp.Response) error {
		png = append([]byte(nil), resp.Body()...)
		return nil
	})
	return png, err
}

func gamePath(id, suffix string) string {
	return "/games/" + url.PathEscape(strings.TrimSpace(id)) + suffix
}

type call struct {
	method string
	path   string
	token  string
	in     any
	out    any
	retry  bool
}

func (c *Client) doJSON(ctx context.Context, cl call) error {
	return c.do(ctx, cl, func(resp *fasthttp.Response) error {
		if cl.out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), cl.out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) do(ctx context.Context, cl call, onOK func(*fasthttp.Response) error) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(cl.method)
	req.SetRequestURI(c.baseURL + cl.path)
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if cl.in != nil {
		payload, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	attempts := 1
	if cl.retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := decodeError(status, resp.Body())
			if attempt == attempts || !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}
		return onOK(resp)
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

// decodeError turns a non-2xx body into *triariidto.Error.
func decodeError(status int, body []byte) error {
	e := &triariidto.Error{Status: status}
	if err := json.Unmarshal(body, e); err != nil || e.Code == "" {
		e.Code = "http_" + strconv.Itoa(status)
		e.Message = fmt.Sprintf("status=%d body=%s", status, truncate(string(body), 512))
	}
	return e
}

// Code returns the API error code carried by err, or "".
func Code(err error) string {
	var e *triariidto.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
