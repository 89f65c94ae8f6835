// Package supabase 实现托管后端驱动：PostgREST 风格的表接口与 GoTrue 风格的认证接口。
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/store"
)

// Config 托管后端配置
type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration
}

// Client 托管后端客户端，实现 store.Backend
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

var _ store.Backend = (*Client)(nil)

// New 创建客户端
func New(cfg Config, lg *zap.Logger) *Client {
	if lg == nil {
		lg = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: timeout},
		logger:  lg,
		now:     time.Now,
	}
}

// Name 驱动名
func (c *Client) Name() string {
	return "supabase"
}

// APIError 后端返回的非 2xx 响应
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, e.Message)
}

// errorBody 兼容表接口与认证接口两种错误格式
type errorBody struct {
	Code             any    `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		e.Message = strings.TrimSpace(string(body))
		return e
	}
	switch {
	case eb.ErrorCode != "":
		e.Code = eb.ErrorCode
	case eb.Error != "":
		e.Code = eb.Error
	case eb.Code != nil:
		e.Code = fmt.Sprint(eb.Code)
	}
	for _, m := range []string{eb.Message, eb.Msg, eb.ErrorDescription, eb.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	prefer string
}

// do 发送请求并把 2xx 响应体解码到 out；out 为 nil 时丢弃响应体
func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	bearer := store.AccessTokenFrom(ctx)
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	start := c.now()
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", r.method, r.path, err)
	}

	c.logger.Debug("backend request",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", c.now().Sub(start)),
	)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return parseAPIError(res.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

// Ping 用一次最小查询检查后端可达
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	var rows []struct{}
	return c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/categories", query: q}, &rows)
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
