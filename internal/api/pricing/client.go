package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/langchou/price-updater/internal/metrics"
)

// maxAttempts 首次请求 + 401 后刷新令牌的一次重试
const maxAttempts = 2

// DefaultTimeout 外部请求超时
const DefaultTimeout = 30 * time.Second

// 价格 API 接口
const (
	EndpointGetSteerings     = "/GetSteerings"
	EndpointPublishSteerings = "/PublishSteerings"
)

// Options 客户端配置
type Options struct {
	BaseURL   string
	RateLimit float64 // 每秒请求数，0 表示不限制
}

// Client 带认证的价格 API 客户端
type Client struct {
	httpClient *http.Client
	tokens     *TokenProvider
	baseURL    string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewHTTPClient 创建带超时的 HTTP 客户端，token 换取和 API 请求共用
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewClient 创建价格 API 客户端
func NewClient(httpClient *http.Client, tokens *TokenProvider, opts Options, logger *zap.Logger) *Client {
	c := &Client{
		httpClient: httpClient,
		tokens:     tokens,
		baseURL:    opts.BaseURL,
		logger:     logger,
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// GetSteerings 查询 steering 记录
func (c *Client) GetSteerings(ctx context.Context, query any) (any, error) {
	return c.Request(ctx, c.baseURL+EndpointGetSteerings, http.MethodPost, query)
}

// PublishSteerings 发布（新增/删除）steering 记录
func (c *Client) PublishSteerings(ctx context.Context, payload any) (any, error) {
	return c.Request(ctx, c.baseURL+EndpointPublishSteerings, http.MethodPost, payload)
}

// Request 发送带认证的请求，返回解析后的 JSON 响应体
//
// 收到 401 时作废缓存的令牌并重试一次；其他失败直接返回 *APIRequestError，
// 令牌获取失败返回 *AuthenticationError。
func (c *Client) Request(ctx context.Context, rawURL, method string, body any) (any, error) {
	endpoint := endpointLabel(rawURL)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			c.logger.Error("Failed to get access token for authenticated request", zap.Error(err))
			return nil, err
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &APIRequestError{
					Message: "Unexpected error during API request",
					Context: requestContext(rawURL, method, attempt),
					Err:     fmt.Errorf("rate limiter: %w", err),
				}
			}
		}

		start := time.Now()
		status, respBody, err := c.do(ctx, rawURL, method, token, body)
		metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		if err != nil {
			c.logger.Error("Unexpected exception during authenticated request",
				zap.String("url", rawURL),
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			metrics.APIRequests.WithLabelValues(endpoint, "transport_error").Inc()
			reqCtx := requestContext(rawURL, method, attempt)
			reqCtx["original_message"] = err.Error()
			// 读取响应体失败时 status 有效，其余情况为 0
			return nil, &APIRequestError{
				Message:    "Unexpected error during API request",
				HTTPStatus: status,
				Context:    reqCtx,
				Err:        err,
			}
		}

		if status >= 200 && status < 300 {
			metrics.APIRequests.WithLabelValues(endpoint, "ok").Inc()
			return decodeBody(respBody), nil
		}

		// 令牌可能已过期，仅重试一次
		if status == http.StatusUnauthorized && attempt < maxAttempts {
			c.logger.Info("Received 401, clearing cached token and retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
			)
			metrics.APIRequests.WithLabelValues(endpoint, "unauthorized").Inc()
			metrics.TokenRefreshes.Inc()
			c.tokens.Invalidate(ctx)
			continue
		}

		c.logger.Error("API request failed",
			zap.String("url", rawURL),
			zap.String("method", method),
			zap.Int("status", status),
			zap.ByteString("response", respBody),
			zap.Int("attempt", attempt),
		)
		metrics.APIRequests.WithLabelValues(endpoint, "failed").Inc()
		reqCtx := requestContext(rawURL, method, attempt)
		reqCtx["status"] = status
		reqCtx["response"] = decodeBody(respBody)
		return nil, &APIRequestError{
			Message:    "API request failed",
			HTTPStatus: status,
			Context:    reqCtx,
		}
	}

	// 循环总会在最后一次尝试返回
	return nil, &APIRequestError{
		Message: "Failed to make authenticated request after token refresh retry",
		Context: map[string]any{"url": rawURL, "method": method},
	}
}

// do 执行单次 HTTP 请求
func (c *Client) do(ctx context.Context, rawURL, method, token string, body any) (int, []byte, error) {
	var reader io.Reader
	target := rawURL

	if body != nil {
		if method == http.MethodGet || method == http.MethodDelete {
			q, err := queryValues(body)
			if err != nil {
				return 0, nil, err
			}
			if encoded := q.Encode(); encoded != "" {
				target = rawURL + "?" + encoded
			}
		} else {
			data, err := json.Marshal(body)
			if err != nil {
				return 0, nil, fmt.Errorf("encode request body: %w", err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// queryValues 把请求体的顶层字段转换为查询参数
func queryValues(body any) (url.Values, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("query body must be an object: %w", err)
	}

	q := url.Values{}
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
		case string:
			q.Set(k, val)
		case float64, bool:
			q.Set(k, fmt.Sprint(val))
		default:
			encoded, _ := json.Marshal(val)
			q.Set(k, string(encoded))
		}
	}
	return q, nil
}

func requestContext(rawURL, method string, attempt int) map[string]any {
	return map[string]any{
		"url":     rawURL,
		"method":  method,
		"attempt": attempt,
	}
}

// endpointLabel 取 URL 的最后一段作为指标标签
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "unknown"
	}
	return path.Base(u.Path)
}
