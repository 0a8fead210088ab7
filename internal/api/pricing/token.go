package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/langchou/price-updater/internal/metrics"
	"github.com/langchou/price-updater/internal/tokenstore"
)

// TokenCacheKey 令牌在缓存中的 key
const TokenCacheKey = "vehicle_prices_access_token"

// DefaultTokenTTL 比常见的 3600s 令牌有效期略短，提前刷新
const DefaultTokenTTL = 3500 * time.Second

// Credentials OAuth2 client credentials 配置
type Credentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// tokenResponse token 接口响应
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenProvider 提供有效的访问令牌
type TokenProvider struct {
	httpClient *http.Client
	store      tokenstore.Store
	creds      Credentials
	ttl        time.Duration
	logger     *zap.Logger
	group      singleflight.Group
}

// NewTokenProvider 创建令牌提供者
func NewTokenProvider(httpClient *http.Client, store tokenstore.Store, creds Credentials, ttl time.Duration, logger *zap.Logger) *TokenProvider {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenProvider{
		httpClient: httpClient,
		store:      store,
		creds:      creds,
		ttl:        ttl,
		logger:     logger,
	}
}

// AccessToken 优先返回缓存的令牌，未命中时向 token 接口换取新令牌
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	if token, ok := p.store.Get(ctx, TokenCacheKey); ok {
		return token, nil
	}

	// 同一进程内的并发未命中只换取一次；换取不随任一调用方取消，由 HTTP 客户端超时约束
	ch := p.group.DoChan(TokenCacheKey, func() (any, error) {
		return p.fetchNewToken(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &AuthenticationError{
			Message: "Cancelled while waiting for access token",
			Err:     ctx.Err(),
		}
	}
}

// Invalidate 作废缓存的令牌
func (p *TokenProvider) Invalidate(ctx context.Context) {
	p.store.Forget(ctx, TokenCacheKey)
	p.logger.Info("Cleared cached access token")
}

// fetchNewToken 执行 client credentials 换取
func (p *TokenProvider) fetchNewToken(ctx context.Context) (string, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", p.creds.ClientID)
	data.Set("client_secret", p.creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.creds.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", &AuthenticationError{Message: "Unexpected error while fetching access token", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error("Exception while fetching access token", zap.Error(err))
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", &AuthenticationError{
			Message: "Unexpected error while fetching access token",
			Context: map[string]any{"original_message": err.Error()},
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", &AuthenticationError{
			Message: "Unexpected error while fetching access token",
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("read token response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("Failed to fetch access token",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
		metrics.TokenExchanges.WithLabelValues("rejected").Inc()
		return "", &AuthenticationError{
			Message: "Failed to fetch access token from API",
			Status:  resp.StatusCode,
			Context: map[string]any{
				"status":   resp.StatusCode,
				"response": decodeBody(body),
			},
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		p.logger.Error("No access token in response", zap.ByteString("response", body))
		metrics.TokenExchanges.WithLabelValues("invalid").Inc()
		return "", &AuthenticationError{
			Message: "No access token received from API",
			Context: map[string]any{"response": decodeBody(body)},
			Err:     err,
		}
	}

	p.store.Put(ctx, TokenCacheKey, tokenResp.AccessToken, p.ttl)
	metrics.TokenExchanges.WithLabelValues("success").Inc()
	p.logger.Info("Successfully fetched and cached new access token",
		zap.Int("expires_in", tokenResp.ExpiresIn),
		zap.Duration("cache_ttl", p.ttl),
	)

	return tokenResp.AccessToken, nil
}

// decodeBody 尽量把响应体解析为 JSON，失败时返回原始字符串
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}
