package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "price_updater"

var (
	// TokenExchanges 令牌换取次数，按结果区分
	TokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_exchanges_total",
		Help:      "OAuth2 client-credentials token exchanges by result.",
	}, []string{"result"})

	// TokenRefreshes 收到 401 后作废令牌并重试的次数
	TokenRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Cached tokens invalidated after a 401 from the pricing API.",
	})

	// APIRequests 价格 API 请求次数，按接口和结果区分
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Pricing API request attempts by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// APIRequestDuration 价格 API 请求耗时
	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "Pricing API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	// PriceRecords 本地价格记录的写入/删除数量
	PriceRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_records_total",
		Help:      "Local price records processed by operation and result.",
	}, []string{"operation", "result"})
)

var registerOnce sync.Once

// MustRegister 注册所有指标到默认 registry
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TokenExchanges,
			TokenRefreshes,
			APIRequests,
			APIRequestDuration,
			PriceRecords,
		)
	})
}
