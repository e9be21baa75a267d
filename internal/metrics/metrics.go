// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OAuth交換の結果ラベル。
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeConfigError = "config_error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 検索集約とOAuth連携のサービス層から利用する。
type MetricsCollector interface {
	RecordSearchRequest(providerCount int)
	RecordSearchSuccess(provider string, resultCount int)
	RecordSearchFailure(provider string)
	RecordSearchLatency(provider string, duration time.Duration)
	RecordOAuthExchange(provider string, outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	searchRequests *prometheus.CounterVec
	searchTotal    *prometheus.CounterVec
	searchResults  *prometheus.CounterVec
	searchLatency  *prometheus.HistogramVec
	oauthExchange  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unisearch_search_requests_total",
			Help: "横断検索リクエスト数（問い合わせ対象プロバイダーがいたかどうか別）",
		}, []string{"fanout"}),
		searchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unisearch_provider_search_total",
			Help: "プロバイダー検索の実行数（結果別）",
		}, []string{"provider", "outcome"}),
		searchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unisearch_provider_results_total",
			Help: "プロバイダー検索で返された結果件数の合計",
		}, []string{"provider"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unisearch_provider_search_latency_seconds",
			Help:    "プロバイダー検索のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		oauthExchange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unisearch_oauth_exchange_total",
			Help: "OAuth認可コード交換の実行数（結果別）",
		}, []string{"provider", "outcome"}),
	}

	reg.MustRegister(
		c.searchRequests,
		c.searchTotal,
		c.searchResults,
		c.searchLatency,
		c.oauthExchange,
	)

	return c
}

// RecordSearchRequest は横断検索1回を記録する。
func (c *Collector) RecordSearchRequest(providerCount int) {
	fanout := "none"
	if providerCount > 0 {
		fanout = "some"
	}
	c.searchRequests.WithLabelValues(fanout).Inc()
}

// RecordSearchSuccess はプロバイダー検索の成功と結果件数を記録する。
func (c *Collector) RecordSearchSuccess(provider string, resultCount int) {
	c.searchTotal.WithLabelValues(provider, OutcomeSuccess).Inc()
	c.searchResults.WithLabelValues(provider).Add(float64(resultCount))
}

// RecordSearchFailure はプロバイダー検索の失敗を記録する。
func (c *Collector) RecordSearchFailure(provider string) {
	c.searchTotal.WithLabelValues(provider, OutcomeFailure).Inc()
}

// RecordSearchLatency はプロバイダー検索のレイテンシを記録する。
func (c *Collector) RecordSearchLatency(provider string, duration time.Duration) {
	c.searchLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordOAuthExchange はOAuth交換の結果を記録する。
func (c *Collector) RecordOAuthExchange(provider string, outcome string) {
	c.oauthExchange.WithLabelValues(provider, outcome).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。GET /metrics にマウントする。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
