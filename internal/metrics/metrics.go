// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// Neynarクライアント、スナップショットジョブ、読み取りキャッシュから利用する。
type MetricsCollector interface {
	RecordFetchSuccess(channel string)
	RecordFetchFailure(channel string, reason string)
	RecordAPIStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordCastsFetched(count int)
	RecordJobRun(status string, duration time.Duration)
	RecordSnapshotChannels(count int)
	RecordPruned(count int64)
	RecordPruneFailure()
	RecordCacheLookup(hit bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess     prometheus.Counter
	fetchFail        *prometheus.CounterVec
	apiStatus        *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	castsFetched     prometheus.Counter
	jobRuns          *prometheus.CounterVec
	jobDuration      prometheus.Histogram
	snapshotChannels prometheus.Gauge
	pruned           prometheus.Counter
	pruneFail        prometheus.Counter
	cacheLookups     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castradar_fetch_success_total",
			Help: "チャンネルキャスト取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castradar_fetch_fail_total",
			Help: "チャンネルキャスト取得失敗の合計数（理由別）",
		}, []string{"reason"}),
		apiStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castradar_api_status_total",
			Help: "Neynar APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "castradar_fetch_latency_seconds",
			Help:    "チャンネルキャスト取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		castsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castradar_casts_fetched_total",
			Help: "取得したキャストの合計数",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castradar_snapshot_runs_total",
			Help: "スナップショットジョブの実行回数（結果別）",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "castradar_snapshot_run_duration_seconds",
			Help:    "スナップショットジョブの実行時間（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		snapshotChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "castradar_snapshot_channels",
			Help: "直近のスナップショットに含まれるチャンネル数",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castradar_snapshots_pruned_total",
			Help: "保持期間切れで削除されたスナップショットの合計数",
		}),
		pruneFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "castradar_prune_fail_total",
			Help: "保持期間削除の失敗回数",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "castradar_cache_lookups_total",
			Help: "読み取りキャッシュの参照回数（hit/miss）",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.apiStatus,
		c.fetchLatency,
		c.castsFetched,
		c.jobRuns,
		c.jobDuration,
		c.snapshotChannels,
		c.pruned,
		c.pruneFail,
		c.cacheLookups,
	)

	return c
}

// RecordFetchSuccess はチャンネル取得成功を記録する。
func (c *Collector) RecordFetchSuccess(channel string) {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はチャンネル取得失敗を理由別に記録する。
// チャンネルIDはカーディナリティを抑えるためラベルにしない。
func (c *Collector) RecordFetchFailure(channel string, reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordAPIStatus はNeynar APIのHTTPステータスコードを記録する。
func (c *Collector) RecordAPIStatus(statusCode int) {
	c.apiStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordCastsFetched は取得したキャスト数を記録する。
func (c *Collector) RecordCastsFetched(count int) {
	c.castsFetched.Add(float64(count))
}

// RecordJobRun はジョブの実行結果と所要時間を記録する。
func (c *Collector) RecordJobRun(status string, duration time.Duration) {
	c.jobRuns.WithLabelValues(status).Inc()
	c.jobDuration.Observe(duration.Seconds())
}

// RecordSnapshotChannels は保存したスナップショットのチャンネル数を記録する。
func (c *Collector) RecordSnapshotChannels(count int) {
	c.snapshotChannels.Set(float64(count))
}

// RecordPruned は削除したスナップショット数を記録する。
func (c *Collector) RecordPruned(count int64) {
	c.pruned.Add(float64(count))
}

// RecordPruneFailure は保持期間削除の失敗を記録する。
func (c *Collector) RecordPruneFailure() {
	c.pruneFail.Inc()
}

// RecordCacheLookup はキャッシュ参照結果を記録する。
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。メトリクス未設定時とテストで使用する。
type NopCollector struct{}

func (NopCollector) RecordFetchSuccess(string)          {}
func (NopCollector) RecordFetchFailure(string, string)  {}
func (NopCollector) RecordAPIStatus(int)                {}
func (NopCollector) RecordFetchLatency(time.Duration)   {}
func (NopCollector) RecordCastsFetched(int)             {}
func (NopCollector) RecordJobRun(string, time.Duration) {}
func (NopCollector) RecordSnapshotChannels(int)         {}
func (NopCollector) RecordPruned(int64)                 {}
func (NopCollector) RecordPruneFailure()                {}
func (NopCollector) RecordCacheLookup(bool)             {}
