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
// ハンドラー・サービス・ワーカーの各層から利用する。
type MetricsCollector interface {
	RecordStoryView()
	RecordStorySubmission()
	RecordUploadFailure()
	RecordUploadLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordAudioGenerated()
	RecordAudioFailed()
	RecordOrphansSwept(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	storyViews    prometheus.Counter
	submissions   prometheus.Counter
	uploadFail    prometheus.Counter
	uploadLatency prometheus.Histogram
	httpStatus    *prometheus.CounterVec
	audioDone     prometheus.Counter
	audioFail     prometheus.Counter
	orphansSwept  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storyViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyhub_story_views_total",
			Help: "ストーリー詳細閲覧の合計数",
		}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyhub_story_submissions_total",
			Help: "ストーリー投稿成功の合計数",
		}),
		uploadFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyhub_upload_fail_total",
			Help: "添付ファイルアップロード失敗の合計数",
		}),
		uploadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storyhub_upload_latency_seconds",
			Help:    "添付ファイルアップロードのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyhub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		audioDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyhub_audio_generated_total",
			Help: "音声生成成功の合計数",
		}),
		audioFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyhub_audio_fail_total",
			Help: "音声生成失敗の合計数",
		}),
		orphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyhub_orphans_swept_total",
			Help: "掃除ワーカーが削除した孤児オブジェクトの合計数",
		}),
	}

	reg.MustRegister(
		c.storyViews,
		c.submissions,
		c.uploadFail,
		c.uploadLatency,
		c.httpStatus,
		c.audioDone,
		c.audioFail,
		c.orphansSwept,
	)

	return c
}

// RecordStoryView はストーリー詳細の閲覧を記録する。
func (c *Collector) RecordStoryView() {
	c.storyViews.Inc()
}

// RecordStorySubmission はストーリー投稿の成功を記録する。
func (c *Collector) RecordStorySubmission() {
	c.submissions.Inc()
}

// RecordUploadFailure は添付ファイルアップロードの失敗を記録する。
func (c *Collector) RecordUploadFailure() {
	c.uploadFail.Inc()
}

// RecordUploadLatency は添付ファイルアップロードのレイテンシを記録する。
func (c *Collector) RecordUploadLatency(duration time.Duration) {
	c.uploadLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAudioGenerated は音声生成の成功を記録する。
func (c *Collector) RecordAudioGenerated() {
	c.audioDone.Inc()
}

// RecordAudioFailed は音声生成の失敗を記録する。
func (c *Collector) RecordAudioFailed() {
	c.audioFail.Inc()
}

// RecordOrphansSwept は掃除ワーカーが削除した孤児オブジェクト数を記録する。
func (c *Collector) RecordOrphansSwept(count int) {
	c.orphansSwept.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
