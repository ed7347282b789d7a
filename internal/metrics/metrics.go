// Package metrics 提供摄取服务的 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "riskhub"

// 批次摄取指标
var (
	// BatchesTotal 批次提交总数
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_total",
			Help:      "批次提交总数",
		},
		[]string{"network", "result"}, // result: committed/rejected/failed
	)

	// EventsTotal 已提交事件总数
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_events_total",
			Help:      "已提交事件总数",
		},
		[]string{"network", "kind"},
	)

	// BatchDuration 批次处理耗时
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_duration_seconds",
			Help:      "批次处理耗时(秒)",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"network"},
	)

	// BatchEventCount 单批次事件数分布
	BatchEventCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_event_count",
			Help:      "单批次事件数分布",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"network"},
	)
)

// 链重组指标
var (
	// ReorgsTotal 检测到的链重组总数
	ReorgsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reorgs_total",
			Help:      "检测到的链重组总数",
		},
		[]string{"network"},
	)

	// ReorgDepth 重组回退深度分布
	ReorgDepth = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reorg_depth",
			Help:      "重组回退深度分布(位置差)",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 500},
		},
		[]string{"network"},
	)

	// IrreconcilableForksTotal 无法调和的分叉总数
	IrreconcilableForksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "irreconcilable_forks_total",
			Help:      "无法调和的分叉总数",
		},
		[]string{"network"},
	)
)

// 凭证指标
var (
	// CredentialsIssuedTotal 签发凭证总数
	CredentialsIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credentials_issued_total",
			Help:      "签发凭证总数",
		},
		[]string{"network"},
	)

	// CredentialRejectionsTotal 凭证校验拒绝总数
	CredentialRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_rejections_total",
			Help:      "凭证校验拒绝总数",
		},
		[]string{"reason"}, // reason: expired/invalid_signature/malformed/unknown_network
	)
)

// HTTP 指标
var (
	// HTTPRequestsTotal HTTP 请求总数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时(秒)",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "path"},
	)
)
