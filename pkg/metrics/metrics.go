package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Server Metrics

	// APIRequestsTotal API请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration API请求处理时长
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slate_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ClusterBootstrapsTotal 集群注册（bootstrap）计数
	ClusterBootstrapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_cluster_bootstraps_total",
			Help: "Total number of cluster bootstrap attempts",
		},
		[]string{"result"}, // success, failure
	)

	// ClusterCascadeStagesTotal 集群级联删除各阶段计数
	ClusterCascadeStagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_cluster_cascade_stages_total",
			Help: "Total number of cluster cascade deletion stages executed",
		},
		[]string{"stage", "result"}, // stage: instances, secrets, namespaces, record
	)

	// ExternalCommandsTotal kubectl/helm 子进程调用计数
	ExternalCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_external_commands_total",
			Help: "Total number of kubectl/helm invocations",
		},
		[]string{"command", "result"},
	)

	// ExternalCommandDuration kubectl/helm 子进程执行时长
	ExternalCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slate_external_command_duration_seconds",
			Help:    "kubectl/helm invocation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"command"},
	)

	// CacheHitsTotal 实体缓存命中计数
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_cache_hits_total",
			Help: "Total number of entity cache hits",
		},
		[]string{"kind"},
	)

	// CacheMissesTotal 实体缓存未命中计数
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slate_cache_misses_total",
			Help: "Total number of entity cache misses",
		},
		[]string{"kind"},
	)
)
