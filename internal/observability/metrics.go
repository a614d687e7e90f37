package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const namespace = "concierge"

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Metrics owns a private prometheus registry. Every method is safe on a nil
// receiver so callers can hold a *Metrics that was never initialised.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	searchTotal   *prometheus.CounterVec
	searchLatency *prometheus.HistogramVec

	embeddingRequests *prometheus.CounterVec
	embeddingLatency  *prometheus.HistogramVec
	embeddingInputs   *prometheus.CounterVec
	embeddingCache    *prometheus.CounterVec

	vectorOps       *prometheus.CounterVec
	vectorLatency   *prometheus.HistogramVec
	vectorBootstrap *prometheus.CounterVec

	ingestStage     *prometheus.HistogramVec
	ingestDocuments *prometheus.CounterVec
	dataQuality     *prometheus.CounterVec

	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide Metrics when METRICS_ENABLED is set.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("prometheus metrics enabled")
		}
	})
	return instance
}

// New returns a Metrics with its own registry, independent of Init.
func New() *Metrics {
	m := &Metrics{
		registry:          prometheus.NewRegistry(),
		apiRequests:       counterVec("api_requests_total", "Total API requests by method/route/status.", "method", "route", "status"),
		apiLatency:        histogramVec("api_request_duration_seconds", "API request latency in seconds by method/route/status.", "method", "route", "status"),
		apiInflight:       gauge("api_inflight_requests", "In-flight API requests."),
		searchTotal:       counterVec("search_requests_total", "Completed searches by search_type/outcome.", "search_type", "outcome"),
		searchLatency:     histogramVec("search_duration_seconds", "Search latency in seconds by search_type.", "search_type"),
		embeddingRequests: counterVec("embedding_requests_total", "Embedding calls by model/op/status.", "model", "op", "status"),
		embeddingLatency:  histogramVec("embedding_duration_seconds", "Embedding latency in seconds by model/op.", "model", "op"),
		embeddingInputs:   counterVec("embedding_inputs_total", "Texts embedded by model.", "model"),
		embeddingCache:    counterVec("embedding_cache_total", "Query embedding cache lookups by result.", "result"),
		vectorOps:         counterVec("vector_store_operations_total", "Vector store operations by provider/operation/status.", "provider", "operation", "status"),
		vectorLatency:     histogramVec("vector_store_operation_duration_seconds", "Vector store operation latency by provider/operation.", "provider", "operation"),
		vectorBootstrap:   counterVec("vector_store_bootstrap_total", "Vector store bootstrap attempts by provider/outcome/code.", "provider", "outcome", "code"),
		ingestStage:       histogramVec("ingest_stage_duration_seconds", "Ingestion stage latency by stage/status.", "stage", "status"),
		ingestDocuments:   counterVec("ingest_documents_total", "Processed documents by status.", "status"),
		dataQuality:       counterVec("ingest_quality_issues_total", "Ingestion quality issues by stage/issue.", "stage", "issue"),
		redisUp:           gauge("redis_up", "1 when the last redis ping succeeded."),
		redisPing:         gauge("redis_ping_seconds", "Latency of the last redis ping."),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.searchTotal, m.searchLatency,
		m.embeddingRequests, m.embeddingLatency, m.embeddingInputs, m.embeddingCache,
		m.vectorOps, m.vectorLatency, m.vectorBootstrap,
		m.ingestStage, m.ingestDocuments, m.dataQuality,
		m.redisUp, m.redisPing,
	)
	return m
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: latencyBuckets}, labels)
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StartServer exposes /metrics on a separate listener until ctx ends.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveSearch(searchType, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(searchType, outcome).Inc()
	m.searchLatency.WithLabelValues(searchType).Observe(dur.Seconds())
}

func (m *Metrics) ObserveEmbedding(model, op, status string, inputs int, dur time.Duration) {
	if m == nil {
		return
	}
	m.embeddingRequests.WithLabelValues(model, op, status).Inc()
	m.embeddingLatency.WithLabelValues(model, op).Observe(dur.Seconds())
	if inputs > 0 {
		m.embeddingInputs.WithLabelValues(model).Add(float64(inputs))
	}
}

func (m *Metrics) IncEmbeddingCache(result string) {
	if m == nil {
		return
	}
	m.embeddingCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveVectorStoreOperation(provider, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorOps.WithLabelValues(provider, operation, status).Inc()
	m.vectorLatency.WithLabelValues(provider, operation).Observe(dur.Seconds())
}

func (m *Metrics) ObserveVectorStoreProviderBootstrap(provider, outcome, code string) {
	if m == nil {
		return
	}
	m.vectorBootstrap.WithLabelValues(provider, outcome, code).Inc()
}

func (m *Metrics) ObserveIngestStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.ingestStage.WithLabelValues(stage, status).Observe(dur.Seconds())
}

func (m *Metrics) IncIngestDocument(status string) {
	if m == nil {
		return
	}
	m.ingestDocuments.WithLabelValues(status).Inc()
}

func (m *Metrics) IncDataQuality(stage, issue string) {
	if m == nil {
		return
	}
	m.dataQuality.WithLabelValues(stage, issue).Inc()
}

// RegisterPostgres exports database/sql pool stats for db.
func (m *Metrics) RegisterPostgres(log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: postgres stats unavailable", "error", err)
		}
		return
	}
	if err := m.registry.Register(collectors.NewDBStatsCollector(sqlDB, "postgres")); err != nil && log != nil {
		log.Warn("metrics: postgres collector not registered", "error", err)
	}
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
