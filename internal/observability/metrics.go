package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	aggregateOps       *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	assessmentsStarted *CounterVec
	answersRecorded    *Counter
	finalizeDecisions  *CounterVec
	results            *CounterVec
	questionsPerResult *HistogramVec

	kbLoads     *CounterVec
	kbLoadTime  *HistogramVec
	kbAnomalies *Gauge

	lockWait *HistogramVec

	dbStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	all []collector
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init returns the process-wide metrics, or nil when disabled. Every method
// on a nil *Metrics is a no-op.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// New builds an unregistered metrics set.
func New() *Metrics {
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	m := &Metrics{
		apiRequests: NewCounterVec("diag_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("diag_api_request_duration_seconds", "API request latency in seconds.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("diag_api_inflight_requests", "In-flight API requests."),

		aggregateOps:       NewHistogramVec("diag_aggregate_operation_duration_seconds", "Aggregate write latency by operation/status.", []string{"op", "status"}, latency),
		aggregateConflicts: NewCounterVec("diag_aggregate_conflicts_total", "Aggregate writes rejected with a conflict.", []string{"op"}),
		aggregateRetries:   NewCounterVec("diag_aggregate_retryable_total", "Aggregate writes failed with a retryable error.", []string{"op"}),

		assessmentsStarted: NewCounterVec("diag_assessments_started_total", "Start calls by outcome.", []string{"outcome"}),
		answersRecorded:    NewCounter("diag_answers_recorded_total", "Answers recorded."),
		finalizeDecisions:  NewCounterVec("diag_finalize_decisions_total", "Finalization policy verdicts by reason.", []string{"reason"}),
		results:            NewCounterVec("diag_results_total", "Committed results by diagnosis/risk/kind.", []string{"diagnosis_code", "risk_level", "kind"}),
		questionsPerResult: NewHistogramVec("diag_questions_per_result", "Answered questions when a result was committed.", []string{"kind"}, []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20}),

		kbLoads:     NewCounterVec("diag_kb_snapshot_loads_total", "Knowledge base snapshot loads by status.", []string{"status"}),
		kbLoadTime:  NewHistogramVec("diag_kb_snapshot_load_seconds", "Knowledge base snapshot load latency.", []string{"status"}, latency),
		kbAnomalies: NewGauge("diag_kb_anomalies", "Anomalies in the current knowledge base snapshot."),

		lockWait: NewHistogramVec("diag_session_lock_wait_seconds", "Time spent acquiring a session lock.", []string{"backend", "status"}, latency),

		dbStats:   NewGaugeVec("diag_db_pool", "Database pool statistics.", []string{"stat"}),
		redisUp:   NewGauge("diag_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("diag_redis_ping_seconds", "Last Redis ping latency."),
	}
	m.all = []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.aggregateOps, m.aggregateConflicts, m.aggregateRetries,
		m.assessmentsStarted, m.answersRecorded, m.finalizeDecisions, m.results, m.questionsPerResult,
		m.kbLoads, m.kbLoadTime, m.kbAnomalies,
		m.lockWait,
		m.dbStats, m.redisUp, m.redisPing,
	}
	return m
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
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
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(op)
}

func (m *Metrics) IncAssessmentStarted(resumed bool) {
	if m == nil {
		return
	}
	outcome := "created"
	if resumed {
		outcome = "resumed"
	}
	m.assessmentsStarted.Inc(outcome)
}

func (m *Metrics) IncAnswerRecorded() {
	if m == nil {
		return
	}
	m.answersRecorded.Inc()
}

func (m *Metrics) IncFinalizeDecision(reason string) {
	if m == nil {
		return
	}
	m.finalizeDecisions.Inc(reason)
}

func (m *Metrics) ObserveResult(diagnosisCode, riskLevel string, fallback bool, answered int) {
	if m == nil {
		return
	}
	kind := "rule"
	if fallback {
		kind = "fallback"
	}
	m.results.Inc(diagnosisCode, riskLevel, kind)
	m.questionsPerResult.Observe(float64(answered), kind)
}

func (m *Metrics) ObserveKBLoad(status string, dur time.Duration, anomalies int) {
	if m == nil {
		return
	}
	m.kbLoads.Inc(status)
	m.kbLoadTime.Observe(dur.Seconds(), status)
	if status == "success" {
		m.kbAnomalies.Set(float64(anomalies))
	}
}

func (m *Metrics) ObserveLockWait(backend, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(dur.Seconds(), backend, status)
}

// StartDBCollector samples database/sql pool statistics until ctx ends.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
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
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
				m.dbStats.Set(float64(stats.InUse), "in_use")
				m.dbStats.Set(float64(stats.Idle), "idle")
				m.dbStats.Set(float64(stats.WaitCount), "wait_count")
				m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.dbStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings rdb until ctx ends. The client is owned by the caller.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
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

