package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/entitlement-engine/internal/platform/envutil"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	webhooks      *CounterVec
	reconciles    *CounterVec
	reconcileTime *HistogramVec
	receipts      *CounterVec
	notifications *CounterVec
	accessChecks  *CounterVec
	quizGrades    *CounterVec
	certificates  *CounterVec
	pgStats       *GaugeVec
	redisUp       *Gauge
	redisPing     *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process-wide registry, or nil when metrics are off.
// Every method is safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// New builds an unregistered Metrics; Init installs the global one.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("ee_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"ee_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("ee_api_inflight_requests", "In-flight API requests."),
		webhooks:    NewCounterVec("ee_payment_webhooks_total", "Inbound payment notifications by provider/kind/outcome.", []string{"provider", "kind", "outcome"}),
		reconciles:  NewCounterVec("ee_reconcile_total", "Reconciled payment events by provider/target/status.", []string{"provider", "target", "status"}),
		reconcileTime: NewHistogramVec(
			"ee_reconcile_duration_seconds",
			"Reconciliation latency in seconds by provider.",
			[]string{"provider"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		),
		receipts:      NewCounterVec("ee_receipts_total", "Receipt synthesis by status.", []string{"status"}),
		notifications: NewCounterVec("ee_notification_deliveries_total", "Notification deliveries by kind/status.", []string{"kind", "status"}),
		accessChecks:  NewCounterVec("ee_course_access_total", "Course access decisions by gate/reason.", []string{"gate", "reason"}),
		quizGrades:    NewCounterVec("ee_quiz_grades_total", "Graded quiz attempts by path/result.", []string{"path", "result"}),
		certificates:  NewCounterVec("ee_certificates_total", "Certificate requests by outcome.", []string{"outcome"}),
		pgStats:       NewGaugeVec("ee_postgres_pool", "Postgres connection pool stats.", []string{"stat"}),
		redisUp:       NewGauge("ee_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing:     NewGauge("ee_redis_ping_seconds", "Redis ping latency in seconds."),
	}
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.webhooks, m.reconciles, m.reconcileTime, m.receipts,
		m.notifications, m.accessChecks, m.quizGrades, m.certificates,
		m.pgStats, m.redisUp, m.redisPing,
	} {
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
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
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

// IncWebhook counts one inbound notification. outcome is processed,
// duplicate, ignored, rejected or error.
func (m *Metrics) IncWebhook(provider, kind, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.Inc(provider, kind, outcome)
}

func (m *Metrics) ObserveReconcile(provider, target, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.reconciles.Inc(provider, target, status)
	m.reconcileTime.Observe(dur.Seconds(), provider)
}

func (m *Metrics) IncReceipt(status string) {
	if m == nil {
		return
	}
	m.receipts.Inc(status)
}

func (m *Metrics) IncNotificationDelivery(kind, status string) {
	if m == nil {
		return
	}
	m.notifications.Inc(kind, status)
}

func (m *Metrics) IncAccessDecision(gate, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "allowed"
	}
	m.accessChecks.Inc(gate, reason)
}

func (m *Metrics) IncQuizGrade(path string, passed bool) {
	if m == nil {
		return
	}
	result := "failed"
	if passed {
		result = "passed"
	}
	m.quizGrades.Inc(path, result)
}

func (m *Metrics) IncCertificate(outcome string) {
	if m == nil {
		return
	}
	m.certificates.Inc(outcome)
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second)
	if d < time.Second {
		return time.Second
	}
	return d
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
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
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings rdb on every scrape interval. The caller owns rdb.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
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
