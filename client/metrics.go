package client

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 請求狀態標籤
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics Prometheus 指標
type Metrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	retries  prometheus.Counter
	duration *prometheus.HistogramVec
}

// NewMetrics 在 reg 上註冊指標
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mbmaster",
			Name:      "requests_total",
			Help:      "The total number of Modbus requests by function and status",
		}, []string{"function", "status"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mbmaster",
			Name:      "errors_total",
			Help:      "The total number of failed Modbus requests by error kind",
		}, []string{"kind"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mbmaster",
			Name:      "retries_total",
			Help:      "The total number of request retries",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mbmaster",
			Name:      "request_duration_seconds",
			Help:      "Modbus request latency including retries",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"function"}),
	}
}

func (m *Metrics) observe(function, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if kind != "" {
		status = StatusFailed
		m.errors.WithLabelValues(kind).Inc()
	}
	m.requests.WithLabelValues(function, status).Inc()
	m.duration.WithLabelValues(function).Observe(elapsed.Seconds())
}

func (m *Metrics) retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// Stats 客戶端統計
type Stats struct {
	StartTime       time.Time
	RequestCount    atomic.Uint64
	ErrorCount      atomic.Uint64
	RetryCount      atomic.Uint64
	LastRequestTime atomic.Int64
	BytesSent       atomic.Uint64
	BytesReceived   atomic.Uint64
}

// StatsSnapshot 統計快照
type StatsSnapshot struct {
	Uptime        string  `json:"uptime"`
	TotalRequests uint64  `json:"total_requests"`
	TotalErrors   uint64  `json:"total_errors"`
	TotalRetries  uint64  `json:"total_retries"`
	ErrorRate     float64 `json:"error_rate"`
	LastRequest   string  `json:"last_request,omitempty"`
	BytesSent     uint64  `json:"bytes_sent"`
	BytesReceived uint64  `json:"bytes_received"`
}

// Snapshot 取得統計快照
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Uptime:        time.Since(s.StartTime).String(),
		TotalRequests: s.RequestCount.Load(),
		TotalErrors:   s.ErrorCount.Load(),
		TotalRetries:  s.RetryCount.Load(),
		BytesSent:     s.BytesSent.Load(),
		BytesReceived: s.BytesReceived.Load(),
	}

	// 計算錯誤率
	if snap.TotalRequests > 0 {
		snap.ErrorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests) * 100
	}
	if last := s.LastRequestTime.Load(); last > 0 {
		snap.LastRequest = time.Unix(0, last).Format(time.RFC3339)
	}
	return snap
}

func (s *Stats) record(bytesOut, bytesIn int, hasError bool) {
	s.RequestCount.Add(1)
	s.LastRequestTime.Store(time.Now().UnixNano())
	s.BytesSent.Add(uint64(bytesOut))
	s.BytesReceived.Add(uint64(bytesIn))
	if hasError {
		s.ErrorCount.Add(1)
	}
}
