package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"modbus-master/client"
)

// MetricsServer 指標伺服器
type MetricsServer struct {
	registry *prometheus.Registry
	stats    *client.Stats
	ready    atomic.Bool
	server   *http.Server
	logger   *zap.Logger
}

// NewMetricsServer 建立指標伺服器
func NewMetricsServer(registry *prometheus.Registry, stats *client.Stats, logger *zap.Logger) *MetricsServer {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &MetricsServer{
		registry: registry,
		stats:    stats,
		logger:   logger,
	}
}

// Handler 建立路由
func (m *MetricsServer) Handler(endpoint string) http.Handler {
	prom := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	mux := http.NewServeMux()
	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "application/json" || r.URL.Query().Get("format") == "json" {
			m.handleSnapshot(w, r)
			return
		}
		prom.ServeHTTP(w, r)
	})
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/ready", m.handleReady)
	return mux
}

// Start 啟動 HTTP 伺服器
func (m *MetricsServer) Start(endpoint string, port int) {
	addr := fmt.Sprintf(":%d", port)
	m.server = &http.Server{Addr: addr, Handler: m.Handler(endpoint)}
	m.logger.Info("啟動指標伺服器", zap.String("addr", addr), zap.String("endpoint", endpoint))

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("指標伺服器錯誤", zap.Error(err))
		}
	}()
}

// SetReady 設定就緒狀態
func (m *MetricsServer) SetReady(ready bool) {
	m.ready.Store(ready)
}

// Shutdown 關閉伺服器
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// handleSnapshot 以 JSON 回傳統計快照
func (m *MetricsServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.stats.Snapshot())
}

// handleHealth 處理 /health 請求
func (m *MetricsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleReady 處理 /ready 請求
func (m *MetricsServer) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !m.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
