// Package simulator 提供以 mbserver 為基礎的 Modbus TCP 從站，供整合測試與
// mbmaster simulate 使用。
package simulator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tbrandon/mbserver"
	"go.uber.org/zap"

	modbus "modbus-master"
)

// State 設備狀態
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Device 單一模擬從站
type Device struct {
	// mu 保護 server 的資料區與 faults，mbserver 的請求處理也在鎖內進行
	mu sync.Mutex

	address string
	state   atomic.Int32
	server  *mbserver.Server

	faults   map[modbus.FunctionCode]*Fault
	scenario *ScenarioEngine
	meter    *PowerMeter
	latency  time.Duration

	stats  Stats
	logger *zap.Logger

	cancel context.CancelFunc
}

// Option Device 配置選項
type Option func(*Device)

// WithLogger 設定日誌
func WithLogger(logger *zap.Logger) Option {
	return func(d *Device) {
		d.logger = logger
	}
}

// WithLatency 每個請求固定延遲
func WithLatency(latency time.Duration) Option {
	return func(d *Device) {
		d.latency = latency
	}
}

// WithScenario 設定初始場景
func WithScenario(t ScenarioType, params ScenarioParams) Option {
	return func(d *Device) {
		d.scenario.SetScenario(t, params)
	}
}

// WithPowerMeter 載入電表暫存器配置，interval > 0 時定期更新量測值
func WithPowerMeter(interval time.Duration) Option {
	return func(d *Device) {
		d.meter = NewPowerMeter(interval)
	}
}

// New 建立模擬從站，資料區在 Start 前即可設定
func New(address string, opts ...Option) *Device {
	d := &Device{
		address:  address,
		server:   mbserver.NewServer(),
		faults:   make(map[modbus.FunctionCode]*Fault),
		scenario: NewScenarioEngine(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	d.registerHandlers()
	if d.meter != nil {
		d.mu.Lock()
		d.meter.Reset(d.server.HoldingRegisters)
		d.mu.Unlock()
	}

	return d
}

// Address 監聽位址
func (d *Device) Address() string {
	return d.address
}

// Start 開始監聽
func (d *Device) Start(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("模擬從站 %s 已經在運行中", d.address)
	}

	d.stats.StartTime = time.Now()

	// ListenTCP 同步建立 listener，內部以 goroutine accept
	if err := d.server.ListenTCP(d.address); err != nil {
		d.state.Store(int32(StateStopped))
		return fmt.Errorf("監聽 %s 失敗: %w", d.address, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if d.meter != nil && d.meter.Interval > 0 {
		go d.runMeterUpdater(runCtx)
	}

	d.state.Store(int32(StateRunning))

	d.logger.Info("模擬從站已啟動",
		zap.String("addr", d.address),
		zap.String("scenario", d.scenario.Current().String()),
	)

	return nil
}

// Stop 停止監聽
func (d *Device) Stop(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return nil // 已經停止
	}

	if d.cancel != nil {
		d.cancel()
	}
	d.server.Close()

	d.state.Store(int32(StateStopped))

	d.logger.Info("模擬從站已停止",
		zap.String("addr", d.address),
		zap.Duration("uptime", time.Since(d.stats.StartTime)),
		zap.Uint64("requests", d.stats.RequestCount.Load()),
	)

	return nil
}

// State 取得當前狀態
func (d *Device) State() State {
	return State(d.state.Load())
}

// Stats 取得統計資訊
func (d *Device) Stats() *Stats {
	return &d.stats
}

// Scenario 取得場景引擎
func (d *Device) Scenario() *ScenarioEngine {
	return d.scenario
}

// runMeterUpdater 定期更新電表量測值
func (d *Device) runMeterUpdater(ctx context.Context) {
	ticker := time.NewTicker(d.meter.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			d.meter.Update(d.server.HoldingRegisters)
			d.mu.Unlock()
		}
	}
}

// Stats 從站統計資訊
type Stats struct {
	StartTime       time.Time
	RequestCount    atomic.Uint64
	ErrorCount      atomic.Uint64
	FaultCount      atomic.Uint64
	LastRequestTime atomic.Int64

	mu         sync.Mutex
	byFunction map[modbus.FunctionCode]uint64
}

// Requests 取得指定功能碼的請求數
func (s *Stats) Requests(code modbus.FunctionCode) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byFunction[code]
}

func (s *Stats) record(code modbus.FunctionCode) {
	s.RequestCount.Add(1)
	s.LastRequestTime.Store(time.Now().UnixNano())

	s.mu.Lock()
	if s.byFunction == nil {
		s.byFunction = make(map[modbus.FunctionCode]uint64)
	}
	s.byFunction[code]++
	s.mu.Unlock()
}
