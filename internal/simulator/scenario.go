package simulator

import (
	"math/rand"
	"sync"
	"time"

	modbus "modbus-master"
)

// ScenarioType 場景類型
type ScenarioType int

const (
	ScenarioNormal ScenarioType = iota
	ScenarioJitter
	ScenarioBusy
	ScenarioPacketLoss
)

func (s ScenarioType) String() string {
	switch s {
	case ScenarioNormal:
		return "normal"
	case ScenarioJitter:
		return "jitter"
	case ScenarioBusy:
		return "busy"
	case ScenarioPacketLoss:
		return "packet_loss"
	default:
		return "unknown"
	}
}

// ParseScenarioType 解析場景類型，未知名稱視為 normal
func ParseScenarioType(s string) ScenarioType {
	switch s {
	case "jitter":
		return ScenarioJitter
	case "busy":
		return ScenarioBusy
	case "packet_loss":
		return ScenarioPacketLoss
	default:
		return ScenarioNormal
	}
}

// ListScenarioTypes 列出所有場景類型
func ListScenarioTypes() []ScenarioType {
	return []ScenarioType{
		ScenarioNormal,
		ScenarioJitter,
		ScenarioBusy,
		ScenarioPacketLoss,
	}
}

// ScenarioParams 場景參數
type ScenarioParams struct {
	JitterMin time.Duration `json:"jitter_min" mapstructure:"jitter_min" yaml:"jitter_min"`
	JitterMax time.Duration `json:"jitter_max" mapstructure:"jitter_max" yaml:"jitter_max"`
	// BusyRate 以 SlaveOrServerBusy 回應的比例
	BusyRate float64 `json:"busy_rate" mapstructure:"busy_rate" yaml:"busy_rate"`
	// PacketLossRate 延遲 LossDelay 才回應的比例，LossDelay 應大於 Master 的逾時
	PacketLossRate float64       `json:"packet_loss_rate" mapstructure:"packet_loss_rate" yaml:"packet_loss_rate"`
	LossDelay      time.Duration `json:"loss_delay" mapstructure:"loss_delay" yaml:"loss_delay"`
}

// Effect 場景對單一請求的影響
type Effect struct {
	Delay     time.Duration
	Exception modbus.ExceptionCode
}

// ScenarioHandler 場景處理介面
type ScenarioHandler interface {
	Type() ScenarioType
	Decide(params ScenarioParams, rnd *rand.Rand) Effect
}

// 場景處理器註冊表
var (
	scenarioHandlers   = make(map[ScenarioType]ScenarioHandler)
	scenarioHandlersMu sync.RWMutex
)

func init() {
	RegisterScenarioHandler(normalScenario{})
	RegisterScenarioHandler(jitterScenario{})
	RegisterScenarioHandler(busyScenario{})
	RegisterScenarioHandler(packetLossScenario{})
}

// RegisterScenarioHandler 註冊場景處理器
func RegisterScenarioHandler(handler ScenarioHandler) {
	scenarioHandlersMu.Lock()
	defer scenarioHandlersMu.Unlock()
	scenarioHandlers[handler.Type()] = handler
}

// GetScenarioHandler 取得場景處理器
func GetScenarioHandler(scenarioType ScenarioType) ScenarioHandler {
	scenarioHandlersMu.RLock()
	defer scenarioHandlersMu.RUnlock()
	return scenarioHandlers[scenarioType]
}

// --- Normal ---

type normalScenario struct{}

func (normalScenario) Type() ScenarioType { return ScenarioNormal }

func (normalScenario) Decide(ScenarioParams, *rand.Rand) Effect { return Effect{} }

// --- Jitter ---

type jitterScenario struct{}

func (jitterScenario) Type() ScenarioType { return ScenarioJitter }

func (jitterScenario) Decide(params ScenarioParams, rnd *rand.Rand) Effect {
	min, max := params.JitterMin, params.JitterMax
	if min == 0 {
		min = 100 * time.Millisecond
	}
	if max <= min {
		max = min + 400*time.Millisecond
	}
	return Effect{Delay: min + time.Duration(rnd.Int63n(int64(max-min)))}
}

// --- Busy ---

type busyScenario struct{}

func (busyScenario) Type() ScenarioType { return ScenarioBusy }

func (busyScenario) Decide(params ScenarioParams, rnd *rand.Rand) Effect {
	rate := params.BusyRate
	if rate == 0 {
		rate = 0.2 // 預設 20%
	}
	if rnd.Float64() < rate {
		return Effect{Exception: modbus.ExceptionSlaveOrServerBusy}
	}
	return Effect{}
}

// --- Packet Loss ---

type packetLossScenario struct{}

func (packetLossScenario) Type() ScenarioType { return ScenarioPacketLoss }

func (packetLossScenario) Decide(params ScenarioParams, rnd *rand.Rand) Effect {
	rate := params.PacketLossRate
	if rate == 0 {
		rate = 0.05 // 預設 5%
	}
	delay := params.LossDelay
	if delay == 0 {
		delay = 2 * time.Second
	}
	if rnd.Float64() < rate {
		return Effect{Delay: delay}
	}
	return Effect{}
}

// ScenarioEngine 場景引擎 (管理場景切換)
type ScenarioEngine struct {
	mu sync.Mutex

	currentType    ScenarioType
	currentHandler ScenarioHandler
	params         ScenarioParams
	rnd            *rand.Rand
}

// NewScenarioEngine 建立場景引擎
func NewScenarioEngine() *ScenarioEngine {
	return &ScenarioEngine{
		currentType:    ScenarioNormal,
		currentHandler: GetScenarioHandler(ScenarioNormal),
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetScenario 設定場景
func (e *ScenarioEngine) SetScenario(scenarioType ScenarioType, params ScenarioParams) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.currentType = scenarioType
	e.currentHandler = GetScenarioHandler(scenarioType)
	e.params = params
}

// Current 取得當前場景
func (e *ScenarioEngine) Current() ScenarioType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentType
}

// Seed 固定亂數種子
func (e *ScenarioEngine) Seed(seed int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rnd = rand.New(rand.NewSource(seed))
}

// Decide 為單一請求決定場景影響
func (e *ScenarioEngine) Decide() Effect {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentHandler == nil {
		return Effect{}
	}
	return e.currentHandler.Decide(e.params, e.rnd)
}

// Reset 重設為正常場景
func (e *ScenarioEngine) Reset() {
	e.SetScenario(ScenarioNormal, ScenarioParams{})
}
