package client

import (
	"fmt"
	"log"
	"strings"
	"time"

	goburrow "github.com/goburrow/modbus"
)

// Handler 傳輸層：goburrow 的 ADU 封裝與收發，加上連線管理
type Handler interface {
	goburrow.ClientHandler
	Connect() error
	Close() error
}

// 連線模式
const (
	ModeTCP = "tcp"
	ModeRTU = "rtu"
)

// ConnectionConfig 連線設定
type ConnectionConfig struct {
	Mode        string
	Address     string
	SlaveID     byte
	Timeout     time.Duration
	IdleTimeout time.Duration

	// 僅 RTU 使用
	BaudRate int
	DataBits int
	Parity   string
	StopBits int

	// Logger 非 nil 時輸出原始封包
	Logger *log.Logger
}

// NewHandler 依模式建立 TCP 或 RTU handler
func NewHandler(cfg ConnectionConfig) (Handler, error) {
	switch strings.ToLower(cfg.Mode) {
	case "", ModeTCP:
		h := goburrow.NewTCPClientHandler(cfg.Address)
		h.SlaveId = cfg.SlaveID
		if cfg.Timeout > 0 {
			h.Timeout = cfg.Timeout
		}
		if cfg.IdleTimeout > 0 {
			h.IdleTimeout = cfg.IdleTimeout
		}
		h.Logger = cfg.Logger
		return h, nil

	case ModeRTU:
		h := goburrow.NewRTUClientHandler(cfg.Address)
		h.SlaveId = cfg.SlaveID
		if cfg.BaudRate > 0 {
			h.BaudRate = cfg.BaudRate
		}
		if cfg.DataBits > 0 {
			h.DataBits = cfg.DataBits
		}
		if cfg.StopBits > 0 {
			h.StopBits = cfg.StopBits
		}
		if cfg.Parity != "" {
			h.Parity = strings.ToUpper(cfg.Parity)
		}
		if cfg.Timeout > 0 {
			h.Timeout = cfg.Timeout
		}
		if cfg.IdleTimeout > 0 {
			h.IdleTimeout = cfg.IdleTimeout
		}
		h.Logger = cfg.Logger
		return h, nil

	default:
		return nil, fmt.Errorf("不支援的連線模式: %s", cfg.Mode)
	}
}
