package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	modbus "modbus-master"
	"modbus-master/client"
	"modbus-master/internal/simulator"
	"modbus-master/pdu"
)

// Config 全域配置
type Config struct {
	Connection ConnectionConfig `json:"connection" mapstructure:"connection" yaml:"connection"`
	Retry      RetryConfig      `json:"retry" mapstructure:"retry" yaml:"retry"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `json:"metrics" mapstructure:"metrics" yaml:"metrics"`
	Poll       PollConfig       `json:"poll" mapstructure:"poll" yaml:"poll"`
	Simulator  SimulatorConfig  `json:"simulator" mapstructure:"simulator" yaml:"simulator"`
}

// ConnectionConfig 連線配置
type ConnectionConfig struct {
	Mode        string        `json:"mode" mapstructure:"mode" yaml:"mode" validate:"oneof=tcp rtu"`
	Address     string        `json:"address" mapstructure:"address" yaml:"address" validate:"required"`
	SlaveID     uint8         `json:"slave_id" mapstructure:"slave_id" yaml:"slave_id"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`
	Serial      SerialConfig  `json:"serial" mapstructure:"serial" yaml:"serial"`
}

// SerialConfig 串列埠配置 (RTU)
type SerialConfig struct {
	BaudRate int    `json:"baud_rate" mapstructure:"baud_rate" yaml:"baud_rate" validate:"omitempty,oneof=1200 2400 4800 9600 19200 38400 57600 115200"`
	DataBits int    `json:"data_bits" mapstructure:"data_bits" yaml:"data_bits" validate:"omitempty,min=5,max=8"`
	Parity   string `json:"parity" mapstructure:"parity" yaml:"parity" validate:"omitempty,oneof=N E O"`
	StopBits int    `json:"stop_bits" mapstructure:"stop_bits" yaml:"stop_bits" validate:"omitempty,oneof=1 2"`
}

// RetryConfig 重試配置
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts" yaml:"max_attempts" validate:"min=1,max=10"`
	Backoff     time.Duration `json:"backoff" mapstructure:"backoff" yaml:"backoff" validate:"gte=0"`
}

// LoggingConfig 日誌配置
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `json:"format" mapstructure:"format" yaml:"format" validate:"oneof=json console"`
	OutputPath string `json:"output_path" mapstructure:"output_path" yaml:"output_path" validate:"required"`
}

// MetricsConfig 指標配置
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint" yaml:"endpoint" validate:"startswith=/"`
	Port     int    `json:"port" mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
}

// PollConfig 輪詢配置
type PollConfig struct {
	Interval time.Duration `json:"interval" mapstructure:"interval" yaml:"interval" validate:"gt=0"`
	Requests []PollRequest `json:"requests" mapstructure:"requests" yaml:"requests" validate:"dive"`
}

// PollRequest 單一輪詢請求
type PollRequest struct {
	Name      string        `json:"name" mapstructure:"name" yaml:"name" validate:"required"`
	Function  string        `json:"function" mapstructure:"function" yaml:"function" validate:"oneof=read_coils read_discrete_inputs read_holding_registers read_input_registers write_single_coil write_single_register write_multiple_coils write_multiple_registers write_read_multiple_registers"`
	Address   uint16        `json:"address" mapstructure:"address" yaml:"address"`
	ReadAddr  uint16        `json:"read_address,omitempty" mapstructure:"read_address" yaml:"read_address,omitempty"`
	Quantity  uint16        `json:"quantity,omitempty" mapstructure:"quantity" yaml:"quantity,omitempty"`
	Value     uint16        `json:"value,omitempty" mapstructure:"value" yaml:"value,omitempty"`
	Coil      modbus.Coil   `json:"coil" mapstructure:"coil" yaml:"coil"`
	Coils     []modbus.Coil `json:"coils,omitempty" mapstructure:"coils" yaml:"coils,omitempty"`
	Values    []uint16      `json:"values,omitempty" mapstructure:"values" yaml:"values,omitempty"`
	DataType  string        `json:"data_type,omitempty" mapstructure:"data_type" yaml:"data_type,omitempty" validate:"omitempty,oneof=uint16 int16 uint32 int32 float32"`
	WordOrder string        `json:"word_order,omitempty" mapstructure:"word_order" yaml:"word_order,omitempty" validate:"omitempty,oneof=abcd cdab"`
	Scale     float64       `json:"scale,omitempty" mapstructure:"scale" yaml:"scale,omitempty" validate:"gte=0"`
}

// SimulatorConfig 本地模擬從站配置
type SimulatorConfig struct {
	Address       string                   `json:"address" mapstructure:"address" yaml:"address" validate:"required,hostname_port"`
	Latency       time.Duration            `json:"latency" mapstructure:"latency" yaml:"latency" validate:"gte=0"`
	Scenario      string                   `json:"scenario" mapstructure:"scenario" yaml:"scenario" validate:"oneof=normal jitter busy packet_loss"`
	Params        simulator.ScenarioParams `json:"params" mapstructure:"params" yaml:"params"`
	MeterInterval time.Duration            `json:"meter_interval" mapstructure:"meter_interval" yaml:"meter_interval" validate:"gte=0"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Mode:        client.ModeTCP,
			Address:     "127.0.0.1:502",
			SlaveID:     1,
			Timeout:     5 * time.Second,
			IdleTimeout: 60 * time.Second,
			Serial: SerialConfig{
				BaudRate: 19200,
				DataBits: 8,
				Parity:   "E",
				StopBits: 1,
			},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Backoff:     200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
			Port:     9090,
		},
		Poll: PollConfig{
			Interval: time.Second,
			Requests: []PollRequest{},
		},
		Simulator: SimulatorConfig{
			Address:       "127.0.0.1:5020",
			Scenario:      "normal",
			MeterInterval: time.Second,
		},
	}
}

// envKeys 可由環境變數覆蓋的鍵 (例如 MBMASTER_CONNECTION_ADDRESS)
var envKeys = []string{
	"connection.mode",
	"connection.address",
	"connection.slave_id",
	"connection.timeout",
	"retry.max_attempts",
	"retry.backoff",
	"logging.level",
	"logging.format",
	"metrics.enabled",
	"metrics.port",
	"poll.interval",
	"simulator.address",
	"simulator.scenario",
}

// LoadConfig 載入配置檔
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mbmaster/")
		v.AddConfigPath("$HOME/.mbmaster/")
	}

	// 環境變數覆蓋
	v.SetEnvPrefix("MBMASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("綁定環境變數失敗: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
		// 配置檔不存在，使用預設值
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("解析配置失敗: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置驗證失敗: %w", err)
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 驗證配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	for i := range c.Poll.Requests {
		if _, err := c.Poll.Requests[i].Build(); err != nil {
			return fmt.Errorf("輪詢請求 %q 無效: %w", c.Poll.Requests[i].Name, err)
		}
	}

	return nil
}

// ClientConnection 轉為 client 的連線設定
func (c *Config) ClientConnection() client.ConnectionConfig {
	return client.ConnectionConfig{
		Mode:        c.Connection.Mode,
		Address:     c.Connection.Address,
		SlaveID:     c.Connection.SlaveID,
		Timeout:     c.Connection.Timeout,
		IdleTimeout: c.Connection.IdleTimeout,
		BaudRate:    c.Connection.Serial.BaudRate,
		DataBits:    c.Connection.Serial.DataBits,
		Parity:      c.Connection.Serial.Parity,
		StopBits:    c.Connection.Serial.StopBits,
	}
}

// RetryPolicy 轉為 client 的重試策略
func (c *Config) RetryPolicy() client.RetryPolicy {
	return client.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Backoff:     c.Retry.Backoff,
	}
}

// Build 建立對應的請求並檢查能否編碼
func (r *PollRequest) Build() (modbus.Function, error) {
	var f modbus.Function

	switch r.Function {
	case "read_coils":
		f = modbus.ReadCoils{Address: r.Address, Quantity: r.Quantity}
	case "read_discrete_inputs":
		f = modbus.ReadDiscreteInputs{Address: r.Address, Quantity: r.Quantity}
	case "read_holding_registers":
		f = modbus.ReadHoldingRegisters{Address: r.Address, Quantity: r.Quantity}
	case "read_input_registers":
		f = modbus.ReadInputRegisters{Address: r.Address, Quantity: r.Quantity}
	case "write_single_coil":
		f = modbus.WriteSingleCoil{Address: r.Address, Value: r.Coil.Code()}
	case "write_single_register":
		f = modbus.WriteSingleRegister{Address: r.Address, Value: r.Value}
	case "write_multiple_coils":
		f = pdu.NewWriteMultipleCoils(r.Address, r.Coils)
	case "write_multiple_registers":
		f = pdu.NewWriteMultipleRegisters(r.Address, r.Values)
	case "write_read_multiple_registers":
		// Address 為寫入位址，ReadAddr/Quantity 為讀取範圍
		f = pdu.NewWriteReadMultipleRegisters(r.Address, r.Values, r.ReadAddr, r.Quantity)
	default:
		return nil, modbus.NewInvalidFunction()
	}

	if _, err := pdu.Encode(f); err != nil {
		return nil, err
	}
	return f, nil
}

// SaveConfig 儲存配置到檔案，副檔名為 .yaml/.yml 時輸出 YAML，其餘為 JSON
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("序列化配置失敗: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("寫入配置檔失敗: %w", err)
	}

	return nil
}
