// Package client 是 Modbus Master：將 modbus.Function 經由 goburrow 的 TCP/RTU
// handler 送出，並把每一種失敗歸類為 *modbus.Error。
package client

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	modbus "modbus-master"
	"modbus-master/pdu"
)

// Client Modbus Master，可並行使用，同一 Client 的請求依序執行
type Client struct {
	mu sync.Mutex

	handler Handler
	retry   RetryPolicy
	metrics *Metrics
	stats   Stats
	logger  *zap.Logger
}

// Option Client 配置選項
type Option func(*Client)

// WithLogger 設定日誌
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetry 設定重試策略
func WithRetry(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithMetrics 設定 Prometheus 指標
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New 建立 Client
func New(handler Handler, opts ...Option) *Client {
	c := &Client{
		handler: handler,
		retry:   NoRetry,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.stats.StartTime = time.Now()

	return c
}

// Connect 建立連線；未呼叫時第一次請求會自動連線
func (c *Client) Connect() error {
	if err := c.handler.Connect(); err != nil {
		return modbus.NewIO(err)
	}
	return nil
}

// Close 關閉連線
func (c *Client) Close() error {
	if err := c.handler.Close(); err != nil {
		return modbus.NewIO(err)
	}
	return nil
}

// Stats 取得統計資訊
func (c *Client) Stats() *Stats {
	return &c.stats
}

// Execute 送出請求並解碼回應
//
// 每次嘗試前檢查 ctx，取消時返回 Io(ctx.Err())。僅 I/O 錯誤與從站忙碌會依策略重試。
func (c *Client) Execute(ctx context.Context, f modbus.Function) (*pdu.Response, error) {
	if f == nil {
		return nil, modbus.NewInvalidFunction()
	}

	start := time.Now()
	resp, err := c.execute(ctx, f)

	kind := ""
	if err != nil {
		kind = err.Kind().String()
		c.logger.Debug("請求失敗",
			zap.Stringer("function", f),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	c.metrics.observe(f.Code().String(), kind, time.Since(start))

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) execute(ctx context.Context, f modbus.Function) (*pdu.Response, *modbus.Error) {
	req, err := pdu.Encode(f)
	if err != nil {
		return nil, modbus.AsError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		resp    *pdu.Response
		attempt = 1
	)

	operation := func() error {
		if cerr := ctx.Err(); cerr != nil {
			return backoff.Permanent(modbus.NewIO(cerr))
		}

		r, err := c.roundTrip(f, req)
		if err == nil {
			resp = r
			return nil
		}
		if err.Kind() == modbus.KindIo {
			// 下次嘗試重新連線
			_ = c.handler.Close()
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		attempt++
		c.stats.RetryCount.Add(1)
		c.metrics.retry()
		c.logger.Warn("重試請求",
			zap.Stringer("function", f),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, c.retry.backOff(ctx), notify); err != nil {
		if mbErr, ok := err.(*modbus.Error); ok {
			return nil, mbErr
		}
		// 退避期間 ctx 取消或逾時
		return nil, modbus.NewIO(err)
	}
	return resp, nil
}

// roundTrip 單次嘗試：ADU 封裝、送出、驗證、解封裝、PDU 解碼
func (c *Client) roundTrip(f modbus.Function, req *pdu.ProtocolDataUnit) (*pdu.Response, *modbus.Error) {
	aduRequest, err := c.handler.Encode(req)
	if err != nil {
		c.stats.record(0, 0, true)
		return nil, modbus.NewInvalidData(modbus.CustomReason(err.Error()))
	}

	aduResponse, err := c.handler.Send(aduRequest)
	if err != nil {
		c.stats.record(len(aduRequest), len(aduResponse), true)
		return nil, ClassifyError(err)
	}
	c.logger.Debug("收到回應",
		zap.Stringer("function", f),
		zap.Binary("request", aduRequest),
		zap.Binary("response", aduResponse),
	)

	if err = c.handler.Verify(aduRequest, aduResponse); err != nil {
		c.stats.record(len(aduRequest), len(aduResponse), true)
		return nil, modbus.NewInvalidResponse()
	}

	raw, err := c.handler.Decode(aduResponse)
	if err != nil {
		c.stats.record(len(aduRequest), len(aduResponse), true)
		return nil, modbus.NewInvalidData(modbus.NewReason(modbus.ReasonDecodingError))
	}

	resp, err := pdu.Decode(f, raw)
	c.stats.record(len(aduRequest), len(aduResponse), err != nil)
	if err != nil {
		return nil, modbus.AsError(err)
	}
	return resp, nil
}

// ReadCoils 讀取線圈 (FC 01)
func (c *Client) ReadCoils(ctx context.Context, address, quantity uint16) ([]modbus.Coil, error) {
	resp, err := c.Execute(ctx, modbus.ReadCoils{Address: address, Quantity: quantity})
	if err != nil {
		return nil, err
	}
	return resp.Coils, nil
}

// ReadDiscreteInputs 讀取離散輸入 (FC 02)
func (c *Client) ReadDiscreteInputs(ctx context.Context, address, quantity uint16) ([]modbus.Coil, error) {
	resp, err := c.Execute(ctx, modbus.ReadDiscreteInputs{Address: address, Quantity: quantity})
	if err != nil {
		return nil, err
	}
	return resp.Coils, nil
}

// ReadHoldingRegisters 讀取保持暫存器 (FC 03)
func (c *Client) ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	resp, err := c.Execute(ctx, modbus.ReadHoldingRegisters{Address: address, Quantity: quantity})
	if err != nil {
		return nil, err
	}
	return resp.Registers, nil
}

// ReadInputRegisters 讀取輸入暫存器 (FC 04)
func (c *Client) ReadInputRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	resp, err := c.Execute(ctx, modbus.ReadInputRegisters{Address: address, Quantity: quantity})
	if err != nil {
		return nil, err
	}
	return resp.Registers, nil
}

// WriteSingleCoil 寫入單一線圈 (FC 05)
func (c *Client) WriteSingleCoil(ctx context.Context, address uint16, value modbus.Coil) error {
	_, err := c.Execute(ctx, modbus.WriteSingleCoil{Address: address, Value: value.Code()})
	return err
}

// WriteSingleRegister 寫入單一暫存器 (FC 06)
func (c *Client) WriteSingleRegister(ctx context.Context, address, value uint16) error {
	_, err := c.Execute(ctx, modbus.WriteSingleRegister{Address: address, Value: value})
	return err
}

// WriteMultipleCoils 寫入多個線圈 (FC 15)
func (c *Client) WriteMultipleCoils(ctx context.Context, address uint16, values []modbus.Coil) error {
	_, err := c.Execute(ctx, pdu.NewWriteMultipleCoils(address, values))
	return err
}

// WriteMultipleRegisters 寫入多個暫存器 (FC 16)
func (c *Client) WriteMultipleRegisters(ctx context.Context, address uint16, values []uint16) error {
	_, err := c.Execute(ctx, pdu.NewWriteMultipleRegisters(address, values))
	return err
}

// WriteReadMultipleRegisters 先寫入再讀取多個暫存器 (FC 23)
func (c *Client) WriteReadMultipleRegisters(ctx context.Context, writeAddress uint16, values []uint16, readAddress, readQuantity uint16) ([]uint16, error) {
	resp, err := c.Execute(ctx, pdu.NewWriteReadMultipleRegisters(writeAddress, values, readAddress, readQuantity))
	if err != nil {
		return nil, err
	}
	return resp.Registers, nil
}
