package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	modbus "modbus-master"
	"modbus-master/client"
	"modbus-master/pdu"
)

// PollResult 單一輪詢請求的結果
type PollResult struct {
	Name      string        `json:"name"`
	Coils     []modbus.Coil `json:"coils,omitempty"`
	Registers []uint16      `json:"registers,omitempty"`
	Values    []float64     `json:"values,omitempty"`
	Err       error         `json:"-"`
}

// Poller 依固定間隔執行配置中的請求
type Poller struct {
	client   *client.Client
	requests []PollRequest
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller 建立輪詢器
func NewPoller(c *client.Client, cfg PollConfig, logger *zap.Logger) *Poller {
	return &Poller{
		client:   c,
		requests: cfg.Requests,
		interval: cfg.Interval,
		logger:   logger,
	}
}

// Run 持續輪詢直到 ctx 取消
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		for _, r := range p.PollOnce(ctx) {
			p.report(r)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce 依序執行所有請求一次
func (p *Poller) PollOnce(ctx context.Context) []PollResult {
	results := make([]PollResult, 0, len(p.requests))
	for i := range p.requests {
		if ctx.Err() != nil {
			break
		}
		results = append(results, p.poll(ctx, &p.requests[i]))
	}
	return results
}

func (p *Poller) poll(ctx context.Context, req *PollRequest) PollResult {
	result := PollResult{Name: req.Name}

	f, err := req.Build()
	if err != nil {
		result.Err = err
		return result
	}

	resp, err := p.client.Execute(ctx, f)
	if err != nil {
		result.Err = err
		return result
	}
	result.Coils = resp.Coils
	result.Registers = resp.Registers

	if req.DataType != "" && len(resp.Registers) > 0 {
		result.Values, result.Err = decodeValues(resp.Registers, req.DataType, req.WordOrder, req.Scale)
	}
	return result
}

func (p *Poller) report(r PollResult) {
	if r.Err != nil {
		p.logger.Warn("輪詢失敗",
			zap.String("name", r.Name),
			zap.Stringer("kind", modbus.AsError(r.Err).Kind()),
			zap.Error(r.Err),
		)
		return
	}

	fields := []zap.Field{zap.String("name", r.Name)}
	switch {
	case r.Values != nil:
		fields = append(fields, zap.Float64s("values", r.Values))
	case r.Registers != nil:
		fields = append(fields, zap.Uint16s("registers", r.Registers))
	case r.Coils != nil:
		fields = append(fields, zap.Stringers("coils", r.Coils))
	}
	p.logger.Info("輪詢結果", fields...)
}

// decodeValues 依資料型別與字序轉換暫存器
func decodeValues(registers []uint16, dataType, wordOrder string, scale float64) ([]float64, error) {
	dt, err := pdu.ParseDataType(dataType)
	if err != nil {
		return nil, err
	}
	order, err := pdu.ParseWordOrder(wordOrder)
	if err != nil {
		return nil, err
	}
	return pdu.DecodeValues(registers, dt, order, scale)
}
