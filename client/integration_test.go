//go:build integration

package client

import (
	"context"
	"testing"
	"time"

	goburrow "github.com/goburrow/modbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	modbus "modbus-master"
	"modbus-master/internal/simulator"
	"modbus-master/pdu"
)

func startDevice(t *testing.T, addr string, opts ...simulator.Option) *simulator.Device {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	dev := simulator.New(addr, append(opts, simulator.WithLogger(logger))...)

	ctx := context.Background()
	require.NoError(t, dev.Start(ctx))
	t.Cleanup(func() { dev.Stop(ctx) })

	// 等待伺服器啟動
	time.Sleep(100 * time.Millisecond)
	return dev
}

func newTCPClient(t *testing.T, addr string, opts ...Option) *Client {
	t.Helper()

	handler, err := NewHandler(ConnectionConfig{Mode: ModeTCP, Address: addr, SlaveID: 1, Timeout: time.Second})
	require.NoError(t, err)

	c := New(handler, opts...)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	const addr = "127.0.0.1:5502"
	dev := startDevice(t, addr, simulator.WithPowerMeter(0))
	c := newTCPClient(t, addr)
	ctx := context.Background()

	// 測試讀取保持暫存器 (FC 03)
	t.Run("ReadHoldingRegisters", func(t *testing.T) {
		regs, err := c.ReadHoldingRegisters(ctx, 0, 3)
		require.NoError(t, err)
		require.Len(t, regs, 3)

		values, err := pdu.DecodeValues(regs[:1], pdu.DataTypeUint16, pdu.WordOrderBigEndian, 10)
		require.NoError(t, err)
		assert.InDelta(t, 220.0, values[0], 10.0, "電壓應接近 220V")
	})

	// 測試寫入單一暫存器 (FC 06)
	t.Run("WriteSingleRegister", func(t *testing.T) {
		require.NoError(t, c.WriteSingleRegister(ctx, 100, 0x1234))

		regs, err := c.ReadHoldingRegisters(ctx, 100, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint16{0x1234}, regs)
	})

	// 測試線圈 (FC 01/05/15)
	t.Run("Coils", func(t *testing.T) {
		require.NoError(t, c.WriteSingleCoil(ctx, 0, modbus.CoilOn))
		require.NoError(t, c.WriteMultipleCoils(ctx, 1, []modbus.Coil{modbus.CoilOff, modbus.CoilOn}))

		coils, err := c.ReadCoils(ctx, 0, 3)
		require.NoError(t, err)
		assert.Equal(t, []modbus.Coil{modbus.CoilOn, modbus.CoilOff, modbus.CoilOn}, coils)
		assert.Equal(t, modbus.CoilOn, dev.Coil(2))
	})

	// 測試離散輸入與輸入暫存器 (FC 02/04)
	t.Run("Inputs", func(t *testing.T) {
		dev.SetDiscreteInput(7, modbus.CoilOn)
		require.NoError(t, dev.SetInputRegisters(10, []uint16{11, 22}))

		inputs, err := c.ReadDiscreteInputs(ctx, 7, 1)
		require.NoError(t, err)
		assert.Equal(t, []modbus.Coil{modbus.CoilOn}, inputs)

		regs, err := c.ReadInputRegisters(ctx, 10, 2)
		require.NoError(t, err)
		assert.Equal(t, []uint16{11, 22}, regs)
	})

	// 測試寫入多個暫存器與讀寫 (FC 16/23)
	t.Run("WriteRead", func(t *testing.T) {
		require.NoError(t, c.WriteMultipleRegisters(ctx, 200, []uint16{7, 8}))

		regs, err := c.WriteReadMultipleRegisters(ctx, 300, []uint16{0xBEEF}, 200, 2)
		require.NoError(t, err)
		assert.Equal(t, []uint16{7, 8}, regs)

		written, err := dev.HoldingRegisters(300, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint16{0xBEEF}, written)
	})

	// 測試異常回應
	t.Run("Exception", func(t *testing.T) {
		dev.InjectFault(modbus.FuncCodeReadHoldingRegisters, simulator.Fault{
			Exception: modbus.ExceptionIllegalDataAddress,
			Remaining: 1,
		})

		_, err := c.ReadHoldingRegisters(ctx, 0, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, modbus.NewException(modbus.ExceptionIllegalDataAddress))
		assert.Equal(t, "modbus exception: IllegalDataAddress", err.Error())
	})
}

func TestClientIntegration_RetryBusy(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	const addr = "127.0.0.1:5503"
	dev := startDevice(t, addr)
	dev.InjectFault(modbus.FuncCodeReadHoldingRegisters, simulator.Fault{
		Exception: modbus.ExceptionSlaveOrServerBusy,
		Remaining: 2,
	})

	c := newTCPClient(t, addr,
		WithRetry(RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Millisecond}),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
	)

	_, err := c.ReadHoldingRegisters(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.Stats().RetryCount.Load())
	assert.Equal(t, uint64(3), dev.Stats().Requests(modbus.FuncCodeReadHoldingRegisters))
}

func TestClientIntegration_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	const addr = "127.0.0.1:5504"
	dev := startDevice(t, addr)
	dev.InjectFault(modbus.FuncCodeReadCoils, simulator.Fault{Latency: 500 * time.Millisecond, Remaining: 1})

	handler := goburrow.NewTCPClientHandler(addr)
	handler.Timeout = 100 * time.Millisecond
	c := New(handler)
	defer c.Close()

	_, err := c.ReadCoils(context.Background(), 0, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, modbus.ErrIO)
}

func BenchmarkClientReadHoldingRegisters(b *testing.B) {
	const addr = "127.0.0.1:5505"
	dev := simulator.New(addr)
	ctx := context.Background()
	if err := dev.Start(ctx); err != nil {
		b.Fatal(err)
	}
	defer dev.Stop(ctx)

	time.Sleep(100 * time.Millisecond)

	handler, _ := NewHandler(ConnectionConfig{Address: addr, SlaveID: 1, Timeout: time.Second})
	c := New(handler)
	defer c.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.ReadHoldingRegisters(ctx, 0, 10); err != nil {
			b.Fatal(err)
		}
	}
}
