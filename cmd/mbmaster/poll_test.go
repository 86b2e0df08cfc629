package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goburrow "github.com/goburrow/modbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	modbus "modbus-master"
	"modbus-master/client"
)

// scriptedHandler ADU 即 [功能碼, 資料...]，依序回傳預設回應
type scriptedHandler struct {
	replies [][]byte
}

func (h *scriptedHandler) Encode(p *goburrow.ProtocolDataUnit) ([]byte, error) {
	return append([]byte{p.FunctionCode}, p.Data...), nil
}

func (h *scriptedHandler) Decode(adu []byte) (*goburrow.ProtocolDataUnit, error) {
	return &goburrow.ProtocolDataUnit{FunctionCode: adu[0], Data: adu[1:]}, nil
}

func (h *scriptedHandler) Verify(aduRequest, aduResponse []byte) error { return nil }

func (h *scriptedHandler) Send(adu []byte) ([]byte, error) {
	if len(h.replies) == 0 {
		return nil, io.EOF
	}
	r := h.replies[0]
	h.replies = h.replies[1:]
	return r, nil
}

func (h *scriptedHandler) Connect() error { return nil }
func (h *scriptedHandler) Close() error   { return nil }

func TestPoller_PollOnce(t *testing.T) {
	h := &scriptedHandler{replies: [][]byte{
		{0x03, 0x02, 0x08, 0x98},             // 2200 -> 220.0 V
		{0x01, 0x01, 0x05},                   // 線圈 On Off On
		{0x84, 0x02},                         // IllegalDataAddress
		{0x03, 0x04, 0x00, 0x00, 0x00, 0x01}, // 65536 (CDAB)
	}}
	c := client.New(h)

	cfg := PollConfig{
		Interval: time.Second,
		Requests: []PollRequest{
			{Name: "voltage", Function: "read_holding_registers", Quantity: 1, DataType: "uint16", Scale: 10},
			{Name: "relay", Function: "read_coils", Quantity: 3},
			{Name: "missing", Function: "read_input_registers", Address: 9000, Quantity: 1},
			{Name: "energy", Function: "read_holding_registers", Quantity: 2, DataType: "uint32", WordOrder: "cdab"},
		},
	}

	results := NewPoller(c, cfg, zap.NewNop()).PollOnce(context.Background())
	require.Len(t, results, 4)

	require.NoError(t, results[0].Err)
	assert.Equal(t, []uint16{2200}, results[0].Registers)
	require.Len(t, results[0].Values, 1)
	assert.InDelta(t, 220.0, results[0].Values[0], 0.001)

	require.NoError(t, results[1].Err)
	assert.Equal(t, []modbus.Coil{modbus.CoilOn, modbus.CoilOff, modbus.CoilOn}, results[1].Coils)

	assert.ErrorIs(t, results[2].Err, modbus.NewException(modbus.ExceptionIllegalDataAddress))

	require.NoError(t, results[3].Err)
	assert.Equal(t, []float64{65536}, results[3].Values)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	h := &scriptedHandler{}
	c := client.New(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPoller(c, PollConfig{Interval: time.Hour, Requests: []PollRequest{{Name: "x", Function: "read_coils", Quantity: 1}}}, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run 未在取消後結束")
	}
}

func TestMetricsServer_Handler(t *testing.T) {
	registry := prometheus.NewRegistry()
	h := &scriptedHandler{replies: [][]byte{{0x06, 0x00, 0x01, 0x00, 0x2A}}}
	c := client.New(h, client.WithMetrics(client.NewMetrics(registry)))
	require.NoError(t, c.WriteSingleRegister(context.Background(), 1, 42))

	m := NewMetricsServer(registry, c.Stats(), zap.NewNop())
	srv := httptest.NewServer(m.Handler("/metrics"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mbmaster_requests_total")

	resp, err = http.Get(srv.URL + "/metrics?format=json")
	require.NoError(t, err)
	var snap client.StatsSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, uint64(1), snap.TotalRequests)

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	m.SetReady(true)
	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
