package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbus "modbus-master"
)

func TestEncode_Layouts(t *testing.T) {
	tests := []struct {
		name     string
		f        modbus.Function
		wantCode byte
		wantData []byte
	}{
		{
			name:     "read coils",
			f:        modbus.ReadCoils{Address: 0x0013, Quantity: 0x0013},
			wantCode: 0x01,
			wantData: []byte{0x00, 0x13, 0x00, 0x13},
		},
		{
			name:     "read holding registers",
			f:        modbus.ReadHoldingRegisters{Address: 0x006B, Quantity: 3},
			wantCode: 0x03,
			wantData: []byte{0x00, 0x6B, 0x00, 0x03},
		},
		{
			name:     "write single coil",
			f:        modbus.WriteSingleCoil{Address: 0x00AC, Value: modbus.CoilOn.Code()},
			wantCode: 0x05,
			wantData: []byte{0x00, 0xAC, 0xFF, 0x00},
		},
		{
			name:     "write single register",
			f:        modbus.WriteSingleRegister{Address: 0x0001, Value: 0x0003},
			wantCode: 0x06,
			wantData: []byte{0x00, 0x01, 0x00, 0x03},
		},
		{
			name:     "write multiple coils",
			f:        modbus.WriteMultipleCoils{Address: 0x0013, Quantity: 10, Payload: []byte{0xCD, 0x01}},
			wantCode: 0x0F,
			wantData: []byte{0x00, 0x13, 0x00, 0x0A, 0x02, 0xCD, 0x01},
		},
		{
			name:     "write multiple registers",
			f:        modbus.WriteMultipleRegisters{Address: 0x0001, Quantity: 2, Payload: []byte{0x00, 0x0A, 0x01, 0x02}},
			wantCode: 0x10,
			wantData: []byte{0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x01, 0x02},
		},
		{
			name: "write read multiple registers",
			f: modbus.WriteReadMultipleRegisters{
				WriteAddress: 0x000E, WriteQuantity: 3, Payload: []byte{0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF},
				ReadAddress: 0x0003, ReadQuantity: 6,
			},
			wantCode: 0x17,
			wantData: []byte{0x00, 0x03, 0x00, 0x06, 0x00, 0x0E, 0x00, 0x03, 0x06, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Encode(tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, p.FunctionCode)
			assert.Equal(t, tt.wantData, p.Data)
		})
	}
}

func TestEncode_Validation(t *testing.T) {
	tests := []struct {
		name   string
		f      modbus.Function
		reason modbus.ReasonCode
	}{
		{"zero quantity", modbus.ReadCoils{Address: 0, Quantity: 0}, modbus.ReasonCustom},
		{"too many coils", modbus.ReadCoils{Address: 0, Quantity: MaxCoilsPerRead + 1}, modbus.ReasonCustom},
		{"too many registers", modbus.ReadInputRegisters{Address: 0, Quantity: MaxRegistersPerRead + 1}, modbus.ReasonCustom},
		{"address overflow", modbus.ReadHoldingRegisters{Address: 0xFFFF, Quantity: 2}, modbus.ReasonCustom},
		{"bad coil value", modbus.WriteSingleCoil{Address: 1, Value: 0x0001}, modbus.ReasonEncodingError},
		{"empty coil payload", modbus.WriteMultipleCoils{Address: 1, Quantity: 1}, modbus.ReasonSendBufferEmpty},
		{"coil payload too big", modbus.WriteMultipleCoils{Address: 1, Quantity: 8, Payload: make([]byte, MaxPayloadBytes+1)}, modbus.ReasonSendBufferTooBig},
		{"coil payload mismatch", modbus.WriteMultipleCoils{Address: 1, Quantity: 9, Payload: []byte{0xFF}}, modbus.ReasonEncodingError},
		{"odd register payload", modbus.WriteMultipleRegisters{Address: 1, Quantity: 1, Payload: []byte{0x00, 0x01, 0x02}}, modbus.ReasonBytecountNotEven},
		{"register payload mismatch", modbus.WriteMultipleRegisters{Address: 1, Quantity: 2, Payload: []byte{0x00, 0x01}}, modbus.ReasonEncodingError},
		{"register quantity too high", modbus.WriteMultipleRegisters{Address: 1, Quantity: MaxRegistersPerWrite + 1, Payload: make([]byte, MaxPayloadBytes)}, modbus.ReasonCustom},
		{"write read payload too big", modbus.WriteReadMultipleRegisters{WriteQuantity: 122, Payload: make([]byte, 244), ReadQuantity: 1}, modbus.ReasonSendBufferTooBig},
		{"write read zero read quantity", modbus.WriteReadMultipleRegisters{WriteQuantity: 1, Payload: []byte{0, 1}}, modbus.ReasonCustom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.f)
			require.Error(t, err)
			assert.ErrorIs(t, err, modbus.NewInvalidData(modbus.NewReason(tt.reason)))
		})
	}
}

func TestEncode_PayloadReadOnce(t *testing.T) {
	payload := []byte{0x12, 0x34}
	p, err := Encode(modbus.WriteMultipleRegisters{Address: 0, Quantity: 1, Payload: payload})
	require.NoError(t, err)

	payload[0] = 0x00
	assert.Equal(t, byte(0x12), p.Data[5], "PDU 不應與呼叫端共用緩衝區")
	assert.Equal(t, []byte{0x00, 0x34}, payload)
}

func TestEncode_Limits(t *testing.T) {
	_, err := Encode(modbus.ReadCoils{Address: 0, Quantity: MaxCoilsPerRead})
	assert.NoError(t, err)

	_, err = Encode(modbus.ReadHoldingRegisters{Address: 0xFFFF, Quantity: 1})
	assert.NoError(t, err)

	regs := make([]uint16, MaxRegistersPerWrite)
	_, err = Encode(NewWriteMultipleRegisters(0, regs))
	assert.NoError(t, err)

	coils := make([]modbus.Coil, MaxCoilsPerWrite)
	_, err = Encode(NewWriteMultipleCoils(0, coils))
	assert.NoError(t, err)
}
