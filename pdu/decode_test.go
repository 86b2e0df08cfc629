package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbus "modbus-master"
)

func TestDecode_ReadResponses(t *testing.T) {
	t.Run("coils", func(t *testing.T) {
		f := modbus.ReadCoils{Address: 0x13, Quantity: 10}
		resp, err := Decode(f, &ProtocolDataUnit{FunctionCode: 0x01, Data: []byte{0x02, 0xCD, 0x01}})
		require.NoError(t, err)

		on, off := modbus.CoilOn, modbus.CoilOff
		assert.Equal(t, []modbus.Coil{on, off, on, on, off, off, on, on, on, off}, resp.Coils)
		assert.Nil(t, resp.Registers)
		assert.Equal(t, f, resp.Function)
	})

	t.Run("holding registers", func(t *testing.T) {
		f := modbus.ReadHoldingRegisters{Address: 0x6B, Quantity: 3}
		resp, err := Decode(f, &ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64}})
		require.NoError(t, err)
		assert.Equal(t, []uint16{0x022B, 0x0000, 0x0064}, resp.Registers)
	})

	t.Run("write read registers", func(t *testing.T) {
		f := NewWriteReadMultipleRegisters(0, []uint16{1}, 10, 2)
		resp, err := Decode(f, &ProtocolDataUnit{FunctionCode: 0x17, Data: []byte{0x04, 0x00, 0xFE, 0x0A, 0xCD}})
		require.NoError(t, err)
		assert.Equal(t, []uint16{0x00FE, 0x0ACD}, resp.Registers)
	})
}

func TestDecode_WriteEcho(t *testing.T) {
	f := modbus.WriteSingleRegister{Address: 1, Value: 3}

	resp, err := Decode(f, &ProtocolDataUnit{FunctionCode: 0x06, Data: []byte{0x00, 0x01, 0x00, 0x03}})
	require.NoError(t, err)
	assert.Nil(t, resp.Coils)
	assert.Nil(t, resp.Registers)

	_, err = Decode(f, &ProtocolDataUnit{FunctionCode: 0x06, Data: []byte{0x00, 0x01, 0x00, 0x04}})
	assert.ErrorIs(t, err, modbus.ErrInvalidResponse)

	_, err = Decode(f, &ProtocolDataUnit{FunctionCode: 0x06, Data: []byte{0x00, 0x01, 0x00}})
	assert.ErrorIs(t, err, modbus.NewInvalidData(modbus.NewReason(modbus.ReasonUnexpectedReplySize)))

	mc := NewWriteMultipleCoils(0x13, make([]modbus.Coil, 10))
	_, err = Decode(mc, &ProtocolDataUnit{FunctionCode: 0x0F, Data: []byte{0x00, 0x13, 0x00, 0x0A}})
	assert.NoError(t, err)
}

func TestDecode_Classification(t *testing.T) {
	readRegs := modbus.ReadHoldingRegisters{Address: 0, Quantity: 2}

	tests := []struct {
		name   string
		f      modbus.Function
		resp   *ProtocolDataUnit
		target error
	}{
		{
			name:   "odd register byte count",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x03, 0x00, 0x01, 0x02}},
			target: modbus.NewInvalidData(modbus.NewReason(modbus.ReasonBytecountNotEven)),
		},
		{
			name:   "byte count does not match quantity",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x02, 0x00, 0x01}},
			target: modbus.NewInvalidData(modbus.NewReason(modbus.ReasonUnexpectedReplySize)),
		},
		{
			name:   "truncated data",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x04, 0x00, 0x01}},
			target: modbus.NewInvalidData(modbus.NewReason(modbus.ReasonUnexpectedReplySize)),
		},
		{
			name:   "coil byte count mismatch",
			f:      modbus.ReadCoils{Address: 0, Quantity: 9},
			resp:   &ProtocolDataUnit{FunctionCode: 0x01, Data: []byte{0x01, 0xFF}},
			target: modbus.NewInvalidData(modbus.NewReason(modbus.ReasonUnexpectedReplySize)),
		},
		{
			name:   "empty data",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x03},
			target: modbus.NewInvalidData(modbus.NewReason(modbus.ReasonRecvBufferEmpty)),
		},
		{
			name:   "nil response",
			f:      readRegs,
			resp:   nil,
			target: modbus.NewInvalidData(modbus.NewReason(modbus.ReasonRecvBufferEmpty)),
		},
		{
			name:   "other known function",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x04, Data: []byte{0x04, 0, 0, 0, 0}},
			target: modbus.ErrInvalidResponse,
		},
		{
			name:   "exception for other function",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x84, Data: []byte{0x02}},
			target: modbus.ErrInvalidResponse,
		},
		{
			name:   "unknown function",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x2B, Data: []byte{0x0E}},
			target: modbus.ErrInvalidFunction,
		},
		{
			name:   "exception response",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x83, Data: []byte{0x02}},
			target: modbus.NewException(modbus.ExceptionIllegalDataAddress),
		},
		{
			name:   "undefined exception byte",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x83, Data: []byte{0x0C}},
			target: modbus.ErrInvalidResponse,
		},
		{
			name:   "oversized exception response",
			f:      readRegs,
			resp:   &ProtocolDataUnit{FunctionCode: 0x83, Data: []byte{0x02, 0x00}},
			target: modbus.NewInvalidData(modbus.NewReason(modbus.ReasonUnexpectedReplySize)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Decode(tt.f, tt.resp)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestDecode_ExceptionKind(t *testing.T) {
	_, err := Decode(modbus.WriteSingleCoil{Address: 1, Value: 0xFF00},
		&ProtocolDataUnit{FunctionCode: 0x85, Data: []byte{0x06}})

	var mbErr *modbus.Error
	require.ErrorAs(t, err, &mbErr)
	assert.Equal(t, modbus.KindException, mbErr.Kind())
	code, ok := mbErr.ExceptionCode()
	require.True(t, ok)
	assert.Equal(t, modbus.ExceptionSlaveOrServerBusy, code)
}

func TestDecode_NilFunction(t *testing.T) {
	_, err := Decode(nil, &ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x02, 0x00, 0x01}})
	assert.ErrorIs(t, err, modbus.ErrInvalidFunction)
}

func TestDecode_ZeroQuantity(t *testing.T) {
	tests := []struct {
		name string
		f    modbus.Function
		resp *ProtocolDataUnit
	}{
		{"coils", modbus.ReadCoils{Quantity: 0}, &ProtocolDataUnit{FunctionCode: 0x01, Data: []byte{0x00}}},
		{"discrete inputs", modbus.ReadDiscreteInputs{Quantity: 0}, &ProtocolDataUnit{FunctionCode: 0x02, Data: []byte{0x00}}},
		{"holding registers", modbus.ReadHoldingRegisters{Quantity: 0}, &ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00}}},
		{"write read registers", modbus.WriteReadMultipleRegisters{ReadQuantity: 0}, &ProtocolDataUnit{FunctionCode: 0x17, Data: []byte{0x00}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.f, tt.resp)
			assert.ErrorIs(t, err, modbus.NewInvalidData(modbus.NewReason(modbus.ReasonUnexpectedReplySize)))
		})
	}
}
