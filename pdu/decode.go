package pdu

import (
	"encoding/binary"

	modbus "modbus-master"
)

// Decode 依請求 f 驗證並解碼回應 PDU
//
// 錯誤分類：
//   - 長度或位元組數不符為 InvalidData(UnexpectedReplySize)，暫存器位元組數為奇數時先回報 BytecountNotEven
//   - 回顯的位址、數值或數量不符、功能碼為其他已知功能、異常碼未定義，皆為 InvalidResponse
//   - 功能碼不在目錄中為 InvalidFunction
//   - 資料為空為 InvalidData(RecvBufferEmpty)
//   - 讀取數量為 0 的請求不會有合法回應，一律為 InvalidData(UnexpectedReplySize)
func Decode(f modbus.Function, resp *ProtocolDataUnit) (*Response, error) {
	if f == nil {
		return nil, modbus.NewInvalidFunction()
	}
	if resp == nil {
		return nil, invalidData(modbus.ReasonRecvBufferEmpty)
	}

	code := f.Code()
	got := modbus.FunctionCode(resp.FunctionCode)

	if got == code.ExceptionResponse() {
		return nil, decodeException(resp.Data)
	}
	if got != code {
		if got.Base().Known() {
			return nil, modbus.NewInvalidResponse()
		}
		return nil, modbus.NewInvalidFunction()
	}
	if len(resp.Data) == 0 {
		return nil, invalidData(modbus.ReasonRecvBufferEmpty)
	}

	out := &Response{Function: f}
	var err error

	switch req := f.(type) {
	case modbus.ReadCoils:
		out.Coils, err = decodeBits(resp.Data, req.Quantity)
	case modbus.ReadDiscreteInputs:
		out.Coils, err = decodeBits(resp.Data, req.Quantity)
	case modbus.ReadHoldingRegisters:
		out.Registers, err = decodeRegisters(resp.Data, req.Quantity)
	case modbus.ReadInputRegisters:
		out.Registers, err = decodeRegisters(resp.Data, req.Quantity)
	case modbus.WriteSingleCoil:
		err = checkEcho(resp.Data, req.Address, req.Value)
	case modbus.WriteSingleRegister:
		err = checkEcho(resp.Data, req.Address, req.Value)
	case modbus.WriteMultipleCoils:
		err = checkEcho(resp.Data, req.Address, req.Quantity)
	case modbus.WriteMultipleRegisters:
		err = checkEcho(resp.Data, req.Address, req.Quantity)
	case modbus.WriteReadMultipleRegisters:
		out.Registers, err = decodeRegisters(resp.Data, req.ReadQuantity)
	default:
		return nil, modbus.NewInvalidFunction()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeException(data []byte) error {
	if len(data) == 0 {
		return invalidData(modbus.ReasonRecvBufferEmpty)
	}
	if len(data) != exceptionResponseDataSize {
		return invalidData(modbus.ReasonUnexpectedReplySize)
	}
	exc, ok := modbus.ExceptionCodeFromByte(data[0])
	if !ok {
		return modbus.NewInvalidResponse()
	}
	return modbus.NewException(exc)
}

func decodeBits(data []byte, quantity uint16) ([]modbus.Coil, error) {
	if quantity == 0 {
		return nil, invalidData(modbus.ReasonUnexpectedReplySize)
	}
	byteCount := int(data[0])
	if byteCount != (int(quantity)+7)/8 || len(data)-1 != byteCount {
		return nil, invalidData(modbus.ReasonUnexpectedReplySize)
	}
	return BytesToCoils(data[1:], int(quantity)), nil
}

func decodeRegisters(data []byte, quantity uint16) ([]uint16, error) {
	if quantity == 0 {
		return nil, invalidData(modbus.ReasonUnexpectedReplySize)
	}
	byteCount := int(data[0])
	if byteCount%2 != 0 {
		return nil, invalidData(modbus.ReasonBytecountNotEven)
	}
	if byteCount != int(quantity)*2 || len(data)-1 != byteCount {
		return nil, invalidData(modbus.ReasonUnexpectedReplySize)
	}
	return BytesToRegisters(data[1:]), nil
}

// checkEcho 寫入類回應須原樣回傳位址與數值 (或數量)
func checkEcho(data []byte, address, value uint16) error {
	if len(data) != 4 {
		return invalidData(modbus.ReasonUnexpectedReplySize)
	}
	if binary.BigEndian.Uint16(data) != address || binary.BigEndian.Uint16(data[2:]) != value {
		return modbus.NewInvalidResponse()
	}
	return nil
}
