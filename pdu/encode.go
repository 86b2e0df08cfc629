package pdu

import (
	"encoding/binary"

	modbus "modbus-master"
)

// Encode 將請求編碼為 PDU
//
// 功能碼一律取自 f.Code()。Payload 只在此讀取一次並複製進 PDU。
func Encode(f modbus.Function) (*ProtocolDataUnit, error) {
	var (
		data []byte
		err  error
	)

	switch req := f.(type) {
	case modbus.ReadCoils:
		data, err = encodeRead("coil", req.Address, req.Quantity, MaxCoilsPerRead)
	case modbus.ReadDiscreteInputs:
		data, err = encodeRead("discrete input", req.Address, req.Quantity, MaxCoilsPerRead)
	case modbus.ReadHoldingRegisters:
		data, err = encodeRead("holding register", req.Address, req.Quantity, MaxRegistersPerRead)
	case modbus.ReadInputRegisters:
		data, err = encodeRead("input register", req.Address, req.Quantity, MaxRegistersPerRead)
	case modbus.WriteSingleCoil:
		if _, cerr := modbus.CoilFromCode(req.Value); cerr != nil {
			return nil, invalidData(modbus.ReasonEncodingError)
		}
		data = dataBlock(req.Address, req.Value)
	case modbus.WriteSingleRegister:
		data = dataBlock(req.Address, req.Value)
	case modbus.WriteMultipleCoils:
		data, err = encodeWriteCoils(req)
	case modbus.WriteMultipleRegisters:
		data, err = encodeWriteRegisters(req)
	case modbus.WriteReadMultipleRegisters:
		data, err = encodeWriteRead(req)
	default:
		return nil, modbus.NewInvalidFunction()
	}
	if err != nil {
		return nil, err
	}

	return &ProtocolDataUnit{
		FunctionCode: byte(f.Code()),
		Data:         data,
	}, nil
}

func encodeRead(name string, address, quantity uint16, max int) ([]byte, error) {
	if err := checkQuantity(name, quantity, max); err != nil {
		return nil, err
	}
	if err := checkAddress(address, quantity); err != nil {
		return nil, err
	}
	return dataBlock(address, quantity), nil
}

func encodeWriteCoils(req modbus.WriteMultipleCoils) ([]byte, error) {
	if err := checkPayload(req.Payload, MaxPayloadBytes); err != nil {
		return nil, err
	}
	if err := checkQuantity("coil", req.Quantity, MaxCoilsPerWrite); err != nil {
		return nil, err
	}
	if err := checkAddress(req.Address, req.Quantity); err != nil {
		return nil, err
	}
	if len(req.Payload) != (int(req.Quantity)+7)/8 {
		return nil, invalidData(modbus.ReasonEncodingError)
	}
	return dataBlockSuffix(req.Payload, req.Address, req.Quantity), nil
}

func encodeWriteRegisters(req modbus.WriteMultipleRegisters) ([]byte, error) {
	if err := checkRegisterPayload(req.Payload, MaxPayloadBytes); err != nil {
		return nil, err
	}
	if err := checkQuantity("register", req.Quantity, MaxRegistersPerWrite); err != nil {
		return nil, err
	}
	if err := checkAddress(req.Address, req.Quantity); err != nil {
		return nil, err
	}
	if len(req.Payload) != int(req.Quantity)*2 {
		return nil, invalidData(modbus.ReasonEncodingError)
	}
	return dataBlockSuffix(req.Payload, req.Address, req.Quantity), nil
}

// encodeWriteRead 線路上讀取位址與數量在前，寫入區塊在後
func encodeWriteRead(req modbus.WriteReadMultipleRegisters) ([]byte, error) {
	if err := checkQuantity("read register", req.ReadQuantity, MaxRegistersPerRead); err != nil {
		return nil, err
	}
	if err := checkAddress(req.ReadAddress, req.ReadQuantity); err != nil {
		return nil, err
	}
	if err := checkRegisterPayload(req.Payload, MaxWriteReadPayloadBytes); err != nil {
		return nil, err
	}
	if err := checkQuantity("write register", req.WriteQuantity, MaxRegistersPerWriteRead); err != nil {
		return nil, err
	}
	if err := checkAddress(req.WriteAddress, req.WriteQuantity); err != nil {
		return nil, err
	}
	if len(req.Payload) != int(req.WriteQuantity)*2 {
		return nil, invalidData(modbus.ReasonEncodingError)
	}

	data := make([]byte, 4, 9+len(req.Payload))
	binary.BigEndian.PutUint16(data[0:], req.ReadAddress)
	binary.BigEndian.PutUint16(data[2:], req.ReadQuantity)
	return append(data, dataBlockSuffix(req.Payload, req.WriteAddress, req.WriteQuantity)...), nil
}

func checkPayload(payload []byte, max int) error {
	if len(payload) == 0 {
		return invalidData(modbus.ReasonSendBufferEmpty)
	}
	if len(payload) > max {
		return invalidData(modbus.ReasonSendBufferTooBig)
	}
	return nil
}

func checkRegisterPayload(payload []byte, max int) error {
	if err := checkPayload(payload, max); err != nil {
		return err
	}
	if len(payload)%2 != 0 {
		return invalidData(modbus.ReasonBytecountNotEven)
	}
	return nil
}

// dataBlock 以 Big Endian 排列 uint16 值
func dataBlock(values ...uint16) []byte {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	return data
}

// dataBlockSuffix 在 uint16 值後附加位元組數與 suffix
func dataBlockSuffix(suffix []byte, values ...uint16) []byte {
	l := 2 * len(values)
	data := make([]byte, l+1+len(suffix))
	for i, v := range values {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	data[l] = uint8(len(suffix))
	copy(data[l+1:], suffix)
	return data
}
