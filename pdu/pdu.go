// Package pdu 將 modbus.Function 編碼為協議資料單元，並依請求驗證與解碼回應。
//
// 資料單元沿用 goburrow/modbus 的 ProtocolDataUnit，可直接交給其 TCP/RTU
// ClientHandler 封裝成 ADU。
package pdu

import (
	"fmt"

	goburrow "github.com/goburrow/modbus"

	modbus "modbus-master"
)

// 數量限制 (Modbus Application Protocol V1.1b3)
const (
	MaxCoilsPerRead           = 2000
	MaxRegistersPerRead       = 125
	MaxCoilsPerWrite          = 1968
	MaxRegistersPerWrite      = 123
	MaxRegistersPerWriteRead  = 121
	MaxPayloadBytes           = 246
	MaxWriteReadPayloadBytes  = 242
	addressSpace              = 0x10000
	exceptionResponseDataSize = 1
)

// ProtocolDataUnit 與 goburrow 共用的資料單元
type ProtocolDataUnit = goburrow.ProtocolDataUnit

// Response 解碼後的回應
//
// 讀取線圈/離散輸入時 Coils 有值，讀取暫存器與 FC 23 時 Registers 有值，
// 寫入類請求兩者皆為 nil。
type Response struct {
	Function  modbus.Function
	Coils     []modbus.Coil
	Registers []uint16
}

func rangeError(format string, args ...any) error {
	return modbus.NewInvalidData(modbus.CustomReason(fmt.Sprintf(format, args...)))
}

func invalidData(code modbus.ReasonCode) error {
	return modbus.NewInvalidData(modbus.NewReason(code))
}

func checkQuantity(name string, quantity uint16, max int) error {
	if quantity == 0 || int(quantity) > max {
		return rangeError("%s quantity %d out of range 1..%d", name, quantity, max)
	}
	return nil
}

func checkAddress(address, quantity uint16) error {
	if int(address)+int(quantity) > addressSpace {
		return rangeError("address %d + quantity %d exceeds address space", address, quantity)
	}
	return nil
}
