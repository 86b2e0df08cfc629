// Package modbus 定義 Modbus Master 的請求目錄、異常碼、線圈狀態與統一錯誤模型。
//
// 本套件不做任何 I/O：位元組編解碼在 pdu 套件，傳輸與重試在 client 套件。
package modbus

import "fmt"

// FunctionCode Modbus 功能碼
type FunctionCode byte

const (
	FuncCodeReadCoils                  FunctionCode = 0x01
	FuncCodeReadDiscreteInputs         FunctionCode = 0x02
	FuncCodeReadHoldingRegisters       FunctionCode = 0x03
	FuncCodeReadInputRegisters         FunctionCode = 0x04
	FuncCodeWriteSingleCoil            FunctionCode = 0x05
	FuncCodeWriteSingleRegister        FunctionCode = 0x06
	FuncCodeWriteMultipleCoils         FunctionCode = 0x0F
	FuncCodeWriteMultipleRegisters     FunctionCode = 0x10
	FuncCodeWriteReadMultipleRegisters FunctionCode = 0x17
)

// exceptionFlag 異常回應的功能碼會設定此位元
const exceptionFlag FunctionCode = 0x80

func (fc FunctionCode) String() string {
	switch fc {
	case FuncCodeReadCoils:
		return "ReadCoils"
	case FuncCodeReadDiscreteInputs:
		return "ReadDiscreteInputs"
	case FuncCodeReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case FuncCodeReadInputRegisters:
		return "ReadInputRegisters"
	case FuncCodeWriteSingleCoil:
		return "WriteSingleCoil"
	case FuncCodeWriteSingleRegister:
		return "WriteSingleRegister"
	case FuncCodeWriteMultipleCoils:
		return "WriteMultipleCoils"
	case FuncCodeWriteMultipleRegisters:
		return "WriteMultipleRegisters"
	case FuncCodeWriteReadMultipleRegisters:
		return "WriteReadMultipleRegisters"
	default:
		return fmt.Sprintf("FunctionCode(0x%02X)", byte(fc))
	}
}

// Known 判斷是否為目錄中的功能碼
func (fc FunctionCode) Known() bool {
	switch fc {
	case FuncCodeReadCoils,
		FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters,
		FuncCodeReadInputRegisters,
		FuncCodeWriteSingleCoil,
		FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleCoils,
		FuncCodeWriteMultipleRegisters,
		FuncCodeWriteReadMultipleRegisters:
		return true
	default:
		return false
	}
}

// ExceptionResponse 返回伺服器拒絕請求時使用的功能碼 (fc | 0x80)
func (fc FunctionCode) ExceptionResponse() FunctionCode {
	return fc | exceptionFlag
}

// IsExceptionResponse 判斷是否設定了異常位元
func (fc FunctionCode) IsExceptionResponse() bool {
	return fc&exceptionFlag != 0
}

// Base 去除異常位元
func (fc FunctionCode) Base() FunctionCode {
	return fc &^ exceptionFlag
}

// FunctionCodes 返回目錄中所有功能碼 (依數值排序)
func FunctionCodes() []FunctionCode {
	return []FunctionCode{
		FuncCodeReadCoils,
		FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters,
		FuncCodeReadInputRegisters,
		FuncCodeWriteSingleCoil,
		FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleCoils,
		FuncCodeWriteMultipleRegisters,
		FuncCodeWriteReadMultipleRegisters,
	}
}

// Function Master 可發出的請求 (封閉集合，僅本套件宣告的型別實作)
//
// Code 是請求與功能碼之間唯一的對應，編碼器必須呼叫它而不是自行寫死功能碼。
type Function interface {
	Code() FunctionCode
	String() string
	isFunction()
}

// ReadCoils 讀取線圈 (FC 01)
type ReadCoils struct {
	Address  uint16
	Quantity uint16
}

// ReadDiscreteInputs 讀取離散輸入 (FC 02)
type ReadDiscreteInputs struct {
	Address  uint16
	Quantity uint16
}

// ReadHoldingRegisters 讀取保持暫存器 (FC 03)
type ReadHoldingRegisters struct {
	Address  uint16
	Quantity uint16
}

// ReadInputRegisters 讀取輸入暫存器 (FC 04)
type ReadInputRegisters struct {
	Address  uint16
	Quantity uint16
}

// WriteSingleCoil 寫入單一線圈 (FC 05)，Value 為線圈線路碼 (見 Coil.Code)
type WriteSingleCoil struct {
	Address uint16
	Value   uint16
}

// WriteSingleRegister 寫入單一暫存器 (FC 06)
type WriteSingleRegister struct {
	Address uint16
	Value   uint16
}

// WriteMultipleCoils 寫入多個線圈 (FC 15)
//
// Payload 為打包後的線圈位元，借用呼叫端的緩衝區，本套件不複製也不保留。
type WriteMultipleCoils struct {
	Address  uint16
	Quantity uint16
	Payload  []byte
}

// WriteMultipleRegisters 寫入多個暫存器 (FC 16)
//
// Payload 為 Big Endian 暫存器值，借用規則同 WriteMultipleCoils。
type WriteMultipleRegisters struct {
	Address  uint16
	Quantity uint16
	Payload  []byte
}

// WriteReadMultipleRegisters 單次交易先寫入再讀取多個暫存器 (FC 23)
type WriteReadMultipleRegisters struct {
	WriteAddress  uint16
	WriteQuantity uint16
	Payload       []byte
	ReadAddress   uint16
	ReadQuantity  uint16
}

func (ReadCoils) Code() FunctionCode                  { return FuncCodeReadCoils }
func (ReadDiscreteInputs) Code() FunctionCode         { return FuncCodeReadDiscreteInputs }
func (ReadHoldingRegisters) Code() FunctionCode       { return FuncCodeReadHoldingRegisters }
func (ReadInputRegisters) Code() FunctionCode         { return FuncCodeReadInputRegisters }
func (WriteSingleCoil) Code() FunctionCode            { return FuncCodeWriteSingleCoil }
func (WriteSingleRegister) Code() FunctionCode        { return FuncCodeWriteSingleRegister }
func (WriteMultipleCoils) Code() FunctionCode         { return FuncCodeWriteMultipleCoils }
func (WriteMultipleRegisters) Code() FunctionCode     { return FuncCodeWriteMultipleRegisters }
func (WriteReadMultipleRegisters) Code() FunctionCode { return FuncCodeWriteReadMultipleRegisters }

func (ReadCoils) isFunction()                  {}
func (ReadDiscreteInputs) isFunction()         {}
func (ReadHoldingRegisters) isFunction()       {}
func (ReadInputRegisters) isFunction()         {}
func (WriteSingleCoil) isFunction()            {}
func (WriteSingleRegister) isFunction()        {}
func (WriteMultipleCoils) isFunction()         {}
func (WriteMultipleRegisters) isFunction()     {}
func (WriteReadMultipleRegisters) isFunction() {}

func (f ReadCoils) String() string {
	return fmt.Sprintf("%s(address=%d, quantity=%d)", f.Code(), f.Address, f.Quantity)
}

func (f ReadDiscreteInputs) String() string {
	return fmt.Sprintf("%s(address=%d, quantity=%d)", f.Code(), f.Address, f.Quantity)
}

func (f ReadHoldingRegisters) String() string {
	return fmt.Sprintf("%s(address=%d, quantity=%d)", f.Code(), f.Address, f.Quantity)
}

func (f ReadInputRegisters) String() string {
	return fmt.Sprintf("%s(address=%d, quantity=%d)", f.Code(), f.Address, f.Quantity)
}

func (f WriteSingleCoil) String() string {
	return fmt.Sprintf("%s(address=%d, value=0x%04X)", f.Code(), f.Address, f.Value)
}

func (f WriteSingleRegister) String() string {
	return fmt.Sprintf("%s(address=%d, value=%d)", f.Code(), f.Address, f.Value)
}

func (f WriteMultipleCoils) String() string {
	return fmt.Sprintf("%s(address=%d, quantity=%d, bytes=%d)", f.Code(), f.Address, f.Quantity, len(f.Payload))
}

func (f WriteMultipleRegisters) String() string {
	return fmt.Sprintf("%s(address=%d, quantity=%d, bytes=%d)", f.Code(), f.Address, f.Quantity, len(f.Payload))
}

func (f WriteReadMultipleRegisters) String() string {
	return fmt.Sprintf("%s(write=%d/%d, read=%d/%d, bytes=%d)",
		f.Code(), f.WriteAddress, f.WriteQuantity, f.ReadAddress, f.ReadQuantity, len(f.Payload))
}
