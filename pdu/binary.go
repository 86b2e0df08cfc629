package pdu

import (
	"encoding/binary"

	modbus "modbus-master"
)

// RegistersToBytes 將暫存器值轉換為位元組陣列 (Big Endian)
func RegistersToBytes(registers []uint16) []byte {
	bytes := make([]byte, len(registers)*2)
	for i, reg := range registers {
		binary.BigEndian.PutUint16(bytes[i*2:], reg)
	}
	return bytes
}

// BytesToRegisters 將位元組陣列轉換為暫存器值 (Big Endian)，奇數尾端位元組忽略
func BytesToRegisters(data []byte) []uint16 {
	registers := make([]uint16, len(data)/2)
	for i := range registers {
		registers[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return registers
}

// CoilsToBytes 打包線圈，第一個線圈位於第一個位元組的最低位元
func CoilsToBytes(coils []modbus.Coil) []byte {
	bytes := make([]byte, (len(coils)+7)/8)
	for i, c := range coils {
		if c == modbus.CoilOn {
			bytes[i/8] |= 1 << (i % 8)
		}
	}
	return bytes
}

// BytesToCoils 解開 count 個線圈，超出 data 的部分視為 Off
func BytesToCoils(data []byte, count int) []modbus.Coil {
	coils := make([]modbus.Coil, count)
	for i := 0; i < count && i/8 < len(data); i++ {
		coils[i] = modbus.CoilFromBool(data[i/8]&(1<<(i%8)) != 0)
	}
	return coils
}

// NewWriteMultipleCoils 由線圈狀態建立 FC 15 請求
func NewWriteMultipleCoils(address uint16, coils []modbus.Coil) modbus.WriteMultipleCoils {
	return modbus.WriteMultipleCoils{
		Address:  address,
		Quantity: uint16(len(coils)),
		Payload:  CoilsToBytes(coils),
	}
}

// NewWriteMultipleRegisters 由暫存器值建立 FC 16 請求
func NewWriteMultipleRegisters(address uint16, values []uint16) modbus.WriteMultipleRegisters {
	return modbus.WriteMultipleRegisters{
		Address:  address,
		Quantity: uint16(len(values)),
		Payload:  RegistersToBytes(values),
	}
}

// NewWriteReadMultipleRegisters 建立 FC 23 請求
func NewWriteReadMultipleRegisters(writeAddress uint16, values []uint16, readAddress, readQuantity uint16) modbus.WriteReadMultipleRegisters {
	return modbus.WriteReadMultipleRegisters{
		WriteAddress:  writeAddress,
		WriteQuantity: uint16(len(values)),
		Payload:       RegistersToBytes(values),
		ReadAddress:   readAddress,
		ReadQuantity:  readQuantity,
	}
}
