package simulator

import (
	"fmt"

	modbus "modbus-master"
)

const addressSpace = 0x10000

func checkRange(address uint16, n int) error {
	if int(address)+n > addressSpace {
		return modbus.NewInvalidData(modbus.CustomReason(
			fmt.Sprintf("address %d + count %d exceeds address space", address, n)))
	}
	return nil
}

func coilByte(c modbus.Coil) byte {
	if c == modbus.CoilOn {
		return 1
	}
	return 0
}

// SetCoil 設定線圈
func (d *Device) SetCoil(address uint16, value modbus.Coil) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.server.Coils[address] = coilByte(value)
}

// SetCoils 從 address 起設定多個線圈
func (d *Device) SetCoils(address uint16, values []modbus.Coil) error {
	if err := checkRange(address, len(values)); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range values {
		d.server.Coils[int(address)+i] = coilByte(v)
	}
	return nil
}

// Coil 讀取線圈
func (d *Device) Coil(address uint16) modbus.Coil {
	d.mu.Lock()
	defer d.mu.Unlock()
	return modbus.CoilFromBool(d.server.Coils[address] != 0)
}

// SetDiscreteInput 設定離散輸入
func (d *Device) SetDiscreteInput(address uint16, value modbus.Coil) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.server.DiscreteInputs[address] = coilByte(value)
}

// SetHoldingRegister 設定保持暫存器
func (d *Device) SetHoldingRegister(address, value uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.server.HoldingRegisters[address] = value
}

// SetHoldingRegisters 從 address 起設定多個保持暫存器
func (d *Device) SetHoldingRegisters(address uint16, values []uint16) error {
	if err := checkRange(address, len(values)); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.server.HoldingRegisters[address:], values)
	return nil
}

// HoldingRegisters 讀取 quantity 個保持暫存器
func (d *Device) HoldingRegisters(address, quantity uint16) ([]uint16, error) {
	if err := checkRange(address, int(quantity)); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint16, quantity)
	copy(out, d.server.HoldingRegisters[address:])
	return out, nil
}

// SetInputRegister 設定輸入暫存器
func (d *Device) SetInputRegister(address, value uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.server.InputRegisters[address] = value
}

// SetInputRegisters 從 address 起設定多個輸入暫存器
func (d *Device) SetInputRegisters(address uint16, values []uint16) error {
	if err := checkRange(address, len(values)); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.server.InputRegisters[address:], values)
	return nil
}
