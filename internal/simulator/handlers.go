package simulator

import (
	"encoding/binary"
	"time"

	"github.com/tbrandon/mbserver"
	"go.uber.org/zap"

	modbus "modbus-master"
)

type handlerFunc func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception)

// Fault 注入的故障
type Fault struct {
	// Latency 回應前延遲
	Latency time.Duration
	// Exception 非零時以此異常碼回應
	Exception modbus.ExceptionCode
	// Remaining 剩餘生效次數，<= 0 表示持續到 ClearFaults
	Remaining int
}

// InjectFault 對指定功能碼注入故障，覆蓋既有設定
func (d *Device) InjectFault(code modbus.FunctionCode, f Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fault := f
	d.faults[code] = &fault
}

// ClearFaults 清除所有故障
func (d *Device) ClearFaults() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = make(map[modbus.FunctionCode]*Fault)
}

// takeFault 取出一次故障並遞減計數
func (d *Device) takeFault(code modbus.FunctionCode) (Fault, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.faults[code]
	if !ok {
		return Fault{}, false
	}
	out := *f
	if f.Remaining > 0 {
		f.Remaining--
		if f.Remaining == 0 {
			delete(d.faults, code)
		}
	}
	return out, true
}

// registerHandlers 以統計、場景與故障注入包裝 mbserver 的預設處理器
func (d *Device) registerHandlers() {
	defaults := map[modbus.FunctionCode]handlerFunc{
		modbus.FuncCodeReadCoils:                  mbserver.ReadCoils,
		modbus.FuncCodeReadDiscreteInputs:         mbserver.ReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters:       mbserver.ReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters:         mbserver.ReadInputRegisters,
		modbus.FuncCodeWriteSingleCoil:            mbserver.WriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:        mbserver.WriteHoldingRegister,
		modbus.FuncCodeWriteMultipleCoils:         mbserver.WriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:     mbserver.WriteHoldingRegisters,
		modbus.FuncCodeWriteReadMultipleRegisters: writeReadMultipleRegisters,
	}

	for code, next := range defaults {
		d.server.RegisterFunctionHandler(byte(code), d.wrap(code, next))
	}
}

func (d *Device) wrap(code modbus.FunctionCode, next handlerFunc) handlerFunc {
	return func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		d.stats.record(code)

		delay := d.latency
		var forced modbus.ExceptionCode

		effect := d.scenario.Decide()
		delay += effect.Delay
		forced = effect.Exception

		if f, ok := d.takeFault(code); ok {
			delay += f.Latency
			if f.Exception != 0 {
				forced = f.Exception
			}
			d.stats.FaultCount.Add(1)
		}

		if delay > 0 {
			time.Sleep(delay)
		}

		if forced != 0 {
			d.stats.ErrorCount.Add(1)
			d.logger.Debug("注入異常回應",
				zap.Stringer("function", code),
				zap.Stringer("exception", forced),
			)
			return []byte{}, exception(forced)
		}

		d.mu.Lock()
		data, exc := next(s, frame)
		d.mu.Unlock()

		if exc != &mbserver.Success {
			d.stats.ErrorCount.Add(1)
		}
		return data, exc
	}
}

func exception(code modbus.ExceptionCode) *mbserver.Exception {
	exc := mbserver.Exception(code.Byte())
	return &exc
}

// writeReadMultipleRegisters 處理 FC 23：先寫入再讀取
//
// 請求資料：讀取位址、讀取數量、寫入位址、寫入數量、位元組數、寫入值。
func writeReadMultipleRegisters(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 9 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	readAddress := int(binary.BigEndian.Uint16(data[0:2]))
	readQuantity := int(binary.BigEndian.Uint16(data[2:4]))
	writeAddress := int(binary.BigEndian.Uint16(data[4:6]))
	writeQuantity := int(binary.BigEndian.Uint16(data[6:8]))
	byteCount := int(data[8])

	if readQuantity < 1 || readQuantity > 125 || writeQuantity < 1 || writeQuantity > 121 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if byteCount != writeQuantity*2 || len(data) != 9+byteCount {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if readAddress+readQuantity > len(s.HoldingRegisters) || writeAddress+writeQuantity > len(s.HoldingRegisters) {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	for i := 0; i < writeQuantity; i++ {
		s.HoldingRegisters[writeAddress+i] = binary.BigEndian.Uint16(data[9+i*2:])
	}

	out := make([]byte, 1+readQuantity*2)
	out[0] = byte(readQuantity * 2)
	for i := 0; i < readQuantity; i++ {
		binary.BigEndian.PutUint16(out[1+i*2:], s.HoldingRegisters[readAddress+i])
	}
	return out, &mbserver.Success
}
