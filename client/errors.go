package client

import (
	"errors"

	goburrow "github.com/goburrow/modbus"

	modbus "modbus-master"
)

// ClassifyError 將傳輸層錯誤轉為 *modbus.Error
//
// goburrow 的 *ModbusError 轉為 Exception (未定義的異常碼為 InvalidResponse)，
// 已是 *modbus.Error 者原樣返回，其餘視為 I/O 錯誤。
func ClassifyError(err error) *modbus.Error {
	if err == nil {
		return nil
	}

	var mbErr *modbus.Error
	if errors.As(err, &mbErr) {
		return mbErr
	}

	var excErr *goburrow.ModbusError
	if errors.As(err, &excErr) {
		code, ok := modbus.ExceptionCodeFromByte(excErr.ExceptionCode)
		if !ok {
			return modbus.NewInvalidResponse()
		}
		return modbus.NewException(code)
	}

	return modbus.NewIO(err)
}

// Retryable 判斷錯誤是否值得重試：I/O 錯誤與從站忙碌
func Retryable(err error) bool {
	return errors.Is(err, modbus.ErrIO) ||
		errors.Is(err, modbus.NewException(modbus.ExceptionSlaveOrServerBusy))
}
