package modbus

import "fmt"

// ExceptionCode 伺服器拒絕請求時回傳的異常碼
type ExceptionCode byte

// Modbus 異常碼
const (
	ExceptionIllegalFunction      ExceptionCode = 0x01
	ExceptionIllegalDataAddress   ExceptionCode = 0x02
	ExceptionIllegalDataValue     ExceptionCode = 0x03
	ExceptionSlaveOrServerFailure ExceptionCode = 0x04
	ExceptionAcknowledge          ExceptionCode = 0x05
	ExceptionSlaveOrServerBusy    ExceptionCode = 0x06
	ExceptionNegativeAcknowledge  ExceptionCode = 0x07
	ExceptionMemoryParity         ExceptionCode = 0x08
	ExceptionNotDefined           ExceptionCode = 0x09
	ExceptionGatewayPath          ExceptionCode = 0x0A
	ExceptionGatewayTarget        ExceptionCode = 0x0B
)

// ExceptionCodeFromByte 將線路位元組轉為異常碼，0x01..0x0B 以外一律返回 false
func ExceptionCodeFromByte(b byte) (ExceptionCode, bool) {
	switch b {
	case 0x01:
		return ExceptionIllegalFunction, true
	case 0x02:
		return ExceptionIllegalDataAddress, true
	case 0x03:
		return ExceptionIllegalDataValue, true
	case 0x04:
		return ExceptionSlaveOrServerFailure, true
	case 0x05:
		return ExceptionAcknowledge, true
	case 0x06:
		return ExceptionSlaveOrServerBusy, true
	case 0x07:
		return ExceptionNegativeAcknowledge, true
	case 0x08:
		return ExceptionMemoryParity, true
	case 0x09:
		return ExceptionNotDefined, true
	case 0x0A:
		return ExceptionGatewayPath, true
	case 0x0B:
		return ExceptionGatewayTarget, true
	default:
		return 0, false
	}
}

// Byte 返回線路值
func (c ExceptionCode) Byte() byte {
	return byte(c)
}

// String 返回異常名稱，例如 "IllegalDataAddress"
func (c ExceptionCode) String() string {
	switch c {
	case ExceptionIllegalFunction:
		return "IllegalFunction"
	case ExceptionIllegalDataAddress:
		return "IllegalDataAddress"
	case ExceptionIllegalDataValue:
		return "IllegalDataValue"
	case ExceptionSlaveOrServerFailure:
		return "SlaveOrServerFailure"
	case ExceptionAcknowledge:
		return "Acknowledge"
	case ExceptionSlaveOrServerBusy:
		return "SlaveOrServerBusy"
	case ExceptionNegativeAcknowledge:
		return "NegativeAcknowledge"
	case ExceptionMemoryParity:
		return "MemoryParity"
	case ExceptionNotDefined:
		return "NotDefined"
	case ExceptionGatewayPath:
		return "GatewayPath"
	case ExceptionGatewayTarget:
		return "GatewayTarget"
	default:
		return fmt.Sprintf("ExceptionCode(0x%02X)", byte(c))
	}
}

// Description 返回異常碼說明
func (c ExceptionCode) Description() string {
	switch c {
	case ExceptionIllegalFunction:
		return "非法功能碼"
	case ExceptionIllegalDataAddress:
		return "非法資料位址"
	case ExceptionIllegalDataValue:
		return "非法資料值"
	case ExceptionSlaveOrServerFailure:
		return "從站設備故障"
	case ExceptionAcknowledge:
		return "確認"
	case ExceptionSlaveOrServerBusy:
		return "從站設備忙碌"
	case ExceptionNegativeAcknowledge:
		return "否定確認"
	case ExceptionMemoryParity:
		return "記憶體同位錯誤"
	case ExceptionNotDefined:
		return "未定義"
	case ExceptionGatewayPath:
		return "閘道路徑不可用"
	case ExceptionGatewayTarget:
		return "閘道目標設備無回應"
	default:
		return "未知錯誤"
	}
}

// ExceptionCodes 返回所有已定義的異常碼
func ExceptionCodes() []ExceptionCode {
	return []ExceptionCode{
		ExceptionIllegalFunction,
		ExceptionIllegalDataAddress,
		ExceptionIllegalDataValue,
		ExceptionSlaveOrServerFailure,
		ExceptionAcknowledge,
		ExceptionSlaveOrServerBusy,
		ExceptionNegativeAcknowledge,
		ExceptionMemoryParity,
		ExceptionNotDefined,
		ExceptionGatewayPath,
		ExceptionGatewayTarget,
	}
}
