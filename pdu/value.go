package pdu

import (
	"math"
	"strings"

	modbus "modbus-master"
)

// DataType 暫存器資料類型
type DataType int

const (
	DataTypeUint16 DataType = iota
	DataTypeInt16
	DataTypeUint32
	DataTypeInt32
	DataTypeFloat32
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeUint16:
		return "uint16"
	case DataTypeInt16:
		return "int16"
	case DataTypeUint32:
		return "uint32"
	case DataTypeInt32:
		return "int32"
	case DataTypeFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// RegisterCount 返回該資料類型佔用的暫存器數量
func (dt DataType) RegisterCount() int {
	switch dt {
	case DataTypeUint32, DataTypeInt32, DataTypeFloat32:
		return 2
	default:
		return 1
	}
}

// ParseDataType 解析資料類型名稱
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "", "uint16":
		return DataTypeUint16, nil
	case "int16":
		return DataTypeInt16, nil
	case "uint32":
		return DataTypeUint32, nil
	case "int32":
		return DataTypeInt32, nil
	case "float32":
		return DataTypeFloat32, nil
	default:
		return 0, rangeError("unknown data type %q", s)
	}
}

// WordOrder 32 位元值在兩個暫存器中的排列
type WordOrder int

const (
	// WordOrderBigEndian 高位字在前 (ABCD)
	WordOrderBigEndian WordOrder = iota
	// WordOrderLittleEndian 低位字在前 (CDAB)
	WordOrderLittleEndian
)

// ParseWordOrder 解析 "abcd" 或 "cdab"，其他值為 InvalidData(InvalidByteorder)
func ParseWordOrder(s string) (WordOrder, error) {
	switch strings.ToLower(s) {
	case "", "abcd", "big":
		return WordOrderBigEndian, nil
	case "cdab", "little":
		return WordOrderLittleEndian, nil
	default:
		return 0, invalidData(modbus.ReasonInvalidByteorder)
	}
}

func (o WordOrder) String() string {
	if o == WordOrderLittleEndian {
		return "cdab"
	}
	return "abcd"
}

// DecodeValues 將暫存器轉為工程值，整數類型除以 scale (scale 為 0 視為 1)，float32 不縮放
func DecodeValues(registers []uint16, dt DataType, order WordOrder, scale float64) ([]float64, error) {
	n := dt.RegisterCount()
	if len(registers)%n != 0 {
		return nil, invalidData(modbus.ReasonUnexpectedReplySize)
	}
	if order != WordOrderBigEndian && order != WordOrderLittleEndian {
		return nil, invalidData(modbus.ReasonInvalidByteorder)
	}
	if scale == 0 {
		scale = 1
	}

	values := make([]float64, 0, len(registers)/n)
	for i := 0; i < len(registers); i += n {
		var raw float64
		switch dt {
		case DataTypeUint16:
			raw = float64(registers[i])
		case DataTypeInt16:
			raw = float64(int16(registers[i]))
		case DataTypeUint32:
			raw = float64(join32(registers[i], registers[i+1], order))
		case DataTypeInt32:
			raw = float64(int32(join32(registers[i], registers[i+1], order)))
		case DataTypeFloat32:
			values = append(values, float64(math.Float32frombits(join32(registers[i], registers[i+1], order))))
			continue
		default:
			return nil, invalidData(modbus.ReasonDecodingError)
		}
		values = append(values, raw/scale)
	}
	return values, nil
}

// EncodeValue 將工程值轉為暫存器，整數類型乘以 scale，float32 不縮放
func EncodeValue(value float64, dt DataType, order WordOrder, scale float64) ([]uint16, error) {
	if order != WordOrderBigEndian && order != WordOrderLittleEndian {
		return nil, invalidData(modbus.ReasonInvalidByteorder)
	}
	if scale == 0 {
		scale = 1
	}
	scaled := math.Round(value * scale)

	switch dt {
	case DataTypeUint16:
		if scaled < 0 || scaled > math.MaxUint16 {
			return nil, rangeError("value %v out of uint16 range", value)
		}
		return []uint16{uint16(scaled)}, nil
	case DataTypeInt16:
		if scaled < math.MinInt16 || scaled > math.MaxInt16 {
			return nil, rangeError("value %v out of int16 range", value)
		}
		return []uint16{uint16(int16(scaled))}, nil
	case DataTypeUint32:
		if scaled < 0 || scaled > math.MaxUint32 {
			return nil, rangeError("value %v out of uint32 range", value)
		}
		return split32(uint32(scaled), order), nil
	case DataTypeInt32:
		if scaled < math.MinInt32 || scaled > math.MaxInt32 {
			return nil, rangeError("value %v out of int32 range", value)
		}
		return split32(uint32(int32(scaled)), order), nil
	case DataTypeFloat32:
		return split32(math.Float32bits(float32(value)), order), nil
	default:
		return nil, invalidData(modbus.ReasonEncodingError)
	}
}

func join32(first, second uint16, order WordOrder) uint32 {
	if order == WordOrderLittleEndian {
		first, second = second, first
	}
	return uint32(first)<<16 | uint32(second)
}

func split32(v uint32, order WordOrder) []uint16 {
	high, low := uint16(v>>16), uint16(v)
	if order == WordOrderLittleEndian {
		return []uint16{low, high}
	}
	return []uint16{high, low}
}
