package modbus

// Coil 線圈狀態，零值為 CoilOff
type Coil uint8

const (
	CoilOff Coil = iota
	CoilOn
)

// 線圈在 FC 05 請求中的線路碼
const (
	coilCodeOn  uint16 = 0xFF00
	coilCodeOff uint16 = 0x0000
)

// CoilFromBool true 為 On，false 為 Off
func CoilFromBool(b bool) Coil {
	if b {
		return CoilOn
	}
	return CoilOff
}

// ParseCoil 解析 "On" 或 "Off"，大小寫與空白皆需完全相符
func ParseCoil(s string) (Coil, error) {
	switch s {
	case "On":
		return CoilOn, nil
	case "Off":
		return CoilOff, nil
	default:
		return CoilOff, &Error{kind: KindParseCoilError}
	}
}

// CoilFromCode 將線路碼轉為線圈狀態，0xFF00 與 0x0000 以外視為解碼錯誤
func CoilFromCode(code uint16) (Coil, error) {
	switch code {
	case coilCodeOn:
		return CoilOn, nil
	case coilCodeOff:
		return CoilOff, nil
	default:
		return CoilOff, NewInvalidData(NewReason(ReasonDecodingError))
	}
}

// Not 返回相反狀態
func (c Coil) Not() Coil {
	if c == CoilOn {
		return CoilOff
	}
	return CoilOn
}

// Bool On 為 true
func (c Coil) Bool() bool {
	return c == CoilOn
}

// Code 返回線路碼：On 為 0xFF00，Off 為 0x0000
func (c Coil) Code() uint16 {
	if c == CoilOn {
		return coilCodeOn
	}
	return coilCodeOff
}

func (c Coil) String() string {
	if c == CoilOn {
		return "On"
	}
	return "Off"
}

// MarshalText 實作 encoding.TextMarshaler
func (c Coil) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText 實作 encoding.TextUnmarshaler，規則同 ParseCoil
func (c *Coil) UnmarshalText(text []byte) error {
	parsed, err := ParseCoil(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
