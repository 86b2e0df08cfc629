//go:build !nomei

package modbus

import (
	"fmt"
	"unicode/utf8"
)

// DeviceInfoCategory 設備識別物件的標準符合等級
type DeviceInfoCategory uint8

const (
	// DeviceInfoBasic 標準必備欄位 (0x00-0x02)
	DeviceInfoBasic DeviceInfoCategory = iota
	// DeviceInfoRegular 標準定義但可選 (0x03-0x7F)
	DeviceInfoRegular
	// DeviceInfoExtended 設備自訂欄位 (0x80-0xFF)
	DeviceInfoExtended
)

func (c DeviceInfoCategory) String() string {
	switch c {
	case DeviceInfoBasic:
		return "Basic"
	case DeviceInfoRegular:
		return "Regular"
	case DeviceInfoExtended:
		return "Extended"
	default:
		return fmt.Sprintf("DeviceInfoCategory(%d)", uint8(c))
	}
}

// 標準定義的設備識別物件 ID
const (
	ObjectVendorName          uint8 = 0x00
	ObjectProductCode         uint8 = 0x01
	ObjectMajorMinorRevision  uint8 = 0x02
	ObjectVendorURL           uint8 = 0x03
	ObjectProductName         uint8 = 0x04
	ObjectModelName           uint8 = 0x05
	ObjectUserApplicationName uint8 = 0x06
)

// CategoryOf 依物件 ID 判斷類別
func CategoryOf(id uint8) DeviceInfoCategory {
	switch {
	case id <= ObjectMajorMinorRevision:
		return DeviceInfoBasic
	case id < 0x80:
		return DeviceInfoRegular
	default:
		return DeviceInfoExtended
	}
}

// DeviceInfoObject 單一設備識別物件
type DeviceInfoObject struct {
	id    uint8
	value string
}

// NewDeviceInfoObject 由線路位元組建立物件，內容必須是合法 UTF-8
func NewDeviceInfoObject(id uint8, raw []byte) (DeviceInfoObject, error) {
	if !utf8.Valid(raw) {
		return DeviceInfoObject{}, &Error{kind: KindParseInfoError}
	}
	return DeviceInfoObject{id: id, value: string(raw)}, nil
}

// ID 返回物件 ID
func (o DeviceInfoObject) ID() uint8 {
	return o.id
}

// String 返回物件內容
func (o DeviceInfoObject) String() string {
	return o.value
}

// Category 返回物件類別
func (o DeviceInfoObject) Category() DeviceInfoCategory {
	return CategoryOf(o.id)
}

// Name 返回標準物件名稱，保留與自訂範圍分別為 "Reserved" 與 "DeviceSpecific"
func (o DeviceInfoObject) Name() string {
	switch o.id {
	case ObjectVendorName:
		return "VendorName"
	case ObjectProductCode:
		return "ProductCode"
	case ObjectMajorMinorRevision:
		return "MajorMinorRevision"
	case ObjectVendorURL:
		return "VendorUrl"
	case ObjectProductName:
		return "ProductName"
	case ObjectModelName:
		return "ModelName"
	case ObjectUserApplicationName:
		return "UserApplicationName"
	}
	if o.id < 0x80 {
		return "Reserved"
	}
	return "DeviceSpecific"
}
