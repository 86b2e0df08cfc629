package modbus

import (
	"errors"
	"fmt"
)

// Kind 錯誤種類，供程式判斷使用 (例如重試策略、指標標籤)
type Kind int

const (
	KindException Kind = iota + 1
	KindIo
	KindInvalidResponse
	KindInvalidData
	KindInvalidFunction
	KindParseCoilError
	KindParseInfoError
)

func (k Kind) String() string {
	switch k {
	case KindException:
		return "Exception"
	case KindIo:
		return "Io"
	case KindInvalidResponse:
		return "InvalidResponse"
	case KindInvalidData:
		return "InvalidData"
	case KindInvalidFunction:
		return "InvalidFunction"
	case KindParseCoilError:
		return "ParseCoilError"
	case KindParseInfoError:
		return "ParseInfoError"
	default:
		return "Unknown"
	}
}

// ReasonCode InvalidData 的原因碼
type ReasonCode int

const (
	ReasonUnexpectedReplySize ReasonCode = iota + 1
	ReasonBytecountNotEven
	ReasonSendBufferEmpty
	ReasonRecvBufferEmpty
	ReasonSendBufferTooBig
	ReasonDecodingError
	ReasonEncodingError
	ReasonInvalidByteorder
	ReasonCustom
)

func (c ReasonCode) String() string {
	switch c {
	case ReasonUnexpectedReplySize:
		return "UnexpectedReplySize"
	case ReasonBytecountNotEven:
		return "BytecountNotEven"
	case ReasonSendBufferEmpty:
		return "SendBufferEmpty"
	case ReasonRecvBufferEmpty:
		return "RecvBufferEmpty"
	case ReasonSendBufferTooBig:
		return "SendBufferTooBig"
	case ReasonDecodingError:
		return "DecodingError"
	case ReasonEncodingError:
		return "EncodingError"
	case ReasonInvalidByteorder:
		return "InvalidByteorder"
	case ReasonCustom:
		return "Custom"
	default:
		return fmt.Sprintf("ReasonCode(%d)", int(c))
	}
}

// Reason 本地資料錯誤的細節，Text 只用於 ReasonCustom
type Reason struct {
	Code ReasonCode
	Text string
}

// NewReason 建立不帶文字的原因
func NewReason(code ReasonCode) Reason {
	return Reason{Code: code}
}

// CustomReason 建立自訂原因
func CustomReason(text string) Reason {
	return Reason{Code: ReasonCustom, Text: text}
}

func (r Reason) String() string {
	if r.Code == ReasonCustom {
		return fmt.Sprintf("Custom(%q)", r.Text)
	}
	return r.Code.String()
}

// Error 統一的 Modbus 錯誤：協議異常、I/O 錯誤與本地資料錯誤
//
// 只有 KindIo 帶有底層 cause；其他種類都是終端錯誤，解碼細節以 Reason 攜帶。
type Error struct {
	kind      Kind
	exception ExceptionCode
	reason    Reason
	err       error
}

// 比對用的哨兵錯誤，errors.Is 依種類比對
var (
	ErrException       = &Error{kind: KindException}
	ErrIO              = &Error{kind: KindIo}
	ErrInvalidResponse = &Error{kind: KindInvalidResponse}
	ErrInvalidData     = &Error{kind: KindInvalidData}
	ErrInvalidFunction = &Error{kind: KindInvalidFunction}
	ErrParseCoil       = &Error{kind: KindParseCoilError}
	ErrParseInfo       = &Error{kind: KindParseInfoError}
)

// NewException 建立協議異常錯誤
func NewException(code ExceptionCode) *Error {
	return &Error{kind: KindException, exception: code}
}

// NewIO 包裝傳輸層錯誤，不做解讀
func NewIO(err error) *Error {
	return &Error{kind: KindIo, err: err}
}

// NewInvalidData 建立本地資料錯誤
func NewInvalidData(reason Reason) *Error {
	return &Error{kind: KindInvalidData, reason: reason}
}

// NewInvalidResponse 建立回應無法對應請求的錯誤
func NewInvalidResponse() *Error {
	return &Error{kind: KindInvalidResponse}
}

// NewInvalidFunction 建立不支援功能碼的錯誤
func NewInvalidFunction() *Error {
	return &Error{kind: KindInvalidFunction}
}

// AsError 在邊界將任意錯誤轉為 *Error：
// nil 返回 nil，錯誤鏈中已有 *Error 則原樣返回，其他一律視為 I/O 錯誤。
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var mbErr *Error
	if errors.As(err, &mbErr) {
		return mbErr
	}
	return NewIO(err)
}

func (e *Error) Error() string {
	switch e.kind {
	case KindException:
		return fmt.Sprintf("modbus exception: %s", e.exception)
	case KindIo:
		if e.err == nil {
			return "i/o error"
		}
		return fmt.Sprintf("i/o error: %s", e.err.Error())
	case KindInvalidResponse:
		return "invalid response"
	case KindInvalidData:
		return fmt.Sprintf("invalid data: %s", e.reason)
	case KindInvalidFunction:
		return "invalid modbus function"
	case KindParseCoilError:
		return "coil could not be parsed"
	case KindParseInfoError:
		return "failed parsing device info as utf8"
	default:
		return "unknown modbus error"
	}
}

// Kind 返回錯誤種類
func (e *Error) Kind() Kind {
	return e.kind
}

// ExceptionCode 返回異常碼，僅 KindException 有效
func (e *Error) ExceptionCode() (ExceptionCode, bool) {
	if e.kind != KindException {
		return 0, false
	}
	return e.exception, true
}

// Reason 返回資料錯誤原因，僅 KindInvalidData 有效
func (e *Error) Reason() (Reason, bool) {
	if e.kind != KindInvalidData {
		return Reason{}, false
	}
	return e.reason, true
}

// Unwrap 僅 KindIo 返回底層錯誤
func (e *Error) Unwrap() error {
	if e.kind != KindIo {
		return nil
	}
	return e.err
}

// Is 依種類比對；target 若帶有異常碼或原因碼則一併比對
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	if t.kind != e.kind {
		return false
	}
	switch t.kind {
	case KindException:
		return t.exception == 0 || t.exception == e.exception
	case KindInvalidData:
		return t.reason.Code == 0 || t.reason.Code == e.reason.Code
	case KindIo:
		return t.err == nil || errors.Is(e.err, t.err)
	default:
		return true
	}
}
