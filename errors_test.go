package modbus

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Exception(t *testing.T) {
	err := NewException(ExceptionIllegalDataAddress)

	assert.Contains(t, err.Error(), "IllegalDataAddress")
	assert.Equal(t, "modbus exception: IllegalDataAddress", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, KindException, err.Kind())

	code, ok := err.ExceptionCode()
	require.True(t, ok)
	assert.Equal(t, ExceptionIllegalDataAddress, code)

	_, ok = err.Reason()
	assert.False(t, ok)
}

func TestError_IO(t *testing.T) {
	err := NewIO(io.ErrUnexpectedEOF)

	assert.Equal(t, "i/o error: unexpected EOF", err.Error())
	assert.Equal(t, io.ErrUnexpectedEOF, err.Unwrap())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrInvalidData)
}

func TestError_Rendering(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"invalid response", NewInvalidResponse(), "invalid response"},
		{"invalid function", NewInvalidFunction(), "invalid modbus function"},
		{"bytecount", NewInvalidData(NewReason(ReasonBytecountNotEven)), "invalid data: BytecountNotEven"},
		{"reply size", NewInvalidData(NewReason(ReasonUnexpectedReplySize)), "invalid data: UnexpectedReplySize"},
		{"custom", NewInvalidData(CustomReason("quantity out of range")), `invalid data: Custom("quantity out of range")`},
		{"parse coil", ErrParseCoil, "coil could not be parsed"},
		{"parse info", ErrParseInfo, "failed parsing device info as utf8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.Nil(t, tt.err.Unwrap())
		})
	}
}

func TestError_Is(t *testing.T) {
	busy := NewException(ExceptionSlaveOrServerBusy)
	assert.ErrorIs(t, busy, ErrException)
	assert.ErrorIs(t, busy, NewException(ExceptionSlaveOrServerBusy))
	assert.NotErrorIs(t, busy, NewException(ExceptionIllegalFunction))

	odd := NewInvalidData(NewReason(ReasonBytecountNotEven))
	assert.ErrorIs(t, odd, ErrInvalidData)
	assert.ErrorIs(t, odd, NewInvalidData(NewReason(ReasonBytecountNotEven)))
	assert.NotErrorIs(t, odd, NewInvalidData(NewReason(ReasonRecvBufferEmpty)))

	wrapped := fmt.Errorf("讀取失敗: %w", odd)
	assert.ErrorIs(t, wrapped, ErrInvalidData)
	assert.NotErrorIs(t, wrapped, ErrException)
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	orig := NewInvalidResponse()
	assert.Same(t, orig, AsError(orig))
	assert.Same(t, orig, AsError(fmt.Errorf("wrap: %w", orig)))

	plain := errors.New("connection reset")
	converted := AsError(plain)
	require.NotNil(t, converted)
	assert.Equal(t, KindIo, converted.Kind())
	assert.Equal(t, plain, converted.Unwrap())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Exception", KindException.String())
	assert.Equal(t, "Io", KindIo.String())
	assert.Equal(t, "InvalidResponse", KindInvalidResponse.String())
	assert.Equal(t, "InvalidData", KindInvalidData.String())
	assert.Equal(t, "InvalidFunction", KindInvalidFunction.String())
	assert.Equal(t, "ParseCoilError", KindParseCoilError.String())
	assert.Equal(t, "ParseInfoError", KindParseInfoError.String())
}
