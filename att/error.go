package att

import (
	"errors"

	ble "github.com/halseth/bleno-fork"
)

// ErrNotifyDisabled is returned when a notification is sent for a
// characteristic the peer has not subscribed to.
var ErrNotifyDisabled = errors.New("notifications not enabled")

// ErrClosed is returned when sending on a connection that has been torn down.
var ErrClosed = errors.New("connection closed")

// NewErrorResponse returns the Error Response for request op on handle h.
func NewErrorResponse(op byte, h uint16, s ble.AttError) []byte {
	r := ErrorResponse(make([]byte, 5))
	r.SetAttributeOpcode()
	r.SetRequestOpcodeInError(op)
	r.SetAttributeInError(h)
	r.SetErrorCode(uint8(s))
	return r
}
