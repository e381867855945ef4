package att

import "encoding/binary"

// ATT opcodes [Vol 3, Part F, 3.4.8].
const (
	ErrorResponseCode           = 0x01
	ExchangeMTURequestCode      = 0x02
	ExchangeMTUResponseCode     = 0x03
	FindInformationRequestCode  = 0x04
	FindInformationResponseCode = 0x05
	FindByTypeValueRequestCode  = 0x06
	FindByTypeValueResponseCode = 0x07
	ReadByTypeRequestCode       = 0x08
	ReadByTypeResponseCode      = 0x09
	ReadRequestCode             = 0x0A
	ReadResponseCode            = 0x0B
	ReadBlobRequestCode         = 0x0C
	ReadBlobResponseCode        = 0x0D
	ReadMultipleRequestCode     = 0x0E
	ReadByGroupTypeRequestCode  = 0x10
	ReadByGroupTypeResponseCode = 0x11
	WriteRequestCode            = 0x12
	WriteResponseCode           = 0x13
	PrepareWriteRequestCode     = 0x16
	ExecuteWriteRequestCode     = 0x18
	HandleValueNotificationCode = 0x1B
	WriteCommandCode            = 0x52
	SignedWriteCommandCode      = 0xD2
)

// ErrorResponse implements Error Response (0x01) [Vol 3, Part F, 3.4.1.1].
type ErrorResponse []byte

func (r ErrorResponse) SetAttributeOpcode()             { r[0] = ErrorResponseCode }
func (r ErrorResponse) RequestOpcodeInError() uint8     { return r[1] }
func (r ErrorResponse) SetRequestOpcodeInError(v uint8) { r[1] = v }
func (r ErrorResponse) AttributeInError() uint16        { return binary.LittleEndian.Uint16(r[2:]) }
func (r ErrorResponse) SetAttributeInError(v uint16)    { binary.LittleEndian.PutUint16(r[2:], v) }
func (r ErrorResponse) ErrorCode() uint8                { return r[4] }
func (r ErrorResponse) SetErrorCode(v uint8)            { r[4] = v }

// ExchangeMTURequest implements Exchange MTU Request (0x02).
type ExchangeMTURequest []byte

func (r ExchangeMTURequest) ClientRxMTU() uint16 { return binary.LittleEndian.Uint16(r[1:]) }

// handleRange is shared by the requests that start with a handle range:
// Find Information, Find By Type Value, Read By Type and Read By Group Type.
type handleRange []byte

func (r handleRange) StartingHandle() uint16 { return binary.LittleEndian.Uint16(r[1:]) }
func (r handleRange) EndingHandle() uint16   { return binary.LittleEndian.Uint16(r[3:]) }

// FindInformationRequest implements Find Information Request (0x04).
type FindInformationRequest struct{ handleRange }

// FindByTypeValueRequest implements Find By Type Value Request (0x06).
type FindByTypeValueRequest struct{ handleRange }

// AttributeType returns the 16-bit attribute type being searched.
func (r FindByTypeValueRequest) AttributeType() uint16 {
	return binary.LittleEndian.Uint16(r.handleRange[5:])
}

// AttributeValue returns the value the attribute must match.
func (r FindByTypeValueRequest) AttributeValue() []byte { return r.handleRange[7:] }

// ReadByTypeRequest implements Read By Type Request (0x08).
type ReadByTypeRequest struct{ handleRange }

// AttributeType returns the 2 or 16 byte attribute type.
func (r ReadByTypeRequest) AttributeType() []byte { return r.handleRange[5:] }

// ReadByGroupTypeRequest implements Read By Group Type Request (0x10).
type ReadByGroupTypeRequest struct{ handleRange }

// AttributeGroupType returns the 2 or 16 byte grouping type.
func (r ReadByGroupTypeRequest) AttributeGroupType() []byte { return r.handleRange[5:] }

// ReadRequest implements Read Request (0x0A).
type ReadRequest []byte

func (r ReadRequest) AttributeHandle() uint16 { return binary.LittleEndian.Uint16(r[1:]) }

// ReadBlobRequest implements Read Blob Request (0x0C).
type ReadBlobRequest []byte

func (r ReadBlobRequest) AttributeHandle() uint16 { return binary.LittleEndian.Uint16(r[1:]) }
func (r ReadBlobRequest) ValueOffset() uint16     { return binary.LittleEndian.Uint16(r[3:]) }

// WriteRequest implements Write Request (0x12) and Write Command (0x52),
// which share the same layout.
type WriteRequest []byte

func (r WriteRequest) AttributeOpcode() uint8  { return r[0] }
func (r WriteRequest) AttributeHandle() uint16 { return binary.LittleEndian.Uint16(r[1:]) }
func (r WriteRequest) AttributeValue() []byte  { return r[3:] }

// HandleValueNotification implements Handle Value Notification (0x1B).
type HandleValueNotification []byte

func (r HandleValueNotification) SetAttributeOpcode()         { r[0] = HandleValueNotificationCode }
func (r HandleValueNotification) SetAttributeHandle(v uint16) { binary.LittleEndian.PutUint16(r[1:], v) }
func (r HandleValueNotification) AttributeValue() []byte      { return r[3:] }
