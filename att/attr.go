package att

import (
	"encoding/binary"

	ble "github.com/halseth/bleno-fork"
)

type kind int

const (
	kindService kind = iota
	kindInclude
	kindChar
	kindCharValue
	kindDescriptor
)

// attr is a BLE attribute.
type attr struct {
	h    uint16
	endh uint16   // last handle of a service group
	typ  ble.UUID // attribute type reported by Find Information
	kind kind

	uuid ble.UUID // UUID of the service, characteristic or descriptor

	props  ble.Property
	secure ble.Property
	vh     uint16       // characteristic declarations: handle of the value
	incl   *ble.Service // include declarations: the referenced service
	cccd   bool

	v  []byte
	rh ble.ReadHandler
	wh ble.WriteHandler
	c  *ble.Characteristic // owning characteristic of values and descriptors
}

// declValue returns the value of a declaration attribute.
func (a *attr) declValue() []byte {
	switch a.kind {
	case kindService, kindInclude:
		return a.uuid
	case kindChar:
		b := make([]byte, 3, 3+a.uuid.Len())
		b[0] = byte(a.props)
		binary.LittleEndian.PutUint16(b[1:], a.vh)
		return append(b, a.uuid...)
	}
	return nil
}

// startHandle and endHandle return the group span of services and includes.
func (a *attr) startHandle() uint16 {
	if a.kind == kindInclude && a.incl != nil {
		return a.incl.Handle
	}
	return a.h
}

func (a *attr) endHandle() uint16 {
	if a.kind == kindInclude && a.incl != nil {
		return a.incl.EndHandle
	}
	return a.endh
}

// secured reports whether access with property p requires an elevated security level.
func (a *attr) secured(p ble.Property, l ble.SecurityLevel) bool {
	return a.secure&p != 0 && l < ble.SecurityMedium
}
