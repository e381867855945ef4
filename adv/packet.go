// Package adv crafts and parses advertising and scan response payloads.
package adv

import (
	ble "github.com/halseth/bleno-fork"
)

// Packet is an advertising or scan response payload: a sequence of
// length, type, data fields.
type Packet []byte

// Field returns the data of the first field of type typ, excluding its
// length and type bytes. It returns nil if there is no such field.
func (p Packet) Field(typ byte) []byte {
	b := p
	for len(b) >= 2 {
		l := int(b[0])
		if l == 0 || len(b) < 1+l {
			return nil
		}
		if b[1] == typ {
			return b[2 : 1+l]
		}
		b = b[1+l:]
	}
	return nil
}

// Flags returns the flags field.
func (p Packet) Flags() (byte, bool) {
	b := p.Field(Flags)
	if len(b) < 1 {
		return 0, false
	}
	return b[0], true
}

// LocalName returns the shortened or complete local name.
func (p Packet) LocalName() string {
	if b := p.Field(ShortName); b != nil {
		return string(b)
	}
	return string(p.Field(CompleteName))
}

// TxPower returns the advertised transmit power in dBm.
func (p Packet) TxPower() (int, bool) {
	b := p.Field(TxPower)
	if len(b) < 1 {
		return 0, false
	}
	return int(int8(b[0])), true
}

// UUIDs returns the advertised service UUIDs, 16-bit ones first.
func (p Packet) UUIDs() []ble.UUID {
	var u []ble.UUID
	for _, f := range []struct {
		typ byte
		w   int
	}{
		{SomeUUID16, 2},
		{AllUUID16, 2},
		{SomeUUID128, 16},
		{AllUUID128, 16},
	} {
		u = uuidList(u, p.Field(f.typ), f.w)
	}
	return u
}

// ManufacturerData returns the manufacturer specific data, including the
// company identifier.
func (p Packet) ManufacturerData() []byte {
	return p.Field(ManufacturerData)
}

// AppendField appends a field to the packet.
func (p Packet) AppendField(typ byte, b []byte) Packet {
	p = append(p, byte(len(b)+1), typ)
	return append(p, b...)
}

// AppendFlags appends a flags field.
func (p Packet) AppendFlags(f byte) Packet {
	return p.AppendField(Flags, []byte{f})
}

// AppendShortName appends a shortened local name field.
func (p Packet) AppendShortName(n string) Packet {
	return p.AppendField(ShortName, []byte(n))
}

// AppendCompleteName appends a complete local name field.
func (p Packet) AppendCompleteName(n string) Packet {
	return p.AppendField(CompleteName, []byte(n))
}

// AppendManufacturerData appends a manufacturer specific data field.
func (p Packet) AppendManufacturerData(id uint16, b []byte) Packet {
	d := append([]byte{uint8(id), uint8(id >> 8)}, b...)
	return p.AppendField(ManufacturerData, d)
}

// AppendAllUUID appends a complete list of service UUIDs. All of uu must
// have the width of the first one.
func (p Packet) AppendAllUUID(uu ...ble.UUID) Packet {
	return p.appendUUIDs(AllUUID16, AllUUID128, uu)
}

// AppendSomeUUID appends an incomplete list of service UUIDs. All of uu
// must have the width of the first one.
func (p Packet) AppendSomeUUID(uu ...ble.UUID) Packet {
	return p.appendUUIDs(SomeUUID16, SomeUUID128, uu)
}

func (p Packet) appendUUIDs(typ16, typ128 byte, uu []ble.UUID) Packet {
	if len(uu) == 0 {
		return p
	}
	typ := typ128
	if uu[0].Len() == 2 {
		typ = typ16
	}
	var b []byte
	for _, u := range uu {
		b = append(b, u...)
	}
	return p.AppendField(typ, b)
}

// Len returns the length of the payload in bytes.
func (p Packet) Len() int {
	return len(p)
}

// NameAndServices returns the payloads advertising a connectable LE-only
// peripheral. The advertising payload carries the flags and the service
// UUIDs, a complete list of the 16-bit ones followed by an incomplete list
// of the 128-bit ones. The scan response carries the shortened name.
// UUIDs of any other width are skipped.
func NameAndServices(name string, uuids []ble.UUID) (Packet, Packet, error) {
	var u16, u128 []ble.UUID
	for _, u := range uuids {
		switch u.Len() {
		case 2:
			u16 = append(u16, u)
		case 16:
			u128 = append(u128, u)
		}
	}
	adv := Packet(nil).
		AppendFlags(FlagLimitedDiscoverable | FlagLEOnly).
		AppendAllUUID(u16...).
		AppendSomeUUID(u128...)

	scan := Packet{}
	if name != "" {
		scan = scan.AppendShortName(name)
	}
	if adv.Len() > MaxEIRPacketLength || scan.Len() > MaxEIRPacketLength {
		return nil, nil, ble.ErrEIRPacketTooLong
	}
	return adv, scan, nil
}

func uuidList(u []ble.UUID, d []byte, w int) []ble.UUID {
	for len(d) >= w {
		u = append(u, ble.UUID(d[:w]))
		d = d[w:]
	}
	return u
}
