package att

import (
	"fmt"
	"sync"

	log "github.com/mgutz/logxi/v1"

	ble "github.com/halseth/bleno-fork"
)

var logger = log.New("att")

const cccdProps = ble.CharRead | ble.CharWriteNR | ble.CharWrite

// A DB is a contiguous range of attributes.
type DB struct {
	mu    sync.RWMutex // guards values cached from peer writes
	attrs []*attr
	base  uint16 // handle for first attr in attrs
}

// NewDB allocates handles to ss, starting from base, and returns the
// resulting attribute table. The handles are also recorded in ss.
func NewDB(ss []*ble.Service, base uint16) *DB {
	h := base
	var attrs []*attr
	var aa []*attr
	for _, s := range ss {
		h, aa = genSvcAttr(s, h)
		attrs = append(attrs, aa...)
	}
	for _, a := range attrs {
		if a.kind == kindInclude && a.incl.Handle == 0 {
			logger.Warn("included service is not part of the database", "uuid", a.uuid)
		}
	}
	db := &DB{attrs: attrs, base: base}
	db.DumpAttributes()
	return db
}

// Build returns the attribute table of a peripheral named name:
// the generic access service followed by ss, starting at handle 1.
func Build(name string, appearance uint16, ss []*ble.Service) *DB {
	all := append([]*ble.Service{ble.NewGAPService(name, appearance)}, ss...)
	return NewDB(all, 1)
}

func genSvcAttr(s *ble.Service, h uint16) (uint16, []*attr) {
	a := &attr{
		h:    h,
		typ:  ble.PrimaryServiceUUID,
		kind: kindService,
		uuid: s.UUID,
	}
	s.Handle = h
	h++
	attrs := []*attr{a}
	var aa []*attr

	for _, inc := range s.Includes {
		attrs = append(attrs, &attr{
			h:    h,
			typ:  ble.IncludeUUID,
			kind: kindInclude,
			uuid: inc.UUID,
			incl: inc,
		})
		h++
	}

	for _, c := range s.Characteristics {
		h, aa = genCharAttr(c, h)
		attrs = append(attrs, aa...)
	}

	a.endh = h - 1
	s.EndHandle = a.endh
	return h, attrs
}

func genCharAttr(c *ble.Characteristic, h uint16) (uint16, []*attr) {
	vh := h + 1

	a := &attr{
		h:      h,
		typ:    ble.CharacteristicUUID,
		kind:   kindChar,
		uuid:   c.UUID,
		props:  c.Property,
		secure: c.Secure,
		vh:     vh,
		c:      c,
	}

	va := &attr{
		h:      vh,
		typ:    c.UUID,
		kind:   kindCharValue,
		uuid:   c.UUID,
		props:  c.Property,
		secure: c.Secure,
		v:      initialValue(c.Value, c.Property, c.ReadHandler, c.WriteHandler),
		rh:     c.ReadHandler,
		wh:     c.WriteHandler,
		c:      c,
	}

	c.Handle = h
	c.ValueHandle = vh
	h += 2

	attrs := []*attr{a, va}
	c.CCCD = nil
	if c.Property&ble.CharNotify != 0 {
		var secure ble.Property
		if c.Secure&ble.CharNotify != 0 {
			secure = cccdProps
		}
		c.CCCD = &ble.Descriptor{
			UUID:     ble.ClientCharacteristicConfigUUID,
			Property: cccdProps,
			Secure:   secure,
			Handle:   h,
		}
		attrs = append(attrs, &attr{
			h:      h,
			typ:    ble.ClientCharacteristicConfigUUID,
			kind:   kindDescriptor,
			uuid:   ble.ClientCharacteristicConfigUUID,
			props:  cccdProps,
			secure: secure,
			cccd:   true,
			c:      c,
		})
		h++
	}

	for _, d := range c.Descriptors {
		d.Handle = h
		attrs = append(attrs, genDescAttr(c, d, h))
		h++
	}

	c.EndHandle = h - 1
	return h, attrs
}

func genDescAttr(c *ble.Characteristic, d *ble.Descriptor, h uint16) *attr {
	return &attr{
		h:     h,
		typ:   d.UUID,
		kind:  kindDescriptor,
		uuid:  d.UUID,
		props: ble.CharRead,
		v:     initialValue(d.Value, ble.CharRead, d.ReadHandler, nil),
		rh:    d.ReadHandler,
		c:     c,
	}
}

// initialValue copies the static value of an attribute. Writable attributes
// without a handler cache what the peer writes, so they start out empty.
func initialValue(v []byte, p ble.Property, rh ble.ReadHandler, wh ble.WriteHandler) []byte {
	if v == nil {
		if rh == nil && wh == nil && p&(ble.CharWrite|ble.CharWriteNR) != 0 {
			return []byte{}
		}
		return nil
	}
	b := make([]byte, len(v))
	copy(b, v)
	return b
}

// at returns the attribute with handle h.
func (r *DB) at(h uint16) (*attr, bool) {
	if h < r.base || int(h) >= int(r.base)+len(r.attrs) {
		return nil, false
	}
	return r.attrs[h-r.base], true
}

// scan returns the attributes in [start, end], stopping at the first
// handle that is not assigned. It may return an empty slice.
func (r *DB) scan(start, end uint16) []*attr {
	if start < r.base || start > end {
		return nil
	}
	i := int(start - r.base)
	if i >= len(r.attrs) {
		return nil
	}
	j := int(end-r.base) + 1
	if j > len(r.attrs) {
		j = len(r.attrs)
	}
	return r.attrs[i:j]
}

func (r *DB) value(a *attr) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return a.v
}

func (r *DB) setValue(a *attr, v []byte) {
	b := make([]byte, len(v))
	copy(b, v)
	r.mu.Lock()
	a.v = b
	r.mu.Unlock()
}

// Len returns the number of attributes.
func (r *DB) Len() int { return len(r.attrs) }

// Attribute is a snapshot of one row of the attribute table.
type Attribute struct {
	Handle    uint16
	EndHandle uint16
	Type      ble.UUID
	Property  ble.Property
	Secure    ble.Property
	Value     []byte
}

// Attributes returns a snapshot of the attribute table.
func (r *DB) Attributes() []Attribute {
	aa := make([]Attribute, 0, len(r.attrs))
	for _, a := range r.attrs {
		v := a.declValue()
		if v == nil {
			v = r.value(a)
		}
		aa = append(aa, Attribute{
			Handle:    a.h,
			EndHandle: a.endHandle(),
			Type:      a.typ,
			Property:  a.props,
			Secure:    a.secure,
			Value:     v,
		})
	}
	return aa
}

// DumpAttributes logs the attribute table.
func (r *DB) DumpAttributes() {
	if !logger.IsDebug() {
		return
	}
	for _, a := range r.Attributes() {
		logger.Debug("attr",
			"handle", fmt.Sprintf("0x%04X", a.Handle),
			"end", fmt.Sprintf("0x%04X", a.EndHandle),
			"type", a.Type.String(),
			"value", fmt.Sprintf("[ % X ]", a.Value))
	}
}
