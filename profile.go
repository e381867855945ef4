package ble

import (
	"strings"

	"github.com/pkg/errors"
)

// NewService creates and initialize a new Service using u as it's UUID.
func NewService(u UUID) *Service {
	return &Service{UUID: u}
}

// NewDescriptor creates and returns a Descriptor.
func NewDescriptor(u UUID) *Descriptor {
	return &Descriptor{UUID: u}
}

// NewCharacteristic creates and returns a Characteristic.
func NewCharacteristic(u UUID) *Characteristic {
	return &Characteristic{UUID: u}
}

// Property is a set of characteristic properties.
type Property int

// Characteristic property flags [Vol 3, Part G, 3.3.1.1].
const (
	CharRead    Property = 0x02 // may be read
	CharWriteNR Property = 0x04 // may be written to, with no reply
	CharWrite   Property = 0x08 // may be written to, with a reply
	CharNotify  Property = 0x10 // supports notifications
)

var propNames = []struct {
	p    Property
	name string
}{
	{CharRead, "read"},
	{CharWriteNR, "writeWithoutResponse"},
	{CharWrite, "write"},
	{CharNotify, "notify"},
}

func (p Property) String() string {
	var s []string
	for _, n := range propNames {
		if p&n.p != 0 {
			s = append(s, n.name)
		}
	}
	return strings.Join(s, "|")
}

// ParseProperty returns the property named s. Names are case insensitive.
func ParseProperty(s string) (Property, error) {
	for _, n := range propNames {
		if strings.EqualFold(n.name, s) {
			return n.p, nil
		}
	}
	return 0, errors.Errorf("unknown property %q", s)
}

// A Service is a BLE service.
type Service struct {
	UUID            UUID
	Characteristics []*Characteristic
	Includes        []*Service

	Handle    uint16
	EndHandle uint16
}

// AddCharacteristic adds a characteristic to a service.
func (s *Service) AddCharacteristic(c *Characteristic) *Characteristic {
	s.Characteristics = append(s.Characteristics, c)
	return c
}

// NewCharacteristic adds a characteristic to a service.
func (s *Service) NewCharacteristic(u UUID) *Characteristic {
	return s.AddCharacteristic(&Characteristic{UUID: u})
}

// IncludeService references svc from s with an include declaration.
// svc must be part of the same server.
func (s *Service) IncludeService(svc *Service) {
	s.Includes = append(s.Includes, svc)
}

// A Characteristic is a BLE characteristic.
type Characteristic struct {
	UUID        UUID
	Property    Property
	Secure      Property
	Descriptors []*Descriptor

	// CCCD is generated when the attribute database is built,
	// if the characteristic supports notifications.
	CCCD *Descriptor

	Value []byte

	ReadHandler   ReadHandler
	WriteHandler  WriteHandler
	NotifyHandler NotifyHandler

	Handle      uint16
	ValueHandle uint16
	EndHandle   uint16
}

// AddDescriptor adds a descriptor to a characteristic.
func (c *Characteristic) AddDescriptor(d *Descriptor) *Descriptor {
	c.Descriptors = append(c.Descriptors, d)
	return d
}

// NewDescriptor adds a descriptor to a characteristic.
func (c *Characteristic) NewDescriptor(u UUID) *Descriptor {
	return c.AddDescriptor(&Descriptor{UUID: u})
}

// SetValue makes the characteristic support read requests, and returns a static value.
// SetValue must be called before the containing service is added to a server.
// SetValue panics if the characteristic has been configured with a ReadHandler.
func (c *Characteristic) SetValue(b []byte) {
	if c.ReadHandler != nil {
		panic("characteristic has been configured with a read handler")
	}
	c.Property |= CharRead
	c.Value = make([]byte, len(b))
	copy(c.Value, b)
}

// SetSecure marks the properties in p as requiring at least SecurityMedium.
func (c *Characteristic) SetSecure(p Property) {
	c.Secure |= p
}

// HandleRead makes the characteristic support read requests, and routes read requests to h.
// HandleRead must be called before the containing service is added to a server.
// HandleRead panics if the characteristic has been configured with a static value.
func (c *Characteristic) HandleRead(h ReadHandler) {
	if c.Value != nil {
		panic("characteristic has been configured with a static value")
	}
	c.Property |= CharRead
	c.ReadHandler = h
}

// HandleWrite makes the characteristic support write and write-no-response requests, and routes write requests to h.
// HandleWrite must be called before the containing service is added to a server.
func (c *Characteristic) HandleWrite(h WriteHandler) {
	c.Property |= CharWrite | CharWriteNR
	c.WriteHandler = h
}

// HandleNotify makes the characteristic support notifications, and starts h on every subscription.
// HandleNotify must be called before the containing service is added to a server.
func (c *Characteristic) HandleNotify(h NotifyHandler) {
	c.Property |= CharNotify
	c.NotifyHandler = h
}

// Descriptor is a BLE descriptor. Descriptors other than the generated
// CCCD are read-only.
type Descriptor struct {
	UUID     UUID
	Property Property
	Secure   Property

	Handle uint16
	Value  []byte

	ReadHandler ReadHandler
}

// SetValue makes the descriptor support read requests, and returns a static value.
// SetValue panics if the descriptor has already configured with a ReadHandler.
func (d *Descriptor) SetValue(b []byte) {
	if d.ReadHandler != nil {
		panic("descriptor has been configured with a read handler")
	}
	d.Property |= CharRead
	d.Value = make([]byte, len(b))
	copy(d.Value, b)
}

// HandleRead makes the descriptor support read requests, and routes read requests to h.
// HandleRead panics if the descriptor has been configured with a static value.
func (d *Descriptor) HandleRead(h ReadHandler) {
	if d.Value != nil {
		panic("descriptor has been configured with a static value")
	}
	d.Property |= CharRead
	d.ReadHandler = h
}
