package ble

import (
	"bytes"
	"testing"
)

func TestProperty(t *testing.T) {
	p := CharRead | CharWrite | CharNotify
	if s := p.String(); s != "read|write|notify" {
		t.Errorf("String() = %q", s)
	}
	for _, tt := range []struct {
		s    string
		want Property
	}{
		{"read", CharRead},
		{"WRITE", CharWrite},
		{"writeWithoutResponse", CharWriteNR},
		{"Notify", CharNotify},
	} {
		got, err := ParseProperty(tt.s)
		if err != nil || got != tt.want {
			t.Errorf("ParseProperty(%q) = %v, %v, want %v", tt.s, got, err, tt.want)
		}
	}
	if _, err := ParseProperty("indicate"); err == nil {
		t.Error("ParseProperty(indicate) succeeded")
	}
}

func TestCharacteristicSetters(t *testing.T) {
	c := NewCharacteristic(UUID16(0x2A19))
	v := []byte{100}
	c.SetValue(v)
	v[0] = 0
	if !bytes.Equal(c.Value, []byte{100}) {
		t.Error("SetValue did not copy the value")
	}
	c.HandleWrite(WriteHandlerFunc(func(Request, ResponseWriter) {}))
	c.HandleNotify(NotifyHandlerFunc(func(Request, Notifier) {}))
	if want := CharRead | CharWrite | CharWriteNR | CharNotify; c.Property != want {
		t.Errorf("Property = %s, want %s", c.Property, want)
	}

	defer func() {
		if recover() == nil {
			t.Error("HandleRead on a static characteristic did not panic")
		}
	}()
	c.HandleRead(ReadHandlerFunc(func(Request, ResponseWriter) {}))
}

func TestNewGAPService(t *testing.T) {
	s := NewGAPService("gopher", 0x03C1)
	if !s.UUID.Equal(GAPUUID) || len(s.Characteristics) != 2 {
		t.Fatalf("unexpected GAP service layout")
	}
	name, app := s.Characteristics[0], s.Characteristics[1]
	if !name.UUID.Equal(DeviceNameUUID) || !bytes.Equal(name.Value, []byte("gopher")) || name.Property != CharRead {
		t.Errorf("device name characteristic = %+v", name)
	}
	if !app.UUID.Equal(AppearanceUUID) || !bytes.Equal(app.Value, []byte{0xC1, 0x03}) {
		t.Errorf("appearance characteristic = %+v", app)
	}
}

func TestSecurityLevel(t *testing.T) {
	for _, tt := range []struct {
		s    string
		want SecurityLevel
	}{
		{"low", SecurityNone},
		{"none", SecurityNone},
		{"medium", SecurityMedium},
		{"high", SecurityHigh},
	} {
		got, err := ParseSecurityLevel(tt.s)
		if err != nil || got != tt.want {
			t.Errorf("ParseSecurityLevel(%q) = %v, %v, want %v", tt.s, got, err, tt.want)
		}
	}
	if _, err := ParseSecurityLevel("max"); err == nil {
		t.Error("ParseSecurityLevel(max) succeeded")
	}
	if AttError(0x0A).Error() == "" || ErrAuthentication.Error() == "" {
		t.Error("empty AttError message")
	}
}
