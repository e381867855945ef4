package adv

import (
	"bytes"
	"testing"

	ble "github.com/halseth/bleno-fork"
)

func TestNameAndServices(t *testing.T) {
	long := ble.MustParse("13333333-3333-3333-3333-333333330001")
	for _, tt := range []struct {
		name  string
		uuids []ble.UUID
		adv   []byte
		scan  []byte
	}{
		{
			name: "",
			adv:  []byte{0x02, 0x01, 0x05},
			scan: []byte{},
		},
		{
			name:  "echo",
			uuids: []ble.UUID{ble.UUID16(0x180F), ble.UUID16(0x1337)},
			adv:   []byte{0x02, 0x01, 0x05, 0x05, 0x03, 0x0F, 0x18, 0x37, 0x13},
			scan:  []byte{0x05, 0x08, 'e', 'c', 'h', 'o'},
		},
		{
			name:  "x",
			uuids: []ble.UUID{long, ble.UUID16(0x180F)},
			adv: append([]byte{0x02, 0x01, 0x05, 0x03, 0x03, 0x0F, 0x18, 0x11, 0x06},
				long...),
			scan: []byte{0x02, 0x08, 'x'},
		},
	} {
		adv, scan, err := NameAndServices(tt.name, tt.uuids)
		if err != nil {
			t.Errorf("%q: %s", tt.name, err)
			continue
		}
		if !bytes.Equal(adv, tt.adv) {
			t.Errorf("%q: adv = [% X], want [% X]", tt.name, adv, tt.adv)
		}
		if !bytes.Equal(scan, tt.scan) {
			t.Errorf("%q: scan = [% X], want [% X]", tt.name, scan, tt.scan)
		}
	}
}

func TestNameAndServicesTooLong(t *testing.T) {
	long := ble.MustParse("13333333-3333-3333-3333-333333330001")
	if _, _, err := NameAndServices("x", []ble.UUID{long, long}); err != ble.ErrEIRPacketTooLong {
		t.Errorf("two 128-bit UUIDs: err = %v, want ErrEIRPacketTooLong", err)
	}
	if _, _, err := NameAndServices("a name that is far too long to fit", nil); err != ble.ErrEIRPacketTooLong {
		t.Errorf("long name: err = %v, want ErrEIRPacketTooLong", err)
	}
}

func TestParse(t *testing.T) {
	p := Packet(nil).
		AppendFlags(FlagGeneralDiscoverable|FlagLEOnly).
		AppendCompleteName("gattd").
		AppendManufacturerData(0x004C, []byte{0x02, 0x15}).
		AppendAllUUID(ble.UUID16(0x180F), ble.UUID16(0x180A))

	if f, ok := p.Flags(); !ok || f != 0x06 {
		t.Errorf("Flags() = 0x%02X, %v, want 0x06, true", f, ok)
	}
	if n := p.LocalName(); n != "gattd" {
		t.Errorf("LocalName() = %q, want %q", n, "gattd")
	}
	if md := p.ManufacturerData(); !bytes.Equal(md, []byte{0x4C, 0x00, 0x02, 0x15}) {
		t.Errorf("ManufacturerData() = [% X]", md)
	}
	uu := p.UUIDs()
	if len(uu) != 2 || !uu[0].Equal(ble.UUID16(0x180F)) || !uu[1].Equal(ble.UUID16(0x180A)) {
		t.Errorf("UUIDs() = %v", uu)
	}
	if _, ok := p.TxPower(); ok {
		t.Error("TxPower() found in packet without one")
	}
	if b := Packet([]byte{0x05, 0x09, 'a'}).Field(CompleteName); b != nil {
		t.Errorf("truncated field = %q, want nil", b)
	}
}
