package gatt

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/context"

	ble "github.com/halseth/bleno-fork"
	"github.com/halseth/bleno-fork/transport"
)

type fakeLink struct {
	events chan transport.Event
	sent   chan []byte
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		events: make(chan transport.Event),
		sent:   make(chan []byte, 16),
	}
}

func (l *fakeLink) Events() <-chan transport.Event { return l.events }
func (l *fakeLink) Err() error                     { return nil }

func (l *fakeLink) Send(pdu []byte) error {
	l.sent <- append([]byte(nil), pdu...)
	return nil
}

func (l *fakeLink) data(b ...byte) {
	l.events <- transport.Event{Type: transport.Data, Data: b}
}

func (l *fakeLink) expect(t *testing.T, want []byte) {
	select {
	case got := <-l.sent:
		if !bytes.Equal(got, want) {
			t.Errorf("sent [% X], want [% X]", got, want)
		}
	case <-time.After(time.Second):
		t.Errorf("timed out waiting for [% X]", want)
	}
}

func (l *fakeLink) expectNothing(t *testing.T) {
	select {
	case got := <-l.sent:
		t.Errorf("unexpected pdu [% X]", got)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeAdvertiser struct {
	mu    sync.Mutex
	calls []string
}

func (a *fakeAdvertiser) Advertise(adv, scanRsp []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "adv")
	return nil
}

func (a *fakeAdvertiser) StopAdvertising() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "stop")
	return nil
}

func (a *fakeAdvertiser) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var s string
	for _, c := range a.calls {
		s += c + " "
	}
	return s
}

// secureService lays out 6-8: service 0x1337, characteristic 0x1338 whose
// read requires an encrypted link.
func secureService() *ble.Service {
	svc := ble.NewService(ble.UUID16(0x1337))
	c := svc.NewCharacteristic(ble.UUID16(0x1338))
	c.SetValue([]byte("secret"))
	c.SetSecure(ble.CharRead)
	return svc
}

func serve(t *testing.T, s *Server) (*fakeLink, func()) {
	l := newFakeLink()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()
	return l, func() {
		cancel()
		if err := <-done; err != context.Canceled {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	}
}

func TestServeRequests(t *testing.T) {
	s, err := NewServer("gattd")
	if err != nil {
		t.Fatal(err)
	}
	s.AddService(secureService())
	l, stop := serve(t, s)
	defer stop()

	// Data before any accept has nowhere to go.
	l.data(0x0A, 0x03, 0x00)
	l.expectNothing(t)

	l.events <- transport.Event{Type: transport.Accept, Addr: ble.NewAddr("11:22:33:44:55:66")}
	l.data(0x0A, 0x03, 0x00)
	l.expect(t, append([]byte{0x0B}, "gattd"...))
	l.data(0x02, 0x00, 0x01)
	l.expect(t, []byte{0x03, 0x00, 0x01})
}

func TestServeSecurityInOrder(t *testing.T) {
	s, _ := NewServer("gattd")
	s.AddService(secureService())
	l, stop := serve(t, s)
	defer stop()

	l.events <- transport.Event{Type: transport.Accept, Addr: ble.NewAddr("11:22:33:44:55:66")}
	l.data(0x0A, 0x08, 0x00)
	l.events <- transport.Event{Type: transport.Security, Security: ble.SecurityMedium}
	l.data(0x0A, 0x08, 0x00)

	l.expect(t, []byte{0x01, 0x0A, 0x08, 0x00, byte(ble.ErrAuthentication)})
	l.expect(t, append([]byte{0x0B}, "secret"...))
}

func TestServeAcceptResetsConnection(t *testing.T) {
	s, _ := NewServer("gattd")
	s.AddService(secureService())
	l, stop := serve(t, s)
	defer stop()

	l.events <- transport.Event{Type: transport.Accept, Addr: ble.NewAddr("11:22:33:44:55:66")}
	l.events <- transport.Event{Type: transport.Security, Security: ble.SecurityHigh}
	l.data(0x02, 0x00, 0x01)
	l.expect(t, []byte{0x03, 0x00, 0x01})

	l.events <- transport.Event{Type: transport.Disconnect, Addr: ble.NewAddr("11:22:33:44:55:66")}
	l.data(0x0A, 0x08, 0x00)
	l.expectNothing(t)

	// A new connection starts at the default MTU and without security.
	l.events <- transport.Event{Type: transport.Accept, Addr: ble.NewAddr("66:55:44:33:22:11")}
	l.data(0x0A, 0x08, 0x00)
	l.expect(t, []byte{0x01, 0x0A, 0x08, 0x00, byte(ble.ErrAuthentication)})

	long := make([]byte, 30)
	for i := range long {
		long[i] = byte(i)
	}
	svc := ble.NewService(ble.UUID16(0x1400))
	svc.NewCharacteristic(ble.UUID16(0x1401)).SetValue(long)
	s.SetServices([]*ble.Service{svc})

	// The running connection keeps its database; the next one sees the new set.
	l.data(0x0A, 0x08, 0x00)
	l.expect(t, []byte{0x01, 0x0A, 0x08, 0x00, byte(ble.ErrAuthentication)})
	l.events <- transport.Event{Type: transport.Accept, Addr: ble.NewAddr("66:55:44:33:22:11")}
	l.data(0x0A, 0x08, 0x00)
	l.expect(t, append([]byte{0x0B}, long[:22]...))
}

func TestServeAdvertising(t *testing.T) {
	var a fakeAdvertiser
	s, err := NewServer("gattd", Advertise(&a, []byte{0x02, 0x01, 0x05}, nil))
	if err != nil {
		t.Fatal(err)
	}
	l, stop := serve(t, s)

	l.events <- transport.Event{Type: transport.Accept, Addr: ble.NewAddr("11:22:33:44:55:66")}
	l.events <- transport.Event{Type: transport.Disconnect, Addr: ble.NewAddr("11:22:33:44:55:66")}
	l.events <- transport.Event{Type: transport.Disconnect, Addr: ble.NewAddr("11:22:33:44:55:66")}
	stop()

	if got, want := a.String(), "adv adv stop "; got != want {
		t.Errorf("advertiser calls = %q, want %q", got, want)
	}
}

func TestAdvertiseTooLong(t *testing.T) {
	if _, err := NewServer("gattd", Advertise(&fakeAdvertiser{}, make([]byte, 32), nil)); err != ble.ErrEIRPacketTooLong {
		t.Errorf("NewServer = %v, want ErrEIRPacketTooLong", err)
	}
}

func TestAppearance(t *testing.T) {
	s, _ := NewServer("gattd", Appearance(0x03C1))
	aa := s.DB().Attributes()
	if !bytes.Equal(aa[4].Value, []byte{0xC1, 0x03}) {
		t.Errorf("appearance = % X, want C1 03", aa[4].Value)
	}
}

func TestNotifyWithoutConnection(t *testing.T) {
	s, _ := NewServer("gattd")
	if _, err := s.Notify(3, []byte{1}); err == nil {
		t.Error("Notify without connection succeeded")
	}
}

func TestServeDropsOversizedPDU(t *testing.T) {
	written := make(chan []byte, 2)
	svc := ble.NewService(ble.UUID16(0x1337))
	svc.NewCharacteristic(ble.UUID16(0x1338)).HandleWrite(
		ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
			written <- req.Data()
		}))
	s, _ := NewServer("gattd")
	s.AddService(svc)
	l, stop := serve(t, s)
	defer stop()

	l.events <- transport.Event{Type: transport.Accept, Addr: ble.NewAddr("11:22:33:44:55:66")}
	big := make([]byte, 603)
	copy(big, []byte{0x12, 0x08, 0x00})
	l.data(big...)
	l.expectNothing(t)

	l.data(0x12, 0x08, 0x00, 0x2A)
	l.expect(t, []byte{0x13})
	if got := <-written; !bytes.Equal(got, []byte{0x2A}) {
		t.Errorf("written = [% X], want [2A]", got)
	}
	select {
	case got := <-written:
		t.Errorf("unexpected write of %d bytes", len(got))
	default:
	}
}

func TestServeRSSI(t *testing.T) {
	s, _ := NewServer("gattd")
	l, stop := serve(t, s)
	defer stop()

	l.events <- transport.Event{Type: transport.Accept, Addr: ble.NewAddr("11:22:33:44:55:66")}
	l.events <- transport.Event{Type: transport.RSSI, RSSI: -42}
	l.data(0x02, 0x00, 0x01)
	l.expect(t, []byte{0x03, 0x00, 0x01})

	c := s.current()
	if c == nil {
		t.Fatal("no current connection")
	}
	if c.RSSI() != -42 {
		t.Errorf("RSSI = %d, want -42", c.RSSI())
	}
	if c.RemoteAddr().String() != "11:22:33:44:55:66" {
		t.Errorf("RemoteAddr = %s", c.RemoteAddr())
	}
}

func TestRemoveAllServices(t *testing.T) {
	s, _ := NewServer("gattd")
	s.AddService(secureService())
	if n := s.DB().Len(); n != 8 {
		t.Fatalf("attributes = %d, want 8", n)
	}
	if err := s.RemoveAllServices(); err != nil {
		t.Fatal(err)
	}
	aa := s.DB().Attributes()
	if len(aa) != 5 {
		t.Fatalf("attributes = %d, want 5", len(aa))
	}
	for i, a := range aa {
		if a.Handle != uint16(i+1) {
			t.Errorf("attribute %d handle = %d", i, a.Handle)
		}
	}
	if !aa[0].Type.Equal(ble.PrimaryServiceUUID) || aa[0].EndHandle != 5 {
		t.Errorf("gap service = %+v", aa[0])
	}
}
