package transport

import (
	"bufio"
	"bytes"
	"io"
	"testing"
	"time"

	ble "github.com/halseth/bleno-fork"
)

func TestParseEvent(t *testing.T) {
	for _, tt := range []struct {
		line string
		want Event
	}{
		{"accept AA:BB:CC:DD:EE:FF", Event{Type: Accept, Addr: ble.NewAddr("aa:bb:cc:dd:ee:ff")}},
		{"disconnect aa:bb:cc:dd:ee:ff", Event{Type: Disconnect, Addr: ble.NewAddr("aa:bb:cc:dd:ee:ff")}},
		{"rssi = -67", Event{Type: RSSI, RSSI: -67}},
		{"security medium", Event{Type: Security, Security: ble.SecurityMedium}},
		{"security high\r", Event{Type: Security, Security: ble.SecurityHigh}},
		{"data 0a0300", Event{Type: Data, Data: []byte{0x0A, 0x03, 0x00}}},
	} {
		got, err := ParseEvent(tt.line)
		if err != nil {
			t.Errorf("ParseEvent(%q): %s", tt.line, err)
			continue
		}
		if got.Type != tt.want.Type || got.RSSI != tt.want.RSSI || got.Security != tt.want.Security || !bytes.Equal(got.Data, tt.want.Data) {
			t.Errorf("ParseEvent(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
		if tt.want.Addr != nil && (got.Addr == nil || got.Addr.String() != tt.want.Addr.String()) {
			t.Errorf("ParseEvent(%q) addr = %v, want %s", tt.line, got.Addr, tt.want.Addr)
		}
	}
}

func TestParseEventErrors(t *testing.T) {
	for _, line := range []string{
		"hello",
		"data 0g",
		"rssi = loud",
		"security maximal",
	} {
		if _, err := ParseEvent(line); err == nil {
			t.Errorf("ParseEvent(%q) succeeded, want error", line)
		}
	}
}

// pipeRWC is the helper's end of a link: the test writes helper output to
// out and reads what the link sent from in.
type pipeRWC struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (p *pipeRWC) Close() error {
	for _, c := range p.closers {
		c.Close()
	}
	return nil
}

func newPipeLink() (*Link, *io.PipeWriter, *bufio.Reader) {
	outR, outW := io.Pipe()
	inR, inW := io.Pipe()
	l := NewLink(&pipeRWC{Reader: outR, Writer: inW, closers: []io.Closer{outR, inW}})
	return l, outW, bufio.NewReader(inR)
}

func next(t *testing.T, l *Link) Event {
	select {
	case e, ok := <-l.Events():
		if !ok {
			t.Fatal("event stream closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestLinkEvents(t *testing.T) {
	l, helper, _ := newPipeLink()
	defer l.Close()

	go io.WriteString(helper, "accept 11:22:33:44:55:66\nbogus line\n\ndata 020001\ndisconnect 11:22:33:44:55:66\n")

	if e := next(t, l); e.Type != Accept || e.Addr.String() != "11:22:33:44:55:66" {
		t.Errorf("event 0 = %+v, want accept", e)
	}
	if e := next(t, l); e.Type != Data || !bytes.Equal(e.Data, []byte{0x02, 0x00, 0x01}) {
		t.Errorf("event 1 = %+v, want data 020001", e)
	}
	if e := next(t, l); e.Type != Disconnect {
		t.Errorf("event 2 = %+v, want disconnect", e)
	}

	helper.Close()
	select {
	case _, ok := <-l.Events():
		if ok {
			t.Error("unexpected event after helper exit")
		}
	case <-time.After(time.Second):
		t.Error("event stream not closed after helper exit")
	}
}

func TestLinkSend(t *testing.T) {
	l, _, sent := newPipeLink()

	go l.Send([]byte{0x03, 0x00, 0x01})
	line, err := sent.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "030001\n" {
		t.Errorf("sent %q, want %q", line, "030001\n")
	}

	l.Close()
	if err := l.Send([]byte{0x01}); err != ErrClosed {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error { b.closed = true; return nil }

func TestAdvertiser(t *testing.T) {
	var buf bufCloser
	a := NewAdvertiser(&buf)

	if err := a.Advertise([]byte{0x02, 0x01, 0x05}, []byte{0x03, 0x08, 'h', 'i'}); err != nil {
		t.Fatal(err)
	}
	if err := a.StopAdvertising(); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "020105 03086869\n\n"; got != want {
		t.Errorf("helper input = %q, want %q", got, want)
	}

	if err := a.Advertise(make([]byte, 32), nil); err != ble.ErrEIRPacketTooLong {
		t.Errorf("Advertise(32 bytes) = %v, want ErrEIRPacketTooLong", err)
	}
	a.Close()
	if !buf.closed {
		t.Error("Close did not close the helper input")
	}
}
