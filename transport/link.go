// Package transport talks to the helper processes that own the radio.
//
// The link helper reports connection events and incoming ATT PDUs as text
// lines, and accepts outgoing PDUs as hex encoded lines:
//
//	accept <addr>
//	disconnect <addr>
//	rssi = <n>
//	security <low|medium|high>
//	data <hex>
package transport

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	log "github.com/mgutz/logxi/v1"
	"github.com/pkg/errors"

	ble "github.com/halseth/bleno-fork"
)

var logger = log.New("transport")

// ErrClosed is returned by Send after the link has been closed.
var ErrClosed = errors.New("link closed")

// EventType identifies a link event.
type EventType int

// Link events.
const (
	Accept EventType = iota
	Disconnect
	RSSI
	Security
	Data
)

func (t EventType) String() string {
	switch t {
	case Accept:
		return "accept"
	case Disconnect:
		return "disconnect"
	case RSSI:
		return "rssi"
	case Security:
		return "security"
	case Data:
		return "data"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is a single line reported by the link helper.
type Event struct {
	Type     EventType
	Addr     ble.Addr          // Accept, Disconnect
	RSSI     int               // RSSI
	Security ble.SecurityLevel // Security
	Data     []byte            // Data: one whole ATT PDU
}

// ParseEvent parses one line of the link helper's output.
func ParseEvent(line string) (Event, error) {
	line = strings.TrimRight(line, "\r")
	cmd, arg := line, ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		cmd, arg = line[:i], line[i+1:]
	}
	switch cmd {
	case "accept":
		return Event{Type: Accept, Addr: ble.NewAddr(arg)}, nil
	case "disconnect":
		return Event{Type: Disconnect, Addr: ble.NewAddr(arg)}, nil
	case "rssi":
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(arg, "=")))
		if err != nil {
			return Event{}, errors.Wrapf(err, "invalid rssi line %q", line)
		}
		return Event{Type: RSSI, RSSI: n}, nil
	case "security":
		l, err := ble.ParseSecurityLevel(arg)
		if err != nil {
			return Event{}, errors.Wrapf(err, "invalid security line %q", line)
		}
		return Event{Type: Security, Security: l}, nil
	case "data":
		b, err := hex.DecodeString(arg)
		if err != nil {
			return Event{}, errors.Wrapf(err, "invalid data line %q", line)
		}
		return Event{Type: Data, Data: b}, nil
	}
	return Event{}, errors.Errorf("unknown line %q", line)
}

// Link is a line oriented connection to the link helper.
type Link struct {
	rwc    io.ReadWriteCloser
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

// NewLink starts reading events from rwc.
func NewLink(rwc io.ReadWriteCloser) *Link {
	l := &Link{
		rwc:    rwc,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go l.loop()
	return l
}

// Events returns the events of the link in the order they were reported.
// The channel is closed when the helper's output ends.
func (l *Link) Events() <-chan Event {
	return l.events
}

func (l *Link) loop() {
	defer close(l.events)
	s := bufio.NewScanner(l.rwc)
	s.Buffer(make([]byte, 4096), 64*1024)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		e, err := ParseEvent(line)
		if err != nil {
			logger.Warn("dropping line", "err", err)
			continue
		}
		select {
		case l.events <- e:
		case <-l.done:
			return
		}
	}
	if err := s.Err(); err != nil {
		l.mu.Lock()
		l.err = errors.Wrap(err, "can't read link")
		l.mu.Unlock()
	}
}

// Err returns the error that stopped the event stream, if any.
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Send writes a PDU to the connected peer.
func (l *Link) Send(pdu []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if _, err := io.WriteString(l.rwc, hex.EncodeToString(pdu)+"\n"); err != nil {
		return errors.Wrap(err, "can't send pdu")
	}
	return nil
}

// Close closes the underlying connection to the helper.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	close(l.done)
	return l.rwc.Close()
}
