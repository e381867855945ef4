package gatt

import (
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/net/context"

	ble "github.com/halseth/bleno-fork"
)

// item is a queued request PDU or a security update. Security updates
// travel through the same queue as requests so that every request is
// checked against the level in effect when it arrived.
type item struct {
	pdu []byte
	sec *ble.SecurityLevel
}

// conn is the link to one central, as seen by the ATT server.
type conn struct {
	ctx    context.Context
	cancel context.CancelFunc
	link   Link
	addr   ble.Addr

	sec  int32
	rssi int32

	mu      sync.Mutex
	pending []item
	ready   chan struct{}
}

func newConn(ctx context.Context, l Link, a ble.Addr) *conn {
	ctx, cancel := context.WithCancel(ctx)
	return &conn{
		ctx:    ctx,
		cancel: cancel,
		link:   l,
		addr:   a,
		ready:  make(chan struct{}, 1),
	}
}

func (c *conn) push(it item) {
	c.mu.Lock()
	c.pending = append(c.pending, it)
	c.mu.Unlock()
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

func (c *conn) queueRequest(pdu []byte) { c.push(item{pdu: pdu}) }

func (c *conn) queueSecurity(l ble.SecurityLevel) { c.push(item{sec: &l}) }

func (c *conn) setRSSI(n int) { atomic.StoreInt32(&c.rssi, int32(n)) }

// Read returns the next request PDU, applying any security update queued
// ahead of it. PDUs that don't fit in b are dropped. It returns io.EOF once
// the connection is torn down.
func (c *conn) Read(b []byte) (int, error) {
	for {
		if c.ctx.Err() != nil {
			return 0, io.EOF
		}
		c.mu.Lock()
		for len(c.pending) > 0 {
			it := c.pending[0]
			c.pending = c.pending[1:]
			if it.sec != nil {
				atomic.StoreInt32(&c.sec, int32(*it.sec))
				continue
			}
			if len(it.pdu) > len(b) {
				logger.Warn("dropping oversized pdu", "len", len(it.pdu), "max", len(b))
				continue
			}
			c.mu.Unlock()
			return copy(b, it.pdu), nil
		}
		c.mu.Unlock()
		select {
		case <-c.ready:
		case <-c.ctx.Done():
			return 0, io.EOF
		}
	}
}

// Write sends a PDU to the central.
func (c *conn) Write(b []byte) (int, error) {
	if c.ctx.Err() != nil {
		return 0, io.ErrClosedPipe
	}
	if err := c.link.Send(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close tears the connection down. Queued requests are discarded.
func (c *conn) Close() error {
	c.cancel()
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	return nil
}

func (c *conn) Context() context.Context { return c.ctx }

func (c *conn) RemoteAddr() ble.Addr { return c.addr }

func (c *conn) Security() ble.SecurityLevel {
	return ble.SecurityLevel(atomic.LoadInt32(&c.sec))
}

func (c *conn) RSSI() int { return int(atomic.LoadInt32(&c.rssi)) }
