package att

import (
	"io"
	"sync"

	"golang.org/x/net/context"

	ble "github.com/halseth/bleno-fork"
)

// testConn records every PDU written to the peer.
type testConn struct {
	ctx    context.Context
	cancel context.CancelFunc
	sec    ble.SecurityLevel

	mu   sync.Mutex
	sent [][]byte
}

func newTestConn() *testConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &testConn{ctx: ctx, cancel: cancel}
}

func (c *testConn) Read(b []byte) (int, error) { return 0, io.EOF }

func (c *testConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), b...))
	return len(b), nil
}

func (c *testConn) Close() error                { c.cancel(); return nil }
func (c *testConn) Context() context.Context    { return c.ctx }
func (c *testConn) RemoteAddr() ble.Addr        { return ble.NewAddr("11:22:33:44:55:66") }
func (c *testConn) Security() ble.SecurityLevel { return c.sec }
func (c *testConn) RSSI() int                   { return -60 }

func (c *testConn) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}
