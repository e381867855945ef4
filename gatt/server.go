// Package gatt runs a GATT peripheral on top of a transport link.
package gatt

import (
	"sync"

	log "github.com/mgutz/logxi/v1"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	ble "github.com/halseth/bleno-fork"
	"github.com/halseth/bleno-fork/att"
	"github.com/halseth/bleno-fork/transport"
)

var logger = log.New("gatt")

// Link is the event stream and PDU sink of a transport.
type Link interface {
	Events() <-chan transport.Event
	Send(pdu []byte) error
	Err() error
}

// Server holds the service set of the peripheral and serves it to one
// central at a time.
type Server struct {
	sync.Mutex

	name       string
	appearance uint16
	svcs       []*ble.Service
	db         *att.DB
	changed    bool

	adv     ble.Advertiser
	advData []byte
	scanRsp []byte

	cur *session
}

type session struct {
	conn *conn
	as   *att.Server
}

// NewServer returns a Server advertising the given device name in its
// GAP service.
func NewServer(name string, opts ...Option) (*Server, error) {
	s := &Server{
		name:       name,
		appearance: ble.DefaultAppearance,
		changed:    true,
	}
	if err := s.Option(opts...); err != nil {
		return nil, err
	}
	return s, nil
}

// Option applies the given options.
func (s *Server) Option(opts ...Option) error {
	s.Lock()
	defer s.Unlock()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return err
		}
	}
	return nil
}

// AddService adds a service. It takes effect for the next connection.
func (s *Server) AddService(svc *ble.Service) *ble.Service {
	s.Lock()
	defer s.Unlock()
	s.changed = true
	s.svcs = append(s.svcs, svc)
	return svc
}

// RemoveAllServices removes every service except the GAP service.
func (s *Server) RemoveAllServices() error {
	s.Lock()
	defer s.Unlock()
	s.changed = true
	s.svcs = nil
	return nil
}

// SetServices replaces the service set.
func (s *Server) SetServices(svcs []*ble.Service) error {
	s.Lock()
	defer s.Unlock()
	s.changed = true
	s.svcs = append([]*ble.Service(nil), svcs...)
	return nil
}

// DB returns the attribute database, rebuilding it if the service set
// changed. Connections in progress keep the database they started with.
func (s *Server) DB() *att.DB {
	s.Lock()
	defer s.Unlock()
	return s.dbLocked()
}

func (s *Server) dbLocked() *att.DB {
	if s.changed || s.db == nil {
		s.db = att.Build(s.name, s.appearance, s.svcs)
		s.changed = false
		logger.Info("database rebuilt", "attrs", s.db.Len())
	}
	return s.db
}

// Notify sends a notification on the value handle h to the connected
// central, if it has subscribed. It returns the number of value bytes sent.
func (s *Server) Notify(h uint16, data []byte) (int, error) {
	s.Lock()
	cur := s.cur
	s.Unlock()
	if cur == nil {
		return 0, att.ErrClosed
	}
	return cur.as.Notify(h, data)
}

// Serve consumes the events of l until ctx is done or the link's event
// stream ends.
func (s *Server) Serve(ctx context.Context, l Link) error {
	s.startAdvertising()
	defer func() {
		s.disconnect()
		if s.adv != nil {
			s.adv.StopAdvertising()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-l.Events():
			if !ok {
				if err := l.Err(); err != nil {
					return err
				}
				return errors.New("link closed")
			}
			s.handleEvent(ctx, l, e)
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, l Link, e transport.Event) {
	switch e.Type {
	case transport.Accept:
		s.accept(ctx, l, e.Addr)
	case transport.Disconnect:
		logger.Info("disconnect", "addr", e.Addr)
		if s.disconnect() {
			s.startAdvertising()
		}
	case transport.Security:
		if c := s.current(); c != nil {
			logger.Info("security", "level", e.Security)
			c.queueSecurity(e.Security)
		}
	case transport.RSSI:
		if c := s.current(); c != nil {
			c.setRSSI(e.RSSI)
		}
	case transport.Data:
		c := s.current()
		if c == nil {
			logger.Warn("dropping pdu without connection", "len", len(e.Data))
			return
		}
		c.queueRequest(e.Data)
	}
}

func (s *Server) accept(ctx context.Context, l Link, a ble.Addr) {
	// The link carries a single connection. A new accept replaces a stale one.
	s.disconnect()
	logger.Info("accept", "addr", a)

	s.Lock()
	db := s.dbLocked()
	c := newConn(ctx, l, a)
	ss := &session{conn: c, as: att.NewServer(db, c)}
	s.cur = ss
	s.Unlock()

	go ss.as.Loop()
}

// disconnect tears down the current connection. Its request loop exits on
// its own; a provider still running has its result dropped. It reports
// whether there was a connection.
func (s *Server) disconnect() bool {
	s.Lock()
	ss := s.cur
	s.cur = nil
	s.Unlock()
	if ss == nil {
		return false
	}
	ss.conn.Close()
	return true
}

func (s *Server) current() *conn {
	s.Lock()
	defer s.Unlock()
	if s.cur == nil {
		return nil
	}
	return s.cur.conn
}

func (s *Server) startAdvertising() {
	if s.adv == nil {
		return
	}
	if err := s.adv.Advertise(s.advData, s.scanRsp); err != nil {
		logger.Warn("can't advertise", "err", err)
	}
}
