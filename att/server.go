package att

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"sync"

	"golang.org/x/net/context"

	ble "github.com/halseth/bleno-fork"
)

// maxRequestLen bounds a single incoming PDU: a 512 byte value plus header.
const maxRequestLen = 512 + 3

const cccNotify = 0x0001

// Server serves ATT requests of one connection from an attribute database.
type Server struct {
	db   *DB
	conn ble.Conn

	// sendmu serializes responses and notifications on conn.
	sendmu sync.Mutex

	mu        sync.Mutex
	txMTU     int
	cccs      map[uint16]uint16    // CCCD handle -> value
	notifiers map[uint16]*notifier // CCCD handle -> running notifier
	closed    bool
}

// NewServer returns an ATT server of db for conn. Every server starts
// with the default MTU and all notifications disabled.
func NewServer(db *DB, conn ble.Conn) *Server {
	return &Server{
		db:        db,
		conn:      conn,
		txMTU:     ble.DefaultMTU,
		cccs:      make(map[uint16]uint16),
		notifiers: make(map[uint16]*notifier),
	}
}

// MTU returns the negotiated ATT_MTU.
func (s *Server) MTU() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txMTU
}

// Loop reads requests from the connection and answers them one at a time,
// until the connection fails or is closed.
func (s *Server) Loop() {
	defer s.Close()
	for {
		b := make([]byte, maxRequestLen)
		n, err := s.conn.Read(b)
		if err != nil {
			if err != io.EOF {
				logger.Warn("can't read request", "err", err)
			}
			return
		}
		logger.Debug("rx", "pdu", hex.EncodeToString(b[:n]))
		rsp := s.HandleRequest(b[:n])
		if rsp == nil {
			continue
		}
		if err := s.send(rsp); err != nil {
			logger.Warn("can't send response", "err", err)
			return
		}
	}
}

// Close stops every running notifier. It does not close the connection.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for h, n := range s.notifiers {
		n.stop()
		delete(s.notifiers, h)
	}
}

func (s *Server) send(b []byte) error {
	s.sendmu.Lock()
	defer s.sendmu.Unlock()
	logger.Debug("tx", "pdu", hex.EncodeToString(b))
	_, err := s.conn.Write(b)
	return err
}

// HandleRequest dispatches a request PDU and returns the response, or nil
// if the request calls for none.
func (s *Server) HandleRequest(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	var rsp []byte
	switch op := b[0]; op {
	case ExchangeMTURequestCode:
		if len(b) < 3 {
			return NewErrorResponse(op, 0x0000, ble.ErrInvalidPDU)
		}
		rsp = s.handleMTU(ExchangeMTURequest(b))
	case FindInformationRequestCode:
		if len(b) < 5 {
			return NewErrorResponse(op, 0x0000, ble.ErrInvalidPDU)
		}
		rsp = s.handleFindInfo(FindInformationRequest{handleRange(b)})
	case FindByTypeValueRequestCode:
		if len(b) < 7 {
			return NewErrorResponse(op, 0x0000, ble.ErrInvalidPDU)
		}
		rsp = s.handleFindByTypeValue(FindByTypeValueRequest{handleRange(b)})
	case ReadByTypeRequestCode:
		if len(b) != 7 && len(b) != 21 {
			return NewErrorResponse(op, 0x0000, ble.ErrInvalidPDU)
		}
		rsp = s.handleReadByType(ReadByTypeRequest{handleRange(b)})
	case ReadRequestCode:
		if len(b) < 3 {
			return NewErrorResponse(op, 0x0000, ble.ErrInvalidPDU)
		}
		r := ReadRequest(b)
		rsp = s.handleRead(op, r.AttributeHandle(), 0)
	case ReadBlobRequestCode:
		if len(b) < 5 {
			return NewErrorResponse(op, 0x0000, ble.ErrInvalidPDU)
		}
		r := ReadBlobRequest(b)
		rsp = s.handleRead(op, r.AttributeHandle(), int(r.ValueOffset()))
	case ReadByGroupTypeRequestCode:
		if len(b) != 7 && len(b) != 21 {
			return NewErrorResponse(op, 0x0000, ble.ErrInvalidPDU)
		}
		rsp = s.handleReadByGroup(ReadByGroupTypeRequest{handleRange(b)})
	case WriteRequestCode:
		if len(b) < 3 {
			return NewErrorResponse(op, 0x0000, ble.ErrInvalidPDU)
		}
		rsp = s.handleWrite(WriteRequest(b))
	case WriteCommandCode:
		if len(b) < 3 {
			return nil
		}
		s.handleWrite(WriteRequest(b))
		return nil
	case ReadMultipleRequestCode,
		PrepareWriteRequestCode,
		ExecuteWriteRequestCode,
		SignedWriteCommandCode:
		fallthrough
	default:
		rsp = NewErrorResponse(op, 0x0000, ble.ErrReqNotSupp)
	}

	// The connection went away while a handler was running.
	if s.conn.Context().Err() != nil {
		return nil
	}
	return rsp
}

// handleMTU handles Exchange MTU Request [Vol 3, Part F, 3.4.2.1].
func (s *Server) handleMTU(r ExchangeMTURequest) []byte {
	mtu := int(r.ClientRxMTU())
	if mtu < ble.DefaultMTU {
		mtu = ble.DefaultMTU
	}
	if mtu > ble.MaxMTU {
		mtu = ble.MaxMTU
	}
	s.mu.Lock()
	s.txMTU = mtu
	s.mu.Unlock()
	logger.Debug("mtu", "mtu", mtu)

	rsp := make([]byte, 3)
	rsp[0] = ExchangeMTUResponseCode
	binary.LittleEndian.PutUint16(rsp[1:], uint16(mtu))
	return rsp
}

// leadingRun returns the prefix of aa whose UUIDs, as selected by u,
// have the same length as the first one.
func leadingRun(aa []*attr, u func(*attr) ble.UUID) []*attr {
	if len(aa) == 0 {
		return aa
	}
	n := 1
	for n < len(aa) && u(aa[n]).Len() == u(aa[0]).Len() {
		n++
	}
	return aa[:n]
}

func capEntries(aa []*attr, budget, size int) []*attr {
	if max := budget / size; len(aa) > max {
		return aa[:max]
	}
	return aa
}

func attrType(a *attr) ble.UUID { return a.typ }
func attrUUID(a *attr) ble.UUID { return a.uuid }

// handleFindInfo handles Find Information Request [Vol 3, Part F, 3.4.3.1].
func (s *Server) handleFindInfo(r FindInformationRequest) []byte {
	aa := leadingRun(s.db.scan(r.StartingHandle(), r.EndingHandle()), attrType)
	if len(aa) == 0 {
		return NewErrorResponse(FindInformationRequestCode, r.StartingHandle(), ble.ErrAttrNotFound)
	}

	format, size := byte(0x01), 4
	if aa[0].typ.Len() == 16 {
		format, size = 0x02, 18
	}
	aa = capEntries(aa, s.MTU()-2, size)

	buf := bytes.NewBuffer(make([]byte, 0, 2+len(aa)*size))
	buf.WriteByte(FindInformationResponseCode)
	buf.WriteByte(format)
	for _, a := range aa {
		binary.Write(buf, binary.LittleEndian, a.h)
		buf.Write(a.typ)
	}
	return buf.Bytes()
}

// handleFindByTypeValue handles Find By Type Value Request [Vol 3, Part F, 3.4.3.3].
// Only primary service declarations can be searched for.
func (s *Server) handleFindByTypeValue(r FindByTypeValueRequest) []byte {
	var aa []*attr
	if ble.UUID16(r.AttributeType()).Equal(ble.PrimaryServiceUUID) {
		for _, a := range s.db.scan(r.StartingHandle(), r.EndingHandle()) {
			if a.kind == kindService && a.uuid.Equal(ble.UUID(r.AttributeValue())) {
				aa = append(aa, a)
			}
		}
	}
	if len(aa) == 0 {
		return NewErrorResponse(FindByTypeValueRequestCode, r.StartingHandle(), ble.ErrAttrNotFound)
	}
	aa = capEntries(aa, s.MTU()-1, 4)

	buf := bytes.NewBuffer(make([]byte, 0, 1+len(aa)*4))
	buf.WriteByte(FindByTypeValueResponseCode)
	for _, a := range aa {
		binary.Write(buf, binary.LittleEndian, a.h)
		binary.Write(buf, binary.LittleEndian, a.endh)
	}
	return buf.Bytes()
}

// handleReadByGroup handles Read By Group Type Request [Vol 3, Part F, 3.4.4.9].
func (s *Server) handleReadByGroup(r ReadByGroupTypeRequest) []byte {
	var k kind
	switch typ := ble.UUID(r.AttributeGroupType()); {
	case typ.Equal(ble.PrimaryServiceUUID):
		k = kindService
	case typ.Equal(ble.IncludeUUID):
		k = kindInclude
	default:
		return NewErrorResponse(ReadByGroupTypeRequestCode, r.StartingHandle(), ble.ErrUnsuppGrpType)
	}

	var aa []*attr
	for _, a := range s.db.scan(r.StartingHandle(), r.EndingHandle()) {
		if a.kind == k {
			aa = append(aa, a)
		}
	}
	aa = leadingRun(aa, attrUUID)
	if len(aa) == 0 {
		return NewErrorResponse(ReadByGroupTypeRequestCode, r.StartingHandle(), ble.ErrAttrNotFound)
	}

	size := 4 + aa[0].uuid.Len()
	aa = capEntries(aa, s.MTU()-2, size)

	buf := bytes.NewBuffer(make([]byte, 0, 2+len(aa)*size))
	buf.WriteByte(ReadByGroupTypeResponseCode)
	buf.WriteByte(byte(size))
	for _, a := range aa {
		binary.Write(buf, binary.LittleEndian, a.startHandle())
		binary.Write(buf, binary.LittleEndian, a.endHandle())
		buf.Write(a.uuid)
	}
	return buf.Bytes()
}

// handleReadByType handles Read By Type Request [Vol 3, Part F, 3.4.4.1].
func (s *Server) handleReadByType(r ReadByTypeRequest) []byte {
	typ := ble.UUID(r.AttributeType())
	if typ.Equal(ble.CharacteristicUUID) {
		return s.handleReadCharDecls(r)
	}

	// Only the first characteristic or descriptor of the type is returned.
	var found *attr
	for _, a := range s.db.scan(r.StartingHandle(), r.EndingHandle()) {
		if (a.kind == kindChar || a.kind == kindDescriptor) && a.uuid.Equal(typ) {
			found = a
			break
		}
	}
	if found == nil {
		return NewErrorResponse(ReadByTypeRequestCode, r.StartingHandle(), ble.ErrAttrNotFound)
	}
	if found.secured(ble.CharRead, s.conn.Security()) {
		return NewErrorResponse(ReadByTypeRequestCode, r.StartingHandle(), ble.ErrAuthentication)
	}
	a := found
	if found.kind == kindChar {
		a, _ = s.db.at(found.vh)
	}

	budget := s.MTU() - 4
	v, status := s.readValue(a, 0, budget)
	if status != ble.ErrSuccess {
		return NewErrorResponse(ReadByTypeRequestCode, r.StartingHandle(), status)
	}
	if len(v) > budget {
		v = v[:budget]
	}

	rsp := make([]byte, 4+len(v))
	rsp[0] = ReadByTypeResponseCode
	rsp[1] = byte(2 + len(v))
	binary.LittleEndian.PutUint16(rsp[2:], a.h)
	copy(rsp[4:], v)
	return rsp
}

// handleReadCharDecls answers a Read By Type Request for characteristic declarations.
func (s *Server) handleReadCharDecls(r ReadByTypeRequest) []byte {
	var aa []*attr
	for _, a := range s.db.scan(r.StartingHandle(), r.EndingHandle()) {
		if a.kind == kindChar {
			aa = append(aa, a)
		}
	}
	aa = leadingRun(aa, attrUUID)
	if len(aa) == 0 {
		return NewErrorResponse(ReadByTypeRequestCode, r.StartingHandle(), ble.ErrAttrNotFound)
	}

	size := 5 + aa[0].uuid.Len()
	aa = capEntries(aa, s.MTU()-2, size)

	buf := bytes.NewBuffer(make([]byte, 0, 2+len(aa)*size))
	buf.WriteByte(ReadByTypeResponseCode)
	buf.WriteByte(byte(size))
	for _, a := range aa {
		binary.Write(buf, binary.LittleEndian, a.h)
		buf.Write(a.declValue())
	}
	return buf.Bytes()
}

// handleRead handles Read Request [Vol 3, Part F, 3.4.4.3] and
// Read Blob Request [Vol 3, Part F, 3.4.4.5].
func (s *Server) handleRead(op byte, h uint16, offset int) []byte {
	a, ok := s.db.at(h)
	if !ok {
		return NewErrorResponse(op, h, ble.ErrInvalidHandle)
	}

	budget := s.MTU() - 1
	var v []byte
	status := ble.ErrSuccess
	switch a.kind {
	case kindService, kindInclude, kindChar:
		v, status = sliceValue(a.declValue(), offset)
	default:
		if a.props&ble.CharRead == 0 {
			return NewErrorResponse(op, h, ble.ErrReadNotPerm)
		}
		if a.secured(ble.CharRead, s.conn.Security()) {
			return NewErrorResponse(op, h, ble.ErrAuthentication)
		}
		v, status = s.readValue(a, offset, budget)
	}
	if status != ble.ErrSuccess {
		return NewErrorResponse(op, h, status)
	}
	if len(v) > budget {
		v = v[:budget]
	}

	rsp := make([]byte, 1+len(v))
	rsp[0] = op + 1 // Read Response or Read Blob Response
	copy(rsp[1:], v)
	return rsp
}

// sliceValue applies a read offset to a static value.
func sliceValue(v []byte, offset int) ([]byte, ble.AttError) {
	if offset > len(v) {
		return nil, ble.ErrInvalidOffset
	}
	return v[offset:], ble.ErrSuccess
}

// readValue returns the value of a characteristic value or descriptor.
// Static values are sliced at offset; read handlers receive the offset
// and are trusted to apply it.
func (s *Server) readValue(a *attr, offset, budget int) ([]byte, ble.AttError) {
	if a.cccd && a.rh == nil {
		s.mu.Lock()
		ccc := s.cccs[a.h]
		s.mu.Unlock()
		return sliceValue([]byte{byte(ccc), byte(ccc >> 8)}, offset)
	}
	if v := s.db.value(a); v != nil {
		return sliceValue(v, offset)
	}
	if a.rh == nil {
		return nil, ble.ErrUnlikely
	}
	rsp := newResponseWriter(budget)
	a.rh.ServeRead(&request{conn: s.conn, offset: offset}, rsp)
	if rsp.status != ble.ErrSuccess {
		return nil, rsp.status
	}
	return rsp.bytes(), ble.ErrSuccess
}

// handleWrite handles Write Request [Vol 3, Part F, 3.4.5.1] and
// Write Command [Vol 3, Part F, 3.4.5.3].
func (s *Server) handleWrite(r WriteRequest) []byte {
	op := r.AttributeOpcode()
	h := r.AttributeHandle()
	noRsp := op == WriteCommandCode

	a, ok := s.db.at(h)
	if !ok {
		return NewErrorResponse(op, h, ble.ErrInvalidHandle)
	}
	if a.kind != kindCharValue && a.kind != kindDescriptor {
		return NewErrorResponse(op, h, ble.ErrWriteNotPerm)
	}

	flag := ble.CharWrite
	if noRsp {
		flag = ble.CharWriteNR
	}
	if a.props&flag == 0 {
		return NewErrorResponse(op, h, ble.ErrWriteNotPerm)
	}
	if a.secured(flag, s.conn.Security()) {
		return NewErrorResponse(op, h, ble.ErrAuthentication)
	}

	value := make([]byte, len(r.AttributeValue()))
	copy(value, r.AttributeValue())

	if a.cccd && a.wh == nil {
		if len(value) != 2 {
			return NewErrorResponse(op, h, ble.ErrInvalAttrValueLen)
		}
		s.writeCCC(a, binary.LittleEndian.Uint16(value), noRsp)
		return []byte{WriteResponseCode}
	}

	if a.wh == nil {
		s.db.setValue(a, value)
		return []byte{WriteResponseCode}
	}

	rsp := newResponseWriter(0)
	a.wh.ServeWrite(&request{conn: s.conn, data: value, noRsp: noRsp}, rsp)
	if rsp.status != ble.ErrSuccess {
		return NewErrorResponse(op, h, rsp.status)
	}
	return []byte{WriteResponseCode}
}

// writeCCC stores a client characteristic configuration, and starts or
// stops the characteristic's notify handler when notifications toggle.
func (s *Server) writeCCC(a *attr, ccc uint16, noRsp bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cccs[a.h]
	s.cccs[a.h] = ccc

	c := a.c
	switch {
	case ccc&cccNotify != 0 && old&cccNotify == 0:
		if s.closed || c == nil || c.NotifyHandler == nil {
			return
		}
		n := newNotifier(s, c.ValueHandle, a.h, s.txMTU-3)
		s.notifiers[a.h] = n
		logger.Info("notification subscribed", "handle", c.ValueHandle)
		go c.NotifyHandler.ServeNotify(&request{conn: s.conn, noRsp: noRsp}, n)
	case ccc&cccNotify == 0 && old&cccNotify != 0:
		if n, ok := s.notifiers[a.h]; ok {
			n.stop()
			delete(s.notifiers, a.h)
			logger.Info("notification unsubscribed", "handle", c.ValueHandle)
		}
	}
}

// Notify sends a Handle Value Notification of the characteristic value at
// handle h, truncated to fit the current MTU. The peer must have enabled
// notifications through the characteristic's CCCD.
func (s *Server) Notify(h uint16, data []byte) (int, error) {
	a, ok := s.db.at(h)
	if !ok || a.kind != kindCharValue {
		return 0, ErrNotifyDisabled
	}
	d, ok := s.db.at(h + 1)
	if !ok || !d.cccd || d.c != a.c {
		return 0, ErrNotifyDisabled
	}
	s.mu.Lock()
	enabled := s.cccs[d.h]&cccNotify != 0
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	if !enabled {
		return 0, ErrNotifyDisabled
	}
	return s.notify(h, data)
}

func (s *Server) notify(h uint16, data []byte) (int, error) {
	if max := s.MTU() - 3; len(data) > max {
		data = data[:max]
	}
	b := HandleValueNotification(make([]byte, 3+len(data)))
	b.SetAttributeOpcode()
	b.SetAttributeHandle(h)
	copy(b.AttributeValue(), data)
	if err := s.send(b); err != nil {
		return 0, err
	}
	return len(data), nil
}

type notifier struct {
	svr    *Server
	vh     uint16
	cccd   uint16
	maxlen int

	ctx    context.Context
	cancel context.CancelFunc
}

func newNotifier(s *Server, vh, cccd uint16, maxlen int) *notifier {
	ctx, cancel := context.WithCancel(s.conn.Context())
	return &notifier{svr: s, vh: vh, cccd: cccd, maxlen: maxlen, ctx: ctx, cancel: cancel}
}

func (n *notifier) Context() context.Context { return n.ctx }
func (n *notifier) Cap() int                 { return n.maxlen }

func (n *notifier) Write(b []byte) (int, error) {
	select {
	case <-n.ctx.Done():
		return 0, ErrNotifyDisabled
	default:
	}
	return n.svr.notify(n.vh, b)
}

func (n *notifier) stop() { n.cancel() }

// request is the implementation of ble.Request.
type request struct {
	conn   ble.Conn
	data   []byte
	offset int
	noRsp  bool
}

func (r *request) Conn() ble.Conn        { return r.conn }
func (r *request) Data() []byte          { return r.data }
func (r *request) Offset() int           { return r.offset }
func (r *request) WithoutResponse() bool { return r.noRsp }

// responseWriter is the implementation of ble.ResponseWriter.
type responseWriter struct {
	capacity int
	buf      *bytes.Buffer
	status   ble.AttError
}

func newResponseWriter(c int) *responseWriter {
	return &responseWriter{
		capacity: c,
		buf:      new(bytes.Buffer),
		status:   ble.ErrSuccess,
	}
}

// Write appends b to the value. Data beyond the capacity is dropped
// and reported with io.ErrShortWrite.
func (w *responseWriter) Write(b []byte) (int, error) {
	if avail := w.capacity - w.buf.Len(); avail < len(b) {
		n, _ := w.buf.Write(b[:avail])
		return n, io.ErrShortWrite
	}
	return w.buf.Write(b)
}

func (w *responseWriter) Status() ble.AttError          { return w.status }
func (w *responseWriter) SetStatus(status ble.AttError) { w.status = status }
func (w *responseWriter) Len() int                      { return w.buf.Len() }
func (w *responseWriter) Cap() int                      { return w.capacity }
func (w *responseWriter) bytes() []byte                 { return w.buf.Bytes() }
