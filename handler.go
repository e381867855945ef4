package ble

import "golang.org/x/net/context"

// A ReadHandler serves read requests for attributes without a static value.
type ReadHandler interface {
	ServeRead(req Request, rsp ResponseWriter)
}

// ReadHandlerFunc is an adapter to allow the use of ordinary functions as ReadHandlers.
type ReadHandlerFunc func(req Request, rsp ResponseWriter)

// ServeRead returns f(req, rsp).
func (f ReadHandlerFunc) ServeRead(req Request, rsp ResponseWriter) {
	f(req, rsp)
}

// A WriteHandler serves write requests and write commands.
type WriteHandler interface {
	ServeWrite(req Request, rsp ResponseWriter)
}

// WriteHandlerFunc is an adapter to allow the use of ordinary functions as WriteHandlers.
type WriteHandlerFunc func(req Request, rsp ResponseWriter)

// ServeWrite returns f(req, rsp).
func (f WriteHandlerFunc) ServeWrite(req Request, rsp ResponseWriter) {
	f(req, rsp)
}

// A NotifyHandler is started when the peer subscribes to a characteristic,
// and should return once the Notifier's context is done.
type NotifyHandler interface {
	ServeNotify(req Request, n Notifier)
}

// NotifyHandlerFunc is an adapter to allow the use of ordinary functions as NotifyHandlers.
type NotifyHandlerFunc func(req Request, n Notifier)

// ServeNotify returns f(req, n).
func (f NotifyHandlerFunc) ServeNotify(req Request, n Notifier) {
	f(req, n)
}

// Request carries an incoming read or write to a handler.
type Request interface {
	// Conn returns the connection the request arrived on.
	Conn() Conn

	// Data returns the value being written. It is nil for reads.
	Data() []byte

	// Offset returns the value offset of a read blob request.
	Offset() int

	// WithoutResponse reports whether the request was a write command.
	WithoutResponse() bool
}

// ResponseWriter collects the result of a read or write.
type ResponseWriter interface {
	// Write writes data to return as the attribute value.
	Write(b []byte) (int, error)

	// Status reports the result of the request.
	Status() AttError

	// SetStatus sets the result of the request.
	SetStatus(status AttError)

	// Len returns the number of bytes written so far.
	Len() int

	// Cap returns the number of bytes that fit in the response.
	Cap() int
}

// Notifier sends notifications of a subscribed characteristic.
type Notifier interface {
	// Context is done when the peer unsubscribes or disconnects.
	Context() context.Context

	// Write sends data to the peer.
	Write(b []byte) (int, error)

	// Cap returns the maximum number of bytes that may be sent in a single notification.
	Cap() int
}
