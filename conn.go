package ble

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// SecurityLevel is the security level of the link, as reported by the transport.
type SecurityLevel int

// Security levels.
const (
	SecurityNone SecurityLevel = iota
	SecurityMedium
	SecurityHigh
)

func (l SecurityLevel) String() string {
	switch l {
	case SecurityNone:
		return "low"
	case SecurityMedium:
		return "medium"
	case SecurityHigh:
		return "high"
	}
	return fmt.Sprintf("SecurityLevel(%d)", int(l))
}

// ParseSecurityLevel parses the level names used by the link helper.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch s {
	case "low", "none":
		return SecurityNone, nil
	case "medium":
		return SecurityMedium, nil
	case "high":
		return SecurityHigh, nil
	}
	return SecurityNone, errors.Errorf("unknown security level %q", s)
}

// Conn is a connection to a central, carrying whole ATT PDUs.
// Each Read returns exactly one PDU.
type Conn interface {
	io.ReadWriteCloser

	// Context is done when the connection is torn down.
	Context() context.Context

	// RemoteAddr returns the address of the peer.
	RemoteAddr() Addr

	// Security returns the current security level of the link.
	Security() SecurityLevel

	// RSSI returns the last reported signal strength of the link.
	RSSI() int
}
