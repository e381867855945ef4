package ble

import "strings"

// Addr represents a network end point address, such as the peer's
// MAC address reported by the link helper.
type Addr interface {
	String() string
}

// NewAddr creates an Addr from string
func NewAddr(s string) Addr {
	return addr(strings.ToLower(s))
}

type addr string

func (a addr) String() string {
	return string(a)
}
