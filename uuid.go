package ble

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// A UUID is a BLE UUID, stored in little-endian (wire) order.
type UUID []byte

// UUID16 converts a uint16 (such as 0x1800) to a UUID.
func UUID16(i uint16) UUID {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, i)
	return UUID(b)
}

// Parse parses a standard-format UUID string, such
// as "1800", "34DA3AD1-7110-41A1-B1EF-4430F509CDE7" or
// "34da3ad1711041a1b1ef4430f509cde7".
func Parse(s string) (UUID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) == 4 {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid UUID %q", s)
		}
		return UUID(Reverse(b)), nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid UUID %q", s)
	}
	return UUID(Reverse(u[:])), nil
}

// MustParse parses a standard-format UUID string,
// like Parse, but panics in case of error.
func MustParse(s string) UUID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Len returns the length of the UUID, in bytes.
// BLE UUIDs are either 2 or 16 bytes.
func (u UUID) Len() int {
	return len(u)
}

// String hex-encodes a UUID in big-endian order, lower case and without dashes.
func (u UUID) String() string {
	return hex.EncodeToString(Reverse(u))
}

// Equal returns a boolean reporting whether v represent the same UUID as u.
func (u UUID) Equal(v UUID) bool {
	return bytes.Equal(u, v)
}

// Contains returns a boolean reporting whether u is in the slice s.
func Contains(s []UUID, u UUID) bool {
	for _, a := range s {
		if a.Equal(u) {
			return true
		}
	}
	return false
}

// Reverse returns a reversed copy of u.
func Reverse(u []byte) []byte {
	l := len(u)
	b := make([]byte, l)
	for i := 0; i < l; i++ {
		b[i] = u[l-i-1]
	}
	return b
}

// Name returns name of known services, characteristics, or descriptors.
func Name(u UUID) string {
	return knownUUID[u.String()]
}

var knownUUID = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"1802": "Immediate Alert",
	"1803": "Link Loss",
	"1804": "Tx Power",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",

	"2800": "Primary Service",
	"2801": "Secondary Service",
	"2802": "Include",
	"2803": "Characteristic",

	"2900": "Characteristic Extended Properties",
	"2901": "Characteristic User Description",
	"2902": "Client Characteristic Configuration",
	"2903": "Server Characteristic Configuration",
	"2904": "Characteristic Presentation Format",

	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a02": "Peripheral Privacy Flag",
	"2a04": "Peripheral Preferred Connection Parameters",
	"2a05": "Service Changed",
	"2a19": "Battery Level",
	"2a23": "System ID",
	"2a24": "Model Number String",
	"2a25": "Serial Number String",
	"2a26": "Firmware Revision String",
	"2a29": "Manufacturer Name String",
	"2a37": "Heart Rate Measurement",
}
