package gatt

import ble "github.com/halseth/bleno-fork"

// An Option configures a Server.
type Option func(*Server) error

// Appearance sets the value of the GAP appearance characteristic.
func Appearance(v uint16) Option {
	return func(s *Server) error {
		s.appearance = v
		s.changed = true
		return nil
	}
}

// Advertise makes Serve advertise the given payloads while no central is
// connected.
func Advertise(a ble.Advertiser, adv, scanRsp []byte) Option {
	return func(s *Server) error {
		if len(adv) > 31 || len(scanRsp) > 31 {
			return ble.ErrEIRPacketTooLong
		}
		s.adv = a
		s.advData = adv
		s.scanRsp = scanRsp
		return nil
	}
}
