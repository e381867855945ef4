package ble

// DefaultAppearance is the appearance value of a generic computer.
const DefaultAppearance = 0x0080

// NewGAPService returns the generic access service, exposing the
// device name and appearance as read-only characteristics.
func NewGAPService(name string, appearance uint16) *Service {
	s := NewService(GAPUUID)
	s.NewCharacteristic(DeviceNameUUID).SetValue([]byte(name))
	s.NewCharacteristic(AppearanceUUID).SetValue([]byte{byte(appearance), byte(appearance >> 8)})
	return s
}
