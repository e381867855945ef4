package ble

// An Advertiser broadcasts advertising data on behalf of the peripheral.
type Advertiser interface {
	// Advertise starts advertising with the given advertising data and scan response.
	Advertise(adv, scanRsp []byte) error

	// StopAdvertising stops advertising.
	StopAdvertising() error
}
