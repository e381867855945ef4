package ble

// DefaultMTU is the ATT_MTU every connection starts with.
const DefaultMTU = 23

// MaxMTU is the largest ATT_MTU the server agrees to in an exchange.
const MaxMTU = 256

// Well-known UUIDs of the generic access profile and attribute declarations.
var (
	GAPUUID  = UUID16(0x1800) // Generic Access
	GATTUUID = UUID16(0x1801) // Generic Attribute

	PrimaryServiceUUID   = UUID16(0x2800)
	SecondaryServiceUUID = UUID16(0x2801)
	IncludeUUID          = UUID16(0x2802)
	CharacteristicUUID   = UUID16(0x2803)

	ClientCharacteristicConfigUUID = UUID16(0x2902)
	ServerCharacteristicConfigUUID = UUID16(0x2903)

	DeviceNameUUID = UUID16(0x2A00)
	AppearanceUUID = UUID16(0x2A01)
)
