package biscuit

// AdvertisedName is the local name every Biscuit advertises
const AdvertisedName = "Biscuit"

// GATT attribute UUIDs in normalized form.
const (
	GenericAccessServiceUUID     = "1800"
	GenericAttributeServiceUUID  = "1801"
	DeviceInformationServiceUUID = "180a"
	VendorServiceUUID            = "713d0000503e4c75ba943148f18d941e"

	DeviceNameCharUUID = "2a00"

	// Present on the peripheral but never driven.
	AppearanceCharUUID          = "2a01"
	PrivacyFlagCharUUID         = "2a02"
	ReconnectionAddressCharUUID = "2a03"
	PreferredConnParamsCharUUID = "2a04"

	VendorNameCharUUID     = "713d0001503e4c75ba943148f18d941e"
	RXCharUUID             = "713d0002503e4c75ba943148f18d941e"
	TXCharUUID             = "713d0003503e4c75ba943148f18d941e"
	RXNextCharUUID         = "713d0004503e4c75ba943148f18d941e"
	LibraryVersionCharUUID = "713d0005503e4c75ba943148f18d941e"
)

// MaxWritePayload is the largest WriteData payload: the default 23-byte ATT MTU minus the
// 3-byte write header.
const MaxWritePayload = 20

// AckPayload is written to RXNextCharUUID after each received chunk.
var AckPayload = []byte{0x01}
