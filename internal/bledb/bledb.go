// Package bledb holds the known-name table for the attributes a Biscuit peripheral exposes
// and the UUID normalization shared by every layer.
package bledb

import "strings"

const (
	sigBasePrefix = "0000"
	sigBaseSuffix = "00001000800000805f9b34fb"
)

// NormalizeUUID converts a UUID string to the internal BLE library format (lowercase, no dashes).
// Strips braces and a 0x prefix. For full 128-bit UUIDs in Bluetooth SIG base format
// (0000xxxx-0000-1000-8000-00805f9b34fb), returns the 16-bit short form (xxxx).
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "{")
	u = strings.TrimSuffix(u, "}")
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")

	if len(u) == 32 && strings.HasPrefix(u, sigBasePrefix) && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

var services = map[string]string{
	"1800":                             "Generic Access",
	"1801":                             "Generic Attribute",
	"180a":                             "Device Information",
	"713d0000503e4c75ba943148f18d941e": "Biscuit Vendor Service",
}

var characteristics = map[string]string{
	"2a00":                             "Device Name",
	"2a01":                             "Appearance",
	"2a02":                             "Peripheral Privacy Flag",
	"2a03":                             "Reconnection Address",
	"2a04":                             "Peripheral Preferred Connection Parameters",
	"2a05":                             "Service Changed",
	"713d0001503e4c75ba943148f18d941e": "Vendor Name",
	"713d0002503e4c75ba943148f18d941e": "RX Data",
	"713d0003503e4c75ba943148f18d941e": "TX Data",
	"713d0004503e4c75ba943148f18d941e": "RX Next Data",
	"713d0005503e4c75ba943148f18d941e": "Shield Library Version",
}

// LookupService returns the known name of a service UUID, or "" when unknown.
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the known name of a characteristic UUID, or "" when unknown.
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}
