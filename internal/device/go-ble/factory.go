package goble

import "github.com/go-ble/ble"

// DeviceFactory creates ble.Device instances (can be overridden in tests).
// The platform default blocks until the host controller reports its state.
//
//nolint:revive // DeviceFactory name is intentional for test mocking as goble.DeviceFactory
var DeviceFactory = func() (ble.Device, error) {
	return newDefaultDevice()
}
