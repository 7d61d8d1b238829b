// Package device defines the Bluetooth Low Energy host stack abstraction that the
// Biscuit session is written against.
//
// It covers:
//   - Adapter readiness and advertisement scanning
//   - Peripheral connect/disconnect and lifecycle events (drop, reconnect)
//   - GATT service and characteristic discovery
//   - Characteristic read/write/notify operations
//   - The shared error taxonomy (NotFoundError, ConnectionError, adapter errors)
//
// The production implementation lives in internal/device/go-ble.
package device
