package biscuit

import (
	"errors"

	"github.com/srg/biscuit/internal/device"
)

// Errors shared with the host stack layer
var (
	ErrAdapterUnavailable    = device.ErrAdapterUnavailable
	ErrUnknownCharacteristic = device.ErrUnknownCharacteristic
	ErrNotReady              = device.ErrNotReady
	ErrNotConnected          = device.ErrNotConnected
	ErrAlreadyConnected      = device.ErrAlreadyConnected
)

var (
	ErrPayloadTooLarge  = errors.New("payload exceeds maximum write size")
	ErrDiscoveryStopped = errors.New("discovery stopped")
	ErrMalformedVersion = errors.New("malformed version value")
)

func notReady(state State) error {
	return &device.ConnectionError{State: device.NotReady, Msg: "session is " + state.String()}
}

func notConnected(state State) error {
	return &device.ConnectionError{State: device.NotConnected, Msg: "session is " + state.String()}
}

func unknownCharacteristic(uuid string) error {
	return &device.NotFoundError{Resource: "characteristic", UUIDs: []string{uuid}}
}
