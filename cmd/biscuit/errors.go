package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/pkg/biscuit"
)

// FormatUserError turns session and stack errors into a one-line message for the terminal
func FormatUserError(err error) string {
	var notFound *device.NotFoundError

	switch {
	case errors.Is(err, biscuit.ErrAdapterUnavailable):
		return fmt.Sprintf("Bluetooth adapter unavailable, is Bluetooth turned on? (%v)", err)
	case errors.Is(err, context.DeadlineExceeded):
		return "operation timed out; is the Biscuit powered and in range?"
	case errors.Is(err, biscuit.ErrDiscoveryStopped):
		return "discovery stopped before a Biscuit was found"
	case errors.Is(err, biscuit.ErrPayloadTooLarge):
		return fmt.Sprintf("data too large: at most %d bytes per write", biscuit.MaxWritePayload)
	case errors.As(err, &notFound):
		return fmt.Sprintf("%s is not part of the Biscuit profile", notFound.Error())
	case errors.Is(err, biscuit.ErrNotReady):
		return "session is not ready; attributes have not been discovered"
	case errors.Is(err, biscuit.ErrNotConnected):
		return "Biscuit is not connected"
	default:
		return err.Error()
	}
}
