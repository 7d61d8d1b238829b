package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// gattClient is the subset of ble.Client the peripheral drives.
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// disconnectNotifier is implemented by clients that report link loss (CoreBluetooth, HCI).
type disconnectNotifier interface {
	Disconnected() <-chan struct{}
}

// dialFunc opens a GATT client connection to addr.
type dialFunc func(ctx context.Context, addr string) (gattClient, error)

// callWithContext runs a blocking go-ble call and gives up once ctx is done.
// The call itself keeps running in the background; go-ble offers no way to abort it.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		v, err := fn()
		resultCh <- result{v: v, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
