package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
)

// Adapter is the go-ble backed device.Adapter. The platform device is created lazily on the
// first WaitReady, since creating it blocks until the controller reports its power state.
type Adapter struct {
	logger  *logrus.Logger
	opts    Options
	factory func() (ble.Device, error)

	initOnce sync.Once
	ready    chan struct{}

	mu    sync.RWMutex
	dev   ble.Device
	state device.AdapterState
	err   error
}

// NewAdapter creates an Adapter using DeviceFactory
func NewAdapter(logger *logrus.Logger, opts Options) *Adapter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Adapter{
		logger:  logger,
		opts:    opts.withDefaults(),
		factory: DeviceFactory,
		ready:   make(chan struct{}),
	}
}

// State returns the last known adapter state without blocking
func (a *Adapter) State() device.AdapterState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// WaitReady initializes the platform device once and waits for the outcome.
func (a *Adapter) WaitReady(ctx context.Context) (device.AdapterState, error) {
	a.initOnce.Do(func() {
		go a.init()
	})

	select {
	case <-a.ready:
	case <-ctx.Done():
		return device.AdapterUnknown, ctx.Err()
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.err
}

func (a *Adapter) init() {
	defer close(a.ready)

	a.logger.Debug("Initializing BLE adapter...")
	dev, err := a.factory()

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		err = NormalizeError(err)
		if errors.Is(err, device.ErrAdapterUnavailable) {
			a.state = device.AdapterPoweredOff
			a.err = err
		} else {
			a.state = device.AdapterUnsupported
			a.err = fmt.Errorf("%w: %v", device.ErrAdapterUnavailable, err)
		}
		a.logger.WithField("error", a.err).Error("Failed to create BLE device")
		return
	}

	a.dev = dev
	a.state = device.AdapterPoweredOn
	a.logger.Debug("BLE adapter powered on")
}

func (a *Adapter) bleDevice() (ble.Device, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.dev == nil {
		if a.err != nil {
			return nil, a.err
		}
		return nil, fmt.Errorf("%w: adapter not initialized", device.ErrAdapterUnavailable)
	}
	return a.dev, nil
}

// Scan reports advertisements until ctx is cancelled. Cancellation is not an error.
func (a *Adapter) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	dev, err := a.bleDevice()
	if err != nil {
		return err
	}

	err = dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan failed: %w", NormalizeError(err))
	}
	return nil
}

// Peripheral returns a handle for the device at address id
func (a *Adapter) Peripheral(id, name string) device.Peripheral {
	return newPeripheral(id, name, a.dial, a.logger, a.opts)
}

func (a *Adapter) dial(ctx context.Context, addr string) (gattClient, error) {
	dev, err := a.bleDevice()
	if err != nil {
		return nil, err
	}
	client, err := dev.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		return nil, err
	}
	return client, nil
}
