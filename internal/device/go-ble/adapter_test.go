package goble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/pkg/biscuit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_WaitReadyPoweredOff(t *testing.T) {
	a := NewAdapter(quietLogger(), DefaultOptions())
	a.factory = func() (ble.Device, error) {
		return nil, errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?")
	}

	state, err := a.WaitReady(context.Background())
	assert.Equal(t, device.AdapterPoweredOff, state)
	assert.ErrorIs(t, err, device.ErrAdapterUnavailable)
	assert.Equal(t, device.AdapterPoweredOff, a.State())

	err = a.Scan(context.Background(), false, func(device.Advertisement) {})
	assert.ErrorIs(t, err, device.ErrAdapterUnavailable)
}

func TestAdapter_WaitReadyUnsupported(t *testing.T) {
	a := NewAdapter(quietLogger(), DefaultOptions())
	a.factory = func() (ble.Device, error) {
		return nil, errors.New("boom")
	}

	state, err := a.WaitReady(context.Background())
	assert.Equal(t, device.AdapterUnsupported, state)
	assert.ErrorIs(t, err, device.ErrAdapterUnavailable)
}

func TestAdapter_WaitReadyHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	a := NewAdapter(quietLogger(), DefaultOptions())
	a.factory = func() (ble.Device, error) {
		<-block
		return nil, errors.New("late")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := a.WaitReady(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, device.AdapterUnknown, state)
	assert.Equal(t, device.AdapterUnknown, a.State())
}

func TestAdapter_PeripheralIdentity(t *testing.T) {
	a := NewAdapter(quietLogger(), DefaultOptions())
	p := a.Peripheral("AA:BB:CC:DD:EE:FF", "Biscuit")

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", p.ID())
	assert.Equal(t, "Biscuit", p.Name())
}

type fakeAdvertisement struct {
	ble.Advertisement
	name string
	addr string
}

func (a fakeAdvertisement) LocalName() string { return a.name }
func (a fakeAdvertisement) Addr() ble.Addr    { return ble.NewAddr(a.addr) }
func (a fakeAdvertisement) RSSI() int         { return -50 }
func (a fakeAdvertisement) Connectable() bool { return true }

// fakeRadio models a controller with one global scan-enable flag. Stopping a scan clears the
// flag some time after the scan's context is cancelled, as real controllers do.
type fakeRadio struct {
	ble.Device
	adv     ble.Advertisement
	stopLag time.Duration
	mu      sync.Mutex
	enabled bool
	starts  int
}

func (r *fakeRadio) Scan(ctx context.Context, _ bool, h ble.AdvHandler) error {
	r.mu.Lock()
	r.enabled = true
	r.starts++
	r.mu.Unlock()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			time.Sleep(r.stopLag)
			r.mu.Lock()
			r.enabled = false
			r.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			r.mu.Lock()
			on := r.enabled
			r.mu.Unlock()
			if on {
				h(r.adv)
			}
		}
	}
}

func TestAdapter_ScanRestartSurvivesLateStop(t *testing.T) {
	radio := &fakeRadio{
		adv:     fakeAdvertisement{name: biscuit.AdvertisedName, addr: "AA:BB:CC:DD:EE:FF"},
		stopLag: 20 * time.Millisecond,
	}
	a := NewAdapter(quietLogger(), DefaultOptions())
	a.factory = func() (ble.Device, error) { return radio, nil }

	d := biscuit.NewDiscoverer(a, quietLogger())
	defer d.StopDiscover()

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		session, err := d.Discover(ctx, biscuit.Filter{})
		cancel()
		require.NoError(t, err, "discover #%d", i+1)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", session.Identity().ID)
	}

	radio.mu.Lock()
	defer radio.mu.Unlock()
	assert.GreaterOrEqual(t, radio.starts, 2)
}
