package biscuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/internal/testutils"
	"github.com/srg/biscuit/internal/testutils/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newScanningAdapter(state device.AdapterState) *mocks.MockAdapter {
	a := mocks.NewMockAdapter()
	a.On("State").Return(state)
	a.On("Scan", mock.Anything, false).Return(nil)
	a.On("Peripheral", mock.Anything, mock.Anything).Return(func(id, name string) device.Peripheral {
		return mocks.NewMockPeripheral(id, name)
	})
	return a
}

func (d *Discoverer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters)
}

type discoverOutcome struct {
	session *Session
	err     error
}

func discoverAsync(ctx context.Context, d *Discoverer, f Filter) <-chan discoverOutcome {
	out := make(chan discoverOutcome, 1)
	go func() {
		s, err := d.Discover(ctx, f)
		out <- discoverOutcome{s, err}
	}()
	return out
}

func waitOutcome(t *testing.T, ch <-chan discoverOutcome) discoverOutcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("Discover did not return")
		return discoverOutcome{}
	}
}

func biscuitAdv(addr string) device.Advertisement {
	return testutils.CreateMockAdvertisement(AdvertisedName, addr, -50).Build()
}

func TestDiscover_OnlyBiscuitsProduceResults(t *testing.T) {
	adapter := newScanningAdapter(device.AdapterPoweredOn)
	d := NewDiscoverer(adapter, quietLogger())
	defer d.StopDiscover()

	out := discoverAsync(context.Background(), d, Filter{})
	require.Eventually(t, func() bool { return adapter.ActiveScans() == 1 }, time.Second, time.Millisecond)

	adapter.Advertise(testutils.CreateMockAdvertisement("HeartRate", "11:11:11:11:11:11", -40).Build())
	adapter.Advertise(testutils.CreateMockAdvertisement("biscuit", "22:22:22:22:22:22", -40).Build())
	select {
	case o := <-out:
		t.Fatalf("unexpected result: %v", o.session)
	case <-time.After(20 * time.Millisecond):
	}

	adapter.Advertise(biscuitAdv("AA:BB:CC:DD:EE:FF"))
	o := waitOutcome(t, out)
	require.NoError(t, o.err)
	assert.Equal(t, AdvertisedName, o.session.Name())
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", o.session.ID())
	assert.Equal(t, StateIdle, o.session.State())

	// Scanning resumes with a fresh scan after a match
	require.Eventually(t, func() bool {
		return adapter.ScansStarted() == 2 && adapter.ActiveScans() == 1
	}, time.Second, time.Millisecond)
}

func TestDiscover_FilterByID(t *testing.T) {
	adapter := newScanningAdapter(device.AdapterPoweredOn)
	d := NewDiscoverer(adapter, quietLogger())
	defer d.StopDiscover()

	out := discoverAsync(context.Background(), d, Filter{ID: "aa:bb:cc:dd:ee:ff"})
	require.Eventually(t, func() bool { return adapter.ActiveScans() == 1 }, time.Second, time.Millisecond)

	adapter.Advertise(biscuitAdv("11:22:33:44:55:66"))
	adapter.Advertise(biscuitAdv("AA:BB:CC:DD:EE:FF"))

	o := waitOutcome(t, out)
	require.NoError(t, o.err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", o.session.ID())
}

func TestDiscover_ConcurrentCallsShareScan(t *testing.T) {
	adapter := newScanningAdapter(device.AdapterPoweredOn)
	d := NewDiscoverer(adapter, quietLogger())
	defer d.StopDiscover()

	first := discoverAsync(context.Background(), d, Filter{})
	second := discoverAsync(context.Background(), d, Filter{})
	require.Eventually(t, func() bool {
		return d.pending() == 2 && adapter.ActiveScans() == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, adapter.ScansStarted())

	adapter.Advertise(biscuitAdv("AA:BB:CC:DD:EE:01"))
	require.Eventually(t, func() bool {
		return d.pending() == 1 && adapter.ScansStarted() == 2
	}, time.Second, time.Millisecond)
	adapter.Advertise(biscuitAdv("AA:BB:CC:DD:EE:02"))

	a := waitOutcome(t, first)
	b := waitOutcome(t, second)
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.ElementsMatch(t, []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"}, []string{a.session.ID(), b.session.ID()})
}

func TestDiscover_WaitsForUnknownAdapter(t *testing.T) {
	adapter := newScanningAdapter(device.AdapterUnknown)
	adapter.On("WaitReady", mock.Anything).Return(device.AdapterPoweredOn, nil)
	d := NewDiscoverer(adapter, quietLogger())
	defer d.StopDiscover()

	out := discoverAsync(context.Background(), d, Filter{})
	require.Eventually(t, func() bool { return adapter.ActiveScans() == 1 }, time.Second, time.Millisecond)
	adapter.Advertise(biscuitAdv("AA:BB:CC:DD:EE:FF"))

	o := waitOutcome(t, out)
	require.NoError(t, o.err)
	adapter.AssertCalled(t, "WaitReady", mock.Anything)
}

func TestDiscover_AdapterUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		state device.AdapterState
		wait  device.AdapterState
	}{
		{"powered off", device.AdapterPoweredOff, 0},
		{"unsupported", device.AdapterUnsupported, 0},
		{"unauthorized", device.AdapterUnauthorized, 0},
		{"unknown resolving to off", device.AdapterUnknown, device.AdapterPoweredOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newScanningAdapter(tt.state)
			adapter.On("WaitReady", mock.Anything).Return(tt.wait, nil).Maybe()

			_, err := Discover(context.Background(), adapter, Filter{}, quietLogger())
			assert.ErrorIs(t, err, ErrAdapterUnavailable)
			adapter.AssertNotCalled(t, "Scan", mock.Anything, mock.Anything)
		})
	}
}

func TestDiscover_WaitReadyError(t *testing.T) {
	adapter := newScanningAdapter(device.AdapterUnknown)
	adapter.On("WaitReady", mock.Anything).Return(device.AdapterUnsupported, errors.New("no hci"))

	_, err := Discover(context.Background(), adapter, Filter{}, quietLogger())
	assert.ErrorIs(t, err, ErrAdapterUnavailable)
}

func TestDiscover_StopDiscoverFailsPending(t *testing.T) {
	adapter := newScanningAdapter(device.AdapterPoweredOn)
	d := NewDiscoverer(adapter, quietLogger())

	out := discoverAsync(context.Background(), d, Filter{})
	require.Eventually(t, func() bool { return d.pending() == 1 }, time.Second, time.Millisecond)

	d.StopDiscover()

	o := waitOutcome(t, out)
	assert.ErrorIs(t, o.err, ErrDiscoveryStopped)
	assert.Nil(t, o.session)
	require.Eventually(t, func() bool { return adapter.ActiveScans() == 0 }, time.Second, time.Millisecond)
}

func TestDiscover_ContextCancelled(t *testing.T) {
	adapter := newScanningAdapter(device.AdapterPoweredOn)
	d := NewDiscoverer(adapter, quietLogger())
	defer d.StopDiscover()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Discover(ctx, Filter{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, d.pending())
}

func TestDiscover_ScanErrorFailsPending(t *testing.T) {
	adapter := mocks.NewMockAdapter()
	adapter.On("State").Return(device.AdapterPoweredOn)
	adapter.On("Scan", mock.Anything, false).Return(errors.New("scan refused"))

	_, err := Discover(context.Background(), adapter, Filter{}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan refused")
}
