package goble

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []device.EventType
}

func (r *eventRecorder) handle(ev device.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev.Type)
}

func (r *eventRecorder) snapshot() []device.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]device.EventType(nil), r.events...)
}

func testOptions() Options {
	return Options{
		ReconnectBaseDelay:  time.Millisecond,
		ReconnectMaxBackoff: 5 * time.Millisecond,
		NotificationBuffer:  4,
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestPeripheral(d *fakeDialer) (*Peripheral, *eventRecorder) {
	p := newPeripheral("AA:BB:CC:DD:EE:FF", "Biscuit", d.dial, quietLogger(), testOptions())
	rec := &eventRecorder{}
	p.OnEvent(rec.handle)
	return p, rec
}

func TestBackoffDelay(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	assert.Equal(t, time.Second, backoffDelay(0, base, max))
	assert.Equal(t, 2*time.Second, backoffDelay(1, base, max))
	assert.Equal(t, 16*time.Second, backoffDelay(4, base, max))
	assert.Equal(t, max, backoffDelay(5, base, max))
	assert.Equal(t, max, backoffDelay(100, base, max))
	assert.Equal(t, time.Second, backoffDelay(-1, base, max))
}

func TestPeripheral_ConnectEmitsConnected(t *testing.T) {
	d := &fakeDialer{clients: []*fakeClient{newFakeClient(testProfile())}}
	p, rec := newTestPeripheral(d)

	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, []device.EventType{device.EventConnected}, rec.snapshot())

	err := p.Connect(context.Background())
	assert.ErrorIs(t, err, device.ErrAlreadyConnected)
}

func TestPeripheral_ConnectFailure(t *testing.T) {
	d := &fakeDialer{}
	p, rec := newTestPeripheral(d)

	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to device")
	assert.Empty(t, rec.snapshot())
}

func TestPeripheral_DisconnectIsNotADrop(t *testing.T) {
	client := newFakeClient(testProfile())
	d := &fakeDialer{clients: []*fakeClient{client}}
	p, rec := newTestPeripheral(d)

	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Disconnect(context.Background()))

	// Give the monitor goroutine a chance to observe the closed channel.
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []device.EventType{device.EventConnected, device.EventDisconnected}, rec.snapshot())
	assert.True(t, client.cancelled)
	assert.Equal(t, 1, d.dialCount())

	// A second disconnect is a no-op
	require.NoError(t, p.Disconnect(context.Background()))
	assert.Len(t, rec.snapshot(), 2)
}

func TestPeripheral_DropReconnectsAndRebinds(t *testing.T) {
	first := newFakeClient(testProfile())
	second := newFakeClient(testProfile())
	second.reads[ble.MustParse(testTxUUID).String()] = []byte{0x2a}
	d := &fakeDialer{clients: []*fakeClient{first, second}}
	p, rec := newTestPeripheral(d)

	require.NoError(t, p.Connect(context.Background()))
	_, chars, err := p.DiscoverAttributes(context.Background())
	require.NoError(t, err)
	require.Len(t, chars, 2)

	// Inject two dial failures so the backoff path runs
	d.mu.Lock()
	d.failures = 2
	d.mu.Unlock()

	first.drop()

	require.Eventually(t, func() bool {
		ev := rec.snapshot()
		return len(ev) == 3 && ev[2] == device.EventReconnected
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []device.EventType{device.EventConnected, device.EventDropped, device.EventReconnected}, rec.snapshot())
	assert.Equal(t, 4, d.dialCount())

	var tx device.Characteristic
	for _, c := range chars {
		if c.UUID() == device.NormalizeUUID(testTxUUID) {
			tx = c
		}
	}
	require.NotNil(t, tx)

	// The handle obtained before the drop now talks to the new client
	v, err := tx.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2a}, v)
}

func TestPeripheral_DisconnectStopsReconnect(t *testing.T) {
	first := newFakeClient(testProfile())
	d := &fakeDialer{clients: []*fakeClient{first}}
	p, rec := newTestPeripheral(d)

	require.NoError(t, p.Connect(context.Background()))

	d.mu.Lock()
	d.failures = 1000
	d.mu.Unlock()
	first.drop()

	require.Eventually(t, func() bool {
		return d.dialCount() >= 3
	}, time.Second, time.Millisecond)

	require.NoError(t, p.Disconnect(context.Background()))
	count := d.dialCount()
	time.Sleep(30 * time.Millisecond)

	assert.LessOrEqual(t, d.dialCount(), count+1)
	ev := rec.snapshot()
	assert.Equal(t, device.EventDisconnected, ev[len(ev)-1])
	assert.NotContains(t, ev, device.EventReconnected)
}

func TestPeripheral_DiscoverAttributesRequiresConnection(t *testing.T) {
	p, _ := newTestPeripheral(&fakeDialer{})

	_, _, err := p.DiscoverAttributes(context.Background())
	assert.ErrorIs(t, err, device.ErrNotConnected)
}

func TestPeripheral_DiscoverAttributesNormalizesUUIDs(t *testing.T) {
	d := &fakeDialer{clients: []*fakeClient{newFakeClient(testProfile())}}
	p, _ := newTestPeripheral(d)
	require.NoError(t, p.Connect(context.Background()))

	services, chars, err := p.DiscoverAttributes(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "8e0bcfc63c734c1bb6b82f4a4c0e1000", services[0].UUID())

	uuids := []string{chars[0].UUID(), chars[1].UUID()}
	assert.ElementsMatch(t, []string{
		"8e0bcfc63c734c1bb6b82f4a4c0e1001",
		"8e0bcfc63c734c1bb6b82f4a4c0e1002",
	}, uuids)
}

func TestPeripheral_RediscoveryKeepsSubscriptions(t *testing.T) {
	client := newFakeClient(testProfile())
	d := &fakeDialer{clients: []*fakeClient{client}}
	p, _ := newTestPeripheral(d)
	require.NoError(t, p.Connect(context.Background()))

	_, chars, err := p.DiscoverAttributes(context.Background())
	require.NoError(t, err)

	var rx device.Characteristic
	for _, c := range chars {
		if c.UUID() == device.NormalizeUUID(testRxUUID) {
			rx = c
		}
	}
	require.NotNil(t, rx)

	var mu sync.Mutex
	var got [][]byte
	require.NoError(t, rx.Subscribe(context.Background(), func(data []byte) {
		mu.Lock()
		got = append(got, data)
		mu.Unlock()
	}))

	// The stack hands out fresh characteristic objects on every profile walk
	client.mu.Lock()
	client.profile = testProfile()
	client.mu.Unlock()

	_, again, err := p.DiscoverAttributes(context.Background())
	require.NoError(t, err)
	for _, c := range again {
		if c.UUID() == rx.UUID() {
			assert.Same(t, rx, c)
		}
	}

	require.True(t, client.notify(ble.MustParse(testRxUUID).String(), []byte{0x01}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, [][]byte{{0x01}}, got)
	mu.Unlock()
}

func TestPeripheral_RediscoveryReleasesVanishedCharacteristics(t *testing.T) {
	client := newFakeClient(testProfile())
	d := &fakeDialer{clients: []*fakeClient{client}}
	p, _ := newTestPeripheral(d)
	require.NoError(t, p.Connect(context.Background()))

	_, chars, err := p.DiscoverAttributes(context.Background())
	require.NoError(t, err)

	var rx *BLECharacteristic
	for _, c := range chars {
		if c.UUID() == device.NormalizeUUID(testRxUUID) {
			rx = c.(*BLECharacteristic)
		}
	}
	require.NotNil(t, rx)

	delivered := make(chan []byte, 1)
	require.NoError(t, rx.Subscribe(context.Background(), func(data []byte) { delivered <- data }))

	// RX disappears from the profile
	profile := testProfile()
	profile.Services[0].Characteristics = profile.Services[0].Characteristics[:1]
	client.mu.Lock()
	client.profile = profile
	client.mu.Unlock()

	_, again, err := p.DiscoverAttributes(context.Background())
	require.NoError(t, err)
	require.Len(t, again, 1)

	rx.mu.RLock()
	updates := rx.updates
	rx.mu.RUnlock()
	assert.Nil(t, updates)
}
