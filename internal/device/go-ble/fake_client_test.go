package goble

import (
	"context"
	"errors"
	"sync"

	"github.com/go-ble/ble"
)

// fakeClient is a hand-written gattClient with a controllable Disconnected() channel.
type fakeClient struct {
	mu           sync.Mutex
	profile      *ble.Profile
	discoverErr  error
	reads        map[string][]byte
	writes       [][]byte
	writeNoRsp   []bool
	writeErr     error
	handlers     map[string]ble.NotificationHandler
	unsubscribed []string
	cancelled    bool
	disconnected chan struct{}
	dropOnce     sync.Once
}

func newFakeClient(profile *ble.Profile) *fakeClient {
	return &fakeClient{
		profile:      profile,
		reads:        make(map[string][]byte),
		handlers:     make(map[string]ble.NotificationHandler),
		disconnected: make(chan struct{}),
	}
}

func (f *fakeClient) DiscoverProfile(bool) (*ble.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.discoverErr
}

func (f *fakeClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.reads[c.UUID.String()]
	if !ok {
		return nil, errors.New("read not permitted")
	}
	return v, nil
}

func (f *fakeClient) WriteCharacteristic(_ *ble.Characteristic, value []byte, noRsp bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), value...))
	f.writeNoRsp = append(f.writeNoRsp, noRsp)
	return nil
}

func (f *fakeClient) Subscribe(c *ble.Characteristic, _ bool, h ble.NotificationHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[c.UUID.String()] = h
	return nil
}

func (f *fakeClient) Unsubscribe(c *ble.Characteristic, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, c.UUID.String())
	f.unsubscribed = append(f.unsubscribed, c.UUID.String())
	return nil
}

func (f *fakeClient) CancelConnection() error {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
	f.drop()
	return nil
}

func (f *fakeClient) Disconnected() <-chan struct{} {
	return f.disconnected
}

// drop simulates a link loss reported by the stack.
func (f *fakeClient) drop() {
	f.dropOnce.Do(func() { close(f.disconnected) })
}

func (f *fakeClient) notify(uuid string, data []byte) bool {
	f.mu.Lock()
	h, ok := f.handlers[uuid]
	f.mu.Unlock()
	if ok {
		h(data)
	}
	return ok
}

func (f *fakeClient) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// fakeDialer hands out queued clients, failing while failures > 0.
type fakeDialer struct {
	mu       sync.Mutex
	clients  []*fakeClient
	failures int
	dials    int
}

func (d *fakeDialer) dial(ctx context.Context, _ string) (gattClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection timed out")
	}
	if len(d.clients) == 0 {
		return nil, errors.New("no device")
	}
	c := d.clients[0]
	d.clients = d.clients[1:]
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

const (
	testServiceUUID = "8e0bcfc6-3c73-4c1b-b6b8-2f4a4c0e1000"
	testTxUUID      = "8e0bcfc6-3c73-4c1b-b6b8-2f4a4c0e1001"
	testRxUUID      = "8e0bcfc6-3c73-4c1b-b6b8-2f4a4c0e1002"
)

func testProfile() *ble.Profile {
	svc := ble.NewService(ble.MustParse(testServiceUUID))
	svc.Characteristics = []*ble.Characteristic{
		ble.NewCharacteristic(ble.MustParse(testTxUUID)),
		ble.NewCharacteristic(ble.MustParse(testRxUUID)),
	}
	return &ble.Profile{Services: []*ble.Service{svc}}
}
