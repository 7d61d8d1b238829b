package mocks

import (
	"context"
	"sync"

	"github.com/srg/biscuit/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockAdapter is a testify mock of device.Adapter. Scan blocks until its context ends;
// while it runs, Advertise feeds advertisements to the active scan handlers.
type MockAdapter struct {
	mock.Mock

	mu       sync.Mutex
	nextScan int
	scans    map[int]func(device.Advertisement)
	started  int
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{scans: make(map[int]func(device.Advertisement))}
}

func (m *MockAdapter) State() device.AdapterState {
	args := m.Called()
	return args.Get(0).(device.AdapterState)
}

func (m *MockAdapter) WaitReady(ctx context.Context) (device.AdapterState, error) {
	args := m.Called(ctx)
	return args.Get(0).(device.AdapterState), args.Error(1)
}

func (m *MockAdapter) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	args := m.Called(ctx, allowDup)
	if err := args.Error(0); err != nil {
		return err
	}

	m.mu.Lock()
	id := m.nextScan
	m.nextScan++
	m.started++
	m.scans[id] = handler
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	delete(m.scans, id)
	m.mu.Unlock()
	return nil
}

// Peripheral returns the configured peripheral. The return value may be a device.Peripheral or
// a func(id, name string) device.Peripheral that builds one per call.
func (m *MockAdapter) Peripheral(id, name string) device.Peripheral {
	args := m.Called(id, name)
	switch v := args.Get(0).(type) {
	case func(id, name string) device.Peripheral:
		return v(id, name)
	case device.Peripheral:
		return v
	default:
		return nil
	}
}

// Advertise delivers adv to every running scan. Returns false when no scan is running.
func (m *MockAdapter) Advertise(adv device.Advertisement) bool {
	m.mu.Lock()
	handlers := make([]func(device.Advertisement), 0, len(m.scans))
	for _, h := range m.scans {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(adv)
	}
	return len(handlers) > 0
}

// ActiveScans returns the number of Scan calls currently blocked
func (m *MockAdapter) ActiveScans() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scans)
}

// ScansStarted returns how many scans have been started in total
func (m *MockAdapter) ScansStarted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}
