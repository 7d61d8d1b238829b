// Package mocks holds testify/mock implementations of the internal/device stack interfaces.
package mocks

import (
	"context"
	"sync"

	"github.com/srg/biscuit/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockPeripheral is a testify mock of device.Peripheral. The lifecycle handler installed
// through OnEvent is kept so tests can raise stack events with Fire.
type MockPeripheral struct {
	mock.Mock

	id   string
	name string

	mu       sync.Mutex
	handler  func(device.Event)
	handlers int
}

// NewMockPeripheral creates a MockPeripheral with the given identity
func NewMockPeripheral(id, name string) *MockPeripheral {
	return &MockPeripheral{id: id, name: name}
}

func (m *MockPeripheral) ID() string   { return m.id }
func (m *MockPeripheral) Name() string { return m.name }

func (m *MockPeripheral) OnEvent(handler func(device.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
	m.handlers++
}

// HandlerInstalls returns how many times OnEvent was called
func (m *MockPeripheral) HandlerInstalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers
}

// Fire delivers ev to the installed lifecycle handler, as the stack would.
// Returns false if no handler is installed.
func (m *MockPeripheral) Fire(ev device.Event) bool {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return false
	}
	h(ev)
	return true
}

// FireType is Fire for an event without a cause
func (m *MockPeripheral) FireType(t device.EventType) bool {
	return m.Fire(device.Event{Type: t})
}

func (m *MockPeripheral) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPeripheral) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPeripheral) DiscoverAttributes(ctx context.Context) ([]device.Service, []device.Characteristic, error) {
	args := m.Called(ctx)
	var services []device.Service
	var chars []device.Characteristic
	if v := args.Get(0); v != nil {
		services = v.([]device.Service)
	}
	if v := args.Get(1); v != nil {
		chars = v.([]device.Characteristic)
	}
	return services, chars, args.Error(2)
}
