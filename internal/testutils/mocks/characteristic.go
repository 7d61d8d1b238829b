package mocks

import (
	"context"
	"sync"

	"github.com/srg/biscuit/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockService is a static device.Service
type MockService struct {
	uuid string
}

func NewMockService(uuid string) *MockService {
	return &MockService{uuid: device.NormalizeUUID(uuid)}
}

func (s *MockService) UUID() string { return s.uuid }

// MockCharacteristic is a testify mock of device.Characteristic. A successful Subscribe
// keeps the handler so tests can push payloads with Notify.
type MockCharacteristic struct {
	mock.Mock

	uuid string

	mu      sync.Mutex
	handler func([]byte)
}

func NewMockCharacteristic(uuid string) *MockCharacteristic {
	return &MockCharacteristic{uuid: device.NormalizeUUID(uuid)}
}

func (c *MockCharacteristic) UUID() string { return c.uuid }

func (c *MockCharacteristic) Read(ctx context.Context) ([]byte, error) {
	args := c.Called(ctx)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Error(1)
}

func (c *MockCharacteristic) Write(ctx context.Context, data []byte, withResponse bool) error {
	args := c.Called(ctx, data, withResponse)
	return args.Error(0)
}

func (c *MockCharacteristic) Subscribe(ctx context.Context, handler func([]byte)) error {
	args := c.Called(ctx, handler)
	if err := args.Error(0); err != nil {
		return err
	}
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
	return nil
}

func (c *MockCharacteristic) Unsubscribe(ctx context.Context) error {
	args := c.Called(ctx)
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()
	return args.Error(0)
}

// Notify hands data to the subscribed handler. Returns false when nothing is subscribed.
func (c *MockCharacteristic) Notify(data []byte) bool {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

// Subscribed reports whether a handler is currently attached
func (c *MockCharacteristic) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

// Writes returns the payloads passed to Write, in call order
func (c *MockCharacteristic) Writes() [][]byte {
	var out [][]byte
	for _, call := range c.Calls {
		if call.Method == "Write" {
			out = append(out, call.Arguments.Get(1).([]byte))
		}
	}
	return out
}
