package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/bledb"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/internal/groutine"
	"github.com/srg/biscuit/internal/ringchan"
)

// BLECharacteristic is a live handle to a remote characteristic. The underlying
// *ble.Characteristic is swapped when the peripheral reconnects, so the same value stays
// valid across link drops.
type BLECharacteristic struct {
	uuid      string
	knownName string
	service   string
	p         *Peripheral

	mu      sync.RWMutex
	bleChar *ble.Characteristic
	updates *ringchan.RingChannel[[]byte]
}

func newCharacteristic(p *Peripheral, service string, c *ble.Characteristic) *BLECharacteristic {
	raw := c.UUID.String()
	return &BLECharacteristic{
		uuid:      device.NormalizeUUID(raw),
		knownName: bledb.LookupCharacteristic(raw),
		service:   service,
		p:         p,
		bleChar:   c,
	}
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

func (c *BLECharacteristic) KnownName() string {
	return c.knownName
}

// ServiceUUID returns the normalized UUID of the owning service
func (c *BLECharacteristic) ServiceUUID() string {
	return c.service
}

func (c *BLECharacteristic) rebind(bc *ble.Characteristic) {
	c.mu.Lock()
	c.bleChar = bc
	c.mu.Unlock()
}

func (c *BLECharacteristic) handles() (gattClient, *ble.Characteristic, error) {
	client := c.p.currentClient()
	if client == nil {
		return nil, nil, fmt.Errorf("%w (characteristic %s)", device.ErrNotConnected, c.uuid)
	}
	c.mu.RLock()
	bc := c.bleChar
	c.mu.RUnlock()
	if bc == nil {
		return nil, nil, fmt.Errorf("characteristic %s not initialized", c.uuid)
	}
	return client, bc, nil
}

// Read reads the current value of the characteristic from the device
func (c *BLECharacteristic) Read(ctx context.Context) ([]byte, error) {
	client, bc, err := c.handles()
	if err != nil {
		return nil, err
	}

	data, err := callWithContext(ctx, func() ([]byte, error) {
		return client.ReadCharacteristic(bc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic %s: %w", c.uuid, NormalizeError(err))
	}
	return data, nil
}

// Write writes data to the characteristic. withResponse selects an acknowledged ATT write.
func (c *BLECharacteristic) Write(ctx context.Context, data []byte, withResponse bool) error {
	client, bc, err := c.handles()
	if err != nil {
		return err
	}

	c.p.writeMu.Lock()
	defer c.p.writeMu.Unlock()

	_, err = callWithContext(ctx, func() (struct{}, error) {
		return struct{}{}, client.WriteCharacteristic(bc, data, !withResponse)
	})
	if err != nil {
		return fmt.Errorf("failed to write characteristic %s: %w", c.uuid, NormalizeError(err))
	}
	return nil
}

// Subscribe enables notifications. Payloads are copied into a bounded ring and handed to
// handler in arrival order on a dedicated goroutine, so handler may issue GATT requests.
func (c *BLECharacteristic) Subscribe(ctx context.Context, handler func([]byte)) error {
	client, bc, err := c.handles()
	if err != nil {
		return err
	}

	updates := ringchan.New[[]byte](c.p.opts.NotificationBuffer)
	logger := c.p.logger

	_, err = callWithContext(ctx, func() (struct{}, error) {
		return struct{}{}, client.Subscribe(bc, false, func(data []byte) {
			buf := make([]byte, len(data))
			copy(buf, data)
			if updates.ForceSend(buf) {
				logger.WithField("char_uuid", c.uuid).Warn("Notification buffer full, oldest payload dropped")
			}
		})
	})
	if err != nil {
		updates.Close()
		return fmt.Errorf("failed to subscribe to characteristic %s: %w", c.uuid, NormalizeError(err))
	}

	c.mu.Lock()
	previous := c.updates
	c.updates = updates
	c.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	groutine.Go(context.Background(), "ble-notify-"+device.ShortenUUID(c.uuid), func(context.Context) {
		for data := range updates.C() {
			handler(data)
		}
		logger.WithField("char_uuid", c.uuid).Debug("Notification worker exited")
	})

	logger.WithFields(logrus.Fields{
		"char_uuid": c.uuid,
		"buffer":    c.p.opts.NotificationBuffer,
	}).Debug("Subscribed to characteristic")
	return nil
}

// Unsubscribe disables notifications and stops the delivery worker.
// The worker is stopped even when the stack call fails.
func (c *BLECharacteristic) Unsubscribe(ctx context.Context) error {
	c.releaseUpdates()

	client, bc, err := c.handles()
	if err != nil {
		return err
	}

	_, err = callWithContext(ctx, func() (struct{}, error) {
		return struct{}{}, client.Unsubscribe(bc, false)
	})
	if err != nil {
		return fmt.Errorf("failed to unsubscribe from characteristic %s: %w", c.uuid, NormalizeError(err))
	}
	return nil
}

func (c *BLECharacteristic) releaseUpdates() {
	c.mu.Lock()
	updates := c.updates
	c.updates = nil
	c.mu.Unlock()
	if updates != nil {
		updates.Close()
	}
}

// Dropped reports how many notification payloads were overwritten before delivery
func (c *BLECharacteristic) Dropped() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.updates == nil {
		return 0
	}
	return c.updates.Overwritten()
}
