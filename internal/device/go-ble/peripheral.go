package goble

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/internal/groutine"
)

// Peripheral is the go-ble backed device.Peripheral. Besides connect/disconnect it watches
// the link and, after an unrequested drop, redials with capped exponential backoff and
// rebinds the cached characteristic handles before raising device.EventReconnected.
type Peripheral struct {
	id     string
	name   string
	dial   dialFunc
	logger *logrus.Logger
	opts   Options

	writeMu sync.Mutex

	mu            sync.Mutex
	client        gattClient
	handler       func(device.Event)
	chars         map[string]*BLECharacteristic
	stopReconnect context.CancelFunc
}

func newPeripheral(id, name string, dial dialFunc, logger *logrus.Logger, opts Options) *Peripheral {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Peripheral{
		id:     id,
		name:   name,
		dial:   dial,
		logger: logger,
		opts:   opts.withDefaults(),
		chars:  make(map[string]*BLECharacteristic),
	}
}

func (p *Peripheral) ID() string   { return p.id }
func (p *Peripheral) Name() string { return p.name }

// OnEvent installs the lifecycle handler, replacing any previous one.
func (p *Peripheral) OnEvent(handler func(device.Event)) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

func (p *Peripheral) emit(ev device.Event) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{
		"address": p.id,
		"event":   ev.Type.String(),
	}).Debug("Peripheral event")

	if h != nil {
		h(ev)
	}
}

func (p *Peripheral) currentClient() gattClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}

// Connect dials the peripheral and starts the link monitor
func (p *Peripheral) Connect(ctx context.Context) error {
	if strings.TrimSpace(p.id) == "" {
		return fmt.Errorf("device address is empty")
	}

	p.mu.Lock()
	if p.client != nil || p.stopReconnect != nil {
		p.mu.Unlock()
		p.logger.WithField("address", p.id).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}
	p.mu.Unlock()

	p.logger.WithField("address", p.id).Info("Connecting to BLE device...")

	client, err := p.dial(ctx, p.id)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"address": p.id,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to device with address %q: %w", p.id, NormalizeError(err))
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()

	p.watch(client)

	p.logger.WithField("address", p.id).Info("BLE device connected successfully")
	p.emit(device.Event{Type: device.EventConnected})
	return nil
}

// Disconnect tears the link down and stops any reconnect attempt in progress.
func (p *Peripheral) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	client := p.client
	stop := p.stopReconnect
	p.client = nil
	p.stopReconnect = nil
	chars := p.snapshotChars()
	p.mu.Unlock()

	if client == nil && stop == nil {
		p.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	p.logger.WithField("address", p.id).Info("Disconnecting BLE device...")

	if stop != nil {
		stop()
	}
	for _, c := range chars {
		c.releaseUpdates()
	}

	var disconnectErr error
	if client != nil {
		_, disconnectErr = callWithContext(ctx, func() (struct{}, error) {
			return struct{}{}, client.CancelConnection()
		})
		disconnectErr = NormalizeError(disconnectErr)
	}

	if disconnectErr != nil {
		p.logger.WithField("error", disconnectErr).Warn("BLE device disconnected with errors")
	} else {
		p.logger.Info("BLE device disconnected successfully")
	}

	p.emit(device.Event{Type: device.EventDisconnected, Err: disconnectErr})
	return disconnectErr
}

// DiscoverAttributes enumerates services and characteristics and caches live handles for
// rebinding after a reconnect.
func (p *Peripheral) DiscoverAttributes(ctx context.Context) ([]device.Service, []device.Characteristic, error) {
	client := p.currentClient()
	if client == nil {
		return nil, nil, device.ErrNotConnected
	}

	p.logger.WithField("address", p.id).Debug("Discovering services and characteristics...")

	profile, err := callWithContext(ctx, func() (*ble.Profile, error) {
		return client.DiscoverProfile(true)
	})
	if profile == nil {
		if err == nil {
			err = fmt.Errorf("empty profile")
		}
		return nil, nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	p.mu.Lock()
	known := make(map[string]*BLECharacteristic, len(p.chars))
	for k, v := range p.chars {
		known[k] = v
	}
	p.mu.Unlock()

	services := make([]device.Service, 0, len(profile.Services))
	characteristics := make([]device.Characteristic, 0)
	chars := make(map[string]*BLECharacteristic)

	for _, bleSvc := range profile.Services {
		svc := newService(bleSvc.UUID.String())
		services = append(services, svc)
		for _, bleChar := range bleSvc.Characteristics {
			// Keep handles from an earlier pass so live subscriptions keep their worker
			c, ok := known[device.NormalizeUUID(bleChar.UUID.String())]
			if ok {
				c.rebind(bleChar)
			} else {
				c = newCharacteristic(p, svc.UUID(), bleChar)
			}
			chars[c.UUID()] = c
			characteristics = append(characteristics, c)
		}
	}

	sort.Slice(services, func(i, j int) bool {
		return services[i].UUID() < services[j].UUID()
	})

	p.mu.Lock()
	var gone []*BLECharacteristic
	for k, c := range p.chars {
		if _, ok := chars[k]; !ok {
			gone = append(gone, c)
		}
	}
	p.chars = chars
	p.mu.Unlock()
	for _, c := range gone {
		c.releaseUpdates()
	}

	p.logger.WithFields(logrus.Fields{
		"address":         p.id,
		"services":        len(services),
		"characteristics": len(characteristics),
	}).Debug("Profile discovered successfully")

	if err != nil {
		return services, characteristics, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}
	return services, characteristics, nil
}

// snapshotChars must be called with p.mu held.
func (p *Peripheral) snapshotChars() []*BLECharacteristic {
	out := make([]*BLECharacteristic, 0, len(p.chars))
	for _, c := range p.chars {
		out = append(out, c)
	}
	return out
}

// watch monitors the client Disconnected() channel. Clients that do not expose one get no
// drop detection.
func (p *Peripheral) watch(client gattClient) {
	notifier, ok := client.(disconnectNotifier)
	if !ok {
		p.logger.Debug("Client does not support Disconnected() channel, drop detection disabled")
		return
	}

	groutine.Go(context.Background(), "ble-connection-monitor", func(context.Context) {
		<-notifier.Disconnected()

		p.mu.Lock()
		if p.client != client {
			// Disconnect() already took this client away
			p.mu.Unlock()
			return
		}
		p.client = nil
		ctx, cancel := context.WithCancel(context.Background())
		p.stopReconnect = cancel
		p.mu.Unlock()

		p.logger.WithField("address", p.id).Warn("BLE link dropped, reconnecting")
		p.emit(device.Event{Type: device.EventDropped, Err: device.ErrNotConnected})

		groutine.Go(ctx, "ble-reconnect", p.reconnect)
	})
}

func (p *Peripheral) reconnect(ctx context.Context) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, p.opts.ReconnectBaseDelay, p.opts.ReconnectMaxBackoff)
			p.logger.WithFields(logrus.Fields{
				"address": p.id,
				"attempt": attempt + 1,
				"delay":   delay,
			}).Debug("Waiting before reconnect attempt")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		client, err := p.dial(ctx, p.id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WithFields(logrus.Fields{
				"address": p.id,
				"attempt": attempt + 1,
				"error":   err,
			}).Warn("Reconnect attempt failed")
			continue
		}

		if err := p.rebind(ctx, client); err != nil {
			p.logger.WithField("error", err).Warn("Failed to rebind characteristics after reconnect")
			if cancelErr := client.CancelConnection(); cancelErr != nil {
				p.logger.WithField("cancel_error", cancelErr).Debug("Failed to cancel half-open connection")
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}

		p.mu.Lock()
		if ctx.Err() != nil {
			p.mu.Unlock()
			_ = client.CancelConnection()
			return
		}
		p.client = client
		p.stopReconnect = nil
		p.mu.Unlock()

		p.watch(client)
		p.logger.WithField("address", p.id).Info("BLE device reconnected")
		p.emit(device.Event{Type: device.EventReconnected})
		return
	}
}

// rebind rediscovers the profile on a fresh client and swaps live handles into the cached
// characteristics, matched by UUID.
func (p *Peripheral) rebind(ctx context.Context, client gattClient) error {
	p.mu.Lock()
	chars := make(map[string]*BLECharacteristic, len(p.chars))
	for k, v := range p.chars {
		chars[k] = v
	}
	p.mu.Unlock()

	if len(chars) == 0 {
		return nil
	}

	profile, err := callWithContext(ctx, func() (*ble.Profile, error) {
		return client.DiscoverProfile(true)
	})
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("empty profile")
	}

	for _, bleSvc := range profile.Services {
		for _, bleChar := range bleSvc.Characteristics {
			if c, ok := chars[device.NormalizeUUID(bleChar.UUID.String())]; ok {
				c.rebind(bleChar)
			}
		}
	}
	return nil
}
