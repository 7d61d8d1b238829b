package biscuit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
)

// characteristic resolves uuid against the attribute cache. Requires StateReady.
func (s *Session) characteristic(uuid string) (string, device.Characteristic, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateReady {
		return "", nil, notReady(state)
	}

	key := device.NormalizeUUID(uuid)
	ch, ok := s.cache.Load().characteristic(key)
	if !ok {
		return key, nil, unknownCharacteristic(uuid)
	}
	return key, ch, nil
}

// WriteCharacteristic writes data (with response) and records it in the write journal.
// The journal is left untouched when the stack reports an error.
func (s *Session) WriteCharacteristic(ctx context.Context, uuid string, data []byte) error {
	key, ch, err := s.characteristic(uuid)
	if err != nil {
		return err
	}

	return s.write(ctx, key, ch, data)
}

// write sends data on ch and journals it unless the session is idle. No state gate.
func (s *Session) write(ctx context.Context, key string, ch device.Characteristic, data []byte) error {
	payload := append([]byte(nil), data...)
	if err := ch.Write(ctx, payload, true); err != nil {
		s.logger.WithFields(logrus.Fields{
			"char_uuid": key,
			"error":     err,
		}).Error("Failed to write characteristic")
		return fmt.Errorf("failed to write characteristic %s: %w", key, err)
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.journal.record(key, payload)
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"char_uuid": key,
		"bytes":     len(payload),
	}).Debug("Characteristic written")
	return nil
}

// NotifyCharacteristic enables or disables notifications. Enabling routes every payload to
// listener and survives reconnects; enabling again replaces the listener. Disabling a
// characteristic that is not enabled does nothing. The registry entry is dropped even when
// the stack fails to unsubscribe, so a reconnect never re-enables it.
func (s *Session) NotifyCharacteristic(ctx context.Context, uuid string, enable bool, listener func([]byte)) error {
	key, ch, err := s.characteristic(uuid)
	if err != nil {
		return err
	}

	if !enable {
		s.mu.Lock()
		registered := s.registry.has(key)
		s.mu.Unlock()
		if !registered {
			return nil
		}

		err := ch.Unsubscribe(ctx)
		s.mu.Lock()
		s.registry.remove(key)
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to disable notifications on %s: %w", key, err)
		}
		s.logger.WithField("char_uuid", key).Debug("Notifications disabled")
		return nil
	}

	if listener == nil {
		return fmt.Errorf("listener is required to enable notifications on %s", key)
	}
	if err := ch.Subscribe(ctx, listener); err != nil {
		s.logger.WithFields(logrus.Fields{
			"char_uuid": key,
			"error":     err,
		}).Error("Failed to enable notifications")
		return fmt.Errorf("failed to enable notifications on %s: %w", key, err)
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.registry.set(key, listener)
	}
	s.mu.Unlock()

	s.logger.WithField("char_uuid", key).Debug("Notifications enabled")
	return nil
}

// ReadAttribute reads a characteristic once. The value is not cached.
func (s *Session) ReadAttribute(ctx context.Context, uuid string) ([]byte, error) {
	key, ch, err := s.characteristic(uuid)
	if err != nil {
		return nil, err
	}

	data, err := ch.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic %s: %w", key, err)
	}
	return data, nil
}
