package biscuit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
)

// Connect opens the link. Only valid from StateIdle.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrAlreadyConnected, state)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.handlerOnce.Do(func() {
		s.peripheral.OnEvent(s.handleEvent)
	})

	s.logger.WithField("device", s.identity.ID).Info("Connecting to Biscuit...")

	err := s.peripheral.Connect(ctx)

	s.mu.Lock()
	if err != nil {
		if s.state == StateConnecting {
			s.state = StateIdle
		}
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{
			"device": s.identity.ID,
			"error":  err,
		}).Error("Failed to connect")
		return fmt.Errorf("failed to connect to %s: %w", s.identity.ID, err)
	}
	if s.state == StateIdle {
		// Disconnect raced with the connect
		s.mu.Unlock()
		if derr := s.peripheral.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			s.logger.WithField("error", derr).Warn("Failed to close link opened after disconnect")
		}
		return notConnected(StateIdle)
	}
	if s.state == StateConnecting {
		s.state = StateConnected
	}
	s.mu.Unlock()

	s.logger.WithField("device", s.identity.ID).Info("Biscuit connected")
	return nil
}

// DiscoverAttributes enumerates all services and characteristics and replaces the attribute
// cache. Valid in StateConnected and StateReady. If the link drops mid-way, the call keeps
// waiting and returns the outcome of the enumeration re-run after reconnect.
func (s *Session) DiscoverAttributes(ctx context.Context) error {
	s.mu.Lock()
	if pass := s.pass; pass != nil {
		// Join the pass already in flight
		s.mu.Unlock()
		return waitPass(ctx, pass)
	}
	if s.state != StateConnected && s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return notConnected(state)
	}
	pass := newDiscoveryPass(ctx, s.phase)
	s.pass = pass
	s.phase = phasePending
	s.state = StateDiscoveringAttributes
	gen := s.linkGen
	s.mu.Unlock()

	s.runDiscovery(pass.ctx, pass, gen, false)
	return waitPass(ctx, pass)
}

func waitPass(ctx context.Context, pass *discoveryPass) error {
	select {
	case <-pass.done:
		return pass.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runDiscovery enumerates attributes for pass on link generation gen. The result is ignored
// if the link dropped meanwhile; the reconnect handler starts a new run for the same pass.
// relinked is set when the run follows a reconnect, so the journal and registry go to the
// new link. On a live link only subscriptions whose handle changed are moved over.
// An enumeration that fails without any result keeps the previous cache.
func (s *Session) runDiscovery(ctx context.Context, pass *discoveryPass, gen uint64, relinked bool) {
	s.logger.WithField("device", s.identity.ID).Debug("Discovering services and characteristics...")

	services, chars, err := s.peripheral.DiscoverAttributes(ctx)

	s.mu.Lock()
	if s.pass != pass || s.linkGen != gen || s.state != StateDiscoveringAttributes {
		s.mu.Unlock()
		s.logger.WithField("error", err).Debug("Discarding discovery result from a previous link")
		return
	}
	previous := s.cache.Load()
	if err != nil && len(services) == 0 && len(chars) == 0 {
		s.pass = nil
		var writes []JournalEntry
		var subs []registration
		if pass.prev == phaseComplete {
			s.phase = phaseComplete
			s.state = StateReady
			if relinked {
				writes = s.journal.snapshot()
				subs = s.registry.snapshot()
			}
		} else {
			s.phase = phaseNone
			s.state = StateConnected
		}
		s.mu.Unlock()

		s.logger.WithFields(logrus.Fields{
			"device": s.identity.ID,
			"error":  err,
		}).Error("Attribute discovery failed, keeping previous attributes")
		s.replay(writes, subs)
		pass.finish(fmt.Errorf("failed to discover attributes: %w", err))
		return
	}

	s.cache.Store(newAttributeCache(services, chars))
	s.phase = phaseComplete
	s.pass = nil
	s.state = StateReady
	subs := s.registry.snapshot()
	var writes []JournalEntry
	if relinked {
		writes = s.journal.snapshot()
	}
	s.mu.Unlock()

	if relinked {
		s.replay(writes, subs)
	} else {
		s.resubscribe(previous, subs)
	}

	fields := logrus.Fields{
		"device":          s.identity.ID,
		"services":        len(services),
		"characteristics": len(chars),
	}
	if err != nil {
		s.logger.WithFields(fields).WithField("error", err).Error("Attribute discovery finished with errors")
		pass.finish(fmt.Errorf("failed to discover attributes: %w", err))
		return
	}
	s.logger.WithFields(fields).Info("Attributes discovered")
	pass.finish(nil)
}

// resubscribe moves live subscriptions onto handles that a rediscovery replaced.
func (s *Session) resubscribe(previous *attributeCache, subs []registration) {
	if len(subs) == 0 {
		return
	}
	ctx := context.Background()
	current := s.cache.Load()
	for _, sub := range subs {
		ch, ok := current.characteristic(sub.uuid)
		if !ok {
			s.logger.WithField("char_uuid", sub.uuid).Warn("Subscribed characteristic vanished after rediscovery")
			continue
		}
		if old, ok := previous.characteristic(sub.uuid); ok && old == ch {
			continue
		}
		if err := ch.Subscribe(ctx, sub.listener); err != nil {
			s.logger.WithFields(logrus.Fields{
				"char_uuid": sub.uuid,
				"error":     err,
			}).Warn("Failed to move notifications to rediscovered characteristic")
		}
	}
}

// Disconnect closes the link and forgets the write journal and notification registry.
// The attribute cache is kept. A no-op when idle.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.journal.clear()
	s.registry.clear()
	pass := s.pass
	s.pass = nil
	s.phase = phaseNone
	s.linkGen++
	s.state = StateIdle
	s.mu.Unlock()

	if pass != nil {
		pass.finish(notConnected(StateIdle))
	}

	s.logger.WithField("device", s.identity.ID).Info("Disconnecting from Biscuit...")

	if err := s.peripheral.Disconnect(ctx); err != nil {
		s.logger.WithField("error", err).Warn("Disconnect reported an error")
		return fmt.Errorf("failed to disconnect from %s: %w", s.identity.ID, err)
	}
	return nil
}

// handleEvent is the single stack lifecycle handler of the Session.
func (s *Session) handleEvent(ev device.Event) {
	switch ev.Type {
	case device.EventConnected:
		s.mu.Lock()
		if s.state == StateConnecting {
			s.state = StateConnected
		}
		s.mu.Unlock()
		s.signals.emit(SignalConnect)

	case device.EventDisconnected:
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		s.logger.WithField("device", s.identity.ID).Info("Biscuit disconnected")
		s.signals.emit(SignalDisconnect)

	case device.EventDropped:
		s.mu.Lock()
		switch s.state {
		case StateConnected, StateDiscoveringAttributes, StateReady:
		default:
			s.mu.Unlock()
			return
		}
		s.state = StateDropped
		s.linkGen++
		s.mu.Unlock()

		s.logger.WithFields(logrus.Fields{
			"device": s.identity.ID,
			"cause":  ev.Err,
		}).Warn("Connection to Biscuit dropped")
		s.signals.emit(SignalConnectionDrop)

	case device.EventReconnected:
		s.restore()
	}
}

// restore brings the Session back after the stack re-established a dropped link:
//   - discovery was in flight: enumerate again, finish the waiting pass, replay anything
//     recorded before the pass started
//   - discovery never requested: back to connected
//   - discovery complete: back to ready, replay journal and registry
func (s *Session) restore() {
	s.mu.Lock()
	if s.state != StateDropped {
		s.mu.Unlock()
		return
	}

	switch s.phase {
	case phasePending:
		pass := s.pass
		s.state = StateDiscoveringAttributes
		gen := s.linkGen
		s.mu.Unlock()

		s.logger.WithField("device", s.identity.ID).Info("Reconnected during discovery, rediscovering attributes")
		// The caller may have given up on the original ctx; the pass outlives it.
		s.runDiscovery(context.WithoutCancel(pass.ctx), pass, gen, true)

	case phaseComplete:
		s.state = StateReady
		writes := s.journal.snapshot()
		subs := s.registry.snapshot()
		s.mu.Unlock()

		s.logger.WithFields(logrus.Fields{
			"device":        s.identity.ID,
			"writes":        len(writes),
			"subscriptions": len(subs),
		}).Info("Reconnected, restoring journal and subscriptions")
		s.replay(writes, subs)

	default:
		s.state = StateConnected
		s.mu.Unlock()
		s.logger.WithField("device", s.identity.ID).Info("Reconnected")
	}

	s.signals.emit(SignalReconnect)
}

// replay re-issues journaled writes and notification subscriptions. Each entry is tried
// independently; failures are logged only.
func (s *Session) replay(writes []JournalEntry, subs []registration) {
	ctx := context.Background()
	cache := s.cache.Load()

	for _, w := range writes {
		ch, ok := cache.characteristic(w.UUID)
		if !ok {
			s.logger.WithField("char_uuid", w.UUID).Warn("Journaled characteristic missing from cache, write not replayed")
			continue
		}
		if err := ch.Write(ctx, w.Data, true); err != nil {
			s.logger.WithFields(logrus.Fields{
				"char_uuid": w.UUID,
				"error":     err,
			}).Warn("Failed to replay write")
		}
	}

	for _, sub := range subs {
		ch, ok := cache.characteristic(sub.uuid)
		if !ok {
			s.logger.WithField("char_uuid", sub.uuid).Warn("Subscribed characteristic missing from cache, not restored")
			continue
		}
		if err := ch.Subscribe(ctx, sub.listener); err != nil {
			s.logger.WithFields(logrus.Fields{
				"char_uuid": sub.uuid,
				"error":     err,
			}).Warn("Failed to restore notifications")
		}
	}
}
