package biscuit

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
)

// Host stack types a Session is built on
type (
	Adapter        = device.Adapter
	Advertisement  = device.Advertisement
	Peripheral     = device.Peripheral
	Characteristic = device.Characteristic
	Service        = device.Service
)

// Identity is the peripheral identity captured at discovery
type Identity struct {
	ID   string
	Name string
}

// Session is a logical Biscuit device bound to one peripheral.
//
// All mutable state lives behind mu and is changed only by Session methods and the
// Session's stack event handler. Stack calls are never made with mu held, and signal
// listeners never run with it held.
type Session struct {
	identity   Identity
	peripheral device.Peripheral
	logger     *logrus.Logger
	signals    *signalHub

	cache atomic.Pointer[attributeCache]

	handlerOnce sync.Once

	mu       sync.Mutex
	state    State
	phase    discoveryPhase
	pass     *discoveryPass
	linkGen  uint64
	journal  *writeJournal
	registry *notificationRegistry
}

// NewSession binds a Session to an already known peripheral. Discover is the usual way to
// obtain one.
func NewSession(p device.Peripheral, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Session{
		identity:   Identity{ID: p.ID(), Name: p.Name()},
		peripheral: p,
		logger:     logger,
		signals:    newSignalHub(),
		journal:    newWriteJournal(),
		registry:   newNotificationRegistry(),
	}
	s.cache.Store(newAttributeCache(nil, nil))
	return s
}

func (s *Session) Identity() Identity {
	return s.identity
}

func (s *Session) ID() string {
	return s.identity.ID
}

func (s *Session) Name() string {
	return s.identity.Name
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// String renders the identity as JSON, e.g. {"id":"aa:bb:cc:dd:ee:ff"}
func (s *Session) String() string {
	b, err := json.Marshal(struct {
		ID string `json:"id"`
	}{ID: s.identity.ID})
	if err != nil {
		return s.identity.ID
	}
	return string(b)
}

// On registers fn for a lifecycle signal. Use OnData for SignalData.
func (s *Session) On(sig Signal, fn func()) *Subscription {
	return s.signals.on(sig, fn)
}

// OnData registers fn for received data chunks. Each chunk has already been acknowledged.
func (s *Session) OnData(fn func([]byte)) *Subscription {
	return s.signals.onData(fn)
}

// Characteristics lists the normalized UUIDs of the cached characteristics, sorted
func (s *Session) Characteristics() []string {
	return s.cache.Load().characteristicUUIDs()
}

// Services lists the normalized UUIDs of the cached services, sorted
func (s *Session) Services() []string {
	return s.cache.Load().serviceUUIDs()
}

// HasService reports whether the attribute cache holds the service
func (s *Session) HasService(uuid string) bool {
	_, ok := s.cache.Load().service(device.NormalizeUUID(uuid))
	return ok
}

// JournalSnapshot returns a copy of the write journal in first-write order
func (s *Session) JournalSnapshot() []JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.snapshot()
}

// Subscriptions lists the characteristics with notifications requested
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.uuids()
}
