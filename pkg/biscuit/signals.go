package biscuit

import (
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Signal identifies a Session event observers can listen for
type Signal int

const (
	SignalConnect Signal = iota
	SignalDisconnect
	SignalReconnect
	SignalConnectionDrop
	SignalData
)

func (s Signal) String() string {
	switch s {
	case SignalConnect:
		return "connect"
	case SignalDisconnect:
		return "disconnect"
	case SignalReconnect:
		return "reconnect"
	case SignalConnectionDrop:
		return "connection-drop"
	case SignalData:
		return "data"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// Subscription is the token returned when registering a listener
type Subscription struct {
	hub    *signalHub
	signal Signal
	id     uint64
	once   sync.Once
}

// Cancel removes the listener. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.hub.remove(s.signal, s.id)
	})
}

// signalHub fans Session events out to listeners in registration order.
// Listeners run on the emitting goroutine with no hub lock held.
type signalHub struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[Signal]*orderedmap.OrderedMap[uint64, func()]
	data      *orderedmap.OrderedMap[uint64, func([]byte)]
}

func newSignalHub() *signalHub {
	return &signalHub{
		listeners: make(map[Signal]*orderedmap.OrderedMap[uint64, func()]),
		data:      orderedmap.New[uint64, func([]byte)](),
	}
}

func (h *signalHub) on(sig Signal, fn func()) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	m, ok := h.listeners[sig]
	if !ok {
		m = orderedmap.New[uint64, func()]()
		h.listeners[sig] = m
	}
	m.Set(h.nextID, fn)
	return &Subscription{hub: h, signal: sig, id: h.nextID}
}

func (h *signalHub) onData(fn func([]byte)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	h.data.Set(h.nextID, fn)
	return &Subscription{hub: h, signal: SignalData, id: h.nextID}
}

func (h *signalHub) remove(sig Signal, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sig == SignalData {
		h.data.Delete(id)
		return
	}
	if m, ok := h.listeners[sig]; ok {
		m.Delete(id)
	}
}

func (h *signalHub) emit(sig Signal) {
	h.mu.Lock()
	var fns []func()
	if m, ok := h.listeners[sig]; ok {
		fns = make([]func(), 0, m.Len())
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			fns = append(fns, pair.Value)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (h *signalHub) emitData(chunk []byte) {
	h.mu.Lock()
	fns := make([]func([]byte), 0, h.data.Len())
	for pair := h.data.Oldest(); pair != nil; pair = pair.Next() {
		fns = append(fns, pair.Value)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(chunk)
	}
}
