package biscuit

import (
	"context"
	"fmt"
	"sync"
)

// State is the Session connection lifecycle state
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDiscoveringAttributes
	// StateReady means connected with attributes discovered; user operations are accepted
	// only here.
	StateReady
	// StateDropped means the link was lost without Disconnect; the stack is reconnecting.
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDiscoveringAttributes:
		return "discovering-attributes"
	case StateReady:
		return "ready"
	case StateDropped:
		return "dropped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// discoveryPhase records how far attribute discovery got on the current link. It decides
// what happens after a reconnect.
type discoveryPhase int

const (
	phaseNone discoveryPhase = iota
	phasePending
	phaseComplete
)

// discoveryPass is one logical DiscoverAttributes request. It may span a drop: the
// reconnect handler re-runs enumeration and finishes the same pass.
type discoveryPass struct {
	ctx context.Context
	// prev is the phase before the pass started; restored when enumeration yields nothing.
	prev discoveryPhase
	done chan struct{}
	err  error
	once sync.Once
}

func newDiscoveryPass(ctx context.Context, prev discoveryPhase) *discoveryPass {
	return &discoveryPass{ctx: ctx, prev: prev, done: make(chan struct{})}
}

func (p *discoveryPass) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}
