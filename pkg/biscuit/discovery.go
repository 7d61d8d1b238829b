package biscuit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/internal/groutine"
)

// Filter selects which advertisements Discover accepts
type Filter struct {
	// Name is the required local name. Empty means AdvertisedName.
	Name string
	// ID restricts the result to one peripheral address. Empty accepts any.
	ID string
}

func (f Filter) matches(adv device.Advertisement) bool {
	name := f.Name
	if name == "" {
		name = AdvertisedName
	}
	if adv.LocalName() != name {
		return false
	}
	return f.ID == "" || strings.EqualFold(adv.Addr(), f.ID)
}

type discoverResult struct {
	session *Session
	err     error
}

type waiter struct {
	filter Filter
	result chan discoverResult
}

// Discoverer finds Biscuit peripherals. Concurrent Discover calls share one background scan;
// each call receives exactly one Session.
type Discoverer struct {
	adapter device.Adapter
	logger  *logrus.Logger

	mu         sync.Mutex
	waiters    []*waiter
	cancelScan context.CancelFunc
	scanGen    uint64
	// scanDone is closed when the most recently started scan goroutine has returned.
	scanDone chan struct{}
}

func NewDiscoverer(adapter device.Adapter, logger *logrus.Logger) *Discoverer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Discoverer{adapter: adapter, logger: logger}
}

// Discover blocks until an advertisement matching filter is seen and returns a Session
// bound to that peripheral. Fails with ErrAdapterUnavailable if the adapter is not powered
// on, ErrDiscoveryStopped after StopDiscover, or the ctx error.
func (d *Discoverer) Discover(ctx context.Context, filter Filter) (*Session, error) {
	if err := WaitAdapter(ctx, d.adapter); err != nil {
		return nil, err
	}

	w := &waiter{filter: filter, result: make(chan discoverResult, 1)}

	d.mu.Lock()
	d.waiters = append(d.waiters, w)
	if d.cancelScan == nil {
		d.startScanLocked()
	}
	d.mu.Unlock()

	select {
	case r := <-w.result:
		return r.session, r.err
	case <-ctx.Done():
		d.removeWaiter(w)
		// A result may have been delivered while we were giving up
		select {
		case r := <-w.result:
			return r.session, r.err
		default:
		}
		return nil, ctx.Err()
	}
}

// WaitAdapter waits for an unknown adapter state to resolve and rejects anything but
// powered on with ErrAdapterUnavailable.
func WaitAdapter(ctx context.Context, adapter device.Adapter) error {
	state := adapter.State()
	if state == device.AdapterUnknown {
		var err error
		state, err = adapter.WaitReady(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, ErrAdapterUnavailable) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
		}
	}
	if state != device.AdapterPoweredOn {
		return fmt.Errorf("%w: adapter is %s", ErrAdapterUnavailable, state)
	}
	return nil
}

// startScanLocked starts a fresh background scan. Must be called with d.mu held.
// The new scan waits for the previous one to return: stopping a scan disables scanning
// on the controller, which would otherwise switch off the scan that replaced it.
func (d *Discoverer) startScanLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancelScan = cancel
	d.scanGen++
	gen := d.scanGen
	prev := d.scanDone
	done := make(chan struct{})
	d.scanDone = done

	d.logger.WithField("scan", gen).Debug("Starting scan for Biscuit peripherals")

	groutine.Go(ctx, "biscuit-scan", func(ctx context.Context) {
		defer close(done)
		if prev != nil {
			// Every earlier scan is already cancelled
			<-prev
		}
		if ctx.Err() != nil {
			return
		}
		err := d.adapter.Scan(ctx, false, func(adv device.Advertisement) {
			d.handleAdvertisement(gen, adv)
		})
		if err != nil {
			d.failScan(gen, err)
		}
	})
}

func (d *Discoverer) handleAdvertisement(gen uint64, adv device.Advertisement) {
	d.mu.Lock()
	if gen != d.scanGen {
		d.mu.Unlock()
		return
	}

	idx := -1
	for i, w := range d.waiters {
		if w.filter.matches(adv) {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return
	}

	w := d.waiters[idx]
	d.waiters = append(d.waiters[:idx], d.waiters[idx+1:]...)

	// Restart so the stack's duplicate filter forgets this advertisement
	d.cancelScan()
	d.startScanLocked()
	d.mu.Unlock()

	d.logger.WithFields(logrus.Fields{
		"address": adv.Addr(),
		"name":    adv.LocalName(),
		"rssi":    adv.RSSI(),
	}).Info("Discovered Biscuit")

	session := NewSession(d.adapter.Peripheral(adv.Addr(), adv.LocalName()), d.logger)
	w.result <- discoverResult{session: session}
}

func (d *Discoverer) failScan(gen uint64, err error) {
	d.mu.Lock()
	if gen != d.scanGen {
		d.mu.Unlock()
		return
	}
	waiters := d.waiters
	d.waiters = nil
	if d.cancelScan != nil {
		d.cancelScan()
		d.cancelScan = nil
	}
	d.scanGen++
	d.mu.Unlock()

	d.logger.WithField("error", err).Error("Scan failed")
	for _, w := range waiters {
		w.result <- discoverResult{err: fmt.Errorf("scan failed: %w", err)}
	}
}

func (d *Discoverer) removeWaiter(target *waiter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, w := range d.waiters {
		if w == target {
			d.waiters = append(d.waiters[:i], d.waiters[i+1:]...)
			return
		}
	}
}

// StopDiscover stops scanning and fails every pending Discover with ErrDiscoveryStopped
func (d *Discoverer) StopDiscover() {
	d.mu.Lock()
	waiters := d.waiters
	d.waiters = nil
	if d.cancelScan != nil {
		d.cancelScan()
		d.cancelScan = nil
	}
	d.scanGen++
	d.mu.Unlock()

	if len(waiters) > 0 {
		d.logger.WithField("pending", len(waiters)).Debug("Discovery stopped with pending requests")
	}
	for _, w := range waiters {
		w.result <- discoverResult{err: ErrDiscoveryStopped}
	}
}

// Discover finds one Biscuit matching filter and stops scanning.
func Discover(ctx context.Context, adapter device.Adapter, filter Filter, logger *logrus.Logger) (*Session, error) {
	d := NewDiscoverer(adapter, logger)
	defer d.StopDiscover()
	return d.Discover(ctx, filter)
}
