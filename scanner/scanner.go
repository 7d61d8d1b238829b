// Package scanner lists every Biscuit advertising during a scan window.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/internal/ringchan"
	"github.com/srg/biscuit/pkg/biscuit"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type   DeviceEventType
	Result Result
}

// Result describes one peripheral seen during the scan
type Result struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RSSI        int       `json:"rssi"`
	Connectable bool      `json:"connectable"`
	Seen        int       `json:"seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// entry is the mutable per-address record kept while scanning
type entry struct {
	mu     sync.Mutex
	result Result
}

func (e *entry) update(adv device.Advertisement, now time.Time) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result.RSSI = adv.RSSI()
	e.result.Connectable = adv.Connectable()
	e.result.Seen++
	e.result.LastSeen = now
	return e.result
}

func (e *entry) snapshot() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Scanner handles Biscuit discovery over a fixed window
type Scanner struct {
	adapter device.Adapter
	devices *hashmap.Map[string, *entry]
	events  *ringchan.RingChannel[DeviceEvent]
	logger  *logrus.Logger

	scanOptions *ScanOptions
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	Name            string // required local name, defaults to biscuit.AdvertisedName
	DuplicateFilter bool
	AllowList       []string
	BlockList       []string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		Name:            biscuit.AdvertisedName,
		DuplicateFilter: true,
	}
}

// NewScanner creates a new scanner on adapter
func NewScanner(adapter device.Adapter, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		adapter: adapter,
		events:  ringchan.New[DeviceEvent](100),
		logger:  logger,
	}
}

// Scan collects matching advertisements until opts.Duration elapses or ctx ends.
// Results are ordered by signal strength, strongest first.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) ([]Result, error) {
	s.devices = hashmap.New[string, *entry]()

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if opts.Name == "" {
		opts.Name = biscuit.AdvertisedName
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	if err := biscuit.WaitAdapter(ctx, s.adapter); err != nil {
		return nil, err
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")
	progressCallback("Scanning")

	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.scanOptions = opts
	defer func() {
		s.scanOptions = nil
	}()
	if err := s.adapter.Scan(scanCtx, !opts.DuplicateFilter, s.handleAdvertisement); err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")
	progressCallback("Processing results")

	results := make([]Result, 0, s.devices.Len())
	s.devices.Range(func(_ string, e *entry) bool {
		results = append(results, e.snapshot())
		return true
	})
	sort.Slice(results, func(i, j int) bool {
		if results[i].RSSI != results[j].RSSI {
			return results[i].RSSI > results[j].RSSI
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// handleAdvertisement updates existing or adds a new device
func (s *Scanner) handleAdvertisement(adv device.Advertisement) {
	opts := s.scanOptions
	if opts == nil {
		return
	}
	id := strings.ToUpper(adv.Addr())

	e, existing := s.devices.Get(id)
	if !existing {
		if !shouldInclude(adv, id, opts) {
			return
		}
		e, existing = s.devices.GetOrInsert(id, &entry{result: Result{ID: id, Name: adv.LocalName()}})
	}

	result := e.update(adv, time.Now())
	event := DeviceEvent{Result: result}
	if existing {
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  result.Name,
			"address": result.ID,
			"rssi":    result.RSSI,
		}).Info("Discovered new device")
		event.Type = EventNew
	}

	s.events.ForceSend(event)
}

// shouldInclude applies the name and allow/block filters
func shouldInclude(adv device.Advertisement, id string, opts *ScanOptions) bool {
	if adv.LocalName() != opts.Name {
		return false
	}

	for _, blocked := range opts.BlockList {
		if strings.EqualFold(id, blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		for _, a := range opts.AllowList {
			if strings.EqualFold(id, a) {
				return true
			}
		}
		return false
	}

	return true
}

// Events return a read-only channel of device events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
