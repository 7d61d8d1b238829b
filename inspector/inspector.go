// Package inspector runs caller work against a ready Biscuit session and always disconnects
// afterwards.
package inspector

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/pkg/biscuit"
)

// ProgressCallback is called when the inspection phase changes
type ProgressCallback func(phase string)

// InspectOptions defines the discovery filter and the caller-owned timeouts
type InspectOptions struct {
	DeviceID       string
	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
}

// DefaultInspectOptions returns default options
func DefaultInspectOptions() *InspectOptions {
	return &InspectOptions{
		ScanTimeout:    10 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}

// InspectCallback processes a ready session and produces output of type R
type InspectCallback[R any] func(ctx context.Context, s *biscuit.Session) (R, error)

// WithSession discovers a Biscuit, connects, discovers attributes and runs callback.
// The session is disconnected after the callback returns, even when ctx was cancelled.
// Optional progressCallback can be provided for progress updates.
func WithSession[R any](ctx context.Context, adapter device.Adapter, opts *InspectOptions, logger *logrus.Logger, progressCallback ProgressCallback, callback InspectCallback[R]) (R, error) {
	var zero R
	if opts == nil {
		opts = DefaultInspectOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	progressCallback("Scanning")

	scanCtx, cancelScan := withOptionalTimeout(ctx, opts.ScanTimeout)
	session, err := biscuit.Discover(scanCtx, adapter, biscuit.Filter{ID: opts.DeviceID}, logger)
	cancelScan()
	if err != nil {
		progressCallback("Failed")
		return zero, err
	}

	progressCallback("Connecting")

	connCtx, cancelConn := withOptionalTimeout(ctx, opts.ConnectTimeout)
	defer cancelConn()

	if err := session.Connect(connCtx); err != nil {
		progressCallback("Failed")
		return zero, err
	}

	// Ensure the session is disconnected after the callback completes
	defer func() {
		if err := session.Disconnect(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Error("failed to disconnect device")
		}
	}()

	if err := session.DiscoverAttributes(connCtx); err != nil {
		progressCallback("Failed")
		return zero, err
	}

	progressCallback("Connected")
	return callback(ctx, session)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
