package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/biscuit/inspector"
	"github.com/srg/biscuit/internal/device"
	goble "github.com/srg/biscuit/internal/device/go-ble"
	"github.com/srg/biscuit/pkg/biscuit"
	"github.com/srg/biscuit/pkg/config"
)

// newAdapter builds the host stack adapter. Tests replace it with a mock.
var newAdapter = func(cfg *config.Config, logger *logrus.Logger) device.Adapter {
	opts := goble.DefaultOptions()
	opts.ReconnectMaxBackoff = cfg.ReconnectMaxBackoff
	opts.NotificationBuffer = cfg.NotificationBuffer
	return goble.NewAdapter(logger, opts)
}

// commandEnv bundles what every command needs once its flags have been validated
type commandEnv struct {
	cfg     *config.Config
	logger  *logrus.Logger
	adapter device.Adapter
	out     *printer
}

func newCommandEnv(cmd *cobra.Command) (*commandEnv, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if id, _ := cmd.Flags().GetString("device"); id != "" {
		cfg.DeviceID = id
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	return &commandEnv{
		cfg:     cfg,
		logger:  logger,
		adapter: newAdapter(cfg, logger),
		out:     newPrinter(cmd.OutOrStdout()),
	}, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (r *commandEnv) inspectOptions() *inspector.InspectOptions {
	return &inspector.InspectOptions{
		DeviceID:       r.cfg.DeviceID,
		ScanTimeout:    r.cfg.ScanTimeout,
		ConnectTimeout: r.cfg.ConnectTimeout,
	}
}

// progress logs inspector phases at debug level
func (r *commandEnv) progress(phase string) {
	r.logger.WithField("phase", phase).Debug("Session progress")
}

// withSession runs fn against a ready session; the session is disconnected on return.
func withSession[R any](ctx context.Context, r *commandEnv, fn inspector.InspectCallback[R]) (R, error) {
	return inspector.WithSession(ctx, r.adapter, r.inspectOptions(), r.logger, r.progress, fn)
}

// watchLink prints lifecycle signals until the returned func is called
func (r *commandEnv) watchLink(s *biscuit.Session) func() {
	subs := []*biscuit.Subscription{
		s.On(biscuit.SignalConnectionDrop, func() { r.out.eventf("connection dropped, reconnecting") }),
		s.On(biscuit.SignalReconnect, func() { r.out.eventf("reconnected") }),
		s.On(biscuit.SignalDisconnect, func() { r.out.eventf("disconnected") }),
	}
	return func() {
		for _, sub := range subs {
			sub.Cancel()
		}
	}
}
