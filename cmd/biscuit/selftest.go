package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/biscuit/pkg/biscuit"
)

// selftestCmd represents the selftest command
var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Exercise a Biscuit end to end",
	Long: `Discovers a Biscuit, connects, discovers attributes, then reads the device
name, vendor and firmware version, writes a test pattern, polls the data channel and
toggles notifications (enable, disable, enable). Received chunks are printed until
Ctrl+C or --duration elapses; the session is always disconnected on exit.`,
	Args: cobra.NoArgs,
	RunE: runSelftest,
}

var selftestDuration time.Duration

// selftestPattern is written to the TX characteristic
var selftestPattern = []byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}

func init() {
	selftestCmd.Flags().DurationVarP(&selftestDuration, "duration", "d", 0, "Listen this long after the sequence (0 listens until interrupted)")
}

func runSelftest(cmd *cobra.Command, _ []string) error {
	rt, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	_, err = withSession(ctx, rt, func(ctx context.Context, s *biscuit.Session) (struct{}, error) {
		return struct{}{}, selftest(ctx, rt, s)
	})
	return err
}

func selftest(ctx context.Context, rt *commandEnv, s *biscuit.Session) error {
	stopWatch := rt.watchLink(s)
	defer stopWatch()

	rt.out.field("Session", s.String())

	name, err := s.ReadDeviceName(ctx)
	if err != nil {
		return fmt.Errorf("reading device name: %w", err)
	}
	rt.out.field("Device name", name)

	vendor, err := s.ReadVendorName(ctx)
	if err != nil {
		return fmt.Errorf("reading vendor name: %w", err)
	}
	rt.out.field("Vendor", vendor)

	ver, err := s.ReadFirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading firmware version: %w", err)
	}
	rt.out.field("Firmware", ver)

	if err := s.WriteData(ctx, selftestPattern); err != nil {
		return fmt.Errorf("writing test pattern: %w", err)
	}
	rt.out.field("Wrote", formatHex(selftestPattern))

	data, err := s.ReadData(ctx)
	if err != nil {
		return fmt.Errorf("reading data: %w", err)
	}
	rt.out.field("Read", formatHex(data))

	sub := s.OnData(rt.out.chunk)
	defer sub.Cancel()

	steps := []struct {
		label string
		fn    func(context.Context) error
	}{
		{"enable", s.NotifyData},
		{"disable", s.UnnotifyData},
		{"enable", s.NotifyData},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("notifications %s: %w", step.label, err)
		}
		rt.out.field("Notify", step.label)
	}

	rt.out.eventf("self-test sequence complete, listening")
	return hold(ctx, selftestDuration)
}
