package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/biscuit/pkg/biscuit"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print data chunks sent by a Biscuit",
	Long: `Enables notifications on the RX data characteristic and prints every chunk.
Each chunk is acknowledged on the RX-next characteristic so the board sends the next one.
Runs until Ctrl+C or --duration elapses; link drops are reported and recovered.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

var listenDuration time.Duration

func init() {
	listenCmd.Flags().DurationVarP(&listenDuration, "duration", "d", 0, "Stop after this long (0 listens until interrupted)")
}

func runListen(cmd *cobra.Command, _ []string) error {
	rt, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	_, err = withSession(ctx, rt, func(ctx context.Context, s *biscuit.Session) (struct{}, error) {
		stopWatch := rt.watchLink(s)
		defer stopWatch()

		sub := s.OnData(rt.out.chunk)
		defer sub.Cancel()

		if err := s.NotifyData(ctx); err != nil {
			return struct{}{}, err
		}
		rt.out.eventf("listening on %s", s.ID())
		return struct{}{}, hold(ctx, listenDuration)
	})
	return err
}

// hold blocks until ctx ends or d elapses. d <= 0 waits for ctx only.
// Cancellation by the user is not an error.
func hold(ctx context.Context, d time.Duration) error {
	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-timeout:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	}
}
