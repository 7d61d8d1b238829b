package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/pkg/biscuit"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read [uuid]",
	Short: "Read the data channel or a characteristic",
	Long: `Reads the RX data characteristic once, or the characteristic given by UUID.

Examples:
  # Poll the data channel
  biscuit read

  # Read the firmware library version characteristic
  biscuit read 713d0005-503e-4c75-ba94-3148f18d941e`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	uuid := biscuit.RXCharUUID
	if len(args) == 1 {
		uuids, err := device.ValidateUUID(args[0])
		if err != nil {
			return fmt.Errorf("invalid characteristic UUID: %w", err)
		}
		uuid = uuids[0]
	}

	rt, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	data, err := withSession(ctx, rt, func(ctx context.Context, s *biscuit.Session) ([]byte, error) {
		return s.ReadAttribute(ctx, uuid)
	})
	if err != nil {
		return err
	}

	rt.out.line(formatHex(data))
	return nil
}
