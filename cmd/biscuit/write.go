package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/biscuit/internal/device"
	"github.com/srg/biscuit/pkg/biscuit"
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write <hex-data>",
	Short: "Write to the data channel or a characteristic",
	Long: fmt.Sprintf(`Writes hex data (with response) to the TX data characteristic, or to the
characteristic given by --char. The data channel accepts at most %d bytes per write.

Examples:
  biscuit write "12 34 56 78 9a bc de f0"
  biscuit write 0102 --char 713d0003-503e-4c75-ba94-3148f18d941e`, biscuit.MaxWritePayload),
	Args: cobra.ExactArgs(1),
	RunE: runWrite,
}

var writeCharUUID string

func init() {
	writeCmd.Flags().StringVar(&writeCharUUID, "char", "", "Characteristic UUID; the TX data characteristic when empty")
}

func runWrite(cmd *cobra.Command, args []string) error {
	data, err := parseHex(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse data: %w", err)
	}

	charUUID := ""
	if writeCharUUID != "" {
		uuids, err := device.ValidateUUID(writeCharUUID)
		if err != nil {
			return fmt.Errorf("invalid characteristic UUID: %w", err)
		}
		charUUID = uuids[0]
	}

	rt, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	_, err = withSession(ctx, rt, func(ctx context.Context, s *biscuit.Session) (struct{}, error) {
		if charUUID == "" {
			return struct{}{}, s.WriteData(ctx, data)
		}
		return struct{}{}, s.WriteCharacteristic(ctx, charUUID, data)
	})
	if err != nil {
		return err
	}

	rt.out.line(fmt.Sprintf("wrote %d bytes", len(data)))
	return nil
}
