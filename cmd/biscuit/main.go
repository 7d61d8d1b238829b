package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "biscuit",
	Short: "RedBearLab Biscuit BLE tool",
	Long: `Command-line tool for RedBearLab Biscuit peripherals:

- Scan for nearby Biscuits
- Show identity, firmware version and the GATT profile
- Read and write the 20-byte data channel
- Listen for data chunks, acknowledging each one
- Run the self-test sequence against a live board

The session reconnects on its own after a link drop and replays the last write
and notification state of every characteristic.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(selftestCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("device", "", "Peripheral address to use; the first Biscuit seen when empty")
	rootCmd.PersistentFlags().Bool("verbose", false, "Shorthand for --log-level debug")

	rootCmd.SetVersionTemplate(fmt.Sprintf("biscuit %s (commit %s, built %s)\n", formatVersion(version), commit, date))
}
