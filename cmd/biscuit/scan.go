package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/biscuit/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Biscuit peripherals",
	Long: `Scans for Biscuit peripherals and lists each one seen during the window,
strongest signal first.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration   time.Duration
	scanFormat     string
	scanName       string
	scanAllowList  []string
	scanBlockList  []string
	scanDuplicates bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration; defaults to scan_timeout from the config")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format (text, json); defaults to output_format from the config")
	scanCmd.Flags().StringVar(&scanName, "name", "", "Advertised name to match (default \"Biscuit\")")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show peripherals with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide peripherals with these addresses")
	scanCmd.Flags().BoolVar(&scanDuplicates, "duplicates", false, "Report duplicate advertisements (updates RSSI while scanning)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	rt, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}

	format := scanFormat
	if format == "" {
		format = rt.cfg.OutputFormat
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [text json]", format)
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = rt.cfg.ScanTimeout
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}
	if scanName != "" {
		opts.Name = scanName
	}
	opts.DuplicateFilter = !scanDuplicates
	opts.AllowList = scanAllowList
	opts.BlockList = scanBlockList

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s := scanner.NewScanner(rt.adapter, rt.logger)
	results, err := s.Scan(ctx, opts, rt.progress)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}
	return displayResultsTable(cmd, results)
}

func displayResultsTable(cmd *cobra.Command, results []scanner.Result) error {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No Biscuits discovered")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tCONNECTABLE\tSEEN\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%t\t%d\t%s ago\n",
			r.Name, r.ID, r.RSSI, r.Connectable, r.Seen, time.Since(r.LastSeen).Truncate(time.Second))
	}
	return w.Flush()
}
