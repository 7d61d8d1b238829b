package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/biscuit/pkg/biscuit"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show identity, firmware version and GATT profile of a Biscuit",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

var infoFormat string

func init() {
	infoCmd.Flags().StringVarP(&infoFormat, "format", "f", "", "Output format (text, json); defaults to output_format from the config")
}

// deviceInfo is the info command's report
type deviceInfo struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DeviceName      string   `json:"device_name"`
	Vendor          string   `json:"vendor"`
	FirmwareVersion string   `json:"firmware_version"`
	Services        []string `json:"services"`
	Characteristics []string `json:"characteristics"`
}

func collectInfo(ctx context.Context, s *biscuit.Session) (*deviceInfo, error) {
	info := &deviceInfo{
		ID:              s.ID(),
		Name:            s.Name(),
		Services:        s.Services(),
		Characteristics: s.Characteristics(),
	}

	var err error
	if info.DeviceName, err = s.ReadDeviceName(ctx); err != nil {
		return nil, err
	}
	if info.Vendor, err = s.ReadVendorName(ctx); err != nil {
		return nil, err
	}
	if info.FirmwareVersion, err = s.ReadFirmwareVersion(ctx); err != nil {
		return nil, err
	}
	return info, nil
}

func runInfo(cmd *cobra.Command, _ []string) error {
	rt, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	format := infoFormat
	if format == "" {
		format = rt.cfg.OutputFormat
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	info, err := withSession(ctx, rt, collectInfo)
	if err != nil {
		return err
	}

	if format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}

	rt.out.field("Address", info.ID)
	rt.out.field("Name", info.Name)
	rt.out.field("Device name", info.DeviceName)
	rt.out.field("Vendor", info.Vendor)
	rt.out.field("Firmware", info.FirmwareVersion)
	rt.out.field("Services", strings.Join(info.Services, ", "))
	rt.out.field("Chars", strings.Join(info.Characteristics, ", "))
	return nil
}
