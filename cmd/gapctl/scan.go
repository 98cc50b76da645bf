package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/notify"
)

type scanOptions struct {
	duration time.Duration
	format   string
	visible  bool
	watch    bool
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover nearby Bluetooth Classic devices",
		Long: `Run inquiry rounds back to back and fetch the name of every device that
advertises one of the required service classes (audio and rendering by
default, see required_services).

The device list is printed when the scan ends, or on every change with --watch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, opts)
		},
	}

	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 15*time.Second, "Scan duration (0 for indefinite)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format (table, json)")
	cmd.Flags().BoolVar(&opts.visible, "visible", false, "Make this adapter discoverable while scanning")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Print the device list on every change")
	return cmd
}

func runScan(cmd *cobra.Command, opts *scanOptions) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.visible {
		if err := s.ctrl.SetVisibility(true); err != nil {
			return err
		}
		defer func() { _ = s.ctrl.SetVisibility(false) }()
	}

	if err := s.ctrl.Scan(); err != nil {
		return err
	}
	defer s.ctrl.StopScan()

	if opts.duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, opts.duration)
		defer stop()
	}

	out := cmd.OutOrStdout()
	var bar *progress
	if !opts.watch {
		bar = progressFor(out, "Scanning", "inquiry", opts.duration)
	}
	bar.Start(ctx)
	devices := collectDevices(ctx, s.events.C(), func(devices []device.Device) {
		if opts.watch && opts.format == "table" {
			clearScreen(out)
			_ = writeDevices(out, opts.format, devices)
			return
		}
		bar.SetPhase(fmt.Sprintf("%d found", len(devices)))
	})
	bar.Stop()
	return writeDevices(out, opts.format, devices)
}

// collectDevices follows DeviceListChanged until ctx ends and returns the
// last list seen.
func collectDevices(ctx context.Context, events <-chan notify.Notification, onChange func([]device.Device)) []device.Device {
	var devices []device.Device
	for {
		select {
		case <-ctx.Done():
			return devices
		case n, ok := <-events:
			if !ok {
				return devices
			}
			if list, isList := n.(notify.DeviceListChanged); isList {
				devices = list.Devices
				if onChange != nil {
					onChange(devices)
				}
			}
		}
	}
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}
