package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/srg/classicgap/internal/bondstore"
	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/notify"
)

var (
	okColor     = color.New(color.FgGreen, color.Bold)
	failColor   = color.New(color.FgRed, color.Bold)
	promptColor = color.New(color.FgYellow, color.Bold)
	dimColor    = color.New(color.Faint)
)

func validateFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}
}

func writeDevices(w io.Writer, format string, devices []device.Device) error {
	if format == "json" {
		return writeJSON(w, devices)
	}
	return writeDevicesTable(w, devices)
}

func writeDevicesTable(w io.Writer, devices []device.Device) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No devices discovered")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tRSSI\tCLASS\tSERVICES")
	for _, d := range devices {
		name := d.Name
		switch {
		case name == "" && d.NameFetchState != device.NameFetched:
			name = "(" + d.NameFetchState.String() + ")"
		case len(name) > 24:
			name = name[:21] + "..."
		}

		rssi := "-"
		if d.RSSI != nil {
			rssi = fmt.Sprintf("%d dBm", *d.RSSI)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			name, d.Address, rssi, d.ClassOfDevice.MajorClass(), strings.Join(d.ClassOfDevice.ServiceNames(), ","))
	}
	return tw.Flush()
}

func writeBonds(w io.Writer, format string, bonds []bondstore.Bond) error {
	if format == "json" {
		if bonds == nil {
			bonds = []bondstore.Bond{}
		}
		return writeJSON(w, bonds)
	}
	if len(bonds) == 0 {
		_, err := fmt.Fprintln(w, "No bonded devices")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tCLASS\tBONDED")
	for _, b := range bonds {
		name := b.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, b.Address, b.ClassOfDevice.MajorClass(), b.BondedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeTrail prints the notification history after a failed command.
func writeTrail(w io.Writer, records []notify.Record) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintln(w, "Recent events:")
	for _, r := range records {
		dimColor.Fprintf(w, "  %s %s\n", r.At.Format("15:04:05.000"), describe(r.Notification))
	}
}

// describe renders a notification as one line.
func describe(n notify.Notification) string {
	switch n := n.(type) {
	case notify.DeviceListChanged:
		names := make([]string, len(n.Devices))
		for i, d := range n.Devices {
			names[i] = d.DisplayName()
		}
		return fmt.Sprintf("devices (%d): %s", len(n.Devices), strings.Join(names, ", "))
	case notify.AuthenticationRequested:
		s := fmt.Sprintf("auth %s %s", n.Path, n.Device.DisplayName())
		if n.Code != nil {
			s += fmt.Sprintf(" code=%06d", *n.Code)
		}
		return s
	case notify.PairingResult:
		return fmt.Sprintf("pairing %s %s", n.Device.DisplayName(), outcome(n.Success))
	case notify.UnpairResult:
		return fmt.Sprintf("unpair %s %s", n.Device.DisplayName(), outcome(n.Success))
	default:
		return fmt.Sprintf("%T", n)
	}
}

func outcome(success bool) string {
	if success {
		return okColor.Sprint("succeeded")
	}
	return failColor.Sprint("failed")
}
