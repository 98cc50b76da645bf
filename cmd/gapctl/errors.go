package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/classicgap/gap"
	"github.com/srg/classicgap/internal/agent"
	"github.com/srg/classicgap/internal/bondstore"
	"github.com/srg/classicgap/internal/hci"
	"github.com/srg/classicgap/internal/notify"
	"github.com/srg/classicgap/internal/transport"
)

// Command-level errors
var (
	ErrNotDiscovered  = errors.New("device not discovered")
	ErrPairingFailed  = errors.New("pairing failed")
	ErrPowerUpTimeout = errors.New("adapter did not power up")
)

// FormatUserError turns an error chain into one line for the terminal.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var gerr *gap.Error
	if errors.As(err, &gerr) {
		switch gerr.Kind {
		case gap.KindNotReady:
			return "the Bluetooth adapter is not ready, is it powered and free of bluetoothd?"
		case gap.KindDeviceNotFound:
			return fmt.Sprintf("device %s is not in the discovered list, scan first", gerr.Address)
		case gap.KindMalformedPasskey:
			return "a passkey is 1 to 6 decimal digits"
		case gap.KindLibraryError:
			return "the adapter rejected the command: " + statusText(gerr.Code)
		}
	}

	var serr *agent.ScriptError
	if errors.As(err, &serr) {
		return "agent script: " + serr.Error()
	}

	switch {
	case errors.Is(err, transport.ErrUnsupported):
		return "HCI sockets are only available on Linux, use 'gapctl replay' elsewhere"
	case errors.Is(err, bondstore.ErrNotFound):
		return err.Error()
	case errors.Is(err, notify.ErrMQTTConnect):
		return "could not reach the MQTT broker: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	}

	var st hci.Status
	if errors.As(err, &st) {
		return "adapter error: " + statusText(st)
	}
	return err.Error()
}

func statusText(st hci.Status) string {
	return strings.TrimPrefix(st.Error(), "hci: ")
}
