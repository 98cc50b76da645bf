package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/classicgap/gap"
	"github.com/srg/classicgap/internal/agent"
	"github.com/srg/classicgap/internal/bondstore"
	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
	"github.com/srg/classicgap/internal/transport"
)

func TestFormatUserError(t *testing.T) {
	addr := device.MustParseAddress("00:1A:7D:DA:71:13")

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"not ready", fmt.Errorf("scan: %w", gap.ErrNotReady), "the Bluetooth adapter is not ready, is it powered and free of bluetoothd?"},
		{"unknown device", &gap.Error{Kind: gap.KindDeviceNotFound, Address: addr}, "device 00:1A:7D:DA:71:13 is not in the discovered list, scan first"},
		{"malformed passkey", &gap.Error{Kind: gap.KindMalformedPasskey}, "a passkey is 1 to 6 decimal digits"},
		{"library error", &gap.Error{Kind: gap.KindLibraryError, Code: hci.StatusPageTimeout}, "the adapter rejected the command: page timeout (0x04)"},
		{"script error", &agent.ScriptError{Type: "syntax", Message: "unexpected symbol", Line: 3, Source: "a.lua"}, "agent script: Lua syntax error (in a.lua, line 3): unexpected symbol"},
		{"not linux", fmt.Errorf("open: %w", transport.ErrUnsupported), "HCI sockets are only available on Linux, use 'gapctl replay' elsewhere"},
		{"missing bond", fmt.Errorf("%w: %s", bondstore.ErrNotFound, addr), "bond not found: 00:1A:7D:DA:71:13"},
		{"timeout", fmt.Errorf("pair: %w", context.DeadlineExceeded), "timed out"},
		{"raw status", fmt.Errorf("write: %w", hci.StatusCommandDisallowed), "adapter error: command disallowed (0x0C)"},
		{"anything else", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUserError(tt.err))
		})
	}
}
