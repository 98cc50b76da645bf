package transport

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
)

var peer = device.MustParseAddress("00:1A:7D:DA:71:13")

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRecorder_EncodesCommands(t *testing.T) {
	// GOAL: Every transport method MUST produce exactly the HCI command the
	// builders in package hci produce for the same arguments.
	pin, err := hci.PINCodeReply(peer, "0000")
	require.NoError(t, err)

	tests := []struct {
		name string
		call func(r *Recorder) error
		want hci.Command
	}{
		{"inquiry mode", func(r *Recorder) error { return r.SetInquiryMode(hci.InquiryModeRSSI) }, hci.WriteInquiryMode(hci.InquiryModeRSSI)},
		{"start inquiry", func(r *Recorder) error { return r.StartInquiry(8) }, hci.Inquiry(8)},
		{"stop inquiry", func(r *Recorder) error { return r.StopInquiry() }, hci.InquiryCancel()},
		{"remote name", func(r *Recorder) error { return r.RemoteNameRequest(peer, 1, 0x1234) }, hci.RemoteNameRequest(peer, 1, 0x1234)},
		{"discoverable", func(r *Recorder) error { return r.SetDiscoverable(true) }, hci.WriteScanEnable(true)},
		{"hidden", func(r *Recorder) error { return r.SetDiscoverable(false) }, hci.WriteScanEnable(false)},
		{"dedicated bonding", func(r *Recorder) error { return r.DedicatedBonding(peer, ProtectionMITM) }, hci.CreateConnection(peer, 0, 0)},
		{"drop link key", func(r *Recorder) error { return r.DropLinkKey(peer) }, hci.DeleteStoredLinkKey(peer)},
		{"pin", func(r *Recorder) error { return r.PinCodeResponse(peer, "0000") }, pin},
		{"passkey", func(r *Recorder) error { return r.PasskeyResponse(peer, 123456) }, hci.UserPasskeyReply(peer, 123456)},
		{"confirm", func(r *Recorder) error { return r.UserConfirmationResponse(peer, true) }, hci.UserConfirmationReply(peer)},
		{"reject", func(r *Recorder) error { return r.UserConfirmationResponse(peer, false) }, hci.UserConfirmationNegativeReply(peer)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecorder(quietLogger())
			require.NoError(t, tt.call(r))

			cmds := r.Commands()
			require.Len(t, cmds, 1, "exactly one command MUST be recorded")
			assert.Equal(t, tt.want, cmds[0])
		})
	}
}

func TestRecorder_RejectAndAccept(t *testing.T) {
	r := NewRecorder(quietLogger())
	r.Reject(hci.OpInquiry, hci.StatusCommandDisallowed)

	err := r.StartInquiry(5)
	require.Error(t, err)
	assert.ErrorIs(t, err, hci.StatusCommandDisallowed, "rejection MUST surface the configured HCI status")
	assert.Zero(t, r.Count(hci.OpInquiry), "rejected commands MUST NOT be recorded")

	r.Accept(hci.OpInquiry)
	require.NoError(t, r.StartInquiry(5))
	assert.Equal(t, 1, r.Count(hci.OpInquiry))
}

func TestRecorder_InvalidPINIsNotSent(t *testing.T) {
	r := NewRecorder(quietLogger())

	err := r.PinCodeResponse(peer, "")
	assert.ErrorIs(t, err, hci.ErrInvalidPIN)
	assert.Empty(t, r.Commands())
}

func TestRecorder_EmitAndLast(t *testing.T) {
	r := NewRecorder(quietLogger())

	// Dropped, no handler yet.
	r.Emit(hci.InquiryComplete{})

	var got []hci.Event
	r.SetEventHandler(func(ev hci.Event) { got = append(got, ev) })

	r.Emit(hci.StackStateChanged{State: hci.StateWorking}, hci.InquiryComplete{Status: hci.StatusPageTimeout})
	require.Len(t, got, 2)
	assert.Equal(t, hci.StackStateChanged{State: hci.StateWorking}, got[0], "events MUST be delivered in order")
	assert.Equal(t, hci.InquiryComplete{Status: hci.StatusPageTimeout}, got[1])

	require.NoError(t, r.StartInquiry(3))
	require.NoError(t, r.StartInquiry(9))
	last, ok := r.Last(hci.OpInquiry)
	require.True(t, ok)
	assert.Equal(t, hci.Inquiry(9), last)

	r.Reset()
	assert.Empty(t, r.Commands())
	_, ok = r.Last(hci.OpInquiry)
	assert.False(t, ok)
}
