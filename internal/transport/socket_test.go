package transport

import (
	"context"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/classicgap/internal/hci"
)

const waitTimeout = 2 * time.Second

// fakeAdapter plays the controller side of an H4 stream: bytes injected by
// the test are read by the Socket, commands written by the Socket are parsed
// and queued.
type fakeAdapter struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	cmds chan hci.Command
}

func newFakeAdapter() *fakeAdapter {
	r, w := io.Pipe()
	return &fakeAdapter{r: r, w: w, cmds: make(chan hci.Command, 64)}
}

func (f *fakeAdapter) Read(b []byte) (int, error) { return f.r.Read(b) }

func (f *fakeAdapter) Write(b []byte) (int, error) {
	cmd, err := hci.ParseCommand(b)
	if err != nil {
		return 0, err
	}
	f.cmds <- cmd
	return len(b), nil
}

func (f *fakeAdapter) Close() error { return f.r.Close() }

func evt(code hci.EventCode, params ...byte) []byte {
	return append([]byte{hci.PacketEvent, byte(code), byte(len(params))}, params...)
}

func commandComplete(op hci.Opcode, status hci.Status) []byte {
	return evt(hci.EvtCommandComplete, 0x01, byte(op), byte(op>>8), byte(status))
}

func commandStatus(op hci.Opcode, status hci.Status) []byte {
	return evt(hci.EvtCommandStatus, byte(status), 0x01, byte(op), byte(op>>8))
}

func connectionComplete(status hci.Status, handle uint16) []byte {
	p := []byte{byte(status)}
	p = binary.LittleEndian.AppendUint16(p, handle)
	p = append(p, peer.Wire()...)
	p = append(p, 0x01, 0x00)
	return evt(hci.EvtConnectionComplete, p...)
}

func authenticationComplete(status hci.Status, handle uint16) []byte {
	p := binary.LittleEndian.AppendUint16([]byte{byte(status)}, handle)
	return evt(hci.EvtAuthenticationComplete, p...)
}

type SocketTestSuite struct {
	suite.Suite

	adapter *fakeAdapter
	socket  *Socket
	events  chan hci.Event
}

func (s *SocketTestSuite) SetupTest() {
	s.adapter = newFakeAdapter()
	s.socket = NewSocket(s.adapter, quietLogger())
	s.events = make(chan hci.Event, 64)
	s.socket.SetEventHandler(func(ev hci.Event) { s.events <- ev })
}

func (s *SocketTestSuite) TearDownTest() {
	_ = s.socket.Close()
}

func (s *SocketTestSuite) inject(pkt []byte) {
	_, err := s.adapter.w.Write(pkt)
	s.Require().NoError(err)
}

func (s *SocketTestSuite) expectCommand(op hci.Opcode) hci.Command {
	select {
	case cmd := <-s.adapter.cmds:
		s.Require().Equal(op, cmd.Opcode, "unexpected command %s", cmd)
		return cmd
	case <-time.After(waitTimeout):
		s.FailNow("timed out waiting for command", "want %s", op)
	}
	return hci.Command{}
}

func (s *SocketTestSuite) expectEvent() hci.Event {
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(waitTimeout):
		s.FailNow("timed out waiting for event")
	}
	return nil
}

func (s *SocketTestSuite) expectState(state hci.StackState) {
	s.Require().Equal(hci.StackStateChanged{State: state}, s.expectEvent())
}

func (s *SocketTestSuite) powerUp() {
	s.Require().NoError(s.socket.Start(context.Background()))
	s.expectState(hci.StateInitializing)

	s.expectCommand(hci.OpReset)
	s.inject(commandComplete(hci.OpReset, hci.StatusSuccess))
	s.expectCommand(hci.OpWriteSimplePairingMode)
	s.inject(commandComplete(hci.OpWriteSimplePairingMode, hci.StatusSuccess))
	s.expectCommand(hci.OpWriteInquiryMode)
	s.inject(commandComplete(hci.OpWriteInquiryMode, hci.StatusSuccess))
	s.expectState(hci.StateWorking)
}

func (s *SocketTestSuite) TestPowerUpUsesStoredInquiryMode() {
	// GOAL: The inquiry mode requested before power-up MUST be written during
	// the power-up sequence.
	s.Require().NoError(s.socket.SetInquiryMode(hci.InquiryModeRSSI))
	s.Require().NoError(s.socket.Start(context.Background()))
	s.expectState(hci.StateInitializing)

	s.expectCommand(hci.OpReset)
	s.inject(commandComplete(hci.OpReset, hci.StatusSuccess))
	ssp := s.expectCommand(hci.OpWriteSimplePairingMode)
	s.Equal([]byte{0x01}, ssp.Params, "simple pairing MUST be enabled")

	// Refusals after reset do not stop the stack from working.
	s.inject(commandComplete(hci.OpWriteSimplePairingMode, hci.StatusCommandDisallowed))
	mode := s.expectCommand(hci.OpWriteInquiryMode)
	s.Equal([]byte{hci.InquiryModeRSSI}, mode.Params)
	s.inject(commandComplete(hci.OpWriteInquiryMode, hci.StatusSuccess))
	s.expectState(hci.StateWorking)
	s.Equal(hci.StateWorking, s.socket.State())

	s.Require().NoError(s.socket.SetInquiryMode(hci.InquiryModeStandard))
	s.expectCommand(hci.OpWriteInquiryMode)
}

func (s *SocketTestSuite) TestResetFailureHalts() {
	s.Require().NoError(s.socket.Start(context.Background()))
	s.expectState(hci.StateInitializing)
	s.expectCommand(hci.OpReset)

	s.inject(commandComplete(hci.OpReset, hci.StatusUnspecifiedError))
	s.expectState(hci.StateHalting)
}

func (s *SocketTestSuite) TestStartTwice() {
	s.Require().NoError(s.socket.Start(context.Background()))
	s.ErrorIs(s.socket.Start(context.Background()), ErrAlreadyStarted)
}

func (s *SocketTestSuite) TestCloseLeavesWorking() {
	s.powerUp()
	s.Require().NoError(s.socket.Close())
	s.expectState(hci.StateHalting)
}

func (s *SocketTestSuite) TestDedicatedBondingSuccess() {
	// GOAL: A host-started bonding MUST authenticate the new link, report a
	// single DedicatedBondingCompleted and tear the link down.
	//
	// TEST SCENARIO: Create Connection succeeds → Authentication Requested is
	// sent → peer IO capabilities are answered with MITM dedicated bonding →
	// Simple Pairing Complete is swallowed → Authentication Complete yields
	// DedicatedBondingCompleted and a Disconnect.
	s.powerUp()

	s.Require().NoError(s.socket.DedicatedBonding(peer, ProtectionMITM))
	s.expectCommand(hci.OpCreateConnection)

	s.inject(connectionComplete(hci.StatusSuccess, 0x0042))
	auth := s.expectCommand(hci.OpAuthenticationRequested)
	s.Equal([]byte{0x42, 0x00}, auth.Params)

	s.inject(evt(hci.EvtIOCapabilityRequest, peer.Wire()...))
	caps := s.expectCommand(hci.OpIOCapabilityReply)
	s.Equal(append(peer.Wire(), hci.IOCapDisplayYesNo, 0x00, hci.AuthDedicatedBondingMITM), caps.Params)

	var key [16]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	s.inject(evt(hci.EvtSimplePairingComplete, append([]byte{0x00}, peer.Wire()...)...))
	s.inject(evt(hci.EvtLinkKeyNotification, append(append(peer.Wire(), key[:]...), 0x05)...))
	s.inject(authenticationComplete(hci.StatusSuccess, 0x0042))

	s.Equal(hci.DedicatedBondingCompleted{Address: peer, Status: hci.StatusSuccess}, s.expectEvent(),
		"simple pairing complete of an own bonding MUST NOT be forwarded")
	s.expectCommand(hci.OpDisconnect)

	stored, ok := s.socket.LinkKey(peer)
	s.True(ok, "link key notification MUST be stored")
	s.Equal(key, stored)
}

func (s *SocketTestSuite) TestDedicatedBondingFailures() {
	tests := []struct {
		name   string
		inject func()
		status hci.Status
	}{
		{
			name:   "connection rejected by adapter",
			inject: func() { s.inject(commandStatus(hci.OpCreateConnection, hci.StatusCommandDisallowed)) },
			status: hci.StatusCommandDisallowed,
		},
		{
			name:   "page timeout",
			inject: func() { s.inject(connectionComplete(hci.StatusPageTimeout, 0)) },
			status: hci.StatusPageTimeout,
		},
	}

	s.powerUp()
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Require().NoError(s.socket.DedicatedBonding(peer, ProtectionNone))
			s.expectCommand(hci.OpCreateConnection)

			tt.inject()
			s.Equal(hci.DedicatedBondingCompleted{Address: peer, Status: tt.status}, s.expectEvent())
		})
	}
}

func (s *SocketTestSuite) TestPeerInitiatedPairingIsForwarded() {
	s.powerUp()

	s.inject(evt(hci.EvtIOCapabilityRequest, peer.Wire()...))
	caps := s.expectCommand(hci.OpIOCapabilityReply)
	s.Equal(hci.AuthGeneralBondingMITM, caps.Params[8], "peer-initiated pairing MUST ask for general bonding with MITM")

	s.inject(evt(hci.EvtUserPasskeyRequest, peer.Wire()...))
	s.Equal(hci.UserPasskeyRequest{Address: peer}, s.expectEvent())

	s.inject(evt(hci.EvtSimplePairingComplete, append([]byte{byte(hci.StatusAuthenticationFailure)}, peer.Wire()...)...))
	s.Equal(hci.SimplePairingComplete{Address: peer, Status: hci.StatusAuthenticationFailure}, s.expectEvent())
}

func (s *SocketTestSuite) TestLinkKeyRequests() {
	s.powerUp()

	s.inject(evt(hci.EvtLinkKeyRequest, peer.Wire()...))
	s.expectCommand(hci.OpLinkKeyNegativeReply)

	key := [16]byte{0xAA}
	s.socket.SetLinkKey(peer, key)
	s.inject(evt(hci.EvtLinkKeyRequest, peer.Wire()...))
	reply := s.expectCommand(hci.OpLinkKeyReply)
	s.Equal(append(peer.Wire(), key[:]...), reply.Params)

	s.Require().NoError(s.socket.DropLinkKey(peer))
	s.expectCommand(hci.OpDeleteStoredLinkKey)
	_, ok := s.socket.LinkKey(peer)
	s.False(ok, "dropped key MUST be forgotten")
}

func (s *SocketTestSuite) TestRejectedNameRequestCompletes() {
	// GOAL: A Remote Name Request the adapter refuses MUST still produce a
	// RemoteNameComplete so discovery can move on.
	s.powerUp()

	s.Require().NoError(s.socket.RemoteNameRequest(peer, 1, 0x1234))
	s.expectCommand(hci.OpRemoteNameRequest)

	s.inject(commandStatus(hci.OpRemoteNameRequest, hci.StatusMemoryCapacityExceeded))
	s.Equal(hci.RemoteNameComplete{Address: peer, Status: hci.StatusMemoryCapacityExceeded}, s.expectEvent())
}

func (s *SocketTestSuite) TestDiscoveryEventsSurviveGarbage() {
	s.powerUp()

	// Unknown indicator, then an unknown event, then a real one.
	s.inject([]byte{0x7F})
	s.inject(evt(0xFE, 0x00))
	s.inject(evt(hci.EvtInquiryComplete, 0x00))

	s.Equal(hci.InquiryComplete{Status: hci.StatusSuccess}, s.expectEvent())
}

func TestSocketTestSuite(t *testing.T) {
	suite.Run(t, new(SocketTestSuite))
}

func TestSocket_WriteBeforeStart(t *testing.T) {
	s := NewSocket(newFakeAdapter(), quietLogger())

	err := s.SetDiscoverable(true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)

	assert.NoError(t, s.SetInquiryMode(hci.InquiryModeRSSIAndEIR), "inquiry mode MUST be stored until power-up")
}
