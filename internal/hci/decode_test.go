package hci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/classicgap/internal/device"
)

func evt(code EventCode, params ...byte) []byte {
	return append([]byte{PacketEvent, byte(code), byte(len(params))}, params...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestDecode_InquiryResults(t *testing.T) {
	wire := testAddr.Wire()
	cod := []byte{0x04, 0x04, 0x24} // audio + rendering headset

	t.Run("standard inquiry result with two records", func(t *testing.T) {
		other := device.MustParseAddress("11:22:33:44:55:66")
		pkt := evt(EvtInquiryResult, cat(
			[]byte{0x02},
			wire, []byte{0x01, 0x00, 0x00}, cod, []byte{0x34, 0x12},
			other.Wire(), []byte{0x02, 0x00, 0x00}, []byte{0x0C, 0x02, 0x5A}, []byte{0x00, 0x00},
		)...)

		events, err := Decode(pkt)
		require.NoError(t, err)
		require.Len(t, events, 2)

		first := events[0].(InquiryResult)
		assert.Equal(t, testAddr, first.Address)
		assert.Equal(t, device.ClassOfDevice(0x240404), first.ClassOfDevice)
		assert.Equal(t, uint8(1), first.PageScanRepetitionMode)
		assert.Equal(t, uint16(0x1234), first.ClockOffset)
		assert.Nil(t, first.Name)
		assert.Nil(t, first.RSSI)

		second := events[1].(InquiryResult)
		assert.Equal(t, other, second.Address)
		assert.Equal(t, device.ClassOfDevice(0x5A020C), second.ClassOfDevice)
	})

	t.Run("inquiry result with RSSI", func(t *testing.T) {
		pkt := evt(EvtInquiryResultWithRSSI, cat(
			[]byte{0x01}, wire, []byte{0x01, 0x00}, cod, []byte{0x00, 0x10}, []byte{0xC4},
		)...)

		events, err := Decode(pkt)
		require.NoError(t, err)
		require.Len(t, events, 1)

		r := events[0].(InquiryResult)
		require.NotNil(t, r.RSSI)
		assert.Equal(t, int8(-60), *r.RSSI)
		assert.Equal(t, uint16(0x1000), r.ClockOffset)
	})

	t.Run("extended inquiry result carries the complete name", func(t *testing.T) {
		eir := cat(
			[]byte{0x02, 0x01, 0x06},                  // flags
			[]byte{0x04, eirShortName, 'S', 'p', 'k'}, // shortened
			[]byte{0x08, eirCompleteName, 'S', 'p', 'e', 'a', 'k', 'e', 'r'},
			[]byte{0x00},
		)
		pkt := evt(EvtExtendedInquiryResult, cat(
			[]byte{0x01}, wire, []byte{0x01, 0x00}, cod, []byte{0x00, 0x00}, []byte{0xD8}, eir,
		)...)

		events, err := Decode(pkt)
		require.NoError(t, err)
		require.Len(t, events, 1)

		r := events[0].(InquiryResult)
		assert.Equal(t, []byte("Speaker"), r.Name, "complete name MUST win over shortened name")
		assert.Equal(t, int8(-40), *r.RSSI)
	})

	t.Run("truncated record count is rejected", func(t *testing.T) {
		pkt := evt(EvtInquiryResult, cat([]byte{0x02}, wire, []byte{0x01, 0x00, 0x00}, cod, []byte{0, 0})...)
		_, err := Decode(pkt)
		assert.ErrorIs(t, err, ErrShortPacket)
	})
}

func TestEIRName(t *testing.T) {
	tests := []struct {
		name     string
		eir      []byte
		expected []byte
	}{
		{
			name:     "shortened name only",
			eir:      []byte{0x03, eirShortName, 'H', 'i', 0x00},
			expected: []byte("Hi"),
		},
		{
			name:     "no name",
			eir:      []byte{0x02, 0x01, 0x06, 0x00},
			expected: nil,
		},
		{
			name:     "length overruns buffer",
			eir:      []byte{0x09, eirCompleteName, 'A'},
			expected: nil,
		},
		{
			name:     "empty",
			eir:      nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EIRName(tt.eir))
		})
	}
}

func TestDecode_PairingEvents(t *testing.T) {
	wire := testAddr.Wire()

	tests := []struct {
		name     string
		pkt      []byte
		expected Event
	}{
		{
			name:     "inquiry complete",
			pkt:      evt(EvtInquiryComplete, 0x00),
			expected: InquiryComplete{Status: StatusSuccess},
		},
		{
			name:     "pin code request",
			pkt:      evt(EvtPINCodeRequest, wire...),
			expected: PinCodeRequest{Address: testAddr},
		},
		{
			name:     "user passkey request",
			pkt:      evt(EvtUserPasskeyRequest, wire...),
			expected: UserPasskeyRequest{Address: testAddr},
		},
		{
			name:     "user passkey notification",
			pkt:      evt(EvtUserPasskeyNotification, cat(wire, []byte{0x40, 0xE2, 0x01, 0x00})...),
			expected: UserPasskeyNotification{Address: testAddr, Passkey: 123456},
		},
		{
			name:     "simple pairing complete with failure",
			pkt:      evt(EvtSimplePairingComplete, cat([]byte{0x05}, wire)...),
			expected: SimplePairingComplete{Address: testAddr, Status: StatusAuthenticationFailure},
		},
		{
			name:     "command status",
			pkt:      evt(EvtCommandStatus, 0x0C, 0x01, 0x01, 0x04),
			expected: CommandStatus{Status: StatusCommandDisallowed, NumPackets: 1, Opcode: OpInquiry},
		},
		{
			name:     "connection complete masks handle flags",
			pkt:      evt(EvtConnectionComplete, cat([]byte{0x00, 0x0B, 0x20}, wire, []byte{0x01, 0x00})...),
			expected: ConnectionComplete{Status: StatusSuccess, Handle: 0x000B, Address: testAddr, LinkType: 1},
		},
		{
			name:     "authentication complete",
			pkt:      evt(EvtAuthenticationComplete, 0x06, 0x0B, 0x00),
			expected: AuthenticationComplete{Status: StatusPinOrKeyMissing, Handle: 0x000B},
		},
		{
			name:     "disconnection complete",
			pkt:      evt(EvtDisconnectionComplete, 0x00, 0x0B, 0x00, 0x16),
			expected: DisconnectionComplete{Status: StatusSuccess, Handle: 0x000B, Reason: StatusLocalHostTerminated},
		},
		{
			name:     "io capability response",
			pkt:      evt(EvtIOCapabilityResponse, cat(wire, []byte{0x03, 0x00, 0x02})...),
			expected: IOCapabilityResponse{Address: testAddr, IOCapability: IOCapNoInputNoOutput, AuthRequirements: AuthDedicatedBonding},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Decode(tt.pkt)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, tt.expected, events[0])
		})
	}
}

func TestDecode_UserConfirmationRequestCarriesCode(t *testing.T) {
	pkt := evt(EvtUserConfirmationRequest, cat(testAddr.Wire(), []byte{0x3F, 0x42, 0x0F, 0x00})...)

	events, err := Decode(pkt)
	require.NoError(t, err)

	req := events[0].(UserConfirmationRequest)
	require.NotNil(t, req.NumericValue)
	assert.Equal(t, uint32(999999), *req.NumericValue)
}

func TestDecode_RemoteNameAndLinkKey(t *testing.T) {
	name := make([]byte, 248)
	copy(name, "Headphones")

	events, err := Decode(evt(EvtRemoteNameRequestComplete, cat([]byte{0x00}, testAddr.Wire(), name)...))
	require.NoError(t, err)
	rn := events[0].(RemoteNameComplete)
	assert.Equal(t, testAddr, rn.Address)
	assert.True(t, rn.Status.OK())
	assert.Equal(t, "Headphones", device.SanitizeName(rn.Name))

	key := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	events, err = Decode(evt(EvtLinkKeyNotification, cat(testAddr.Wire(), key, []byte{0x05})...))
	require.NoError(t, err)
	lk := events[0].(LinkKeyNotification)
	assert.Equal(t, key, lk.Key[:])
	assert.Equal(t, uint8(5), lk.KeyType)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pkt     []byte
		wantErr error
	}{
		{name: "empty", pkt: nil, wantErr: ErrShortPacket},
		{name: "ACL packet", pkt: []byte{PacketACL, 0, 0, 0, 0}, wantErr: ErrNotEventPacket},
		{name: "header only", pkt: []byte{PacketEvent, 0x01}, wantErr: ErrShortPacket},
		{name: "declared length exceeds data", pkt: []byte{PacketEvent, 0x01, 0x05, 0x00}, wantErr: ErrShortPacket},
		{name: "unknown event code", pkt: evt(0x3E, 0x01), wantErr: ErrUnknownEvent},
		{name: "pin request without address", pkt: evt(EvtPINCodeRequest, 0x01, 0x02), wantErr: ErrShortPacket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.pkt)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
