package hci

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/srg/classicgap/internal/device"
)

var (
	ErrShortPacket     = errors.New("hci: packet too short")
	ErrUnknownEvent    = errors.New("hci: unknown event")
	ErrNotEventPacket  = errors.New("hci: not an event packet")
	ErrMalformedPacket = errors.New("hci: malformed packet")
)

// EIR data types carrying the local name.
const (
	eirShortName    = 0x08
	eirCompleteName = 0x09
)

// Decode parses one H4 event packet. Inquiry results may pack several
// devices into one packet, hence the slice.
func Decode(pkt []byte) ([]Event, error) {
	if len(pkt) == 0 {
		return nil, ErrShortPacket
	}
	if pkt[0] != PacketEvent {
		return nil, fmt.Errorf("%w: type 0x%02X", ErrNotEventPacket, pkt[0])
	}
	if len(pkt) < 3 {
		return nil, ErrShortPacket
	}

	code := EventCode(pkt[1])
	plen := int(pkt[2])
	if len(pkt) < 3+plen {
		return nil, fmt.Errorf("%w: event 0x%02X wants %d bytes, have %d", ErrShortPacket, uint8(code), plen, len(pkt)-3)
	}
	p := pkt[3 : 3+plen]

	decode, ok := decoders[code]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownEvent, uint8(code))
	}
	events, err := decode(p)
	if err != nil {
		return nil, fmt.Errorf("event 0x%02X: %w", uint8(code), err)
	}
	return events, nil
}

type decoderFn func(p []byte) ([]Event, error)

var decoders = map[EventCode]decoderFn{
	EvtInquiryComplete:           decodeInquiryComplete,
	EvtInquiryResult:             decodeInquiryResult,
	EvtInquiryResultWithRSSI:     decodeInquiryResultWithRSSI,
	EvtExtendedInquiryResult:     decodeExtendedInquiryResult,
	EvtRemoteNameRequestComplete: decodeRemoteNameComplete,
	EvtConnectionComplete:        decodeConnectionComplete,
	EvtDisconnectionComplete:     decodeDisconnectionComplete,
	EvtAuthenticationComplete:    decodeAuthenticationComplete,
	EvtCommandComplete:           decodeCommandComplete,
	EvtCommandStatus:             decodeCommandStatus,
	EvtPINCodeRequest:            addressOnly(func(a device.Address) Event { return PinCodeRequest{Address: a} }),
	EvtLinkKeyRequest:            addressOnly(func(a device.Address) Event { return LinkKeyRequest{Address: a} }),
	EvtIOCapabilityRequest:       addressOnly(func(a device.Address) Event { return IOCapabilityRequest{Address: a} }),
	EvtUserPasskeyRequest:        addressOnly(func(a device.Address) Event { return UserPasskeyRequest{Address: a} }),
	EvtLinkKeyNotification:       decodeLinkKeyNotification,
	EvtIOCapabilityResponse:      decodeIOCapabilityResponse,
	EvtUserConfirmationRequest:   decodeUserConfirmationRequest,
	EvtUserPasskeyNotification:   decodeUserPasskeyNotification,
	EvtSimplePairingComplete:     decodeSimplePairingComplete,
}

func need(p []byte, n int) error {
	if len(p) < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortPacket, n, len(p))
	}
	return nil
}

func one(e Event) ([]Event, error) { return []Event{e}, nil }

func addressOnly(build func(device.Address) Event) decoderFn {
	return func(p []byte) ([]Event, error) {
		if err := need(p, device.AddressLen); err != nil {
			return nil, err
		}
		return one(build(device.AddressFromWire(p)))
	}
}

func decodeInquiryComplete(p []byte) ([]Event, error) {
	if err := need(p, 1); err != nil {
		return nil, err
	}
	return one(InquiryComplete{Status: Status(p[0])})
}

// Inquiry Result records are 14 bytes each: addr(6) psrm(1) period(1)
// mode(1) cod(3) clock(2).
func decodeInquiryResult(p []byte) ([]Event, error) {
	const rec = 14
	if err := need(p, 1); err != nil {
		return nil, err
	}
	n := int(p[0])
	if err := need(p[1:], n*rec); err != nil {
		return nil, err
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		r := p[1+i*rec:]
		out = append(out, InquiryResult{
			Address:                device.AddressFromWire(r[0:6]),
			PageScanRepetitionMode: r[6],
			ClassOfDevice:          device.ClassFromWire(r[9:12]),
			ClockOffset:            binary.LittleEndian.Uint16(r[12:14]),
		})
	}
	return out, nil
}

// Inquiry Result with RSSI records are 14 bytes each: addr(6) psrm(1)
// period(1) cod(3) clock(2) rssi(1).
func decodeInquiryResultWithRSSI(p []byte) ([]Event, error) {
	const rec = 14
	if err := need(p, 1); err != nil {
		return nil, err
	}
	n := int(p[0])
	if err := need(p[1:], n*rec); err != nil {
		return nil, err
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		r := p[1+i*rec:]
		rssi := int8(r[13])
		out = append(out, InquiryResult{
			Address:                device.AddressFromWire(r[0:6]),
			PageScanRepetitionMode: r[6],
			ClassOfDevice:          device.ClassFromWire(r[8:11]),
			ClockOffset:            binary.LittleEndian.Uint16(r[11:13]),
			RSSI:                   &rssi,
		})
	}
	return out, nil
}

// Extended Inquiry Result always carries exactly one response followed by
// up to 240 bytes of EIR data.
func decodeExtendedInquiryResult(p []byte) ([]Event, error) {
	if err := need(p, 15); err != nil {
		return nil, err
	}
	rssi := int8(p[14])
	return one(InquiryResult{
		Address:                device.AddressFromWire(p[1:7]),
		PageScanRepetitionMode: p[7],
		ClassOfDevice:          device.ClassFromWire(p[9:12]),
		ClockOffset:            binary.LittleEndian.Uint16(p[12:14]),
		RSSI:                   &rssi,
		Name:                   EIRName(p[15:]),
	})
}

// EIRName returns the complete local name from EIR data, falling back to the
// shortened name. It returns nil when neither is present.
func EIRName(eir []byte) []byte {
	var short []byte
	for len(eir) > 1 {
		l := int(eir[0])
		if l == 0 || l > len(eir)-1 {
			break
		}
		typ, data := eir[1], eir[2:1+l]
		switch typ {
		case eirCompleteName:
			return append([]byte(nil), data...)
		case eirShortName:
			short = append([]byte(nil), data...)
		}
		eir = eir[1+l:]
	}
	return short
}

func decodeRemoteNameComplete(p []byte) ([]Event, error) {
	if err := need(p, 7); err != nil {
		return nil, err
	}
	return one(RemoteNameComplete{
		Status:  Status(p[0]),
		Address: device.AddressFromWire(p[1:7]),
		Name:    append([]byte(nil), p[7:]...),
	})
}

func decodeConnectionComplete(p []byte) ([]Event, error) {
	if err := need(p, 11); err != nil {
		return nil, err
	}
	return one(ConnectionComplete{
		Status:     Status(p[0]),
		Handle:     binary.LittleEndian.Uint16(p[1:3]) & 0x0FFF,
		Address:    device.AddressFromWire(p[3:9]),
		LinkType:   p[9],
		Encryption: p[10] != 0,
	})
}

func decodeDisconnectionComplete(p []byte) ([]Event, error) {
	if err := need(p, 4); err != nil {
		return nil, err
	}
	return one(DisconnectionComplete{
		Status: Status(p[0]),
		Handle: binary.LittleEndian.Uint16(p[1:3]) & 0x0FFF,
		Reason: Status(p[3]),
	})
}

func decodeAuthenticationComplete(p []byte) ([]Event, error) {
	if err := need(p, 3); err != nil {
		return nil, err
	}
	return one(AuthenticationComplete{
		Status: Status(p[0]),
		Handle: binary.LittleEndian.Uint16(p[1:3]) & 0x0FFF,
	})
}

func decodeCommandComplete(p []byte) ([]Event, error) {
	if err := need(p, 3); err != nil {
		return nil, err
	}
	return one(CommandComplete{
		NumPackets:   p[0],
		Opcode:       Opcode(binary.LittleEndian.Uint16(p[1:3])),
		ReturnParams: append([]byte(nil), p[3:]...),
	})
}

func decodeCommandStatus(p []byte) ([]Event, error) {
	if err := need(p, 4); err != nil {
		return nil, err
	}
	return one(CommandStatus{
		Status:     Status(p[0]),
		NumPackets: p[1],
		Opcode:     Opcode(binary.LittleEndian.Uint16(p[2:4])),
	})
}

func decodeLinkKeyNotification(p []byte) ([]Event, error) {
	if err := need(p, 23); err != nil {
		return nil, err
	}
	e := LinkKeyNotification{
		Address: device.AddressFromWire(p[0:6]),
		KeyType: p[22],
	}
	copy(e.Key[:], p[6:22])
	return one(e)
}

func decodeIOCapabilityResponse(p []byte) ([]Event, error) {
	if err := need(p, 9); err != nil {
		return nil, err
	}
	return one(IOCapabilityResponse{
		Address:          device.AddressFromWire(p[0:6]),
		IOCapability:     p[6],
		OOBDataPresent:   p[7] != 0,
		AuthRequirements: p[8],
	})
}

func decodeUserConfirmationRequest(p []byte) ([]Event, error) {
	if err := need(p, 10); err != nil {
		return nil, err
	}
	v := binary.LittleEndian.Uint32(p[6:10])
	return one(UserConfirmationRequest{
		Address:      device.AddressFromWire(p[0:6]),
		NumericValue: &v,
	})
}

func decodeUserPasskeyNotification(p []byte) ([]Event, error) {
	if err := need(p, 10); err != nil {
		return nil, err
	}
	return one(UserPasskeyNotification{
		Address: device.AddressFromWire(p[0:6]),
		Passkey: binary.LittleEndian.Uint32(p[6:10]),
	})
}

func decodeSimplePairingComplete(p []byte) ([]Event, error) {
	if err := need(p, 7); err != nil {
		return nil, err
	}
	return one(SimplePairingComplete{
		Status:  Status(p[0]),
		Address: device.AddressFromWire(p[1:7]),
	})
}
