package testutils

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
)

// EventBuilder builds one discovered device, either as the decoded
// hci.InquiryResult or as the raw packet an adapter would send for it.
type EventBuilder struct {
	address  device.Address
	cod      device.ClassOfDevice
	psrm     uint8
	clock    uint16
	name     *string
	rssi     *int8
	complete bool
}

// NewEventBuilder starts from an audio sink at 00:00:00:00:00:01.
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		address:  device.MustParseAddress("00:00:00:00:00:01"),
		cod:      device.ServiceAudio | device.ServiceRendering | 0x0404,
		psrm:     1,
		complete: true,
	}
}

func (b *EventBuilder) WithAddress(addr string) *EventBuilder {
	b.address = device.MustParseAddress(addr)
	return b
}

func (b *EventBuilder) WithClass(cod device.ClassOfDevice) *EventBuilder {
	b.cod = cod
	return b
}

// WithServices replaces the service bits, keeping the device class.
func (b *EventBuilder) WithServices(names ...string) *EventBuilder {
	b.cod &^= 0xFFE000
	for _, n := range names {
		s, err := device.ParseService(n)
		if err != nil {
			panic(fmt.Sprintf("WithServices: %v", err))
		}
		b.cod |= s
	}
	return b
}

func (b *EventBuilder) WithName(name string) *EventBuilder {
	b.name = &name
	return b
}

// WithShortName puts the name in a shortened-name EIR field.
func (b *EventBuilder) WithShortName(name string) *EventBuilder {
	b.name = &name
	b.complete = false
	return b
}

func (b *EventBuilder) WithRSSI(rssi int8) *EventBuilder {
	b.rssi = &rssi
	return b
}

func (b *EventBuilder) WithPageScan(psrm uint8, clockOffset uint16) *EventBuilder {
	b.psrm = psrm
	b.clock = clockOffset
	return b
}

// FromJSON fills the builder from a JSON object with the keys address,
// cod, services, name, rssi, psrm and clock_offset. It panics on bad input.
func (b *EventBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *EventBuilder {
	var in struct {
		Address     *string  `json:"address"`
		CoD         *uint32  `json:"cod"`
		Services    []string `json:"services"`
		Name        *string  `json:"name"`
		RSSI        *int8    `json:"rssi"`
		PSRM        *uint8   `json:"psrm"`
		ClockOffset *uint16  `json:"clock_offset"`
	}
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &in); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}

	if in.Address != nil {
		b.WithAddress(*in.Address)
	}
	if in.CoD != nil {
		b.WithClass(device.ClassOfDevice(*in.CoD))
	}
	if in.Services != nil {
		b.WithServices(in.Services...)
	}
	if in.Name != nil {
		b.WithName(*in.Name)
	}
	if in.RSSI != nil {
		b.WithRSSI(*in.RSSI)
	}
	if in.PSRM != nil {
		b.psrm = *in.PSRM
	}
	if in.ClockOffset != nil {
		b.clock = *in.ClockOffset
	}
	return b
}

// Build returns the decoded event.
func (b *EventBuilder) Build() hci.InquiryResult {
	ev := hci.InquiryResult{
		Address:                b.address,
		ClassOfDevice:          b.cod,
		PageScanRepetitionMode: b.psrm,
		ClockOffset:            b.clock,
	}
	if b.name != nil {
		ev.Name = []byte(*b.name)
	}
	if b.rssi != nil {
		rssi := *b.rssi
		ev.RSSI = &rssi
	}
	return ev
}

// Packet returns the H4 event packet: an Extended Inquiry Result when a
// name or RSSI is set, a plain Inquiry Result otherwise.
func (b *EventBuilder) Packet() []byte {
	cod := []byte{byte(b.cod), byte(b.cod >> 8), byte(b.cod >> 16)}
	clock := binary.LittleEndian.AppendUint16(nil, b.clock)

	if b.name == nil && b.rssi == nil {
		p := append([]byte{0x01}, b.address.Wire()...)
		p = append(p, b.psrm, 0x00, 0x00)
		p = append(append(p, cod...), clock...)
		return EventPacket(hci.EvtInquiryResult, p...)
	}

	var rssi int8
	if b.rssi != nil {
		rssi = *b.rssi
	}
	p := append([]byte{0x01}, b.address.Wire()...)
	p = append(p, b.psrm, 0x00)
	p = append(append(p, cod...), clock...)
	p = append(p, byte(rssi))
	if b.name != nil {
		typ := byte(0x09)
		if !b.complete {
			typ = 0x08
		}
		p = append(p, byte(len(*b.name)+1), typ)
		p = append(p, *b.name...)
	}
	return EventPacket(hci.EvtExtendedInquiryResult, p...)
}

// EventPacket frames params as an H4 event packet.
func EventPacket(code hci.EventCode, params ...byte) []byte {
	return append([]byte{hci.PacketEvent, byte(code), byte(len(params))}, params...)
}

// CommandCompletePacket acknowledges op with status.
func CommandCompletePacket(op hci.Opcode, status hci.Status) []byte {
	return EventPacket(hci.EvtCommandComplete, 0x01, byte(op), byte(op>>8), byte(status))
}
