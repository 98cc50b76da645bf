package device

import (
	"fmt"
	"strings"
)

// ClassOfDevice is the 24-bit Class of Device field advertised during inquiry.
//
// Layout: bits 23..13 major service classes, bits 12..8 major device class,
// bits 7..2 minor device class, bits 1..0 format type.
type ClassOfDevice uint32

// Major service class bits
const (
	ServiceLimitedDiscoverable ClassOfDevice = 1 << 13
	ServicePositioning         ClassOfDevice = 1 << 16
	ServiceNetworking          ClassOfDevice = 1 << 17
	ServiceRendering           ClassOfDevice = 1 << 18
	ServiceCapturing           ClassOfDevice = 1 << 19
	ServiceObjectTransfer      ClassOfDevice = 1 << 20
	ServiceAudio               ClassOfDevice = 1 << 21
	ServiceTelephony           ClassOfDevice = 1 << 22
	ServiceInformation         ClassOfDevice = 1 << 23

	// AudioSinkServices is the capability mask a peer needs to be useful to
	// this product: audio transport (HFP/HSP) or rendering (A2DP sink).
	AudioSinkServices = ServiceAudio | ServiceRendering

	serviceMask ClassOfDevice = 0xFFE000
)

var serviceNames = []struct {
	bit  ClassOfDevice
	name string
}{
	{ServiceLimitedDiscoverable, "limited-discoverable"},
	{ServicePositioning, "positioning"},
	{ServiceNetworking, "networking"},
	{ServiceRendering, "rendering"},
	{ServiceCapturing, "capturing"},
	{ServiceObjectTransfer, "object-transfer"},
	{ServiceAudio, "audio"},
	{ServiceTelephony, "telephony"},
	{ServiceInformation, "information"},
}

// MajorClass identifies the major device class (bits 12..8).
type MajorClass uint8

const (
	MajorMiscellaneous MajorClass = 0x00
	MajorComputer      MajorClass = 0x01
	MajorPhone         MajorClass = 0x02
	MajorNetwork       MajorClass = 0x03
	MajorAudioVideo    MajorClass = 0x04
	MajorPeripheral    MajorClass = 0x05
	MajorImaging       MajorClass = 0x06
	MajorWearable      MajorClass = 0x07
	MajorToy           MajorClass = 0x08
	MajorHealth        MajorClass = 0x09
	MajorUncategorized MajorClass = 0x1F
)

func (m MajorClass) String() string {
	switch m {
	case MajorMiscellaneous:
		return "miscellaneous"
	case MajorComputer:
		return "computer"
	case MajorPhone:
		return "phone"
	case MajorNetwork:
		return "network"
	case MajorAudioVideo:
		return "audio-video"
	case MajorPeripheral:
		return "peripheral"
	case MajorImaging:
		return "imaging"
	case MajorWearable:
		return "wearable"
	case MajorToy:
		return "toy"
	case MajorHealth:
		return "health"
	case MajorUncategorized:
		return "uncategorized"
	default:
		return fmt.Sprintf("reserved(0x%02x)", uint8(m))
	}
}

// ParseService maps a service name as returned by ServiceNames back to its bit.
func ParseService(name string) (ClassOfDevice, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range serviceNames {
		if s.name == n {
			return s.bit, nil
		}
	}
	return 0, fmt.Errorf("unknown service class %q", name)
}

// Services returns only the major service class bits.
func (c ClassOfDevice) Services() ClassOfDevice {
	return c & serviceMask
}

// SupportsAny reports whether at least one bit of mask is advertised.
func (c ClassOfDevice) SupportsAny(mask ClassOfDevice) bool {
	return c&mask != 0
}

// MajorClass returns the major device class.
func (c ClassOfDevice) MajorClass() MajorClass {
	return MajorClass((c >> 8) & 0x1F)
}

// MinorClass returns the raw minor device class (bits 7..2).
func (c ClassOfDevice) MinorClass() uint8 {
	return uint8((c >> 2) & 0x3F)
}

// ServiceNames lists the advertised major service classes, lowest bit first.
func (c ClassOfDevice) ServiceNames() []string {
	names := make([]string, 0, len(serviceNames))
	for _, s := range serviceNames {
		if c&s.bit != 0 {
			names = append(names, s.name)
		}
	}
	return names
}

func (c ClassOfDevice) String() string {
	return fmt.Sprintf("0x%06X", uint32(c)&0xFFFFFF)
}

// ClassFromWire decodes the 3-byte little-endian CoD field of an HCI event.
func ClassFromWire(b []byte) ClassOfDevice {
	return ClassOfDevice(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
}
