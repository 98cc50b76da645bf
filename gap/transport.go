package gap

import (
	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
)

// Transport is the radio the controller drives. Every command is fire and
// forget: a nil error means the radio accepted it, the outcome arrives later
// as an hci.Event through the registered handler. Rejections should be
// reported as hci.Status when the radio supplied one.
type Transport interface {
	// SetEventHandler installs the single callback events are delivered to.
	SetEventHandler(handler func(hci.Event))

	SetInquiryMode(mode uint8) error
	StartInquiry(length uint8) error
	StopInquiry() error
	RemoteNameRequest(addr device.Address, pageScanRepetitionMode uint8, clockOffset uint16) error
	SetDiscoverable(discoverable bool) error

	DedicatedBonding(addr device.Address, protectionLevel uint8) error
	DropLinkKey(addr device.Address) error

	PinCodeResponse(addr device.Address, pin string) error
	PasskeyResponse(addr device.Address, passkey uint32) error
	UserConfirmationResponse(addr device.Address, accepted bool) error
}
