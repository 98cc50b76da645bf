// Package transport provides the radios the GAP controller drives: an HCI
// socket transport for real adapters and a Recorder that captures commands
// and replays events without hardware.
package transport

import (
	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
)

// commander turns controller requests into HCI commands and hands them to
// send. Transports embed it and override what needs more than one command.
type commander struct {
	send func(hci.Command) error
}

func (c commander) SetInquiryMode(mode uint8) error {
	return c.send(hci.WriteInquiryMode(mode))
}

func (c commander) StartInquiry(length uint8) error {
	return c.send(hci.Inquiry(length))
}

func (c commander) StopInquiry() error {
	return c.send(hci.InquiryCancel())
}

func (c commander) RemoteNameRequest(addr device.Address, pageScanRepetitionMode uint8, clockOffset uint16) error {
	return c.send(hci.RemoteNameRequest(addr, pageScanRepetitionMode, clockOffset))
}

func (c commander) SetDiscoverable(discoverable bool) error {
	return c.send(hci.WriteScanEnable(discoverable))
}

// DedicatedBonding opens the link the bonding runs on. The protection level
// only matters once the peer asks for IO capabilities.
func (c commander) DedicatedBonding(addr device.Address, _ uint8) error {
	return c.send(hci.CreateConnection(addr, 0, 0))
}

func (c commander) DropLinkKey(addr device.Address) error {
	return c.send(hci.DeleteStoredLinkKey(addr))
}

func (c commander) PinCodeResponse(addr device.Address, pin string) error {
	cmd, err := hci.PINCodeReply(addr, pin)
	if err != nil {
		return err
	}
	return c.send(cmd)
}

func (c commander) PasskeyResponse(addr device.Address, passkey uint32) error {
	return c.send(hci.UserPasskeyReply(addr, passkey))
}

func (c commander) UserConfirmationResponse(addr device.Address, accepted bool) error {
	if accepted {
		return c.send(hci.UserConfirmationReply(addr))
	}
	return c.send(hci.UserConfirmationNegativeReply(addr))
}
