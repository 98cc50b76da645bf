package hci

import (
	"github.com/srg/classicgap/internal/device"
)

// Event is the closed set of occurrences a radio transport reports to the
// GAP controller. Concrete types are the structs in this file; the
// unexported marker keeps the set closed so a type switch over them can
// be exhaustive.
type Event interface {
	EventName() string
	event()
}

// StackStateChanged reports a power transition of the radio stack.
type StackStateChanged struct {
	State StackState
}

// InquiryResult is one device found by inquiry. Name is the raw EIR name,
// nil when the result carried none.
type InquiryResult struct {
	Address                device.Address
	ClassOfDevice          device.ClassOfDevice
	PageScanRepetitionMode uint8
	ClockOffset            uint16
	Name                   []byte
	RSSI                   *int8
}

// InquiryComplete ends an inquiry round.
type InquiryComplete struct {
	Status Status
}

// RemoteNameComplete answers a Remote Name Request.
type RemoteNameComplete struct {
	Address device.Address
	Status  Status
	Name    []byte
}

// UserConfirmationRequest asks the host to confirm a numeric comparison code.
type UserConfirmationRequest struct {
	Address      device.Address
	NumericValue *uint32
}

// PinCodeRequest asks the host for a legacy PIN.
type PinCodeRequest struct {
	Address device.Address
}

// UserPasskeyRequest asks the host to enter the passkey shown on the peer.
type UserPasskeyRequest struct {
	Address device.Address
}

// UserPasskeyNotification asks the host to display a passkey for the peer to type.
type UserPasskeyNotification struct {
	Address device.Address
	Passkey uint32
}

// DedicatedBondingCompleted ends a bonding started by the host.
type DedicatedBondingCompleted struct {
	Address device.Address
	Status  Status
}

// SimplePairingComplete ends an SSP exchange.
type SimplePairingComplete struct {
	Address device.Address
	Status  Status
}

// Link-level events. The GAP controller ignores these; transports use them to
// drive bonding and key management.

type ConnectionComplete struct {
	Status     Status
	Handle     uint16
	Address    device.Address
	LinkType   uint8
	Encryption bool
}

type DisconnectionComplete struct {
	Status Status
	Handle uint16
	Reason Status
}

type AuthenticationComplete struct {
	Status Status
	Handle uint16
}

type CommandComplete struct {
	NumPackets   uint8
	Opcode       Opcode
	ReturnParams []byte
}

// Status returns the leading status byte of the return parameters.
func (e CommandComplete) Status() Status {
	if len(e.ReturnParams) == 0 {
		return StatusSuccess
	}
	return Status(e.ReturnParams[0])
}

type CommandStatus struct {
	Status     Status
	NumPackets uint8
	Opcode     Opcode
}

type LinkKeyRequest struct {
	Address device.Address
}

type LinkKeyNotification struct {
	Address device.Address
	Key     [16]byte
	KeyType uint8
}

type IOCapabilityRequest struct {
	Address device.Address
}

type IOCapabilityResponse struct {
	Address          device.Address
	IOCapability     uint8
	OOBDataPresent   bool
	AuthRequirements uint8
}

func (StackStateChanged) EventName() string         { return "StackStateChanged" }
func (InquiryResult) EventName() string             { return "InquiryResult" }
func (InquiryComplete) EventName() string           { return "InquiryComplete" }
func (RemoteNameComplete) EventName() string        { return "RemoteNameComplete" }
func (UserConfirmationRequest) EventName() string   { return "UserConfirmationRequest" }
func (PinCodeRequest) EventName() string            { return "PinCodeRequest" }
func (UserPasskeyRequest) EventName() string        { return "UserPasskeyRequest" }
func (UserPasskeyNotification) EventName() string   { return "UserPasskeyNotification" }
func (DedicatedBondingCompleted) EventName() string { return "DedicatedBondingCompleted" }
func (SimplePairingComplete) EventName() string     { return "SimplePairingComplete" }
func (ConnectionComplete) EventName() string        { return "ConnectionComplete" }
func (DisconnectionComplete) EventName() string     { return "DisconnectionComplete" }
func (AuthenticationComplete) EventName() string    { return "AuthenticationComplete" }
func (CommandComplete) EventName() string           { return "CommandComplete" }
func (CommandStatus) EventName() string             { return "CommandStatus" }
func (LinkKeyRequest) EventName() string            { return "LinkKeyRequest" }
func (LinkKeyNotification) EventName() string       { return "LinkKeyNotification" }
func (IOCapabilityRequest) EventName() string       { return "IOCapabilityRequest" }
func (IOCapabilityResponse) EventName() string      { return "IOCapabilityResponse" }

func (StackStateChanged) event()         {}
func (InquiryResult) event()             {}
func (InquiryComplete) event()           {}
func (RemoteNameComplete) event()        {}
func (UserConfirmationRequest) event()   {}
func (PinCodeRequest) event()            {}
func (UserPasskeyRequest) event()        {}
func (UserPasskeyNotification) event()   {}
func (DedicatedBondingCompleted) event() {}
func (SimplePairingComplete) event()     {}
func (ConnectionComplete) event()        {}
func (DisconnectionComplete) event()     {}
func (AuthenticationComplete) event()    {}
func (CommandComplete) event()           {}
func (CommandStatus) event()             {}
func (LinkKeyRequest) event()            {}
func (LinkKeyNotification) event()       {}
func (IOCapabilityRequest) event()       {}
func (IOCapabilityResponse) event()      {}
