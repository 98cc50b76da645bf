package hci

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/srg/classicgap/internal/device"
)

// MaxPINLength is the longest legacy PIN the controller accepts.
const MaxPINLength = 16

// ErrInvalidPIN is returned when a legacy PIN is empty or longer than MaxPINLength.
var ErrInvalidPIN = errors.New("hci: PIN must be 1 to 16 bytes")

// Command is one HCI command with its already encoded parameters.
type Command struct {
	Opcode Opcode
	Params []byte
}

// Marshal returns the H4 command packet.
func (c Command) Marshal() []byte {
	b := make([]byte, 4+len(c.Params))
	b[0] = PacketCommand
	binary.LittleEndian.PutUint16(b[1:3], uint16(c.Opcode))
	b[3] = byte(len(c.Params))
	copy(b[4:], c.Params)
	return b
}

func (c Command) String() string {
	return fmt.Sprintf("%s % X", c.Opcode, c.Params)
}

// ParseCommand decodes an H4 command packet produced by Marshal.
func ParseCommand(pkt []byte) (Command, error) {
	if len(pkt) < 4 || pkt[0] != PacketCommand {
		return Command{}, fmt.Errorf("%w: not a command packet", ErrShortPacket)
	}
	plen := int(pkt[3])
	if len(pkt) < 4+plen {
		return Command{}, ErrShortPacket
	}
	return Command{
		Opcode: Opcode(binary.LittleEndian.Uint16(pkt[1:3])),
		Params: append([]byte(nil), pkt[4:4+plen]...),
	}, nil
}

func cmd(op Opcode, params ...[]byte) Command {
	var p []byte
	for _, part := range params {
		p = append(p, part...)
	}
	return Command{Opcode: op, Params: p}
}

func u16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

// Reset resets the controller.
func Reset() Command { return cmd(OpReset) }

// Inquiry starts a general inquiry lasting length × 1.28 s with no response limit.
func Inquiry(length uint8) Command {
	return cmd(OpInquiry, GeneralInquiryLAP[:], []byte{length, 0x00})
}

// InquiryCancel aborts a running inquiry.
func InquiryCancel() Command { return cmd(OpInquiryCancel) }

// RemoteNameRequest asks the peer for its user-friendly name.
func RemoteNameRequest(addr device.Address, pageScanRepetitionMode uint8, clockOffset uint16) Command {
	return cmd(OpRemoteNameRequest,
		addr.Wire(),
		[]byte{pageScanRepetitionMode, 0x00},
		u16(clockOffset|clockOffsetValid),
	)
}

// WriteScanEnable sets inquiry+page scan when discoverable, page scan only otherwise.
func WriteScanEnable(discoverable bool) Command {
	mode := byte(0x02)
	if discoverable {
		mode = 0x03
	}
	return cmd(OpWriteScanEnable, []byte{mode})
}

// WriteInquiryMode selects the inquiry result format.
func WriteInquiryMode(mode uint8) Command {
	return cmd(OpWriteInquiryMode, []byte{mode})
}

// WriteSimplePairingMode enables or disables SSP.
func WriteSimplePairingMode(enabled bool) Command {
	v := byte(0)
	if enabled {
		v = 1
	}
	return cmd(OpWriteSimplePairingMode, []byte{v})
}

// CreateConnection pages the peer. Role switch is allowed.
func CreateConnection(addr device.Address, pageScanRepetitionMode uint8, clockOffset uint16) Command {
	if clockOffset != 0 {
		clockOffset |= clockOffsetValid
	}
	return cmd(OpCreateConnection,
		addr.Wire(),
		u16(0xCC18), // DM1 DH1 DM3 DH3 DM5 DH5
		[]byte{pageScanRepetitionMode, 0x00},
		u16(clockOffset),
		[]byte{0x01},
	)
}

// Disconnect terminates the connection with "remote user terminated".
func Disconnect(handle uint16) Command {
	return cmd(OpDisconnect, u16(handle), []byte{byte(StatusRemoteUserTerminated)})
}

// AuthenticationRequested starts authentication on an open connection.
func AuthenticationRequested(handle uint16) Command {
	return cmd(OpAuthenticationRequested, u16(handle))
}

// PINCodeReply answers a PIN Code Request with a legacy PIN.
func PINCodeReply(addr device.Address, pin string) (Command, error) {
	if len(pin) == 0 || len(pin) > MaxPINLength {
		return Command{}, ErrInvalidPIN
	}
	var padded [MaxPINLength]byte
	copy(padded[:], pin)
	return cmd(OpPINCodeReply, addr.Wire(), []byte{byte(len(pin))}, padded[:]), nil
}

// PINCodeNegativeReply refuses a PIN Code Request.
func PINCodeNegativeReply(addr device.Address) Command {
	return cmd(OpPINCodeNegativeReply, addr.Wire())
}

// UserPasskeyReply answers a User Passkey Request.
func UserPasskeyReply(addr device.Address, passkey uint32) Command {
	return cmd(OpUserPasskeyReply, addr.Wire(), binary.LittleEndian.AppendUint32(nil, passkey))
}

// UserPasskeyNegativeReply refuses a User Passkey Request.
func UserPasskeyNegativeReply(addr device.Address) Command {
	return cmd(OpUserPasskeyNegativeReply, addr.Wire())
}

// UserConfirmationReply accepts a numeric comparison.
func UserConfirmationReply(addr device.Address) Command {
	return cmd(OpUserConfirmationReply, addr.Wire())
}

// UserConfirmationNegativeReply rejects a numeric comparison.
func UserConfirmationNegativeReply(addr device.Address) Command {
	return cmd(OpUserConfirmationNegativeReply, addr.Wire())
}

// IOCapabilityReply answers an IO Capability Request. OOB data is never present.
func IOCapabilityReply(addr device.Address, ioCapability, authRequirements uint8) Command {
	return cmd(OpIOCapabilityReply, addr.Wire(), []byte{ioCapability, 0x00, authRequirements})
}

// LinkKeyReply hands a stored link key to the controller.
func LinkKeyReply(addr device.Address, key [16]byte) Command {
	return cmd(OpLinkKeyReply, addr.Wire(), key[:])
}

// LinkKeyNegativeReply tells the controller no key is stored for addr.
func LinkKeyNegativeReply(addr device.Address) Command {
	return cmd(OpLinkKeyNegativeReply, addr.Wire())
}

// DeleteStoredLinkKey removes the controller's copy of the key for addr.
func DeleteStoredLinkKey(addr device.Address) Command {
	return cmd(OpDeleteStoredLinkKey, addr.Wire(), []byte{0x00})
}
