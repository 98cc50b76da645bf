package hci

import "fmt"

// H4 packet indicators.
const (
	PacketCommand byte = 0x01
	PacketACL     byte = 0x02
	PacketSCO     byte = 0x03
	PacketEvent   byte = 0x04
)

// Opcode is an HCI command opcode (OGF << 10 | OCF).
type Opcode uint16

// Link control (OGF 0x01)
const (
	OpInquiry                       Opcode = 0x0401
	OpInquiryCancel                 Opcode = 0x0402
	OpCreateConnection              Opcode = 0x0405
	OpDisconnect                    Opcode = 0x0406
	OpLinkKeyReply                  Opcode = 0x040B
	OpLinkKeyNegativeReply          Opcode = 0x040C
	OpPINCodeReply                  Opcode = 0x040D
	OpPINCodeNegativeReply          Opcode = 0x040E
	OpAuthenticationRequested       Opcode = 0x0411
	OpRemoteNameRequest             Opcode = 0x0419
	OpIOCapabilityReply             Opcode = 0x042B
	OpUserConfirmationReply         Opcode = 0x042C
	OpUserConfirmationNegativeReply Opcode = 0x042D
	OpUserPasskeyReply              Opcode = 0x042E
	OpUserPasskeyNegativeReply      Opcode = 0x042F
)

// Controller & baseband (OGF 0x03)
const (
	OpReset                  Opcode = 0x0C03
	OpDeleteStoredLinkKey    Opcode = 0x0C12
	OpWriteScanEnable        Opcode = 0x0C1A
	OpWriteInquiryMode       Opcode = 0x0C45
	OpWriteSimplePairingMode Opcode = 0x0C56
)

var opcodeNames = map[Opcode]string{
	OpInquiry:                       "Inquiry",
	OpInquiryCancel:                 "Inquiry Cancel",
	OpCreateConnection:              "Create Connection",
	OpDisconnect:                    "Disconnect",
	OpLinkKeyReply:                  "Link Key Request Reply",
	OpLinkKeyNegativeReply:          "Link Key Request Negative Reply",
	OpPINCodeReply:                  "PIN Code Request Reply",
	OpPINCodeNegativeReply:          "PIN Code Request Negative Reply",
	OpAuthenticationRequested:       "Authentication Requested",
	OpRemoteNameRequest:             "Remote Name Request",
	OpIOCapabilityReply:             "IO Capability Request Reply",
	OpUserConfirmationReply:         "User Confirmation Request Reply",
	OpUserConfirmationNegativeReply: "User Confirmation Request Negative Reply",
	OpUserPasskeyReply:              "User Passkey Request Reply",
	OpUserPasskeyNegativeReply:      "User Passkey Request Negative Reply",
	OpReset:                         "Reset",
	OpDeleteStoredLinkKey:           "Delete Stored Link Key",
	OpWriteScanEnable:               "Write Scan Enable",
	OpWriteInquiryMode:              "Write Inquiry Mode",
	OpWriteSimplePairingMode:        "Write Simple Pairing Mode",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%04X)", uint16(o))
}

// EventCode identifies an HCI event packet.
type EventCode uint8

const (
	EvtInquiryComplete           EventCode = 0x01
	EvtInquiryResult             EventCode = 0x02
	EvtConnectionComplete        EventCode = 0x03
	EvtDisconnectionComplete     EventCode = 0x05
	EvtAuthenticationComplete    EventCode = 0x06
	EvtRemoteNameRequestComplete EventCode = 0x07
	EvtCommandComplete           EventCode = 0x0E
	EvtCommandStatus             EventCode = 0x0F
	EvtPINCodeRequest            EventCode = 0x16
	EvtLinkKeyRequest            EventCode = 0x17
	EvtLinkKeyNotification       EventCode = 0x18
	EvtInquiryResultWithRSSI     EventCode = 0x22
	EvtExtendedInquiryResult     EventCode = 0x2F
	EvtIOCapabilityRequest       EventCode = 0x31
	EvtIOCapabilityResponse      EventCode = 0x32
	EvtUserConfirmationRequest   EventCode = 0x33
	EvtUserPasskeyRequest        EventCode = 0x34
	EvtSimplePairingComplete     EventCode = 0x36
	EvtUserPasskeyNotification   EventCode = 0x3B
)

// Inquiry modes for Write Inquiry Mode.
const (
	InquiryModeStandard   uint8 = 0x00
	InquiryModeRSSI       uint8 = 0x01
	InquiryModeRSSIAndEIR uint8 = 0x02
)

// GeneralInquiryLAP is the GIAC 0x9E8B33.
var GeneralInquiryLAP = [3]byte{0x33, 0x8B, 0x9E}

// IO capabilities used in the IO Capability Request Reply.
const (
	IOCapDisplayOnly     uint8 = 0x00
	IOCapDisplayYesNo    uint8 = 0x01
	IOCapKeyboardOnly    uint8 = 0x02
	IOCapNoInputNoOutput uint8 = 0x03
)

// Authentication requirements (MITM protection, bonding type).
const (
	AuthDedicatedBonding     uint8 = 0x02
	AuthDedicatedBondingMITM uint8 = 0x03
	AuthGeneralBonding       uint8 = 0x04
	AuthGeneralBondingMITM   uint8 = 0x05
)

// clockOffsetValid marks the clock offset of a Remote Name Request or
// Create Connection as usable by the controller.
const clockOffsetValid uint16 = 0x8000

// MaxInquiryLength is the largest inquiry length in 1.28 s units.
const MaxInquiryLength = 0x30
