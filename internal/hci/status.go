package hci

import "fmt"

// Status is an HCI status / error code as returned in Command Status,
// Command Complete and most completion events.
type Status uint8

const (
	StatusSuccess                       Status = 0x00
	StatusUnknownCommand                Status = 0x01
	StatusUnknownConnectionID           Status = 0x02
	StatusPageTimeout                   Status = 0x04
	StatusAuthenticationFailure         Status = 0x05
	StatusPinOrKeyMissing               Status = 0x06
	StatusMemoryCapacityExceeded        Status = 0x07
	StatusConnectionTimeout             Status = 0x08
	StatusACLConnectionExists           Status = 0x0B
	StatusCommandDisallowed             Status = 0x0C
	StatusRejectedLimitedResources      Status = 0x0D
	StatusRejectedUnacceptableAddress   Status = 0x0F
	StatusInvalidParameters             Status = 0x12
	StatusRemoteUserTerminated          Status = 0x13
	StatusLocalHostTerminated           Status = 0x16
	StatusPairingNotAllowed             Status = 0x18
	StatusUnsupportedRemoteFeature      Status = 0x1A
	StatusUnspecifiedError              Status = 0x1F
	StatusLMPResponseTimeout            Status = 0x22
	StatusLMPTransactionCollision       Status = 0x23
	StatusPairingWithUnitKeyUnsupported Status = 0x29
	StatusInsufficientSecurity          Status = 0x2F
	StatusConnectionFailedToEstablish   Status = 0x3E
)

var statusNames = map[Status]string{
	StatusSuccess:                       "success",
	StatusUnknownCommand:                "unknown HCI command",
	StatusUnknownConnectionID:           "unknown connection identifier",
	StatusPageTimeout:                   "page timeout",
	StatusAuthenticationFailure:         "authentication failure",
	StatusPinOrKeyMissing:               "PIN or key missing",
	StatusMemoryCapacityExceeded:        "memory capacity exceeded",
	StatusConnectionTimeout:             "connection timeout",
	StatusACLConnectionExists:           "ACL connection already exists",
	StatusCommandDisallowed:             "command disallowed",
	StatusRejectedLimitedResources:      "connection rejected due to limited resources",
	StatusRejectedUnacceptableAddress:   "connection rejected due to unacceptable BD_ADDR",
	StatusInvalidParameters:             "invalid HCI command parameters",
	StatusRemoteUserTerminated:          "remote user terminated connection",
	StatusLocalHostTerminated:           "connection terminated by local host",
	StatusPairingNotAllowed:             "pairing not allowed",
	StatusUnsupportedRemoteFeature:      "unsupported remote feature",
	StatusUnspecifiedError:              "unspecified error",
	StatusLMPResponseTimeout:            "LMP response timeout",
	StatusLMPTransactionCollision:       "LMP error transaction collision",
	StatusPairingWithUnitKeyUnsupported: "pairing with unit key not supported",
	StatusInsufficientSecurity:          "insufficient security",
	StatusConnectionFailedToEstablish:   "connection failed to be established",
}

func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return fmt.Sprintf("hci: %s (0x%02X)", name, uint8(s))
	}
	return fmt.Sprintf("hci: status 0x%02X", uint8(s))
}

// OK reports whether s is StatusSuccess.
func (s Status) OK() bool { return s == StatusSuccess }

// Err returns nil for StatusSuccess and s otherwise.
func (s Status) Err() error {
	if s == StatusSuccess {
		return nil
	}
	return s
}
