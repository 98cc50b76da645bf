package device

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLen is the size of a Bluetooth device address in bytes.
const AddressLen = 6

// Address is a 48-bit Bluetooth device address (BD_ADDR).
// Bytes are kept in display order: Address[0] is the most significant octet.
type Address [AddressLen]byte

// ParseAddress parses "AA:BB:CC:DD:EE:FF" (':' or '-' separated, any case).
func ParseAddress(s string) (Address, error) {
	var a Address

	s = strings.TrimSpace(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) != AddressLen {
		return a, fmt.Errorf("invalid address %q: expected %d octets", s, AddressLen)
	}

	for i, p := range parts {
		if len(p) != 2 {
			return a, fmt.Errorf("invalid address %q: octet %q must be two hex digits", s, p)
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return a, fmt.Errorf("invalid address %q: %w", s, err)
		}
		a[i] = b[0]
	}

	return a, nil
}

// MustParseAddress is like ParseAddress but panics on malformed input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromWire converts the little-endian BD_ADDR used in HCI packets.
// b must hold at least AddressLen bytes.
func AddressFromWire(b []byte) Address {
	var a Address
	for i := 0; i < AddressLen; i++ {
		a[i] = b[AddressLen-1-i]
	}
	return a
}

// Wire returns the little-endian HCI encoding of the address.
func (a Address) Wire() []byte {
	b := make([]byte, AddressLen)
	for i := 0; i < AddressLen; i++ {
		b[i] = a[AddressLen-1-i]
	}
	return b
}

// IsZero reports whether the address is 00:00:00:00:00:00.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
