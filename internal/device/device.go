package device

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the largest remote name HCI can carry, in bytes.
const MaxNameLength = 248

// NameFetchState tracks the remote-name lookup of a discovered device.
type NameFetchState int

const (
	NameNotRequested NameFetchState = iota
	NameRequested                   // waiting for a remote name request to be issued
	NameInquired                    // remote name request in flight
	NameFetched
	NameFetchFailed
)

var nameFetchStateNames = map[NameFetchState]string{
	NameNotRequested: "not_requested",
	NameRequested:    "requested",
	NameInquired:     "inquired",
	NameFetched:      "fetched",
	NameFetchFailed:  "fetch_failed",
}

func (s NameFetchState) String() string {
	if n, ok := nameFetchStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("NameFetchState(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s NameFetchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *NameFetchState) UnmarshalText(text []byte) error {
	for state, name := range nameFetchStateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown name fetch state %q", string(text))
}

// Device is one remote Classic peer observed during inquiry or pairing.
type Device struct {
	Address                Address        `json:"address"`
	Name                   string         `json:"name,omitempty"`
	ClassOfDevice          ClassOfDevice  `json:"classOfDevice"`
	PageScanRepetitionMode uint8          `json:"pageScanRepetitionMode"`
	ClockOffset            uint16         `json:"clockOffset"`
	RSSI                   *int8          `json:"rssi,omitempty"`
	NameFetchState         NameFetchState `json:"nameFetchState"`

	// IsPairingSSP selects the passkey path over the legacy PIN path while a
	// handshake is running. Meaningless otherwise.
	IsPairingSSP bool `json:"isPairingSSP"`
}

// New returns a device known only by its address.
func New(addr Address) Device {
	return Device{Address: addr}
}

// DisplayName returns the fetched name, or the address while no name is known.
func (d Device) DisplayName() string {
	if d.Name == "" {
		return d.Address.String()
	}
	return d.Name
}

// Clone returns a copy that shares no memory with d.
func (d Device) Clone() Device {
	c := d
	if d.RSSI != nil {
		rssi := *d.RSSI
		c.RSSI = &rssi
	}
	return c
}

// MarshalJSON adds the derived display name and service list.
func (d Device) MarshalJSON() ([]byte, error) {
	type plain Device
	return json.Marshal(struct {
		plain
		DisplayName string   `json:"displayName"`
		Services    []string `json:"services"`
	}{
		plain:       plain(d),
		DisplayName: d.DisplayName(),
		Services:    d.ClassOfDevice.ServiceNames(),
	})
}

// SanitizeName turns a raw remote name into something safe to display and store:
// it stops at the first NUL, replaces invalid UTF-8 and caps the length at
// MaxNameLength bytes without splitting a rune.
func SanitizeName(raw []byte) string {
	if i := strings.IndexByte(string(raw), 0); i >= 0 {
		raw = raw[:i]
	}
	name := strings.ToValidUTF8(string(raw), "�")

	if len(name) <= MaxNameLength {
		return name
	}
	cut := MaxNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
