// Package notify carries the GAP controller's outbound notifications to the
// owning service: device list updates, authentication prompts and pairing
// outcomes.
package notify

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/srg/classicgap/internal/device"
)

// AuthPath is the authentication method a pairing handshake uses.
type AuthPath int

const (
	AuthPathPin AuthPath = iota
	AuthPathPasskey
	AuthPathNumericComparison
)

func (p AuthPath) String() string {
	switch p {
	case AuthPathPin:
		return "pin"
	case AuthPathPasskey:
		return "passkey"
	case AuthPathNumericComparison:
		return "numeric_comparison"
	default:
		return fmt.Sprintf("AuthPath(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p AuthPath) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Topic names, also used as MQTT topic suffixes.
const (
	TopicDevices = "devices"
	TopicAuth    = "auth"
	TopicPairing = "pairing"
	TopicUnpair  = "unpair"
)

// Notification is one outbound message. The set is closed.
type Notification interface {
	Topic() string
	notification()
}

// DeviceListChanged carries a copy of the whole registry.
type DeviceListChanged struct {
	Devices []device.Device `json:"devices"`
}

// AuthenticationRequested asks the user to take part in a pairing handshake.
// Code is set for numeric comparison and passkey display.
type AuthenticationRequested struct {
	Device    device.Device `json:"device"`
	Path      AuthPath      `json:"path"`
	Code      *uint32       `json:"code,omitempty"`
	SessionID uuid.UUID     `json:"sessionId"`
}

// PairingResult ends a pairing handshake. SessionID is uuid.Nil when the
// handshake was started by the peer and never prompted the user.
type PairingResult struct {
	Device    device.Device `json:"device"`
	Success   bool          `json:"success"`
	SessionID uuid.UUID     `json:"sessionId"`
}

// UnpairResult confirms a link key removal.
type UnpairResult struct {
	Device  device.Device `json:"device"`
	Success bool          `json:"success"`
}

func (DeviceListChanged) Topic() string       { return TopicDevices }
func (AuthenticationRequested) Topic() string { return TopicAuth }
func (PairingResult) Topic() string           { return TopicPairing }
func (UnpairResult) Topic() string            { return TopicUnpair }

func (DeviceListChanged) notification()       {}
func (AuthenticationRequested) notification() {}
func (PairingResult) notification()           {}
func (UnpairResult) notification()            {}

// Publisher receives notifications. Publish must not block for long: the
// controller calls it while processing radio events.
type Publisher interface {
	Publish(n Notification)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Notification)

func (f PublisherFunc) Publish(n Notification) { f(n) }

// Fanout publishes to every non-nil publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(n Notification) {
	for _, p := range f {
		if p != nil {
			p.Publish(n)
		}
	}
}

// Discard drops everything.
var Discard Publisher = PublisherFunc(func(Notification) {})
