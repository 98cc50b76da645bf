package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/srg/classicgap/internal/device"
)

// DeviceBuilder builds registry entries.
type DeviceBuilder struct {
	dev device.Device
}

func NewDeviceBuilder() *DeviceBuilder {
	return &DeviceBuilder{dev: device.Device{
		Address:       device.MustParseAddress("00:00:00:00:00:01"),
		ClassOfDevice: device.AudioSinkServices | 0x0404,
	}}
}

func (b *DeviceBuilder) WithAddress(addr string) *DeviceBuilder {
	b.dev.Address = device.MustParseAddress(addr)
	return b
}

func (b *DeviceBuilder) WithName(name string) *DeviceBuilder {
	b.dev.Name = name
	b.dev.NameFetchState = device.NameFetched
	return b
}

func (b *DeviceBuilder) WithClass(cod device.ClassOfDevice) *DeviceBuilder {
	b.dev.ClassOfDevice = cod
	return b
}

func (b *DeviceBuilder) WithRSSI(rssi int8) *DeviceBuilder {
	b.dev.RSSI = &rssi
	return b
}

func (b *DeviceBuilder) WithNameFetchState(s device.NameFetchState) *DeviceBuilder {
	b.dev.NameFetchState = s
	return b
}

func (b *DeviceBuilder) WithSSP(ssp bool) *DeviceBuilder {
	b.dev.IsPairingSSP = ssp
	return b
}

// FromJSON overlays the device JSON encoding onto the builder. It panics
// on bad input.
func (b *DeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *DeviceBuilder {
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &b.dev); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}
	return b
}

func (b *DeviceBuilder) Build() device.Device {
	return b.dev.Clone()
}
