// Package device models remote Bluetooth Classic peers as seen by the GAP
// controller.
//
// It provides:
//   - Address, the 48-bit BD_ADDR with HCI wire (little-endian) conversion
//   - ClassOfDevice with service-class and major-class decoding
//   - Device, the value stored in the registry and handed to notifications
//   - NameFetchState, the per-device remote-name lookup progress
//
// Everything that comes from a remote radio is untrusted; SanitizeName is
// applied to every name before it is stored.
package device
