// Package hci is the Host Controller Interface boundary of the GAP controller.
//
// It defines the closed Event union the controller dispatches on, the
// StackState of the radio, HCI status codes as errors, and the H4 wire
// format: a command encoder, an event decoder and a Framer that splits a
// byte stream into packets.
//
// Only the Classic discovery and pairing subset of HCI is covered.
package hci
