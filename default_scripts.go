package classicgap

import _ "embed"

// DefaultAgentScript is the embedded example pairing agent.
//
//go:embed examples/agent.lua
var DefaultAgentScript string

// DefaultReplayScript is the embedded discovery and pairing replay.
//
//go:embed examples/replay.yaml
var DefaultReplayScript string
