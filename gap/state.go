package gap

import (
	"fmt"

	"github.com/srg/classicgap/internal/hci"
)

// ScanState tells whether the discovery loop is running.
type ScanState int

const (
	ScanOff ScanState = iota
	ScanOn
)

func (s ScanState) String() string {
	switch s {
	case ScanOff:
		return "off"
	case ScanOn:
		return "on"
	default:
		return fmt.Sprintf("ScanState(%d)", int(s))
	}
}

// scanInput drives ScanState transitions.
type scanInput int

const (
	inquiryIssued scanInput = iota
	inquiryRejected
	scanStopped
	stackLeftWorking
)

// scanTransitions is total: every (state, input) pair has a target.
var scanTransitions = map[ScanState]map[scanInput]ScanState{
	ScanOff: {
		inquiryIssued:    ScanOn,
		inquiryRejected:  ScanOff,
		scanStopped:      ScanOff,
		stackLeftWorking: ScanOff,
	},
	ScanOn: {
		inquiryIssued:    ScanOn,
		inquiryRejected:  ScanOff,
		scanStopped:      ScanOff,
		stackLeftWorking: ScanOff,
	},
}

// expectedStackTransitions lists the power transitions a healthy radio
// reports. Anything else is still applied, the radio being the authority,
// but gets logged.
var expectedStackTransitions = map[hci.StackState][]hci.StackState{
	hci.StateUninitialized: {hci.StateInitializing},
	hci.StateInitializing:  {hci.StateWorking, hci.StateHalting},
	hci.StateWorking:       {hci.StateHalting, hci.StateFallingAsleep},
	hci.StateFallingAsleep: {hci.StateSleeping, hci.StateWorking},
	hci.StateSleeping:      {hci.StateInitializing, hci.StateWorking, hci.StateHalting},
	hci.StateHalting:       {hci.StateUninitialized, hci.StateInitializing},
}

// machine is the StackState × ScanState pair. Discovery can only be On
// while the stack is Working; every path that moves the stack away from
// Working also forces the scan Off.
type machine struct {
	stack hci.StackState
	scan  ScanState
}

func (m *machine) working() bool {
	return m.stack == hci.StateWorking
}

func (m *machine) applyScan(in scanInput) ScanState {
	m.scan = scanTransitions[m.scan][in]
	return m.scan
}

// applyStack moves to next and reports whether the move was an expected one.
func (m *machine) applyStack(next hci.StackState) (expected bool) {
	expected = next == m.stack
	for _, s := range expectedStackTransitions[m.stack] {
		if s == next {
			expected = true
			break
		}
	}
	m.stack = next
	if next != hci.StateWorking {
		m.applyScan(stackLeftWorking)
	}
	return expected
}
