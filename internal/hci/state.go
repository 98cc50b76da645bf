package hci

import "fmt"

// StackState is the power state of the local radio stack.
type StackState int

const (
	StateUninitialized StackState = iota
	StateInitializing
	StateWorking
	StateHalting
	StateSleeping
	StateFallingAsleep
)

func (s StackState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateWorking:
		return "working"
	case StateHalting:
		return "halting"
	case StateSleeping:
		return "sleeping"
	case StateFallingAsleep:
		return "falling_asleep"
	default:
		return fmt.Sprintf("StackState(%d)", int(s))
	}
}

// ParseStackState is the inverse of StackState.String.
func ParseStackState(s string) (StackState, error) {
	for st := StateUninitialized; st <= StateFallingAsleep; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StateUninitialized, fmt.Errorf("unknown stack state %q", s)
}
