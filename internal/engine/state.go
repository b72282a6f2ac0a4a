// SPDX-License-Identifier: MIT
package engine

import (
	"fmt"
	"strings"
)

// State is the phase of the analysis loop.
type State int32

const (
	Idle      State = iota // Constructed, Run not called yet.
	Capturing              // Blocked in FrameSource.Read.
	Analyzing              // Spectrum and pitch stages.
	Emitting               // Handing the frame to the sink.
	Stopped                // Terminal; the source has been closed.
)

var stateNames = [...]string{"Idle", "Capturing", "Analyzing", "Emitting", "Stopped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// OverflowPolicy decides what a cycle analyzes after an input overflow.
type OverflowPolicy int

const (
	RepeatLast OverflowPolicy = iota // Re-analyze the last good block, or zeros before the first.
	ZeroBlock                        // Analyze an all-zero block, which reports silence.
	SkipCycle                        // Emit nothing for the cycle.
)

func (p OverflowPolicy) String() string {
	switch p {
	case ZeroBlock:
		return "zero"
	case SkipCycle:
		return "skip"
	default:
		return "repeat"
	}
}

// ParseOverflowPolicy converts "repeat", "zero" or "skip" to a policy. The
// empty string selects RepeatLast.
func ParseOverflowPolicy(name string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "repeat":
		return RepeatLast, nil
	case "zero":
		return ZeroBlock, nil
	case "skip":
		return SkipCycle, nil
	default:
		return RepeatLast, fmt.Errorf("unknown overflow policy: '%s'", name)
	}
}
