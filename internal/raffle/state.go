package raffle

import "fmt"

// State is the lifecycle of a round. The zero value is Open.
type State uint8

const (
	Open State = iota
	Calculating
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Calculating:
		return "CALCULATING"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) Valid() bool {
	return s == Open || s == Calculating
}
