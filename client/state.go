package client

import "slices"

// State is a step of the client round state machine.
type State uint8

const (
	Idle State = iota
	Fetching
	Training
	Protecting
	Submitting
	Accepted
	Retrying
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Fetching:
		return "Fetching"
	case Training:
		return "Training"
	case Protecting:
		return "Protecting"
	case Submitting:
		return "Submitting"
	case Accepted:
		return "Accepted"
	case Retrying:
		return "Retrying"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// A round always starts from Fetching. Accepted, Retrying and Failed end it.
var transitions = map[State][]State{
	Idle:       {Fetching},
	Fetching:   {Training, Failed},
	Training:   {Protecting, Failed},
	Protecting: {Submitting, Failed},
	Submitting: {Accepted, Retrying, Failed},
	Accepted:   {Fetching},
	Retrying:   {Fetching},
	Failed:     {Fetching},
}

func ValidateTransition(from, to State) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}

	return slices.Contains(allowed, to)
}

// IsRoundEnd reports whether s ends a round.
func IsRoundEnd(s State) bool {
	return s == Accepted || s == Retrying || s == Failed
}
