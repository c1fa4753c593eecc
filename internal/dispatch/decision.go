// Package dispatch owns the publish/hold/discard state machine.
package dispatch

import "VideoScanner/internal/domain"

// transitions lists the forward moves allowed from each state. Published and
// discarded states are terminal.
var transitions = map[domain.DispatchState][]domain.DispatchState{
	domain.StatePending: {
		domain.StateAutoPublished,
		domain.StateManuallyPublished,
		domain.StateHeld,
		domain.StateDiscarded,
	},
	domain.StateHeld: {
		domain.StateManuallyPublished,
		domain.StateDiscarded,
	},
}

// CanTransition reports whether from -> to is a documented move.
func CanTransition(from, to domain.DispatchState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Predecessors returns the states from which `to` is reachable in one move.
func Predecessors(to domain.DispatchState) []domain.DispatchState {
	var out []domain.DispatchState
	for _, from := range []domain.DispatchState{domain.StatePending, domain.StateHeld} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Terminal reports whether no move leaves s.
func Terminal(s domain.DispatchState) bool {
	return len(transitions[s]) == 0
}

// Outcome is the ingestion-time decision for a new item.
type Outcome int

const (
	OutcomeHold Outcome = iota
	OutcomeAutoPublish
	OutcomeDiscard
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAutoPublish:
		return "auto_publish"
	case OutcomeDiscard:
		return "discard"
	}
	return "hold"
}

// Input is what the decision looks at.
type Input struct {
	IsSpam       bool
	AutoEligible bool
	Priority     int
	Threshold    int
}

// Decide evaluates the rule once per new item.
func Decide(in Input) Outcome {
	if in.IsSpam {
		return OutcomeDiscard
	}
	if in.AutoEligible && in.Priority >= in.Threshold {
		return OutcomeAutoPublish
	}
	return OutcomeHold
}

// InitialState is the state persisted before any send is attempted.
func InitialState(o Outcome) domain.DispatchState {
	switch o {
	case OutcomeAutoPublish:
		return domain.StatePending
	case OutcomeDiscard:
		return domain.StateDiscarded
	}
	return domain.StateHeld
}
