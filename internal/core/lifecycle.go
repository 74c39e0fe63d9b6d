package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InvoiceState is a lifecycle state of an invoice.
type InvoiceState string

const (
	StateDraft    InvoiceState = "DRAFT"
	StateIssued   InvoiceState = "ISSUED"
	StateAccepted InvoiceState = "ACCEPTED"
	StateRejected InvoiceState = "REJECTED"
	StateVoid     InvoiceState = "VOID"
)

// InvoiceStates lists every state in lifecycle order.
var InvoiceStates = []InvoiceState{StateDraft, StateIssued, StateAccepted, StateRejected, StateVoid}

var transitions = map[InvoiceState][]InvoiceState{
	StateDraft:    {StateIssued, StateVoid},
	StateIssued:   {StateAccepted, StateRejected, StateVoid},
	StateAccepted: {StateVoid},
	StateRejected: {StateVoid},
	StateVoid:     nil,
}

// ParseInvoiceState normalises s and rejects unknown states.
func ParseInvoiceState(s string) (InvoiceState, error) {
	st := InvoiceState(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown invoice state %q: %w", s, ErrInvalidInput)
	}
	return st, nil
}

// Valid reports whether s is a known state.
func (s InvoiceState) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsMutable reports whether lines, number and totals may still change.
func (s InvoiceState) IsMutable() bool { return s == StateDraft }

// IsTerminal reports whether no further transition exists.
func (s InvoiceState) IsTerminal() bool { return len(transitions[s]) == 0 }

// AllowsAnnotations reports whether notes and observations may still change.
func (s InvoiceState) AllowsAnnotations() bool { return s != StateVoid }

// Next returns the states reachable from s in one step.
func (s InvoiceState) Next() []InvoiceState {
	return append([]InvoiceState(nil), transitions[s]...)
}

// CanTransitionTo reports whether s → target is a legal move.
func (s InvoiceState) CanTransitionTo(target InvoiceState) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns an *InvalidTransitionError for illegal moves.
func ValidateTransition(from, to InvoiceState) error {
	if !from.CanTransitionTo(to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

func (s *InvoiceState) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := ParseInvoiceState(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
