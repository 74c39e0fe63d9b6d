package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"einvoicing/internal/core"
)

func TestValidateTransition_Table(t *testing.T) {
	allowed := map[[2]core.InvoiceState]bool{
		{core.StateDraft, core.StateIssued}:    true,
		{core.StateDraft, core.StateVoid}:      true,
		{core.StateIssued, core.StateAccepted}: true,
		{core.StateIssued, core.StateRejected}: true,
		{core.StateIssued, core.StateVoid}:     true,
		{core.StateAccepted, core.StateVoid}:   true,
		{core.StateRejected, core.StateVoid}:   true,
	}

	for _, from := range core.InvoiceStates {
		for _, to := range core.InvoiceStates {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				err := core.ValidateTransition(from, to)
				if allowed[[2]core.InvoiceState{from, to}] {
					assert.NoError(t, err)
					return
				}
				assert.True(t, errors.Is(err, core.ErrInvalidTransition))
				var te *core.InvalidTransitionError
				if assert.True(t, errors.As(err, &te)) {
					assert.Equal(t, from, te.From)
					assert.Equal(t, to, te.To)
				}
			})
		}
	}
}

func TestInvoiceState_Predicates(t *testing.T) {
	assert.True(t, core.StateDraft.IsMutable())
	for _, s := range []core.InvoiceState{core.StateIssued, core.StateAccepted, core.StateRejected, core.StateVoid} {
		assert.False(t, s.IsMutable(), s)
		assert.Equal(t, s != core.StateVoid, s.AllowsAnnotations(), s)
	}
	assert.True(t, core.StateVoid.IsTerminal())
	assert.False(t, core.StateAccepted.IsTerminal())
	assert.Equal(t, []core.InvoiceState{core.StateAccepted, core.StateRejected, core.StateVoid}, core.StateIssued.Next())
}

func TestParseInvoiceState(t *testing.T) {
	s, err := core.ParseInvoiceState(" issued ")
	assert.NoError(t, err)
	assert.Equal(t, core.StateIssued, s)

	_, err = core.ParseInvoiceState("EMITIDA")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
