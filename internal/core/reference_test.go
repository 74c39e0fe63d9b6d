package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"einvoicing/internal/core"
)

func TestPlaceholderReferenceGenerator(t *testing.T) {
	ref, err := core.NewPlaceholderReferenceGenerator("").Generate(context.Background(), &core.Invoice{ID: 12, DisplayNumber: "SETT7"})
	require.NoError(t, err)
	assert.Equal(t, "CUFE-12-SETT7", ref)

	ref, err = core.NewPlaceholderReferenceGenerator("TEST").Generate(context.Background(), &core.Invoice{ID: 1, DisplayNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, "TEST-1-1", ref)

	_, err = core.NewPlaceholderReferenceGenerator("").Generate(context.Background(), &core.Invoice{})
	assert.ErrorIs(t, err, core.ErrReferenceGeneration)
}
