package core

import (
	"context"
	"fmt"
)

// DefaultReferencePrefix is the prefix of placeholder compliance references.
const DefaultReferencePrefix = "CUFE"

// PlaceholderReferenceGenerator builds "<prefix>-<invoice id>-<display number>".
// It stands in for the tax authority's hash until real submission exists.
type PlaceholderReferenceGenerator struct {
	Prefix string
}

// NewPlaceholderReferenceGenerator returns a generator; an empty prefix means DefaultReferencePrefix.
func NewPlaceholderReferenceGenerator(prefix string) PlaceholderReferenceGenerator {
	if prefix == "" {
		prefix = DefaultReferencePrefix
	}
	return PlaceholderReferenceGenerator{Prefix: prefix}
}

func (g PlaceholderReferenceGenerator) Generate(_ context.Context, inv *Invoice) (string, error) {
	if inv == nil || inv.ID == 0 || inv.DisplayNumber == "" {
		return "", fmt.Errorf("invoice has no id or number: %w", ErrReferenceGeneration)
	}
	return fmt.Sprintf("%s-%d-%s", g.Prefix, inv.ID, inv.DisplayNumber), nil
}
