package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"einvoicing/internal/app"
)

// parseLineFlag parses REFERENCE:QUANTITY:UNIT_PRICE[:DISCOUNT].
func parseLineFlag(s string) (app.LineRequest, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return app.LineRequest{}, fmt.Errorf("line %q: want REFERENCE:QUANTITY:UNIT_PRICE[:DISCOUNT]", s)
	}
	l := app.LineRequest{ProductReference: parts[0], Quantity: parts[1], UnitPrice: parts[2]}
	if len(parts) == 4 {
		l.DiscountPercentage = parts[3]
	}
	return l, nil
}

func parseLineFlags(values []string) ([]app.LineRequest, error) {
	lines := make([]app.LineRequest, 0, len(values))
	for _, v := range values {
		l, err := parseLineFlag(v)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// parseTaxFlag parses TYPE:RATE[:exempt].
func parseTaxFlag(s string) (app.TaxRuleRequest, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return app.TaxRuleRequest{}, fmt.Errorf("tax %q: want TYPE:RATE[:exempt]", s)
	}
	t := app.TaxRuleRequest{Type: parts[0], Rate: parts[1]}
	if len(parts) == 3 {
		if parts[2] != "exempt" {
			return app.TaxRuleRequest{}, fmt.Errorf("tax %q: unknown modifier %q", s, parts[2])
		}
		applies := false
		t.Applies = &applies
	}
	return t, nil
}

// readRequestFile decodes a JSON request from path, or from stdin when path is "-".
func readRequestFile(path string, stdin io.Reader, v any) error {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request JSON: %w", err)
	}
	return nil
}
