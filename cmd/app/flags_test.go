package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"einvoicing/internal/app"
)

func TestParseLineFlag(t *testing.T) {
	l, err := parseLineFlag("SKU-1:3:100000.00:10")
	require.NoError(t, err)
	assert.Equal(t, app.LineRequest{ProductReference: "SKU-1", Quantity: "3", UnitPrice: "100000.00", DiscountPercentage: "10"}, l)

	l, err = parseLineFlag("SKU-2:1:5000")
	require.NoError(t, err)
	assert.Empty(t, l.DiscountPercentage)

	_, err = parseLineFlag("SKU-3:1")
	assert.Error(t, err)
	_, err = parseLineFlag("a:1:2:3:4")
	assert.Error(t, err)
}

func TestParseTaxFlag(t *testing.T) {
	tax, err := parseTaxFlag("IVA:19")
	require.NoError(t, err)
	assert.Equal(t, "IVA", tax.Type)
	assert.Nil(t, tax.Applies)

	tax, err = parseTaxFlag("IVA:5:exempt")
	require.NoError(t, err)
	require.NotNil(t, tax.Applies)
	assert.False(t, *tax.Applies)

	_, err = parseTaxFlag("IVA:5:maybe")
	assert.Error(t, err)
}

func TestReadRequestFile_Stdin(t *testing.T) {
	var req app.CreateInvoiceRequest
	in := strings.NewReader(`{"client_reference":"C-1","lines":[{"product_reference":"SKU-1","quantity":"1","unit_price":"10.00"}]}`)
	require.NoError(t, readRequestFile("-", in, &req))
	assert.Equal(t, "C-1", req.ClientReference)
	require.Len(t, req.Lines, 1)

	err := readRequestFile("-", strings.NewReader(`{"bogus":1}`), &req)
	assert.ErrorContains(t, err, "invalid request JSON")
}

func TestDemoCommand(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"demo"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		rt = runtime{}
	})

	require.NoError(t, rootCmd.Execute())

	var inv struct {
		DisplayNumber     string `json:"display_number"`
		State             string `json:"state"`
		GrandTotal        string `json:"grand_total"`
		ExternalReference string `json:"external_reference"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &inv))
	assert.Equal(t, "SETT1", inv.DisplayNumber)
	assert.Equal(t, "ISSUED", inv.State)
	// 321300.00 + 50000.00 + 4000.00 INC
	assert.Equal(t, "375300.00", inv.GrandTotal)
	assert.Equal(t, "CUFE-1-SETT1", inv.ExternalReference)
}
