package money_test

import (
	"encoding/json"
	"testing"

	"einvoicing/internal/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney_RejectsExtraDigits(t *testing.T) {
	_, err := money.ParseMoney("10.005")
	require.ErrorIs(t, err, money.ErrTooManyDigits)

	m, err := money.ParseMoney("10.5")
	require.NoError(t, err)
	assert.Equal(t, "10.50", m.String())
}

func TestParsePercentage_Range(t *testing.T) {
	tests := []struct {
		in      string
		wantErr error
	}{
		{"0", nil},
		{"19.00", nil},
		{"100", nil},
		{"100.01", money.ErrOutOfRange},
		{"-1", money.ErrOutOfRange},
		{"5.125", money.ErrTooManyDigits},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := money.ParsePercentage(tt.in)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRoundingModes(t *testing.T) {
	tie := decimal.RequireFromString("0.125")
	assert.Equal(t, "0.13", money.NewMoney(tie, money.RoundHalfUp).String())
	assert.Equal(t, "0.12", money.NewMoney(tie, money.RoundHalfEven).String())

	odd := decimal.RequireFromString("0.135")
	assert.Equal(t, "0.14", money.NewMoney(odd, money.RoundHalfUp).String())
	assert.Equal(t, "0.14", money.NewMoney(odd, money.RoundHalfEven).String())
}

func TestParseRoundingMode(t *testing.T) {
	m, err := money.ParseRoundingMode("")
	require.NoError(t, err)
	assert.Equal(t, money.RoundHalfUp, m)

	m, err = money.ParseRoundingMode("HALF_EVEN")
	require.NoError(t, err)
	assert.Equal(t, money.RoundHalfEven, m)

	_, err = money.ParseRoundingMode("ceiling")
	assert.Error(t, err)
}

func TestMoneyArithmetic(t *testing.T) {
	price := money.MustMoney("100000.00")
	qty := money.MustQuantity("3")

	sub := money.NewMoney(price.MulQuantity(qty), money.RoundHalfUp)
	assert.Equal(t, "300000.00", sub.String())

	disc := money.NewMoney(sub.MulPercentage(money.MustPercentage("10")), money.RoundHalfUp)
	assert.Equal(t, "30000.00", disc.String())
	assert.Equal(t, "270000.00", sub.Sub(disc).String())
	assert.Equal(t, "600000.00", money.Sum(sub, sub).String())
	assert.True(t, money.Zero.IsZero())
}

func TestEffectiveRate(t *testing.T) {
	rate := money.EffectiveRate(money.MustMoney("27.00"), money.MustMoney("200.00"), money.RoundHalfUp)
	assert.Equal(t, "13.50", rate.String())

	assert.True(t, money.EffectiveRate(money.MustMoney("1.00"), money.Zero, money.RoundHalfUp).IsZero())
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Price money.Money      `json:"price"`
		Qty   money.Quantity   `json:"qty"`
		Rate  money.Percentage `json:"rate"`
	}
	in := payload{
		Price: money.MustMoney("12.5"),
		Qty:   money.MustQuantity("1.25"),
		Rate:  money.MustPercentage("19"),
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"12.50","qty":"1.250","rate":"19.00"}`, string(b))

	var out payload
	require.NoError(t, json.Unmarshal([]byte(`{"price":12.5,"qty":"1.25","rate":"19"}`), &out))
	assert.True(t, out.Price.Equal(in.Price))
	assert.Equal(t, "1.250", out.Qty.String())
	assert.True(t, out.Rate.Equal(in.Rate))

	assert.Error(t, json.Unmarshal([]byte(`{"rate":"101"}`), &out))
}

func TestScanAndValue(t *testing.T) {
	var m money.Money
	require.NoError(t, m.Scan("51300.00"))
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "51300.00", v)

	var p money.Percentage
	require.NoError(t, p.Scan([]byte("19.00")))
	assert.True(t, p.InRange())
}
