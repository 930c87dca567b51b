package donations

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDonation() Donation {
	return Donation{
		Amount:     decimal.RequireFromString("1000.00"),
		Currency:   "INR",
		DonorName:  strPtr("Asha"),
		DonorEmail: strPtr("asha@example.org"),
		DonorPhone: strPtr("+919876543210"),
		DonorPAN:   strPtr("ABCDE1234F"),
		Recurrence: RecurrenceMonthly,
	}
}

func TestValidate_Accepts(t *testing.T) {
	d := validDonation()
	require.NoError(t, d.Validate(decimal.NewFromInt(100000)))
}

func TestValidate_Rejects(t *testing.T) {
	max := decimal.NewFromInt(5000)
	tests := []struct {
		name   string
		mutate func(d *Donation)
	}{
		{"zero amount", func(d *Donation) { d.Amount = decimal.Zero }},
		{"negative amount", func(d *Donation) { d.Amount = decimal.NewFromInt(-1) }},
		{"three decimals", func(d *Donation) { d.Amount = decimal.RequireFromString("10.005") }},
		{"fractional yen", func(d *Donation) { d.Amount, d.Currency = decimal.RequireFromString("100.50"), "JPY" }},
		{"above max", func(d *Donation) { d.Amount = decimal.NewFromInt(5001) }},
		{"lowercase currency", func(d *Donation) { d.Currency = "inr" }},
		{"bad recurrence", func(d *Donation) { d.Recurrence = "weekly" }},
		{"bad email", func(d *Donation) { d.DonorEmail = strPtr("not-an-email") }},
		{"bad phone", func(d *Donation) { d.DonorPhone = strPtr("12ab") }},
		{"bad pan", func(d *Donation) { d.DonorPAN = strPtr("1234") }},
		{"long dedication", func(d *Donation) { d.Dedication = strPtr(strings.Repeat("x", MaxDedicationLength+1)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDonation()
			tt.mutate(&d)
			err := d.Validate(max)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDonation))
		})
	}
}

func TestValidate_CurrencyPrecision(t *testing.T) {
	d := validDonation()
	d.Currency = "JPY"
	d.Amount = decimal.RequireFromString("101")
	require.NoError(t, d.Validate(decimal.Zero))

	d.Amount = decimal.RequireFromString("101.00")
	require.NoError(t, d.Validate(decimal.Zero))

	d.Currency = "USD"
	d.Amount = decimal.RequireFromString("100.50")
	require.NoError(t, d.Validate(decimal.Zero))
}

func TestCurrencyExponent(t *testing.T) {
	assert.Equal(t, int32(0), CurrencyExponent("JPY"))
	assert.Equal(t, int32(0), CurrencyExponent("krw"))
	assert.Equal(t, int32(2), CurrencyExponent("INR"))
	assert.Equal(t, int32(2), CurrencyExponent("USD"))
}

func TestNewOrderRef(t *testing.T) {
	a, b := NewOrderRef(), NewOrderRef()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 20)
	assert.True(t, strings.HasPrefix(a, "ORD-"))
	assert.Equal(t, strings.ToUpper(a), a)
}

func TestDisplayName(t *testing.T) {
	d := validDonation()
	assert.Equal(t, "Asha", d.DisplayName())
	d.Anonymous = true
	assert.Equal(t, "Anonymous donor", d.DisplayName())
}
