package stripe

import (
	"fmt"
	"strings"

	"donation-app/internal/domain/donations"

	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v75"
)

// NormalizeSessionStatus maps a Checkout session onto the gateway vocabulary.
// A completed session whose payment is still settling (bank debits) is PENDING.
func NormalizeSessionStatus(s *stripego.CheckoutSession) donations.GatewayStatus {
	if s == nil {
		return donations.GatewayPending
	}
	switch s.Status {
	case stripego.CheckoutSessionStatusExpired:
		return donations.GatewayFailure
	case stripego.CheckoutSessionStatusComplete:
		if s.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid {
			return donations.GatewaySuccess
		}
	}
	return donations.GatewayPending
}

// ToMinorUnits converts a major-unit amount into the integer Stripe expects.
// Amounts finer than the currency's minor unit are an error, never rounded.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	minor := amount.Shift(donations.CurrencyExponent(currency))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not a whole number of %s minor units", donations.ErrInvalidDonation, amount.String(), strings.ToUpper(currency))
	}
	return minor.IntPart(), nil
}

func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -donations.CurrencyExponent(currency))
}
