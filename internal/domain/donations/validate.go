package donations

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const MaxDedicationLength = 500

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	panPattern      = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// Validate checks a donation before it is written as PENDING.
func (d *Donation) Validate(maxAmount decimal.Decimal) error {
	if !d.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidDonation)
	}
	if !maxAmount.IsZero() && d.Amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount exceeds %s", ErrInvalidDonation, maxAmount.String())
	}
	if !currencyPattern.MatchString(d.Currency) {
		return fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrInvalidDonation)
	}
	if places := CurrencyExponent(d.Currency); !d.Amount.Equal(d.Amount.Round(places)) {
		return fmt.Errorf("%w: %s amounts allow at most %d decimal places", ErrInvalidDonation, d.Currency, places)
	}
	if d.Recurrence != "" && !d.Recurrence.Valid() {
		return fmt.Errorf("%w: unsupported recurrence %q", ErrInvalidDonation, d.Recurrence)
	}
	if email := d.Email(); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return fmt.Errorf("%w: invalid donor email", ErrInvalidDonation)
		}
	}
	if d.DonorPhone != nil && *d.DonorPhone != "" && !phonePattern.MatchString(strings.ReplaceAll(*d.DonorPhone, " ", "")) {
		return fmt.Errorf("%w: invalid donor phone", ErrInvalidDonation)
	}
	if pan := d.PAN(); pan != "" && !panPattern.MatchString(pan) {
		return fmt.Errorf("%w: invalid PAN", ErrInvalidDonation)
	}
	if d.Dedication != nil && utf8.RuneCountInString(*d.Dedication) > MaxDedicationLength {
		return fmt.Errorf("%w: dedication longer than %d characters", ErrInvalidDonation, MaxDedicationLength)
	}
	return nil
}
