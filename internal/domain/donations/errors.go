package donations

import "errors"

var (
	ErrOrderNotFound   = errors.New("donation not found for order reference")
	ErrInvalidDonation = errors.New("invalid donation")
)
