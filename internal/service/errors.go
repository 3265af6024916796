package service

import "errors"

// Business and validation errors surfaced to callers. The HTTP layer maps
// these to 400; everything else is a 500.
var (
	ErrMissingAuthoritySecret = errors.New("AUTHORITY_SECRET (keypair of admin) is not configured")
	ErrUnauthorized           = errors.New("unauthorized request")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrUnknownToken           = errors.New("invalid token mint/address")
	ErrInvalidDecimals        = errors.New("invalid token decimals")
	ErrMaxSupply              = errors.New("token supply exceeds the maximum allowed limit")
	ErrAlreadyMaxSupply       = errors.New("token supply has already reached the maximum limit")
	ErrInvalidSupplyAmount    = errors.New("unable to mint the requested amount")
	ErrMaxActiveLoans         = errors.New("maximum allowable active loans exceeded; close existing loans before requesting a new one")
	ErrMaxLoanSupplied        = errors.New("maximum loanable amount exhausted")
	ErrAuthorityLoan          = errors.New("authority cannot take loans")
)

// IsBusinessError reports whether err belongs to the validation/business
// taxonomy (as opposed to infrastructure failures)
func IsBusinessError(err error) bool {
	for _, target := range []error{
		ErrUnauthorized, ErrInvalidAmount, ErrUnknownToken, ErrInvalidDecimals,
		ErrMaxSupply, ErrAlreadyMaxSupply, ErrInvalidSupplyAmount,
		ErrMaxActiveLoans, ErrMaxLoanSupplied, ErrAuthorityLoan,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
