// Package pricing normalizes human-entered price strings into a structured
// amount/currency pair and renders it back into the wire format expected by
// the x402 payment gate. All arithmetic uses decimal.Decimal to avoid
// floating-point drift on money values.
package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyUSDC is the only settlement currency currently supported.
const CurrencyUSDC = "USDC"

// USDCDecimals is the number of decimal places of the USDC token.
const USDCDecimals = 6

// MaxAmount is the sanity ceiling for a single call price. It guards against
// unit-confusion mistakes such as entering cents where dollars were meant.
var MaxAmount = decimal.NewFromInt(1000)

// Validation errors returned by Parse.
var (
	ErrInvalidFormat = errors.New(`invalid price format: use "$0.01", "0.01 USDC" or "0.01"`)
	ErrNotANumber    = errors.New("price is not a valid number")
	ErrNotPositive   = errors.New("price must be greater than zero")
	ErrTooHigh       = errors.New("price exceeds the 1000 USDC ceiling; did you enter cents instead of dollars?")
	// ErrSubAtomic is returned by AtomicUnits when the amount has more
	// fractional digits than the USDC token can represent.
	ErrSubAtomic = fmt.Errorf("price has more than %d decimal places and cannot be settled in USDC atomic units", USDCDecimals)
)

// Price is an immutable parsed price. Construct it with Parse; the zero value
// is not a valid price.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// dollarRe matches "$<number>", usdcRe matches "<number>USDC" with an
// optional space and case-insensitive suffix, bareRe matches "<number>".
// A leading sign is accepted by the extraction step so that "$-1" is
// reported as a non-positive amount rather than a malformed string.
var (
	dollarRe = regexp.MustCompile(`^\$\s*(-?[0-9]*\.?[0-9]+)$`)
	usdcRe   = regexp.MustCompile(`(?i)^(-?[0-9]*\.?[0-9]+)\s?usdc$`)
	bareRe   = regexp.MustCompile(`^-?[0-9]*\.?[0-9]+$`)
)

// Parse normalizes a user-supplied price string. Accepted shapes are
// "$<n>", "<n>USDC" (optional space, any case) and a bare "<n>".
// Whitespace around the whole string and after a leading "$" is ignored.
//
// The amount must parse as a finite decimal, be strictly positive and not
// exceed MaxAmount.
func Parse(input string) (Price, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Price{}, ErrInvalidFormat
	}

	var numeric string
	switch {
	case dollarRe.MatchString(s):
		numeric = dollarRe.FindStringSubmatch(s)[1]
	case usdcRe.MatchString(s):
		numeric = usdcRe.FindStringSubmatch(s)[1]
	case bareRe.MatchString(s):
		numeric = s
	default:
		return Price{}, ErrInvalidFormat
	}

	amount, err := decimal.NewFromString(numeric)
	if err != nil {
		return Price{}, ErrNotANumber
	}
	if amount.Sign() <= 0 {
		return Price{}, ErrNotPositive
	}
	if amount.GreaterThan(MaxAmount) {
		return Price{}, ErrTooHigh
	}

	return Price{Amount: amount, Currency: CurrencyUSDC}, nil
}

// FormatX402 renders the price in the "$<amount>" form the payment gate
// advertises. It is the exact inverse of Parse up to value equality:
// Parse(p.FormatX402()) yields a price equal to p.
func (p Price) FormatX402() string {
	return "$" + p.Amount.String()
}

// AtomicUnits converts the price into USDC atomic units (6 decimals) as
// required by EIP-3009 transfer authorizations. Returns ErrSubAtomic when
// the amount carries fractional digits beyond the token's precision.
func (p Price) AtomicUnits() (*big.Int, error) {
	scaled := p.Amount.Shift(USDCDecimals)
	if !scaled.IsInteger() {
		return nil, ErrSubAtomic
	}
	return scaled.BigInt(), nil
}

// Equal reports value equality of two prices.
func (p Price) Equal(other Price) bool {
	return p.Currency == other.Currency && p.Amount.Equal(other.Amount)
}

// String implements fmt.Stringer.
func (p Price) String() string {
	return p.Amount.String() + " " + p.Currency
}
