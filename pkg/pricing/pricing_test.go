package pricing

import (
	"errors"
	"math/big"
	"testing"
)

// TestParse_AcceptedShapes verifies that all three accepted input shapes
// produce the same numeric value and the USDC currency.
func TestParse_AcceptedShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "dollar prefix", input: "$0.005", want: "0.005"},
		{name: "dollar prefix with space", input: "$ 0.005", want: "0.005"},
		{name: "usdc suffix with space", input: "0.005 USDC", want: "0.005"},
		{name: "usdc suffix no space", input: "0.005USDC", want: "0.005"},
		{name: "usdc suffix lowercase", input: "0.005usdc", want: "0.005"},
		{name: "bare number", input: "0.005", want: "0.005"},
		{name: "surrounding whitespace", input: "  $1.5  ", want: "1.5"},
		{name: "integer", input: "3", want: "3"},
		{name: "ceiling", input: "$1000", want: "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if p.Amount.String() != tt.want {
				t.Fatalf("Parse(%q) amount = %s, want %s", tt.input, p.Amount, tt.want)
			}
			if p.Currency != CurrencyUSDC {
				t.Fatalf("Parse(%q) currency = %s, want %s", tt.input, p.Currency, CurrencyUSDC)
			}
		})
	}
}

// TestParse_Rejections verifies that invalid inputs fail with the specific
// error kind for each failure class.
func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{input: "", want: ErrInvalidFormat},
		{input: "abc", want: ErrInvalidFormat},
		{input: "$", want: ErrInvalidFormat},
		{input: "0.1 ETH", want: ErrInvalidFormat},
		{input: "$-1", want: ErrNotPositive},
		{input: "-0.5", want: ErrNotPositive},
		{input: "$0", want: ErrNotPositive},
		{input: "0", want: ErrNotPositive},
		{input: "$1001", want: ErrTooHigh},
		{input: "1000.01USDC", want: ErrTooHigh},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.input, err, tt.want)
			}
		})
	}
}

// TestFormatX402_RoundTrip verifies the round-trip law: formatting a parsed
// price always yields a "$"-prefixed string that parses back to an equal value.
func TestFormatX402_RoundTrip(t *testing.T) {
	inputs := []string{"$0.005", "0.005 USDC", "0.005", "$12.34", "1000", "0.000001USDC"}

	for _, in := range inputs {
		p, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", in, err)
		}
		formatted := p.FormatX402()
		if formatted[0] != '$' {
			t.Fatalf("FormatX402(%q) = %q, expected leading $", in, formatted)
		}
		back, err := Parse(formatted)
		if err != nil {
			t.Fatalf("Parse(FormatX402(%q)) returned error: %v", in, err)
		}
		if !back.Equal(p) {
			t.Fatalf("round trip of %q changed value: %s -> %s", in, p, back)
		}
	}
}

// TestAtomicUnits verifies conversion into 6-decimal USDC units, including
// rejection of amounts below the token's precision.
func TestAtomicUnits(t *testing.T) {
	p, err := Parse("$0.005")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	units, err := p.AtomicUnits()
	if err != nil {
		t.Fatalf("AtomicUnits returned error: %v", err)
	}
	if units.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("AtomicUnits = %s, want 5000", units)
	}

	sub, err := Parse("0.0000001")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if _, err := sub.AtomicUnits(); !errors.Is(err, ErrSubAtomic) {
		t.Fatalf("AtomicUnits error = %v, want ErrSubAtomic", err)
	}
}
