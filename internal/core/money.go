// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values in the business currency (IDR). They travel as
// JSON numbers and are formatted for display with FormatIDR.
package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative decimal monetary value.
type Amount struct {
	d decimal.Decimal
}

// NewAmount returns an amount of whole currency units.
func NewAmount(units int64) Amount {
	return Amount{d: decimal.NewFromInt(units)}
}

// AmountFromFloat converts a float, as read from spreadsheets or charts.
func AmountFromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f)}
}

// AmountFromDecimal wraps an existing decimal value.
func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d}
}

// ParseAmount converts a user supplied decimal string to an Amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rounds half-up to two decimal places. Signs, thousands separators and
// anything non-numeric are rejected.
//
// Examples:
//
//	ParseAmount("1500")    -> 1500
//	ParseAmount("12,5")    -> 12.5
//	ParseAmount("12.345")  -> 12.35
//	ParseAmount("-1")      -> ErrInvalidAmount
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Amount{}, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return Amount{}, ErrInvalidAmount
		}
	}
	if s == "." {
		return Amount{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{d: d.Round(2)}, nil
}

func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

func (a Amount) IsPositive() bool {
	return a.d.IsPositive()
}

// Float64 returns the amount as a float for charts and spreadsheets.
// Use the decimal value for arithmetic.
func (a Amount) Float64() float64 {
	return a.d.InexactFloat64()
}

func (a Amount) String() string {
	return a.d.String()
}

func (a Amount) Validate() error {
	if a.d.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON renders the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string such as "1500.00".
// Anything else is rejected with ErrInvalidAmount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
		raw = strings.TrimSpace(s)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return ErrInvalidAmount
	}
	*a = Amount{d: d}
	return nil
}

// FormatIDR formats an amount as Indonesian rupiah, e.g. "Rp 1.500.000,00".
func FormatIDR(a Amount) string {
	d := a.d
	neg := d.IsNegative()
	if neg {
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	s := "Rp " + b.String() + "," + frac
	if neg {
		return "-" + s
	}
	return s
}
