// Package types provides common types used across subledger.
package types

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// microPerToken is the number of base units in one whole token.
// The ledger carries 6 implied decimal places.
const microPerToken = 1_000_000

// Amount represents a token quantity in base (micro) units.
// All arithmetic is integer-only — no floating point.
//
// Examples:
//   - Tokens(1000) = 1000.000000 tokens (1_000_000_000 micro)
//   - Micro(500)   = 0.000500 tokens
type Amount struct {
	Micro int64 `json:"micro"` // Base units, 6 implied decimals
}

// Tokens creates an Amount from a whole-token count.
func Tokens(n int64) Amount { return Amount{Micro: n * microPerToken} }

// Micro creates an Amount from base units directly.
func Micro(n int64) Amount { return Amount{Micro: n} }

// Zero returns the zero Amount.
func Zero() Amount { return Amount{} }

// Arithmetic operations

// Add adds two Amounts.
func (a Amount) Add(other Amount) Amount {
	return Amount{Micro: a.Micro + other.Micro}
}

// Subtract subtracts another Amount. The result may be negative; callers
// validate balances before mutating, never after.
func (a Amount) Subtract(other Amount) Amount {
	return Amount{Micro: a.Micro - other.Micro}
}

// Multiply multiplies the Amount by a quantity.
func (a Amount) Multiply(qty int64) Amount {
	return Amount{Micro: a.Micro * qty}
}

// Divide divides the Amount by a divisor. Uses integer division,
// truncating toward zero.
func (a Amount) Divide(divisor int64) Amount {
	if divisor == 0 {
		panic("amount: division by zero")
	}
	return Amount{Micro: a.Micro / divisor}
}

// Prorate returns floor(a * remaining / total) without intermediate
// overflow. It is the refund arithmetic for cancellation: remaining is
// the unused span and total the full duration, both in block-height
// units. Returns Zero when total is zero or remaining is zero.
func (a Amount) Prorate(remaining, total uint64) Amount {
	if total == 0 || remaining == 0 || a.Micro <= 0 {
		return Zero()
	}

	p := new(big.Int).SetInt64(a.Micro)
	p.Mul(p, new(big.Int).SetUint64(remaining))
	p.Quo(p, new(big.Int).SetUint64(total))
	return Amount{Micro: p.Int64()}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.Micro == 0 }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return a.Micro > 0 }

// IsNegative returns true if the amount is less than zero.
func (a Amount) IsNegative() bool { return a.Micro < 0 }

// Equal returns true if both Amounts are equal.
func (a Amount) Equal(other Amount) bool { return a.Micro == other.Micro }

// LessThan returns true if this Amount is less than other.
func (a Amount) LessThan(other Amount) bool { return a.Micro < other.Micro }

// GreaterThan returns true if this Amount is greater than other.
func (a Amount) GreaterThan(other Amount) bool { return a.Micro > other.Micro }

// Min returns the smaller of two Amounts.
func (a Amount) Min(other Amount) Amount {
	if a.Micro < other.Micro {
		return a
	}
	return other
}

// Max returns the larger of two Amounts.
func (a Amount) Max(other Amount) Amount {
	if a.Micro > other.Micro {
		return a
	}
	return other
}

// Formatting methods

// FormatMajor returns the whole-token string with all 6 decimal places:
// "1000.000000" for Tokens(1000), "-0.000500" for Micro(-500).
func (a Amount) FormatMajor() string {
	isNegative := a.Micro < 0
	abs := a.Micro
	if isNegative {
		abs = -abs
	}

	major := abs / microPerToken
	minor := abs % microPerToken

	result := fmt.Sprintf("%d.%06d", major, minor)
	if isNegative {
		return "-" + result
	}
	return result
}

// String returns the human-readable form with the unit suffix,
// e.g. "1000.000000 SUB".
func (a Amount) String() string {
	return a.FormatMajor() + " SUB"
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Micro   int64  `json:"micro"`
		Display string `json:"display"`
	}{
		Micro:   a.Micro,
		Display: a.FormatMajor(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. It accepts both the object
// form produced by MarshalJSON and a bare integer micro count.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var obj struct {
		Micro int64 `json:"micro"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		a.Micro = obj.Micro
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount: unmarshal %q: %w", string(data), err)
	}
	a.Micro = n
	return nil
}

// Sum calculates the sum of multiple Amounts.
func Sum(values ...Amount) Amount {
	var result Amount
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
