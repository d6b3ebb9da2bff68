package types

import (
	"encoding/json"
	"testing"
)

func TestAmountConstructors(t *testing.T) {
	tests := []struct {
		name    string
		amount  Amount
		micro   int64
		display string
	}{
		{"Tokens", Tokens(1000), 1_000_000_000, "1000.000000"},
		{"Micro", Micro(500), 500, "0.000500"},
		{"Zero", Zero(), 0, "0.000000"},
		{"Negative", Micro(-1_500_000), -1_500_000, "-1.500000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.amount.Micro != tt.micro {
				t.Errorf("Micro: got %d, want %d", tt.amount.Micro, tt.micro)
			}
			if tt.amount.FormatMajor() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.amount.FormatMajor(), tt.display)
			}
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Amount
		expected Amount
	}{
		{"Add", func() Amount { return Tokens(100).Add(Tokens(200)) }, Tokens(300)},
		{"Subtract", func() Amount { return Tokens(500).Subtract(Tokens(200)) }, Tokens(300)},
		{"SubtractBelowZero", func() Amount { return Tokens(1).Subtract(Tokens(2)) }, Tokens(-1)},
		{"Multiply", func() Amount { return Tokens(100).Multiply(3) }, Tokens(300)},
		{"Divide", func() Amount { return Tokens(900).Divide(3) }, Tokens(300)},
		{"DivideTruncates", func() Amount { return Micro(10).Divide(3) }, Micro(3)},
		{"Sum", func() Amount { return Sum(Tokens(1), Tokens(2), Tokens(3)) }, Tokens(6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); !got.Equal(tt.expected) {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestAmountDivideByZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on divide by zero")
		}
	}()
	Tokens(1).Divide(0)
}

func TestAmountProrate(t *testing.T) {
	tests := []struct {
		name      string
		balance   Amount
		remaining uint64
		total     uint64
		expected  Amount
	}{
		// Reference scenario: 1000 tokens, half of a 4320-block duration used.
		{"half used", Tokens(1000), 2160, 4320, Tokens(500)},
		{"nothing used", Tokens(1000), 4320, 4320, Tokens(1000)},
		{"fully used", Tokens(1000), 0, 4320, Zero()},
		{"floors", Micro(10), 1, 3, Micro(3)},
		{"zero total", Tokens(1000), 10, 0, Zero()},
		{"zero balance", Zero(), 2160, 4320, Zero()},
		// A large balance whose intermediate product overflows int64.
		{"wide intermediate", Micro(5_000_000_000_000_000), 43200, 52560, Micro(4_109_589_041_095_890)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.balance.Prorate(tt.remaining, tt.total); !got.Equal(tt.expected) {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestAmountComparisons(t *testing.T) {
	small, big := Tokens(1), Tokens(2)

	if !small.LessThan(big) || big.LessThan(small) {
		t.Error("LessThan misordered")
	}
	if !big.GreaterThan(small) || small.GreaterThan(big) {
		t.Error("GreaterThan misordered")
	}
	if !small.Min(big).Equal(small) || !small.Max(big).Equal(big) {
		t.Error("Min/Max misordered")
	}
	if !Zero().IsZero() || Zero().IsPositive() || Zero().IsNegative() {
		t.Error("Zero sign predicates wrong")
	}
	if !Tokens(1).IsPositive() || !Tokens(-1).IsNegative() {
		t.Error("sign predicates wrong")
	}
}

func TestAmountJSONRoundTrip(t *testing.T) {
	orig := Tokens(1000)

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Amount
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(orig) {
		t.Errorf("round trip mismatch: got %s, want %s", decoded, orig)
	}

	// Bare integer micro form.
	if err := json.Unmarshal([]byte("1500000"), &decoded); err != nil {
		t.Fatalf("unmarshal bare int: %v", err)
	}
	if !decoded.Equal(Micro(1_500_000)) {
		t.Errorf("bare int form: got %s", decoded)
	}
}
