package tier

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		tier Tier
		want string
	}{
		{Basic, "basic"},
		{Pro, "pro"},
		{Enterprise, "enterprise"},
		{Tier(9), "tier(9)"},
	}
	for _, tt := range tests {
		if got := tt.tier.String(); got != tt.want {
			t.Errorf("Tier(%d).String() = %q, want %q", tt.tier, got, tt.want)
		}
	}
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		tier Tier
		want uint64
	}{
		{Basic, 4320},
		{Pro, 12960},
		{Enterprise, 52560},
	}
	for _, tt := range tests {
		d, ok := table.Duration(tt.tier)
		if !ok {
			t.Fatalf("Duration(%v): absent", tt.tier)
		}
		if d != tt.want {
			t.Errorf("Duration(%v) = %d, want %d", tt.tier, d, tt.want)
		}
	}

	if _, ok := table.Duration(Tier(42)); ok {
		t.Error("unknown tier should be absent")
	}
}
