package service

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitCharge(t *testing.T) {
	tests := []struct {
		name          string
		deposited     string
		total         string
		wantDeposited string
		wantEarned    string
	}{
		{"deposited covers all", "1000", "600", "600", "0"},
		{"exact deposited", "600", "600", "600", "0"},
		{"spills into earned", "500", "1300", "500", "800"},
		{"zero deposited", "0", "200", "0", "200"},
		{"negative deposited treated as empty", "-50", "200", "0", "200"},
		{"zero total", "1000", "0", "0", "0"},
		{"fractional split", "10.5", "12", "10.5", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deposited := decimal.RequireFromString(tt.deposited)
			total := decimal.RequireFromString(tt.total)

			fromDeposited, fromEarned := SplitCharge(deposited, total)

			if !fromDeposited.Equal(decimal.RequireFromString(tt.wantDeposited)) {
				t.Errorf("fromDeposited = %s, want %s", fromDeposited, tt.wantDeposited)
			}
			if !fromEarned.Equal(decimal.RequireFromString(tt.wantEarned)) {
				t.Errorf("fromEarned = %s, want %s", fromEarned, tt.wantEarned)
			}
			if !fromDeposited.Add(fromEarned).Equal(total) {
				t.Errorf("split does not add up: %s + %s != %s", fromDeposited, fromEarned, total)
			}
		})
	}
}

func TestCoinsForStars(t *testing.T) {
	tests := []struct {
		stars int
		want  string
	}{
		{1, "2000"},
		{5, "10000"},
		{50, "100000"},
	}

	for _, tt := range tests {
		got := CoinsForStars(tt.stars)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("CoinsForStars(%d) = %s, want %s", tt.stars, got, tt.want)
		}
	}
}
