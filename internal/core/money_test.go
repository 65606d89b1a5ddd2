package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"15,000", "15000", true},
		{"1,50,000", "150000", true},
		{"12,34,56,789.50", "123456789.5", true},
		{"150,000", "150000", true},
		{"1,500,000", "1500000", true},
		{"₹2,500", "2500", true},
		{"1,23", "", false},
		{"1,2345", "", false},
		{",500", "", false},
		{"1,000.5,0", "", false},
		{"100,00,000", "", false},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"15 000", "15000", true},
		{"+40", "40", true},
		{"", "0", true},
		{"0", "0", true},
		{"-1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{".", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseAmountNegativeIsDistinct(t *testing.T) {
	_, err := ParseAmount("-5")
	if !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}
