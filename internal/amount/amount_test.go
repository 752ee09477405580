package amount

import (
	"math"
	"math/big"
	"strings"
	"testing"

	"liquidityGuard/internal/apperr"
)

func TestParseUnitsRoundTrip(t *testing.T) {
	cases := []struct {
		input    string
		decimals uint8
		atomic   string
	}{
		{input: "500", decimals: 6, atomic: "500000000"},
		{input: "0.000001", decimals: 6, atomic: "1"},
		{input: "1234.5", decimals: 6, atomic: "1234500000"},
		{input: "1.25", decimals: 18, atomic: "1250000000000000000"},
		{input: "7", decimals: 0, atomic: "7"},
	}

	for _, tc := range cases {
		got, err := ParseUnits(tc.input, tc.decimals)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.input, err)
		}
		if got.String() != tc.atomic {
			t.Fatalf("parse %q: got %s want %s", tc.input, got, tc.atomic)
		}
		if back := FormatUnits(got, tc.decimals); back != tc.input {
			t.Fatalf("format %s: got %q want %q", got, back, tc.input)
		}
	}
}

func TestParseUnitsRejects(t *testing.T) {
	inputs := []string{"", "  ", "abc", "0", "-5", "1.0000001", "NaN", "Inf"}
	for _, input := range inputs {
		_, err := ParseUnits(input, 6)
		if err == nil {
			t.Fatalf("expected error for %q", input)
		}
		if !apperr.IsKind(err, apperr.KindValidation) {
			t.Fatalf("expected validation error for %q, got %v", input, err)
		}
	}
}

func TestParsePositiveBounds(t *testing.T) {
	for _, input := range []string{"1e20000000", "1e79", "1e-20000000", "0.1e-78"} {
		_, err := ParsePositive(input)
		if !apperr.IsKind(err, apperr.KindValidation) {
			t.Fatalf("expected validation error for %q, got %v", input, err)
		}
	}

	max := "1" + strings.Repeat("0", 77)
	for _, input := range []string{max, "1e77", "1e-78", "123.456"} {
		if _, err := ParsePositive(input); err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
	}
}

func TestFromUSD(t *testing.T) {
	got, err := FromUSD(12.345678, USDDecimals)
	if err != nil {
		t.Fatalf("from usd: %v", err)
	}
	if got.String() != "12345678" {
		t.Fatalf("got %s", got)
	}

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := FromUSD(bad, USDDecimals); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}

func TestParseAtomic(t *testing.T) {
	if v, ok := ParseAtomic("1000000"); !ok || v.Cmp(big.NewInt(1000000)) != 0 {
		t.Fatalf("decimal parse failed: %v %v", v, ok)
	}
	if v, ok := ParseAtomic("0x10"); !ok || v.Int64() != 16 {
		t.Fatalf("hex parse failed: %v %v", v, ok)
	}
	for _, bad := range []string{"", "1.5", "-3", "zz"} {
		if _, ok := ParseAtomic(bad); ok {
			t.Fatalf("expected failure for %q", bad)
		}
	}
}

func TestDisplayFormats(t *testing.T) {
	if got := Display(big.NewInt(1234567890000), 6, 2); got != "1,234,567.89" {
		t.Fatalf("display: %s", got)
	}
	if got := USD(1500.5); got != "$1,500.50" {
		t.Fatalf("usd: %s", got)
	}
	if got := Percent(0.125); got != "12.50%" {
		t.Fatalf("percent: %s", got)
	}
	if got := BasisPoints(250); got != "2.50%" {
		t.Fatalf("bps: %s", got)
	}
}
