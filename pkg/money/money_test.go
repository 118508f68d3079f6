package money

import (
	"errors"
	"testing"
)

func TestParseFormats(t *testing.T) {
	cases := []struct {
		in       string
		minor    int64
		currency string
	}{
		{"$12.50", 1250, "$"},
		{"$9", 900, "$"},
		{"9.99", 999, ""},
		{"Rp10.000", 1000000, "Rp"},
		{"10.000,00", 1000000, ""},
		{"7,500.00", 750000, ""},
		{"12,50 €", 1250, "€"},
		{"USD 3.5", 350, "USD"},
		{"1 234,56", 123456, ""},
		{"£0.99", 99, "£"},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", c.in, err)
		}
		if got.Minor != c.minor || got.Currency != c.currency {
			t.Fatalf("Parse(%q) expected %d/%q got %d/%q", c.in, c.minor, c.currency, got.Minor, got.Currency)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "$", "abc", "12.", "1.2.3", "1,23,456", "-5", "12$50", "1234567890123.00"} {
		if _, err := Parse(in); !errors.Is(err, ErrNotAPrice) {
			t.Fatalf("Parse(%q) expected ErrNotAPrice got %v", in, err)
		}
	}
}

func TestDistance(t *testing.T) {
	a, _ := Parse("$5.50")
	b, _ := Parse("$5.00")
	if d := Distance(a, b); d != 50 {
		t.Fatalf("expected 50 got %d", d)
	}
	if d := Distance(b, a); d != 50 {
		t.Fatalf("expected symmetric distance 50 got %d", d)
	}
}

func TestAmountString(t *testing.T) {
	a, _ := Parse("$8")
	if a.String() != "$8.00" {
		t.Fatalf("expected $8.00 got %s", a.String())
	}
}
