package ocr

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTokensFromWordsPairsMarkers(t *testing.T) {
	toks := TokensFromWords([]Word{{"$", 0.8}, {"4.50", 0.7}})
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens got %+v", toks)
	}
	pair, single := toks[0], toks[1]
	if pair.Text != "$4.50" || pair.Price == nil || pair.Price.Currency != "$" {
		t.Fatalf("unexpected pair token %+v", pair)
	}
	if !approx(pair.Confidence, 0.75) {
		t.Fatalf("expected averaged confidence 0.75 got %v", pair.Confidence)
	}
	if single.Text != "4.50" || single.Price == nil || single.Price.Minor != 450 {
		t.Fatalf("unexpected single-word token %+v", single)
	}
	if !approx(single.Confidence, 0.7*0.75) {
		t.Fatalf("expected confidence %v got %v", 0.7*0.75, single.Confidence)
	}
}

func TestTokensFromWordsSuffixMarker(t *testing.T) {
	toks := TokensFromWords([]Word{{"12,50", 0.9}, {"€", 0.9}})
	var found bool
	for _, tok := range toks {
		if tok.Text == "12,50€" {
			found = true
			if tok.Price == nil || tok.Price.Minor != 1250 || tok.Price.Currency != "€" {
				t.Fatalf("unexpected suffix pair %+v", tok)
			}
		}
	}
	if !found {
		t.Fatalf("expected a suffix pair in %+v", toks)
	}
}

func TestTokensFromWordsIgnoresWordsWithoutDigits(t *testing.T) {
	toks := TokensFromWords([]Word{{"Chicken", 0.95}, {"Soup", 0.9}})
	if len(toks) != 0 {
		t.Fatalf("expected no tokens got %+v", toks)
	}
}

func TestFixConfusions(t *testing.T) {
	cases := map[string]string{
		"S12":    "$12",
		"12.5O":  "12.50",
		"l5.00":  "15.00",
		"9.9S":   "9.95",
		"Rs100":  "Rs100",
		"Menu":   "Menu",
		"1O,OOO": "10,000",
	}
	for in, want := range cases {
		if got := fixConfusions(in); got != want {
			t.Fatalf("fixConfusions(%q): expected %q got %q", in, want, got)
		}
	}
}

func TestImplausibleNumbersLosePrice(t *testing.T) {
	for _, text := range []string{"0812345678", "123456", "007"} {
		tok := candidate(text, 0.9)
		if tok.Price != nil {
			t.Fatalf("expected %q to be implausible got %+v", text, tok)
		}
		if !approx(tok.Confidence, 0.45) {
			t.Fatalf("expected halved confidence for %q got %v", text, tok.Confidence)
		}
	}
	if tok := candidate("$123456", 0.9); tok.Price == nil {
		t.Fatalf("expected marker to make a long amount plausible")
	}
}

func TestTrimPunct(t *testing.T) {
	if got := trimPunct(" (12.50): "); got != "12.50" {
		t.Fatalf("expected 12.50 got %q", got)
	}
}
