package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotAPrice is returned when a string cannot be read as a currency amount.
var ErrNotAPrice = errors.New("not a currency amount")

// maxIntegerDigits caps the integer part so minor units always fit in int64.
const maxIntegerDigits = 12

// markers are the currency symbols and codes accepted around a number.
// Longer markers come first so "US$" wins over "$".
var markers = []string{
	"US$", "A$", "C$", "HK$", "S$",
	"USD", "EUR", "GBP", "JPY", "IDR", "AUD", "CAD", "CHF", "INR",
	"Rp", "Rs",
	"$", "€", "£", "¥", "₹", "₩", "₽", "₺", "₫",
}

// Amount is a parsed price in minor units (hundredths) plus the currency
// marker found in the text, if any.
type Amount struct {
	Minor    int64
	Currency string
}

// Float returns the amount in major units.
func (a Amount) Float() float64 { return float64(a.Minor) / 100 }

func (a Amount) String() string {
	return fmt.Sprintf("%s%d.%02d", a.Currency, a.Minor/100, a.Minor%100)
}

// Distance is the absolute difference between two amounts in minor units.
// Currency markers are ignored: a menu rarely mixes currencies in one region.
func Distance(a, b Amount) int64 {
	d := a.Minor - b.Minor
	if d < 0 {
		return -d
	}
	return d
}

// Parse reads a price such as "$12.50", "Rp10.000", "12,50 €" or "1,234.56".
// Grouping separators must be consistent and every group after the first must
// have three digits. A trailing one- or two-digit group after '.' or ',' is the
// fractional part.
func Parse(s string) (Amount, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrNotAPrice)
	}
	body, currency := stripMarker(raw)
	if body == "" {
		return Amount{}, fmt.Errorf("%w: %q has no digits", ErrNotAPrice, s)
	}
	runes := []rune(body)
	for _, r := range runes {
		if !isDigit(r) && !isSeparator(r) {
			return Amount{}, fmt.Errorf("%w: unexpected %q in %q", ErrNotAPrice, r, s)
		}
	}
	if isSeparator(runes[0]) || isSeparator(runes[len(runes)-1]) {
		return Amount{}, fmt.Errorf("%w: dangling separator in %q", ErrNotAPrice, s)
	}

	intPart, fracPart, decSep := splitFraction(body)
	digits, err := joinGroups(intPart, decSep)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrNotAPrice, s, err)
	}
	if len(digits) > maxIntegerDigits {
		return Amount{}, fmt.Errorf("%w: %q is too large", ErrNotAPrice, s)
	}
	whole, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: parse %q: %v", ErrNotAPrice, digits, err)
	}
	var frac int64
	if fracPart != "" {
		if len(fracPart) == 1 {
			fracPart += "0"
		}
		frac, _ = strconv.ParseInt(fracPart, 10, 64)
	}
	return Amount{Minor: whole*100 + frac, Currency: currency}, nil
}

// Valid reports whether s parses as a currency amount.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// stripMarker removes one currency marker from either end of s.
func stripMarker(s string) (string, string) {
	for _, m := range markers {
		if len(s) >= len(m) && strings.EqualFold(s[:len(m)], m) {
			return strings.TrimSpace(s[len(m):]), m
		}
	}
	for _, m := range markers {
		if len(s) >= len(m) && strings.EqualFold(s[len(s)-len(m):], m) {
			return strings.TrimSpace(s[:len(s)-len(m)]), m
		}
	}
	return s, ""
}

func isSeparator(r rune) bool {
	switch r {
	case '.', ',', '\'', ' ', '\u00a0', '\u202f':
		return true
	}
	return false
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// splitFraction separates a trailing one- or two-digit fractional part.
func splitFraction(body string) (string, string, byte) {
	p := strings.LastIndexAny(body, ".,")
	if p < 0 {
		return body, "", 0
	}
	tail := body[p+1:]
	if len(tail) == 1 || len(tail) == 2 {
		return body[:p], tail, body[p]
	}
	return body, "", 0
}

// joinGroups validates digit grouping and returns the bare digits.
func joinGroups(intPart string, decSep byte) (string, error) {
	var groups []string
	var sep rune
	start := 0
	for i, r := range intPart {
		if !isSeparator(r) {
			continue
		}
		if sep == 0 {
			sep = r
		} else if r != sep {
			return "", fmt.Errorf("mixed grouping separators")
		}
		groups = append(groups, intPart[start:i])
		start = i + len(string(r))
	}
	groups = append(groups, intPart[start:])
	if len(groups) == 1 {
		if groups[0] == "" {
			return "", fmt.Errorf("no integer digits")
		}
		return groups[0], nil
	}
	if decSep != 0 && sep == rune(decSep) {
		return "", fmt.Errorf("grouping separator equals decimal separator")
	}
	if l := len(groups[0]); l < 1 || l > 3 {
		return "", fmt.Errorf("leading group has %d digits", l)
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", fmt.Errorf("group %q is not three digits", g)
		}
	}
	return strings.Join(groups, ""), nil
}

// OnlyDigits extracts decimal digits from a string.
func OnlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
