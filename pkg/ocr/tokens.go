package ocr

import (
	"strings"

	"menuprice/pkg/money"
)

// Word is one word reported by an OCR engine with its confidence in [0,1].
type Word struct {
	Text       string
	Confidence float64
}

// bareMarkers are currency markers OCR often reports as separate words.
var bareMarkers = map[string]bool{
	"$": true, "€": true, "£": true, "¥": true, "₹": true,
	"rp": true, "idr": true, "usd": true, "eur": true, "gbp": true, "rs": true,
}

// TokensFromWords turns a line of OCR words into price tokens. Single words
// and currency-marker + number pairs are candidates; words carrying digits
// that do not parse are kept with a nil Price.
func TokensFromWords(words []Word) []Token {
	cleaned := make([]Word, 0, len(words))
	for _, w := range words {
		t := fixConfusions(trimPunct(w.Text))
		if t == "" {
			continue
		}
		cleaned = append(cleaned, Word{Text: t, Confidence: w.Confidence})
	}

	var out []Token
	for i, w := range cleaned {
		if money.OnlyDigits(w.Text) != "" {
			out = append(out, candidate(w.Text, w.Confidence))
		}
		if i+1 >= len(cleaned) {
			continue
		}
		next := cleaned[i+1]
		conf := (w.Confidence + next.Confidence) / 2
		switch {
		case bareMarkers[strings.ToLower(w.Text)] && money.OnlyDigits(next.Text) != "":
			out = append(out, candidate(joinMarker(w.Text, next.Text, true), conf))
		case bareMarkers[strings.ToLower(next.Text)] && money.OnlyDigits(w.Text) != "":
			out = append(out, candidate(joinMarker(next.Text, w.Text, false), conf))
		}
	}
	return out
}

// candidate scores one text. Confidence is the OCR confidence scaled by how
// much the text looks like a price.
func candidate(text string, conf float64) Token {
	amt, err := money.Parse(text)
	if err != nil || !plausiblePrice(text, amt) {
		return Token{Text: text, Confidence: clamp01(conf) * 0.5}
	}
	return Token{Text: text, Price: &amt, Confidence: clamp01(conf) * priceWeight(text, amt)}
}

// priceWeight favors explicit currency markers and decimal parts, the way a
// printed menu price is usually written.
func priceWeight(text string, amt money.Amount) float64 {
	w := 0.6
	if amt.Currency != "" {
		w += 0.25
	}
	if strings.ContainsAny(text, ".,") {
		w += 0.15
	}
	if w > 1 {
		w = 1
	}
	return w
}

// plausiblePrice rejects digit runs that look like phone numbers, years or
// ids rather than prices.
func plausiblePrice(s string, amt money.Amount) bool {
	d := money.OnlyDigits(s)
	if d == "" || len(d) > 9 {
		return false
	}
	if amt.Currency != "" || strings.ContainsAny(s, ".,") {
		return true
	}
	if len(d) > 1 && d[0] == '0' {
		return false
	}
	return len(d) <= 5
}

func joinMarker(marker, number string, prefix bool) string {
	if prefix {
		if len([]rune(marker)) == 1 {
			return marker + number
		}
		return marker + " " + number
	}
	if len([]rune(marker)) == 1 {
		return number + marker
	}
	return number + " " + marker
}

// trimPunct strips punctuation OCR attaches to price words ("(12.50)", "9.99:").
func trimPunct(s string) string {
	return strings.Trim(strings.TrimSpace(s), ":;()[]{}|*\"'-_=~")
}

// fixConfusions maps letters OCR commonly confuses with digits, only inside
// words that already contain a digit. A leading S before a digit is read as $.
func fixConfusions(s string) string {
	if money.OnlyDigits(s) == "" {
		return s
	}
	rs := []rune(s)
	for i, r := range rs {
		switch r {
		case 'O', 'o', 'D', 'Q':
			if neighborDigit(rs, i) {
				rs[i] = '0'
			}
		case 'l', 'I', '|':
			if neighborDigit(rs, i) {
				rs[i] = '1'
			}
		case 'S', 's':
			if i > 0 && rs[i-1] == 'R' {
				continue
			}
			if i == 0 && len(rs) > 1 && isDigitRune(rs[1]) {
				rs[i] = '$'
			} else if neighborDigit(rs, i) {
				rs[i] = '5'
			}
		}
	}
	return string(rs)
}

func neighborDigit(rs []rune, i int) bool {
	if i > 0 && (isDigitRune(rs[i-1]) || rs[i-1] == '.' || rs[i-1] == ',') {
		return true
	}
	return i+1 < len(rs) && isDigitRune(rs[i+1])
}

func isDigitRune(r rune) bool { return r >= '0' && r <= '9' }
