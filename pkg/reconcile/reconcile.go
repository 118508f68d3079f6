// Package reconcile decides the authoritative price pair for a region from
// recognized tokens, the user's correction and the region's prior price.
package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"menuprice/pkg/money"
	"menuprice/pkg/ocr"
	"menuprice/pkg/region"
)

var (
	ErrUnresolvedPrice    = errors.New("no price could be resolved for region")
	ErrInvalidPriceFormat = errors.New("invalid price format")
)

// MaxPriceLen is the storage limit for both price strings.
const MaxPriceLen = 20

// Source records where the new price came from.
type Source string

const (
	SourceUser        Source = "user"
	SourceRecognition Source = "recognition"
)

// Correction is what the user typed for a region. Empty fields were left blank.
type Correction struct {
	OriginalPrice string
	NewPrice      string
}

type Input struct {
	Region     region.Region
	Tokens     []ocr.Token
	Correction Correction
	// Prior is the new price of the region's latest persisted update, if any.
	Prior *string
}

// Decision is the reconciled price pair with the coordinates it applies to.
type Decision struct {
	OriginalPrice string
	NewPrice      string
	Rect          region.Rect
	Source        Source
	Confidence    float64
	// Token is the recognized token the decision used, if any.
	Token *ocr.Token
}

// Decide reconciles one region. It has no side effects.
func Decide(in Input) (Decision, error) {
	userNew := strings.TrimSpace(in.Correction.NewPrice)
	userOrig := strings.TrimSpace(in.Correction.OriginalPrice)
	prior := ""
	if in.Prior != nil {
		prior = strings.TrimSpace(*in.Prior)
	}
	best := BestToken(in.Tokens, prior)

	d := Decision{Rect: in.Region.Rect}
	if userNew != "" {
		d.NewPrice = userNew
		d.Source = SourceUser
		d.Confidence = 1
		d.OriginalPrice = firstNonEmpty(userOrig, tokenText(best), prior)
	} else {
		if best == nil {
			return Decision{}, ErrUnresolvedPrice
		}
		d.NewPrice = best.Text
		d.Source = SourceRecognition
		d.Confidence = best.Confidence
		d.Token = best
		d.OriginalPrice = firstNonEmpty(userOrig, prior)
	}

	if err := checkPrice(d.NewPrice); err != nil {
		return Decision{}, fmt.Errorf("new price: %w", err)
	}
	if utf8.RuneCountInString(d.OriginalPrice) > MaxPriceLen {
		return Decision{}, fmt.Errorf("%w: original price %q longer than %d characters", ErrInvalidPriceFormat, d.OriginalPrice, MaxPriceLen)
	}
	return d, nil
}

func checkPrice(s string) error {
	if utf8.RuneCountInString(s) > MaxPriceLen {
		return fmt.Errorf("%w: %q longer than %d characters", ErrInvalidPriceFormat, s, MaxPriceLen)
	}
	if _, err := money.Parse(s); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidPriceFormat, s, err)
	}
	return nil
}

// BestToken picks the token with a parsed price and the highest confidence.
// Ties go to the price closest to prior (when prior parses), then to the
// lexicographically smallest text. It returns nil when no token has a price.
func BestToken(tokens []ocr.Token, prior string) *ocr.Token {
	var priorAmt *money.Amount
	if a, err := money.Parse(prior); err == nil {
		priorAmt = &a
	}
	var best *ocr.Token
	for i := range tokens {
		t := &tokens[i]
		if t.Price == nil {
			continue
		}
		if best == nil || better(t, best, priorAmt) {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func better(a, b *ocr.Token, prior *money.Amount) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if prior != nil {
		da, db := money.Distance(*a.Price, *prior), money.Distance(*b.Price, *prior)
		if da != db {
			return da < db
		}
	}
	return a.Text < b.Text
}

func tokenText(t *ocr.Token) string {
	if t == nil {
		return ""
	}
	return t.Text
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
