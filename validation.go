package main

import (
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// maxPriceText bounds price fields before they reach reconciliation, which
// applies the stricter storage limit per entry.
const maxPriceText = 64

// priceText accepts text that could be a printed price: digits, letters,
// currency symbols, separators and spaces. Whether it parses is decided per
// batch entry.
func priceText(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !utf8.ValidString(s) || utf8.RuneCountInString(s) > maxPriceText {
		return false
	}
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), unicode.IsLetter(r), unicode.IsSpace(r) && r != '\n' && r != '\r' && r != '\t':
		case unicode.Is(unicode.Sc, r):
		case r == '.' || r == ',' || r == '\'' || r == '-':
		default:
			return false
		}
	}
	return true
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("price", priceText)
	}
}
