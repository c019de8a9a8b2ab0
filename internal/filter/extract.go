package filter

import (
	"regexp"
	"strconv"
	"strings"

	"FlatScanner/internal/domain"
)

// numberExpr matches the first integer or decimal in a text, with '.' or ',' as separator.
var numberExpr = regexp.MustCompile(`\d+([.,]\d+)?`)

// ExtractNumber returns the first number found in text. Only the first match is used, so
// "350,00 € + 50 € Kaution" yields 350 and "1.200 €" yields 1.2. ok is false when text
// holds no number.
func ExtractNumber(text string) (value float64, ok bool) {
	match := numberExpr.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.Replace(match, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Price extracts the numeric price of an expose.
func Price(e domain.Expose) (float64, bool) {
	return ExtractNumber(e.Price)
}

// Size extracts the living area of an expose.
func Size(e domain.Expose) (float64, bool) {
	return ExtractNumber(e.Size)
}

// Rooms extracts the room count of an expose.
func Rooms(e domain.Expose) (float64, bool) {
	return ExtractNumber(e.Rooms)
}
