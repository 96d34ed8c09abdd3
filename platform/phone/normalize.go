// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
)

const defaultRegion = "BR"

const (
	minDigits = 10
	maxDigits = 15
)

// Normalize reduces a phone number to its digit form (10 to 15 digits).
// Numbers parseable in the default region are normalized through E.164 first
// so "+55 (34) 99999-0001" and "34999990001" land on the same key. Input
// that cannot be reduced to a valid digit count is rejected.
func Normalize(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", apperr.Validation("phone is required")
	}

	if number, err := phonenumbers.Parse(trimmed, defaultRegion); err == nil && phonenumbers.IsValidNumber(number) {
		trimmed = phonenumbers.Format(number, phonenumbers.E164)
	}

	digits := onlyDigits(trimmed)
	if len(digits) < minDigits || len(digits) > maxDigits {
		return "", apperr.Validation("phone must have between 10 and 15 digits")
	}
	return digits, nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
