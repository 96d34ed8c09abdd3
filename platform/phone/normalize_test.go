package phone

import (
	"testing"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
)

func TestNormalizeAcceptsFormattedBrazilianNumber(t *testing.T) {
	got, err := Normalize("+55 (34) 99999-0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "5534999990001" {
		t.Fatalf("expected 5534999990001, got %q", got)
	}
}

func TestNormalizeSameKeyForLocalAndE164(t *testing.T) {
	local, err := Normalize("(34) 99999-0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	intl, err := Normalize("+5534999990001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if local != intl {
		t.Fatalf("expected same normalized key, got %q and %q", local, intl)
	}
}

func TestNormalizeKeepsPlainDigitsWithinBounds(t *testing.T) {
	got, err := Normalize("1234567890")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1234567890" {
		t.Fatalf("expected digits kept verbatim, got %q", got)
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"too short", "12345"},
		{"too long", "1234567890123456"},
		{"letters only", "not-a-phone"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Normalize(tc.input); !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
