package domain

import (
	"testing"
	"time"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
)

func TestValidateWindow(t *testing.T) {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	cases := []struct {
		name       string
		windowType WindowType
		start, end *time.Time
		wantErr    bool
	}{
		{"asap without bounds", WindowASAP, nil, nil, false},
		{"asap with start", WindowASAP, &start, nil, true},
		{"asap with end", WindowASAP, nil, &end, true},
		{"hard with both bounds", WindowHard, &start, &end, false},
		{"hard missing end", WindowHard, &start, nil, true},
		{"hard missing start", WindowHard, nil, &end, true},
		{"hard end before start", WindowHard, &end, &start, true},
		{"hard end equals start", WindowHard, &start, &start, true},
		{"unknown type", WindowType("SOFT"), nil, nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWindow(tc.windowType, tc.start, tc.end)
			if tc.wantErr {
				if !apperr.Is(err, apperr.KindValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidPaymentMethod(t *testing.T) {
	for _, m := range []PaymentMethod{PaymentCash, PaymentPix, PaymentCard, PaymentVoucher} {
		if !ValidPaymentMethod(m) {
			t.Fatalf("%s should be accepted", m)
		}
	}
	if ValidPaymentMethod("CHEQUE") {
		t.Fatal("unknown payment method should be rejected")
	}
}
