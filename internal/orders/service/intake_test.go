package service

import (
	"context"
	"testing"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/logger"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/validator"
)

// Invalid requests must be rejected before any transaction starts, so a nil
// pool is safe here.
func newValidationOnlyIntake() *Intake {
	return NewIntake(nil, nil, nil, nil, validator.New(), logger.New("test"))
}

func TestRegisterOrderRejectsInvalidInput(t *testing.T) {
	valid := IntakeRequest{
		Phone:    "+55 34 99999-0001",
		Quantity: 2,
		AgentID:  "agent-7",
	}

	tests := []struct {
		name   string
		mutate func(*IntakeRequest)
	}{
		{"zero quantity", func(r *IntakeRequest) { r.Quantity = 0 }},
		{"negative quantity", func(r *IntakeRequest) { r.Quantity = -1 }},
		{"missing agent", func(r *IntakeRequest) { r.AgentID = "" }},
		{"missing phone", func(r *IntakeRequest) { r.Phone = "" }},
		{"short phone", func(r *IntakeRequest) { r.Phone = "123" }},
		{"unknown payment method", func(r *IntakeRequest) { r.PaymentMethod = "CHEQUE" }},
	}

	svc := newValidationOnlyIntake()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			_, err := svc.RegisterOrder(context.Background(), req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("error kind = %v, want validation", apperr.GetKind(err))
			}
		})
	}
}
