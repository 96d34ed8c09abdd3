// Package transport defines the HTTP DTOs for the orders module.
package transport

import (
	"time"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
)

// PhoneIntakeRequest is the body of POST /orders/phone-intake.
type PhoneIntakeRequest struct {
	ExternalCallID string `json:"externalCallId"`
	Phone          string `json:"phone" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required"`
	AgentID        string `json:"agentId" binding:"required"`
	PaymentMethod  string `json:"paymentMethod"`
}

// OrderResponse is the public order representation.
type OrderResponse struct {
	ID                      string  `json:"id"`
	CustomerID              string  `json:"customerId"`
	Quantity                int     `json:"quantity"`
	WindowType              string  `json:"windowType"`
	WindowStart             *string `json:"windowStart,omitempty"`
	WindowEnd               *string `json:"windowEnd,omitempty"`
	Status                  string  `json:"status"`
	PaymentMethod           string  `json:"paymentMethod"`
	ExternalCallID          *string `json:"externalCallId,omitempty"`
	CancelReason            *string `json:"cancelReason,omitempty"`
	CancellationChargeCents *int64  `json:"cancellationChargeCents,omitempty"`
	ChargeStatus            *string `json:"chargeStatus,omitempty"`
	CreatedAt               string  `json:"createdAt"`
}

// IntakeResponse wraps the order with the replay flag.
type IntakeResponse struct {
	Order    OrderResponse `json:"order"`
	Replayed bool          `json:"replayed"`
}

// NewOrderResponse maps a domain order to its public shape.
func NewOrderResponse(o domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:             o.ID.String(),
		CustomerID:     o.CustomerID.String(),
		Quantity:       o.Quantity,
		WindowType:     string(o.WindowType),
		Status:         string(o.Status),
		PaymentMethod:  string(o.PaymentMethod),
		ExternalCallID: o.ExternalCallID,
		CancelReason:   o.CancelReason,
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
	}
	if o.WindowStart != nil {
		s := o.WindowStart.Format(time.RFC3339)
		resp.WindowStart = &s
	}
	if o.WindowEnd != nil {
		s := o.WindowEnd.Format(time.RFC3339)
		resp.WindowEnd = &s
	}
	resp.CancellationChargeCents = o.CancellationChargeCents
	if o.ChargeStatus != nil {
		s := string(*o.ChargeStatus)
		resp.ChargeStatus = &s
	}
	return resp
}
