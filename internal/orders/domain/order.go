package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
)

// WindowType says how the customer constrained the delivery time.
type WindowType string

const (
	// WindowASAP has no bounds; the planner schedules at will.
	WindowASAP WindowType = "ASAP"
	// WindowHard requires both bounds with end after start.
	WindowHard WindowType = "HARD"
)

// PaymentMethod is the order's settlement channel.
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "DINHEIRO"
	PaymentPix     PaymentMethod = "PIX"
	PaymentCard    PaymentMethod = "CARTAO"
	PaymentVoucher PaymentMethod = "VALE"
)

// ValidPaymentMethod reports whether m belongs to the fixed accepted set.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCash, PaymentPix, PaymentCard, PaymentVoucher:
		return true
	}
	return false
}

// ChargeStatus tracks the cancellation-charge settlement of an order.
type ChargeStatus string

const (
	ChargeNotApplicable ChargeStatus = "NAO_APLICAVEL"
	ChargePending       ChargeStatus = "PENDENTE"
)

// Order is the aggregate mutated only by the lifecycle service.
type Order struct {
	ID                      uuid.UUID
	CustomerID              uuid.UUID
	Quantity                int
	WindowType              WindowType
	WindowStart             *time.Time
	WindowEnd               *time.Time
	Status                  OrderStatus
	PaymentMethod           PaymentMethod
	ExternalCallID          *string
	AgentID                 *string
	CancelReason            *string
	CancellationChargeCents *int64
	ChargeStatus            *ChargeStatus
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ValidateWindow enforces the window invariant: HARD requires both bounds
// with end after start, ASAP forbids them.
func ValidateWindow(windowType WindowType, start, end *time.Time) error {
	switch windowType {
	case WindowASAP:
		if start != nil || end != nil {
			return apperr.Validation("ASAP orders must not carry window bounds")
		}
	case WindowHard:
		if start == nil || end == nil {
			return apperr.Validation("HARD orders require both window bounds")
		}
		if !end.After(*start) {
			return apperr.Validation("window end must be after window start")
		}
	default:
		return apperr.Validation("window type must be ASAP or HARD")
	}
	return nil
}

// Delivery is one stop execution for an order.
type Delivery struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	RouteID         uuid.UUID
	SequenceInRoute int
	Status          DeliveryStatus
	ScheduledTime   *time.Time
	ActualTime      *time.Time
}

// Route is one driver's planned run for a day.
type Route struct {
	ID                   uuid.UUID
	DriverID             uuid.UUID
	Date                 time.Time
	SequenceNumberForDay int
	Status               RouteStatus
	PlanVersion          int64
	StartedAt            *time.Time
	FinishedAt           *time.Time
}
