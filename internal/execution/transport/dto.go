// Package transport defines the execution module's request and response
// shapes.
package transport

import (
	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/execution/service"
)

// StartRouteRequest optionally pins the acting driver for ownership checks.
type StartRouteRequest struct {
	DriverID *uuid.UUID `json:"driverId"`
}

// StartRouteResponse reports a route start.
type StartRouteResponse struct {
	RouteID            string `json:"routeId"`
	AlreadyInProgress  bool   `json:"alreadyInProgress"`
	DeliveriesPromoted int    `json:"deliveriesPromoted"`
}

// NewStartRouteResponse maps a service result to the wire shape.
func NewStartRouteResponse(r service.StartRouteResult) StartRouteResponse {
	return StartRouteResponse{
		RouteID:            r.RouteID.String(),
		AlreadyInProgress:  r.AlreadyInProgress,
		DeliveriesPromoted: r.DeliveriesPromoted,
	}
}

// FinalizeRequest finishes one delivery. Outcome is ENTREGUE, FALHOU or
// CANCELADA. ExternalEventID, when present, makes the call replay-safe
// across network retries.
type FinalizeRequest struct {
	Outcome         string     `json:"outcome" binding:"required,oneof=ENTREGUE FALHOU CANCELADA"`
	Motive          string     `json:"motive"`
	ChargeCents     int64      `json:"chargeCents" binding:"gte=0"`
	DriverID        *uuid.UUID `json:"driverId"`
	ExternalEventID string     `json:"externalEventId"`
}

// FinalizeResponse reports a finalization.
type FinalizeResponse struct {
	DeliveryID              string `json:"deliveryId"`
	DeliveryStatus          string `json:"deliveryStatus"`
	OrderStatus             string `json:"orderStatus"`
	RouteCompleted          bool   `json:"routeCompleted"`
	Replayed                bool   `json:"replayed"`
	VoucherSettlementFailed bool   `json:"voucherSettlementFailed"`
}

// NewFinalizeResponse maps a service result to the wire shape.
func NewFinalizeResponse(r service.FinalizeResult) FinalizeResponse {
	return FinalizeResponse{
		DeliveryID:              r.DeliveryID.String(),
		DeliveryStatus:          string(r.DeliveryStatus),
		OrderStatus:             string(r.OrderStatus),
		RouteCompleted:          r.RouteCompleted,
		Replayed:                r.Replayed,
		VoucherSettlementFailed: r.VoucherSettlementFailed,
	}
}
