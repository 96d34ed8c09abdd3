// Package domain holds the pure order/delivery/route model: closed status
// sets and the explicit transition table. It performs no I/O.
package domain

import "github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"

// OrderStatus is the lifecycle state of an order. The string values are the
// persisted wire form.
type OrderStatus string

const (
	// OrderPending is the initial status set by intake.
	OrderPending OrderStatus = "PENDENTE"
	// OrderConfirmed means a planning run assigned the order a stop.
	OrderConfirmed OrderStatus = "CONFIRMADO"
	// OrderEnRoute means the order's route has started.
	OrderEnRoute OrderStatus = "EM_ROTA"
	// OrderDelivered is terminal.
	OrderDelivered OrderStatus = "ENTREGUE"
	// OrderCancelled is terminal.
	OrderCancelled OrderStatus = "CANCELADO"
)

// Terminal reports whether no further transition is legal from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// TransitionResult carries the metadata of an accepted transition.
type TransitionResult struct {
	NewStatus OrderStatus
	// Chargeable is true only when cancelling out of EM_ROTA: the truck was
	// already rolling, so a cancellation fee may apply. Direct cancellation
	// from PENDENTE or CONFIRMADO carries no charge.
	Chargeable bool
}

// orderTransitions is the complete legal transition table. Anything not
// listed here is rejected.
var orderTransitions = map[OrderStatus]map[OrderStatus]TransitionResult{
	OrderPending: {
		OrderConfirmed: {NewStatus: OrderConfirmed},
		OrderCancelled: {NewStatus: OrderCancelled},
	},
	OrderConfirmed: {
		OrderEnRoute:   {NewStatus: OrderEnRoute},
		OrderCancelled: {NewStatus: OrderCancelled},
	},
	OrderEnRoute: {
		OrderDelivered: {NewStatus: OrderDelivered},
		OrderCancelled: {NewStatus: OrderCancelled, Chargeable: true},
	},
}

// Transition validates current → target and returns the transition metadata.
// Terminal statuses accept nothing further; the resulting InvalidTransition
// is fatal for the caller, never retried.
func Transition(current, target OrderStatus) (TransitionResult, error) {
	targets, ok := orderTransitions[current]
	if !ok {
		return TransitionResult{}, apperr.InvalidTransition(
			"order status " + string(current) + " is terminal and accepts no transition")
	}
	result, ok := targets[target]
	if !ok {
		return TransitionResult{}, apperr.InvalidTransition(
			"order cannot move from " + string(current) + " to " + string(target))
	}
	return result, nil
}

// DeliveryStatus is the lifecycle state of a delivery.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "PENDENTE"
	DeliveryInProgress DeliveryStatus = "EM_EXECUCAO"
	DeliveryDelivered  DeliveryStatus = "ENTREGUE"
	DeliveryFailed     DeliveryStatus = "FALHOU"
	DeliveryCancelled  DeliveryStatus = "CANCELADA"
)

// Terminal reports whether the delivery reached a final state.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryFailed || s == DeliveryCancelled
}

// OrderTargetFor maps a terminal delivery outcome to the order status it
// drives. Delivery progression itself is linear and enforced directly by the
// execution service.
func (s DeliveryStatus) OrderTargetFor() (OrderStatus, bool) {
	switch s {
	case DeliveryDelivered:
		return OrderDelivered, true
	case DeliveryFailed, DeliveryCancelled:
		return OrderCancelled, true
	default:
		return "", false
	}
}

// RouteStatus is the lifecycle state of a route.
type RouteStatus string

const (
	RoutePlanned    RouteStatus = "PLANEJADA"
	RouteInProgress RouteStatus = "EM_ANDAMENTO"
	RouteCompleted  RouteStatus = "CONCLUIDA"
)
