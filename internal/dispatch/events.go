// Package dispatch implements the transactional outbox. Domain events are
// appended in the same transaction as the mutation that caused them, and a
// debounced worker consumes them later, so delivery is at-least-once while
// the domain effect stays exactly-once.
package dispatch

import (
	"encoding/json"
	"time"
)

// Domain event types staged in the outbox.
const (
	EventOrderCreated   = "PEDIDO_CRIADO"
	EventOrderDelivered = "PEDIDO_ENTREGUE"
	EventOrderFailed    = "PEDIDO_FALHOU"
	EventOrderCancelled = "PEDIDO_CANCELADO"
	EventRouteStarted   = "ROTA_INICIADA"
	EventRouteCompleted = "ROTA_CONCLUIDA"
)

// Aggregate types referenced by outbox rows. The reference is loose
// (type + id, no foreign key) because event rows may outlive their aggregate
// relevance.
const (
	AggregateOrder = "ORDER"
	AggregateRoute = "ROUTE"
)

// Event statuses.
const (
	StatusPending   = "PENDENTE"
	StatusProcessed = "PROCESSADO"
)

// Event is one staged domain event.
type Event struct {
	ID            int64
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       json.RawMessage
	Status        string
	CreatedAt     time.Time
	AvailableAt   time.Time
	ProcessedAt   *time.Time
}
