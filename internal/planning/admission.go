package planning

import (
	"time"

	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
)

// Candidate is one order considered for a planning run.
type Candidate struct {
	OrderID     uuid.UUID
	Status      domain.OrderStatus
	Quantity    int
	Latitude    float64
	Longitude   float64
	WindowType  domain.WindowType
	WindowStart *time.Time
	WindowEnd   *time.Time
	CreatedAt   time.Time
}

// DriverCapacity is one driver's capacity as seen by a planning run.
type DriverCapacity struct {
	DriverID uuid.UUID
	Capacity int
}

// Admit selects the orders handed to the solver. Every PENDENTE candidate is
// admitted unconditionally. CONFIRMADO candidates are walked in creation
// order and admitted only while some driver can still take their quantity;
// one that fits nowhere is skipped without blocking smaller orders behind it.
//
// Candidates must arrive sorted by CreatedAt. The capacity slice is not
// mutated.
func Admit(candidates []Candidate, capacities []DriverCapacity) []Candidate {
	remaining := make([]int, len(capacities))
	for i, c := range capacities {
		remaining[i] = c.Capacity
	}

	take := func(quantity int) bool {
		best := -1
		for i, r := range remaining {
			if r >= quantity && (best == -1 || r > remaining[best]) {
				best = i
			}
		}
		if best == -1 {
			return false
		}
		remaining[best] -= quantity
		return true
	}

	admitted := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		switch cand.Status {
		case domain.OrderPending:
			// The solver reports pending orders that fit nowhere as
			// unassigned; admission does not pre-filter them.
			take(cand.Quantity)
			admitted = append(admitted, cand)
		case domain.OrderConfirmed:
			if take(cand.Quantity) {
				admitted = append(admitted, cand)
			}
		}
	}
	return admitted
}
