package planning

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
)

func candidate(status domain.OrderStatus, quantity int, createdOffset time.Duration) Candidate {
	return Candidate{
		OrderID:   uuid.New(),
		Status:    status,
		Quantity:  quantity,
		CreatedAt: time.Now().Add(createdOffset),
	}
}

func admittedIDs(admitted []Candidate) map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool, len(admitted))
	for _, c := range admitted {
		ids[c.OrderID] = true
	}
	return ids
}

func TestAdmitSkipsOversizedConfirmedWithoutBlockingSmaller(t *testing.T) {
	// Driver with 3 left; the older confirmed order needs 4 and must be
	// skipped, the newer one needs 2 and must still get in.
	a := candidate(domain.OrderConfirmed, 4, 0)
	b := candidate(domain.OrderConfirmed, 2, time.Minute)
	capacities := []DriverCapacity{{DriverID: uuid.New(), Capacity: 3}}

	admitted := Admit([]Candidate{a, b}, capacities)

	ids := admittedIDs(admitted)
	if ids[a.OrderID] {
		t.Error("order needing 4 units was admitted against capacity 3")
	}
	if !ids[b.OrderID] {
		t.Error("order needing 2 units was not admitted")
	}
	if len(admitted) != 1 {
		t.Errorf("admitted %d orders, want 1", len(admitted))
	}
}

func TestAdmitAlwaysIncludesPending(t *testing.T) {
	// Pending orders go to the solver even when no driver can take them;
	// the solver reports them unassigned.
	p := candidate(domain.OrderPending, 10, 0)
	admitted := Admit([]Candidate{p}, []DriverCapacity{{DriverID: uuid.New(), Capacity: 3}})

	if len(admitted) != 1 || admitted[0].OrderID != p.OrderID {
		t.Fatalf("pending order missing from admission, got %d orders", len(admitted))
	}
}

func TestAdmitSpreadsAcrossDrivers(t *testing.T) {
	c1 := candidate(domain.OrderConfirmed, 3, 0)
	c2 := candidate(domain.OrderConfirmed, 3, time.Second)
	c3 := candidate(domain.OrderConfirmed, 3, 2*time.Second)
	capacities := []DriverCapacity{
		{DriverID: uuid.New(), Capacity: 4},
		{DriverID: uuid.New(), Capacity: 4},
	}

	admitted := Admit([]Candidate{c1, c2, c3}, capacities)

	ids := admittedIDs(admitted)
	if !ids[c1.OrderID] || !ids[c2.OrderID] {
		t.Error("first two confirmed orders should fit, one per driver")
	}
	if ids[c3.OrderID] {
		t.Error("third order admitted but only 1 unit remains per driver")
	}
}

func TestAdmitDoesNotMutateCapacities(t *testing.T) {
	capacities := []DriverCapacity{{DriverID: uuid.New(), Capacity: 5}}
	Admit([]Candidate{candidate(domain.OrderConfirmed, 5, 0)}, capacities)
	if capacities[0].Capacity != 5 {
		t.Errorf("capacity slice mutated to %d", capacities[0].Capacity)
	}
}

func TestAdmitIgnoresZeroCapacityDrivers(t *testing.T) {
	c := candidate(domain.OrderConfirmed, 1, 0)
	admitted := Admit([]Candidate{c}, []DriverCapacity{{DriverID: uuid.New(), Capacity: 0}})
	if len(admitted) != 0 {
		t.Errorf("admitted %d orders with zero capacity, want 0", len(admitted))
	}
}
