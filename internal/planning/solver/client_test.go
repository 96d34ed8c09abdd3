package solver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
)

func TestPlanRoundTrip(t *testing.T) {
	driverID := uuid.New()
	orderID := uuid.New()
	unassignedID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/solve" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req PlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Orders) != 1 || req.Orders[0].OrderID != orderID {
			t.Errorf("request orders = %+v", req.Orders)
		}
		if req.ShiftStart != "08:00" {
			t.Errorf("shiftStart = %q", req.ShiftStart)
		}

		resp := PlanResponse{
			Routes: []PlannedRoute{{
				DriverID: driverID,
				Sequence: 1,
				Stops:    []Stop{{OrderID: orderID}},
			}},
			Unassigned: []uuid.UUID{unassignedID},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	resp, err := client.Plan(context.Background(), PlanRequest{
		Depot:      Coordinates{Latitude: -18.9, Longitude: -48.2},
		Drivers:    []DriverInput{{DriverID: driverID, Capacity: 10}},
		ShiftStart: "08:00",
		ShiftEnd:   "18:00",
		Orders:     []OrderInput{{OrderID: orderID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(resp.Routes) != 1 || resp.Routes[0].DriverID != driverID {
		t.Errorf("routes = %+v", resp.Routes)
	}
	if len(resp.Unassigned) != 1 || resp.Unassigned[0] != unassignedID {
		t.Errorf("unassigned = %+v", resp.Unassigned)
	}
}

func TestPlanNonSuccessStatusIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "solver blew up", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Plan(context.Background(), PlanRequest{})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !apperr.Is(err, apperr.KindInternal) {
		t.Errorf("error kind = %v, want internal", apperr.GetKind(err))
	}
}

func TestPlanUnreachableSolverIsFatal(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := client.Plan(context.Background(), PlanRequest{})
	if err == nil {
		t.Fatal("expected error for unreachable solver")
	}
	if !apperr.Is(err, apperr.KindInternal) {
		t.Errorf("error kind = %v, want internal", apperr.GetKind(err))
	}
}
