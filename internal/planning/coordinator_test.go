package planning

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/planning/solver"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
)

func TestRouteDayFollowsConfiguredLocation(t *testing.T) {
	east := time.FixedZone("east", 13*3600)
	west := time.FixedZone("west", -13*3600)

	// The two zones are 26 hours apart, so at any instant their calendar
	// dates differ. A UTC-anchored "today" would make them equal.
	if routeDay(east).Equal(routeDay(west)) {
		t.Fatalf("routeDay ignored the location: east=%v west=%v", routeDay(east), routeDay(west))
	}
	if loc := routeDay(east).Location(); loc != time.UTC {
		t.Errorf("route day location = %v, want UTC for date encoding", loc)
	}
}

func TestValidateResponseRejectsDuplicateDriver(t *testing.T) {
	driver := uuid.New()
	resp := solver.PlanResponse{
		Routes: []solver.PlannedRoute{
			{DriverID: driver},
			{DriverID: uuid.New()},
			{DriverID: driver},
		},
	}

	err := validateResponse(resp)
	if err == nil {
		t.Fatal("expected error for a driver on two routes")
	}
	if !apperr.Is(err, apperr.KindInternal) {
		t.Errorf("error kind = %v, want internal", apperr.GetKind(err))
	}

	if err := validateResponse(solver.PlanResponse{Routes: resp.Routes[:2]}); err != nil {
		t.Errorf("distinct drivers rejected: %v", err)
	}
}
