package service

import (
	"testing"
	"time"
)

func TestRouteDayFollowsConfiguredLocation(t *testing.T) {
	east := time.FixedZone("east", 13*3600)
	west := time.FixedZone("west", -13*3600)

	// The two zones are 26 hours apart, so at any instant their calendar
	// dates differ. A UTC-anchored "today" would make them equal.
	if routeDay(east).Equal(routeDay(west)) {
		t.Fatalf("routeDay ignored the location: east=%v west=%v", routeDay(east), routeDay(west))
	}

	day := routeDay(east)
	if day.Location() != time.UTC {
		t.Errorf("route day location = %v, want UTC for date encoding", day.Location())
	}
	if h, m, s := day.Clock(); h != 0 || m != 0 || s != 0 {
		t.Errorf("route day carries time of day %02d:%02d:%02d, want midnight", h, m, s)
	}

	y, mo, d := time.Now().In(east).Date()
	wy, wmo, wd := day.Date()
	if y != wy || mo != wmo || d != wd {
		t.Errorf("route day = %04d-%02d-%02d, want %04d-%02d-%02d", wy, wmo, wd, y, mo, d)
	}
}
