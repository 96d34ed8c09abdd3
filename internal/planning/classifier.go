package planning

import "github.com/jotavsevla/agua-viva-oop-sub000/internal/dispatch"

// TriggerKind says whether an event batch warrants a planning run.
type TriggerKind string

const (
	TriggerNone      TriggerKind = "NONE"
	TriggerPrimary   TriggerKind = "PRIMARY"
	TriggerSecondary TriggerKind = "SECONDARY"
)

// CapacityPolicy controls how much vehicle capacity a planning run assumes.
type CapacityPolicy string

const (
	// CapacityFull treats every vehicle as empty.
	CapacityFull CapacityPolicy = "FULL"
	// CapacityRemaining subtracts load already committed to in-progress routes.
	CapacityRemaining CapacityPolicy = "REMAINING"
)

type classification struct {
	Trigger  TriggerKind
	Capacity CapacityPolicy
}

// New orders replan from scratch; freed capacity replans against what is
// left; pure progress events never trigger.
var eventClassification = map[string]classification{
	dispatch.EventOrderCreated:   {TriggerPrimary, CapacityFull},
	dispatch.EventOrderFailed:    {TriggerSecondary, CapacityRemaining},
	dispatch.EventOrderCancelled: {TriggerSecondary, CapacityRemaining},
	dispatch.EventRouteCompleted: {TriggerSecondary, CapacityRemaining},
	dispatch.EventOrderDelivered: {TriggerNone, CapacityFull},
	dispatch.EventRouteStarted:   {TriggerNone, CapacityFull},
}

// Classify maps one event type to its planning trigger. Unknown event types
// never trigger.
func Classify(eventType string) (TriggerKind, CapacityPolicy) {
	c, ok := eventClassification[eventType]
	if !ok {
		return TriggerNone, CapacityFull
	}
	return c.Trigger, c.Capacity
}

// Consolidate folds a dequeued batch into a single planning decision.
// One SECONDARY event anywhere in the batch wins, because replanning against
// remaining capacity is the safe choice whenever in-flight load may exist.
func Consolidate(events []dispatch.Event) (TriggerKind, CapacityPolicy) {
	kind := TriggerNone
	for _, ev := range events {
		trigger, _ := Classify(ev.EventType)
		switch trigger {
		case TriggerSecondary:
			return TriggerSecondary, CapacityRemaining
		case TriggerPrimary:
			kind = TriggerPrimary
		}
	}
	if kind == TriggerPrimary {
		return TriggerPrimary, CapacityFull
	}
	return TriggerNone, CapacityFull
}
