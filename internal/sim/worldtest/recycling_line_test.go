package worldtest

import (
	"testing"

	"factorysim.ai/internal/sim/factory"
	world "factorysim.ai/internal/sim/world"
)

func TestRecyclingLine_EarnsCredits(t *testing.T) {
	h := NewHarness(t, world.WorldConfig{ID: "line", TickRateHz: 20, Seed: 7}, "recycling_line")
	start := h.W.Credits()
	h.StepSeconds(120)

	if h.W.Credits() <= start {
		t.Fatalf("credits did not grow: %d -> %d", start, h.W.Credits())
	}
	if h.CountEvents(factory.EventSold, "metal") == 0 {
		t.Fatalf("no metal reached the side seller")
	}
	if h.CountEvents(factory.EventPulled, "can") == 0 {
		t.Fatalf("shredder never pulled a can")
	}

	earned := 0
	for _, e := range h.Events {
		if e.Type == factory.EventSold {
			earned += e.Value
		}
	}
	if h.W.Credits() != start+earned {
		t.Fatalf("credits %d != start %d + sales %d", h.W.Credits(), start, earned)
	}
}

func TestRecyclingLine_ReconfigureSorter(t *testing.T) {
	h := NewHarness(t, world.WorldConfig{ID: "line", TickRateHz: 20, Seed: 7}, "recycling_line")
	// Send metal forward into the shredder as well.
	h.Step(world.CellConfig{X: 2, Y: 1, Direction: "RIGHT", SortLeft: "trash"})
	h.StepSeconds(60)

	for _, e := range h.Events {
		if e.Type == factory.EventSold && e.ItemType == "metal" && e.X == 2 && e.Y == 0 {
			t.Fatalf("metal still routed to the side seller at tick %d", e.Tick)
		}
	}
}
