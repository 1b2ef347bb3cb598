package factory

import (
	"strings"
	"testing"
)

func TestSeller_SellsEverythingRegardlessOfValue(t *testing.T) {
	r := newRig(t, 2, 1)
	r.place(0, 0, "conveyor", Right)
	s := r.place(1, 0, "seller", Right)

	for _, typ := range []string{"can", "metal", "trash"} {
		it := r.item(typ, 0, 0)
		TryStartMove(r.env, it, Right)
		AdvanceMovement(r.env, 1.0)
		if c, _ := r.env.Grid.Locate(it.ID); c != nil {
			t.Fatalf("%s not removed after sale", typ)
		}
	}
	// Only positive values are credited.
	if len(r.credits) != 2 || r.credits[0] != 25 || r.credits[1] != 10 {
		t.Fatalf("credits: %v", r.credits)
	}
	var values []int
	for _, ev := range r.events {
		if ev.Type == EventSold {
			values = append(values, ev.Value)
		}
	}
	if len(values) != 3 || values[0] != 25 || values[1] != 10 || values[2] != 0 {
		t.Fatalf("sold values: %v", values)
	}
	seller := s.Machine.(*Seller)
	if seller.Sold != 3 || seller.Earned != 35 {
		t.Fatalf("seller totals: sold=%d earned=%d", seller.Sold, seller.Earned)
	}
	if len(s.Items) != 0 {
		t.Fatalf("seller still holds items")
	}
}

func TestSeller_UpdateSellsIdleItemsOnly(t *testing.T) {
	r := newRig(t, 1, 1)
	s := r.place(0, 0, "seller", Up)
	idle := r.item("can", 0, 0)
	busy := r.item("metal", 0, 0)
	busy.State = ItemMoving

	s.Machine.UpdateLogic(r.env, s)
	if got, _ := s.FindItem(idle.ID); got != nil {
		t.Fatalf("idle item not sold")
	}
	if got, _ := s.FindItem(busy.ID); got == nil {
		t.Fatalf("moving item sold")
	}
}

func TestSpawner_IntervalAndCrateCount(t *testing.T) {
	r := newRig(t, 2, 1)
	sp := r.place(0, 0, "spawner", Right)
	r.place(1, 0, "conveyor", Right)
	def, _ := r.cats.WasteCrate("mixed")
	sp.Crate = NewWasteCrate(def)

	for _, now := range []float64{0, 0.5, 1.0, 1.99} {
		r.clock.T = now
		sp.Machine.UpdateLogic(r.env, sp)
		if len(sp.Items) != 0 {
			t.Fatalf("spawned early at t=%v", now)
		}
	}

	r.clock.T = 2.0
	sp.Machine.UpdateLogic(r.env, sp)
	if len(sp.Items) != 1 {
		t.Fatalf("spawned %d items at t=2.0", len(sp.Items))
	}
	it := sp.Items[0]
	if it.State != ItemMoving || it.TargetX != 1 {
		t.Fatalf("spawned item did not start moving: %+v", it)
	}
	if sp.Crate.Remaining[it.ItemType] != 49 || sp.Crate.Total() != 99 {
		t.Fatalf("crate after spawn: %v", sp.Crate.Remaining)
	}
	if m := sp.Machine.(*Spawner); m.LastSpawnTime != 2.0 {
		t.Fatalf("last spawn: %v", m.LastSpawnTime)
	}

	// Occupied cell blocks spawning.
	r.clock.T = 5
	sp.Machine.UpdateLogic(r.env, sp)
	if sp.Crate.Total() != 99 {
		t.Fatalf("spawned into an occupied cell")
	}
}

func TestSpawner_SeededPickIsDeterministic(t *testing.T) {
	run := func() []string {
		r := newRig(t, 2, 1)
		sp := r.place(0, 0, "spawner", Right)
		r.place(1, 0, "seller", Right)
		def, _ := r.cats.WasteCrate("mixed")
		sp.Crate = NewWasteCrate(def)
		var picked []string
		for i := 0; i < 40; i++ {
			r.tick(0.5)
		}
		for _, ev := range r.events {
			if ev.Type == EventSpawned {
				picked = append(picked, ev.ItemType)
			}
		}
		return picked
	}
	a, b := run(), run()
	if len(a) == 0 || strings.Join(a, ",") != strings.Join(b, ",") {
		t.Fatalf("picks differ:\n%v\n%v", a, b)
	}
}

func TestSpawner_RefillsFromWasteQueue(t *testing.T) {
	r := newRig(t, 2, 1)
	sp := r.place(0, 0, "spawner", Right)
	r.place(1, 0, "seller", Right)
	def, _ := r.cats.WasteCrate("cans")
	sp.Crate = NewWasteCrate(def)
	r.crates = []string{"mixed"}

	for i := 0; i < 12; i++ {
		r.tick(0.5)
	}
	if sp.Crate.DefID != "mixed" {
		t.Fatalf("crate not refilled: %s", sp.Crate.DefID)
	}
	if r.countEvents(EventCrate) != 1 {
		t.Fatalf("crate events: %d", r.countEvents(EventCrate))
	}
}

func TestSpawner_ArrivalIsAnomaly(t *testing.T) {
	r := newRig(t, 2, 1)
	sp := r.place(0, 0, "spawner", Right)
	sp.Machine.OnItemArrived(r.env, sp, NewItem("x", "can", 0, 0))
	sp.Machine.ProcessItem(r.env, sp, NewItem("y", "can", 0, 0))
	if strings.Count(r.logBuf.String(), "WARN") != 2 {
		t.Fatalf("expected two warnings, log=%q", r.logBuf.String())
	}
}

func TestSorting_RoutesByItemType(t *testing.T) {
	r := newRig(t, 3, 3)
	s := r.place(1, 1, "sorter", Up)
	s.SortLeft = "can"
	s.SortRight = "shreddedAluminum"

	cases := []struct {
		itemType string
		wantX    int
		wantY    int
	}{
		{"can", 0, 1},
		{"shreddedAluminum", 2, 1},
		{"metal", 1, 2},
	}
	for _, tc := range cases {
		it := r.item(tc.itemType, 1, 1)
		s.Machine.OnItemArrived(r.env, s, it)
		if it.State != ItemMoving || it.TargetX != tc.wantX || it.TargetY != tc.wantY {
			t.Fatalf("%s: target (%d,%d) want (%d,%d)", tc.itemType, it.TargetX, it.TargetY, tc.wantX, tc.wantY)
		}
	}
}

func TestSorting_UnconfiguredActsAsConveyor(t *testing.T) {
	r := newRig(t, 3, 3)
	s := r.place(1, 1, "sorter", Right)
	it := r.item("can", 1, 1)
	s.Machine.UpdateLogic(r.env, s)
	if it.TargetX != 2 || it.TargetY != 1 {
		t.Fatalf("target (%d,%d)", it.TargetX, it.TargetY)
	}
	if DirectionFor(s, "anything") != Right {
		t.Fatalf("unconfigured sorter turned")
	}
}

func TestBlank_DiscardsStrandedIdleItems(t *testing.T) {
	r := newRig(t, 2, 2)
	c := r.env.Grid.At(1, 1)
	stranded := r.item("can", 1, 1)
	stranded.MoveStartTime = 5
	fresh := r.item("can", 1, 1) // MoveStartTime 0: never timed out
	moving := r.item("metal", 1, 1)
	moving.State = ItemMoving
	moving.MoveStartTime = 1

	r.clock.T = 16 // exactly 11s: not older than the timeout yet
	c.Machine.UpdateLogic(r.env, c)
	if got, _ := c.FindItem(stranded.ID); got == nil {
		t.Fatalf("removed before crossing the timeout")
	}

	r.clock.T = 16.05
	c.Machine.UpdateLogic(r.env, c)
	if got, _ := c.FindItem(stranded.ID); got != nil {
		t.Fatalf("stranded item not removed")
	}
	if got, _ := c.FindItem(fresh.ID); got == nil {
		t.Fatalf("fresh item removed")
	}
	if got, _ := c.FindItem(moving.ID); got == nil {
		t.Fatalf("moving item removed")
	}
	if r.countEvents(EventDiscarded) != 1 {
		t.Fatalf("discard events: %d", r.countEvents(EventDiscarded))
	}
	if c.Machine.Progress(r.env, c) != -1 || c.Machine.Tooltip(r.env, c) != "Empty" {
		t.Fatalf("blank progress/tooltip")
	}
}

func TestLine_ItemsHeldExactlyOnce(t *testing.T) {
	r := newRig(t, 6, 1)
	sp := r.place(0, 0, "spawner", Right)
	r.place(1, 0, "conveyor", Right)
	r.place(2, 0, "shredder", Right)
	r.place(3, 0, "conveyor", Right)
	r.place(4, 0, "sorter", Right)
	r.place(5, 0, "seller", Right)
	def, _ := r.cats.WasteCrate("mixed")
	sp.Crate = NewWasteCrate(def)

	for i := 0; i < 600; i++ {
		r.tick(0.1)
		assertUnique(t, r.env.Grid)
		p := r.env.Grid.At(2, 0)
		processing := 0
		for _, it := range p.Items {
			if it.State == ItemProcessing {
				processing++
			}
		}
		for _, it := range p.WaitingItems {
			if it.State == ItemMoving {
				processing++
			}
		}
		if processing > 1 {
			t.Fatalf("tick %d: processor holds %d active items", i, processing)
		}
	}
	if r.countEvents(EventSold) == 0 {
		t.Fatalf("nothing reached the seller")
	}
	if r.countEvents(EventConsumed) == 0 {
		t.Fatalf("processor never consumed anything")
	}
}
