package factory

import (
	"bytes"
	"fmt"
	"log"
	"math/rand"
	"testing"

	"factorysim.ai/internal/sim/catalogs"
)

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.FromDefs(
		[]catalogs.MachineDef{
			{ID: "conveyor", Kind: catalogs.KindConveyor},
			{ID: "sorter", Kind: catalogs.KindSorting},
			{ID: "shredder", Kind: catalogs.KindProcessor, DisplayName: "Shredder", BaseProcessTime: 3.0},
			{ID: "seller", Kind: catalogs.KindSeller},
			{ID: "spawner", Kind: catalogs.KindSpawner, BaseProcessTime: 2.0},
		},
		[]catalogs.ItemDef{
			{ID: "can", SellValue: 25},
			{ID: "metal", SellValue: 10},
			{ID: "trash", SellValue: 0},
			{ID: "shreddedAluminum", SellValue: 40},
		},
		[]catalogs.RecipeDef{
			{RecipeID: "shred_can", Machine: "shredder", Input: "can", Outputs: []catalogs.ItemCount{{Item: "shreddedAluminum", Count: 1}}, ProcessMultiplier: 2.0},
			{RecipeID: "shred_metal", Machine: "shredder", Input: "metal", Outputs: []catalogs.ItemCount{{Item: "trash", Count: 1}, {Item: "metal", Count: 2}}, ProcessMultiplier: 1.0},
		},
		[]catalogs.WasteCrateDef{
			{ID: "mixed", Contents: []catalogs.ItemCount{{Item: "can", Count: 50}, {Item: "metal", Count: 50}}},
			{ID: "cans", Contents: []catalogs.ItemCount{{Item: "can", Count: 1}}},
		},
	)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	return cats
}

type rig struct {
	t       *testing.T
	env     *Env
	clock   *ManualClock
	cats    *catalogs.Catalogs
	logBuf  *bytes.Buffer
	credits []int
	events  []Event
	nextID  int
	crates  []string
}

func newRig(t *testing.T, w, h int) *rig {
	t.Helper()
	g, err := NewGrid(w, h)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	r := &rig{t: t, clock: &ManualClock{}, cats: testCatalogs(t), logBuf: &bytes.Buffer{}}
	r.env = &Env{
		Grid:           g,
		Registry:       r.cats,
		Clock:          r.clock,
		Rand:           rand.New(rand.NewSource(7)),
		Log:            log.New(r.logBuf, "", 0),
		MoveSeconds:    1.0,
		WaitingTimeout: 15,
		BlankTimeout:   11,
		NewItemID: func() string {
			r.nextID++
			return fmt.Sprintf("I%03d", r.nextID)
		},
		Credit: func(amount int) { r.credits = append(r.credits, amount) },
		Emit:   func(ev Event) { r.events = append(r.events, ev) },
		NextWasteCrate: func() (string, bool) {
			if len(r.crates) == 0 {
				return "", false
			}
			id := r.crates[0]
			r.crates = r.crates[1:]
			return id, true
		},
	}
	return r
}

func (r *rig) place(x, y int, machineID string, dir Direction) *Cell {
	r.t.Helper()
	c := r.env.Grid.At(x, y)
	if c == nil {
		r.t.Fatalf("no cell at %d,%d", x, y)
	}
	def, ok := r.cats.Machine(machineID)
	if !ok {
		r.t.Fatalf("unknown machine %q", machineID)
	}
	m, err := NewMachine(def)
	if err != nil {
		r.t.Fatalf("machine: %v", err)
	}
	c.MachineID = machineID
	c.Machine = m
	c.Direction = dir
	return c
}

func (r *rig) item(itemType string, x, y int) *Item {
	r.t.Helper()
	c := r.env.Grid.At(x, y)
	if c == nil {
		r.t.Fatalf("no cell at %d,%d", x, y)
	}
	r.nextID++
	it := NewItem(fmt.Sprintf("T%03d", r.nextID), itemType, x, y)
	c.AddItem(it)
	return it
}

// tick runs one driver step: advance the clock, interpolate moves, update every cell.
func (r *rig) tick(dt float64) {
	r.clock.Advance(dt)
	AdvanceMovement(r.env, dt)
	for _, c := range r.env.Grid.Cells() {
		c.Machine.UpdateLogic(r.env, c)
	}
}

func (r *rig) countEvents(typ string) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// assertUnique checks that every item is held exactly once across the grid.
func assertUnique(t *testing.T, g *Grid) {
	t.Helper()
	seen := map[string]string{}
	for _, c := range g.Cells() {
		for _, it := range c.Items {
			where := fmt.Sprintf("items(%d,%d)", c.X, c.Y)
			if prev, dup := seen[it.ID]; dup {
				t.Fatalf("item %s held twice: %s and %s", it.ID, prev, where)
			}
			seen[it.ID] = where
		}
		for _, it := range c.WaitingItems {
			where := fmt.Sprintf("waiting(%d,%d)", c.X, c.Y)
			if prev, dup := seen[it.ID]; dup {
				t.Fatalf("item %s held twice: %s and %s", it.ID, prev, where)
			}
			seen[it.ID] = where
		}
	}
}
