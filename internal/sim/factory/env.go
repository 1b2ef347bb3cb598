package factory

import (
	"fmt"
	"log"
	"math/rand"

	"factorysim.ai/internal/sim/catalogs"
)

// Clock reports simulation time in seconds.
type Clock interface {
	Now() float64
}

// ManualClock is a settable clock for drivers and tests.
type ManualClock struct{ T float64 }

func (c *ManualClock) Now() float64 { return c.T }

func (c *ManualClock) Advance(dt float64) { c.T += dt }

// Registry is the read-only rule data the engine queries by string id.
type Registry interface {
	Machine(id string) (catalogs.MachineDef, bool)
	Recipe(machineID, inputItemType string) (catalogs.RecipeDef, bool)
	RecipeByID(id string) (catalogs.RecipeDef, bool)
	SellValue(itemType string) int
	WasteCrate(id string) (catalogs.WasteCrateDef, bool)
}

// Event types emitted to Env.Emit.
const (
	EventSpawned    = "ITEM_SPAWNED"
	EventMoved      = "ITEM_MOVED"
	EventHandoff    = "ITEM_HANDOFF"
	EventPulled     = "ITEM_PULLED"
	EventProcessing = "ITEM_PROCESSING"
	EventConsumed   = "ITEM_CONSUMED"
	EventSold       = "ITEM_SOLD"
	EventDiscarded  = "ITEM_DISCARDED"
	EventCrate      = "CRATE_LOADED"
)

// Event is a record of one item/machine transition. Renderers use it to create and destroy visuals.
type Event struct {
	Type     string `json:"type"`
	ItemID   string `json:"item_id,omitempty"`
	ItemType string `json:"item_type,omitempty"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Reason   string `json:"reason,omitempty"`
	Value    int    `json:"value,omitempty"`
}

// Env is the per-session handle threaded into every machine operation.
// Mutations outside the grid (credits, id allocation, crate queue) stay with the caller.
type Env struct {
	Grid     *Grid
	Registry Registry
	Clock    Clock
	Rand     *rand.Rand
	Log      *log.Logger

	// Seconds for one cell-to-cell move.
	MoveSeconds float64
	// Default waiting-queue timeout; machines may override it. <= 0 disables the sweep.
	WaitingTimeout float64
	// Idle items on blank cells are discarded once their last move is older than this.
	BlankTimeout float64

	NewItemID      func() string
	Credit         func(amount int)
	Emit           func(ev Event)
	NextWasteCrate func() (string, bool)

	seq uint64
}

func (env *Env) now() float64 {
	if env == nil || env.Clock == nil {
		return 0
	}
	return env.Clock.Now()
}

func (env *Env) logf(format string, args ...any) {
	if env == nil || env.Log == nil {
		return
	}
	env.Log.Printf(format, args...)
}

func (env *Env) emit(typ string, it *Item, x, y int, reason string, value int) {
	if env == nil || env.Emit == nil {
		return
	}
	ev := Event{Type: typ, X: x, Y: y, Reason: reason, Value: value}
	if it != nil {
		ev.ItemID = it.ID
		ev.ItemType = it.ItemType
	}
	env.Emit(ev)
}

func (env *Env) newItem(itemType string, x, y int) *Item {
	var id string
	switch {
	case env == nil:
		id = itemType
	case env.NewItemID != nil:
		id = env.NewItemID()
	default:
		env.seq++
		id = fmt.Sprintf("local-%d", env.seq)
	}
	return NewItem(id, itemType, x, y)
}

func (env *Env) randIntn(n int) int {
	if n <= 1 {
		return 0
	}
	if env == nil || env.Rand == nil {
		return 0
	}
	return env.Rand.Intn(n)
}
