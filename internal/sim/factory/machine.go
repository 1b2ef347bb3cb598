package factory

import (
	"fmt"

	"factorysim.ai/internal/sim/catalogs"
)

// Machine is the behavior attached to a cell. The set of implementations is closed:
// Conveyor, Sorting, Processor, Seller, Spawner, Blank.
type Machine interface {
	Kind() string

	// UpdateLogic runs once per tick for the owning cell.
	UpdateLogic(env *Env, c *Cell)
	// OnItemArrived is invoked when a move into c completes.
	OnItemArrived(env *Env, c *Cell, it *Item)
	// ProcessItem hands an item to the machine synchronously, bypassing the waiting queue.
	ProcessItem(env *Env, c *Cell, it *Item)

	// Progress is in [0,1], or -1 when there is nothing to show.
	Progress(env *Env, c *Cell) float64
	Tooltip(env *Env, c *Cell) string

	machine()
}

// KindBlank is reported by cells without a machine.
const KindBlank = "BLANK"

// NewMachine builds the behavior for a machine definition. A zero def yields a blank cell.
func NewMachine(def catalogs.MachineDef) (Machine, error) {
	if def.ID == "" {
		return &Blank{}, nil
	}
	switch def.Kind {
	case catalogs.KindConveyor:
		return &Conveyor{Def: def}, nil
	case catalogs.KindSorting:
		return &Sorting{Def: def}, nil
	case catalogs.KindProcessor:
		return &Processor{Def: def}, nil
	case catalogs.KindSeller:
		return &Seller{Def: def}, nil
	case catalogs.KindSpawner:
		return &Spawner{Def: def, Interval: def.BaseProcessTime}, nil
	default:
		return nil, fmt.Errorf("machine %q: unknown kind %q", def.ID, def.Kind)
	}
}

func isProcessor(c *Cell) bool {
	if c == nil {
		return false
	}
	_, ok := c.Machine.(*Processor)
	return ok
}

func displayName(def catalogs.MachineDef) string {
	if def.DisplayName != "" {
		return def.DisplayName
	}
	return def.ID
}
