package factory

import (
	"fmt"

	"factorysim.ai/internal/sim/catalogs"
)

// Conveyor forwards every idle item along the cell direction.
type Conveyor struct {
	Def catalogs.MachineDef
}

func (*Conveyor) machine()     {}
func (*Conveyor) Kind() string { return catalogs.KindConveyor }

func (m *Conveyor) UpdateLogic(env *Env, c *Cell) {
	for _, it := range c.idleItems() {
		TryStartMove(env, it, c.Direction)
	}
}

func (m *Conveyor) OnItemArrived(env *Env, c *Cell, it *Item) {
	TryStartMove(env, it, c.Direction)
}

func (*Conveyor) ProcessItem(*Env, *Cell, *Item) {}

func (*Conveyor) Progress(*Env, *Cell) float64 { return -1 }

func (m *Conveyor) Tooltip(_ *Env, c *Cell) string {
	return fmt.Sprintf("%s -> %s (%d items)", displayName(m.Def), c.Direction, len(c.Items))
}

// Sorting turns configured item types left or right of the cell direction.
// Without configuration it behaves as a conveyor.
type Sorting struct {
	Def catalogs.MachineDef
}

func (*Sorting) machine()     {}
func (*Sorting) Kind() string { return catalogs.KindSorting }

// DirectionFor picks the outgoing direction for an item type.
func DirectionFor(c *Cell, itemType string) Direction {
	switch {
	case c.SortLeft != "" && itemType == c.SortLeft:
		return c.Direction.RotateLeft()
	case c.SortRight != "" && itemType == c.SortRight:
		return c.Direction.RotateRight()
	default:
		return c.Direction
	}
}

func (m *Sorting) UpdateLogic(env *Env, c *Cell) {
	for _, it := range c.idleItems() {
		TryStartMove(env, it, DirectionFor(c, it.ItemType))
	}
}

func (m *Sorting) OnItemArrived(env *Env, c *Cell, it *Item) {
	if it == nil {
		return
	}
	TryStartMove(env, it, DirectionFor(c, it.ItemType))
}

func (*Sorting) ProcessItem(*Env, *Cell, *Item) {}

func (*Sorting) Progress(*Env, *Cell) float64 { return -1 }

func (m *Sorting) Tooltip(_ *Env, c *Cell) string {
	left, right := c.SortLeft, c.SortRight
	if left == "" {
		left = "-"
	}
	if right == "" {
		right = "-"
	}
	return fmt.Sprintf("%s -> %s (left: %s, right: %s)", displayName(m.Def), c.Direction, left, right)
}
