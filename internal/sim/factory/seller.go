package factory

import (
	"fmt"

	"factorysim.ai/internal/sim/catalogs"
)

// Seller is a sink: every idle item is sold and removed, including items worth nothing.
type Seller struct {
	Def catalogs.MachineDef

	// Items sold and credits earned by this seller since load.
	Sold   int
	Earned int
}

func (*Seller) machine()     {}
func (*Seller) Kind() string { return catalogs.KindSeller }

func (m *Seller) UpdateLogic(env *Env, c *Cell) {
	for _, it := range c.idleItems() {
		m.Sell(env, c, it)
	}
}

func (m *Seller) OnItemArrived(env *Env, c *Cell, it *Item) {
	if it == nil || it.State != ItemIdle {
		return
	}
	m.Sell(env, c, it)
}

func (m *Seller) ProcessItem(env *Env, c *Cell, it *Item) {
	if it == nil {
		return
	}
	if env != nil && env.Grid != nil {
		if holder, queued := env.Grid.Locate(it.ID); holder != nil && holder != c {
			if queued {
				holder.RemoveFromWaitingQueue(it.ID)
			} else {
				holder.RemoveItem(it.ID)
			}
		}
	}
	m.Sell(env, c, it)
}

// Sell credits the item's registry value (0 when unknown) and removes it from the cell.
func (m *Seller) Sell(env *Env, c *Cell, it *Item) int {
	if it == nil {
		return 0
	}
	value := 0
	if env != nil && env.Registry != nil {
		value = env.Registry.SellValue(it.ItemType)
	}
	if value > 0 && env != nil && env.Credit != nil {
		env.Credit(value)
	}
	c.RemoveItem(it.ID)
	m.Sold++
	if value > 0 {
		m.Earned += value
	}
	env.emit(EventSold, it, c.X, c.Y, "", value)
	return value
}

func (*Seller) Progress(*Env, *Cell) float64 { return -1 }

func (m *Seller) Tooltip(*Env, *Cell) string {
	return fmt.Sprintf("%s: %d sold, %d credits", displayName(m.Def), m.Sold, m.Earned)
}
