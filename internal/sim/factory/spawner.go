package factory

import (
	"fmt"
	"math"

	"factorysim.ai/internal/sim/catalogs"
)

// Spawner emits one item from its waste crate every Interval seconds while its cell is empty.
type Spawner struct {
	Def catalogs.MachineDef

	LastSpawnTime float64
	Interval      float64
}

func (*Spawner) machine()     {}
func (*Spawner) Kind() string { return catalogs.KindSpawner }

func (m *Spawner) UpdateLogic(env *Env, c *Cell) {
	// Spawned items that could not leave (e.g. facing the grid edge) keep retrying.
	for _, it := range c.idleItems() {
		TryStartMove(env, it, c.Direction)
	}
	if c.Crate.Depleted() {
		m.refill(env, c)
	}

	now := env.now()
	if now-m.LastSpawnTime+completionEpsilon < m.Interval {
		return
	}
	if !c.Empty() || c.Crate.Depleted() {
		return
	}
	m.Spawn(env, c)
}

// Spawn picks a random available item type, takes one unit from the crate and starts moving
// the new item along the cell direction. LastSpawnTime is reset whether or not the move starts.
func (m *Spawner) Spawn(env *Env, c *Cell) *Item {
	m.LastSpawnTime = env.now()
	avail := c.Crate.Available()
	if len(avail) == 0 {
		return nil
	}
	itemType := avail[env.randIntn(len(avail))]
	if !c.Crate.Take(itemType) {
		return nil
	}
	it := env.newItem(itemType, c.X, c.Y)
	c.AddItem(it)
	env.emit(EventSpawned, it, c.X, c.Y, c.Crate.DefID, 0)
	TryStartMove(env, it, c.Direction)
	return it
}

func (m *Spawner) refill(env *Env, c *Cell) {
	if env == nil || env.NextWasteCrate == nil || env.Registry == nil {
		return
	}
	id, ok := env.NextWasteCrate()
	if !ok {
		return
	}
	def, ok := env.Registry.WasteCrate(id)
	if !ok {
		env.logf("ERROR spawner %s (%d,%d): unknown waste crate %q", m.Def.ID, c.X, c.Y, id)
		return
	}
	c.Crate = NewWasteCrate(def)
	env.emit(EventCrate, nil, c.X, c.Y, def.ID, c.Crate.Total())
}

func (m *Spawner) OnItemArrived(env *Env, c *Cell, it *Item) {
	if it == nil {
		return
	}
	env.logf("WARN spawner %s (%d,%d): unexpected arrival of item %s", m.Def.ID, c.X, c.Y, it.ID)
}

func (m *Spawner) ProcessItem(env *Env, c *Cell, it *Item) {
	if it == nil {
		return
	}
	env.logf("WARN spawner %s (%d,%d): cannot process item %s", m.Def.ID, c.X, c.Y, it.ID)
}

func (m *Spawner) Progress(env *Env, c *Cell) float64 {
	if c.Crate.Depleted() || m.Interval <= 0 {
		return -1
	}
	p := (env.now() - m.LastSpawnTime) / m.Interval
	return math.Max(0, math.Min(1, p))
}

func (m *Spawner) Tooltip(_ *Env, c *Cell) string {
	if c.Crate == nil {
		return fmt.Sprintf("%s: no crate", displayName(m.Def))
	}
	return fmt.Sprintf("%s: %s, %d left", displayName(m.Def), c.Crate.DefID, c.Crate.Total())
}
