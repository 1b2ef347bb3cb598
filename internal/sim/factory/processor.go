package factory

import (
	"fmt"
	"math"

	"factorysim.ai/internal/sim/catalogs"
)

// completionEpsilon absorbs float drift when sim time is derived from tick counts.
const completionEpsilon = 1e-9

// Processor pulls one item at a time from its waiting queue and turns it into recipe outputs.
//
// Pull protocol: an item moving into the processor stops at halfway and waits in the queue.
// When the processor is idle, the first queued item (FIFO) with a matching recipe is granted
// (state Moving) and the processor turns Processing, which blocks further grants until the
// outputs are produced.
type Processor struct {
	Def catalogs.MachineDef
}

func (*Processor) machine()     {}
func (*Processor) Kind() string { return catalogs.KindProcessor }

func (m *Processor) UpdateLogic(env *Env, c *Cell) {
	m.CheckWaitingItemTimeouts(env, c)
	if c.MachineState == MachineProcessing {
		m.CheckProcessingComplete(env, c)
	}
	for _, it := range c.idleItems() {
		TryStartMove(env, it, c.Direction)
	}
	m.pull(env, c)
}

func (m *Processor) pull(env *Env, c *Cell) {
	if c.MachineState != MachineIdle || len(c.WaitingItems) == 0 {
		return
	}
	for _, it := range c.WaitingItems {
		if it.Handoff != HandoffPending || it.State != ItemWaiting {
			continue
		}
		r, ok := m.recipeFor(env, c, it.ItemType)
		if !ok {
			continue
		}
		it.State = ItemMoving
		c.MachineState = MachineProcessing
		c.ActiveRecipeID = r.RecipeID
		env.emit(EventPulled, it, c.X, c.Y, r.RecipeID, 0)
		return
	}
}

func (m *Processor) OnItemArrived(env *Env, c *Cell, it *Item) {
	if it == nil {
		return
	}
	if queued, _ := c.FindWaiting(it.ID); queued == nil {
		env.logf("WARN processor %s (%d,%d): item %s arrived without waiting-queue registration", m.Def.ID, c.X, c.Y, it.ID)
		return
	}
	if cur := m.processing(c); cur != nil {
		env.logf("WARN processor %s (%d,%d): item %s arrived while %s is processing", m.Def.ID, c.X, c.Y, it.ID, cur.ID)
		return
	}
	c.RemoveFromWaitingQueue(it.ID)
	m.begin(env, c, it)
}

// ProcessItem starts processing immediately when the machine is idle, wherever the item is held.
func (m *Processor) ProcessItem(env *Env, c *Cell, it *Item) {
	if it == nil {
		return
	}
	if c.MachineState != MachineIdle {
		env.logf("WARN processor %s (%d,%d): busy, cannot take item %s", m.Def.ID, c.X, c.Y, it.ID)
		return
	}
	if _, ok := m.recipeFor(env, c, it.ItemType); !ok {
		m.checkRecipe(env, c, it)
		return
	}
	if env != nil && env.Grid != nil {
		if holder, queued := env.Grid.Locate(it.ID); holder != nil {
			if queued {
				holder.RemoveFromWaitingQueue(it.ID)
			} else {
				holder.RemoveItem(it.ID)
			}
		}
	}
	m.begin(env, c, it)
}

func (m *Processor) begin(env *Env, c *Cell, it *Item) {
	it.Handoff = HandoffNone
	it.X, it.Y = c.X, c.Y
	it.MoveProgress = 1

	r, ok := m.activeRecipe(env, c, it.ItemType)
	if !ok {
		m.checkRecipe(env, c, it)
		it.State = ItemIdle
		c.AddItem(it)
		c.MachineState = MachineIdle
		c.ActiveRecipeID = ""
		return
	}
	it.State = ItemProcessing
	it.ProcessingStartTime = env.now()
	it.ProcessingDuration = m.Def.BaseProcessTime * r.ProcessMultiplier
	c.AddItem(it)
	c.MachineState = MachineProcessing
	c.ActiveRecipeID = r.RecipeID
	env.emit(EventProcessing, it, c.X, c.Y, r.RecipeID, 0)
}

// CheckProcessingComplete replaces the processed item with the recipe outputs once its
// duration has elapsed. Outputs start moving immediately when the way is free.
func (m *Processor) CheckProcessingComplete(env *Env, c *Cell) {
	cur := m.processing(c)
	if cur == nil {
		if !m.approaching(c) {
			// Granted item is gone (e.g. reconfigured or discarded); release the machine.
			c.MachineState = MachineIdle
			c.ActiveRecipeID = ""
		}
		return
	}
	if env.now()-cur.ProcessingStartTime+completionEpsilon < cur.ProcessingDuration {
		return
	}

	c.RemoveItem(cur.ID)
	env.emit(EventConsumed, cur, c.X, c.Y, c.ActiveRecipeID, 0)

	r, ok := m.activeRecipe(env, c, cur.ItemType)
	if !ok {
		env.logf("ERROR processor %s (%d,%d): recipe %q vanished while processing %s", m.Def.ID, c.X, c.Y, c.ActiveRecipeID, cur.ID)
	} else {
		for _, o := range r.Outputs {
			for i := 0; i < o.Count; i++ {
				out := env.newItem(o.Item, c.X, c.Y)
				c.AddItem(out)
				env.emit(EventSpawned, out, c.X, c.Y, r.RecipeID, 0)
				TryStartMove(env, out, c.Direction)
			}
		}
	}
	c.MachineState = MachineIdle
	c.ActiveRecipeID = ""
}

// CheckWaitingItemTimeouts drops queued items that have waited at halfway for too long.
// They are removed from the queue and from their source cell, and the queue is reindexed.
func (m *Processor) CheckWaitingItemTimeouts(env *Env, c *Cell) {
	timeout := m.waitingTimeout(env)
	if timeout <= 0 || len(c.WaitingItems) == 0 {
		return
	}
	now := env.now()
	kept := make([]*Item, 0, len(c.WaitingItems))
	removed := false
	for _, it := range c.WaitingItems {
		if it.State == ItemWaiting && now-it.WaitingStartTime >= timeout {
			if env.Grid != nil {
				if src := env.Grid.At(it.SourceX, it.SourceY); src != nil {
					src.RemoveItem(it.ID)
				}
			}
			env.logf("processor %s (%d,%d): dropped %s after waiting %.1fs", m.Def.ID, c.X, c.Y, it.ID, now-it.WaitingStartTime)
			env.emit(EventDiscarded, it, c.X, c.Y, "WAIT_TIMEOUT", 0)
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	if removed {
		c.WaitingItems = kept
		c.reindexWaiting()
	}
}

func (m *Processor) waitingTimeout(env *Env) float64 {
	if m.Def.WaitingTimeoutSeconds > 0 {
		return m.Def.WaitingTimeoutSeconds
	}
	if env == nil {
		return 0
	}
	return env.WaitingTimeout
}

func (m *Processor) recipeFor(env *Env, c *Cell, itemType string) (catalogs.RecipeDef, bool) {
	if env == nil || env.Registry == nil {
		return catalogs.RecipeDef{}, false
	}
	if c.SelectedRecipeID != "" {
		r, ok := env.Registry.RecipeByID(c.SelectedRecipeID)
		if !ok || r.Machine != m.Def.ID || r.Input != itemType {
			return catalogs.RecipeDef{}, false
		}
		return r, true
	}
	return env.Registry.Recipe(m.Def.ID, itemType)
}

func (m *Processor) activeRecipe(env *Env, c *Cell, itemType string) (catalogs.RecipeDef, bool) {
	if c.ActiveRecipeID != "" && env != nil && env.Registry != nil {
		if r, ok := env.Registry.RecipeByID(c.ActiveRecipeID); ok && r.Input == itemType {
			return r, true
		}
	}
	return m.recipeFor(env, c, itemType)
}

func (m *Processor) checkRecipe(env *Env, c *Cell, it *Item) {
	if _, ok := m.recipeFor(env, c, it.ItemType); ok {
		return
	}
	env.logf("ERROR processor %s (%d,%d): no recipe for %q (item %s)", m.Def.ID, c.X, c.Y, it.ItemType, it.ID)
}

func (m *Processor) processing(c *Cell) *Item {
	for _, it := range c.Items {
		if it != nil && it.State == ItemProcessing {
			return it
		}
	}
	return nil
}

func (m *Processor) approaching(c *Cell) bool {
	for _, it := range c.WaitingItems {
		if it.State == ItemMoving {
			return true
		}
	}
	return false
}

func (m *Processor) Progress(env *Env, c *Cell) float64 {
	cur := m.processing(c)
	if cur == nil || cur.ProcessingDuration <= 0 {
		return -1
	}
	p := (env.now() - cur.ProcessingStartTime) / cur.ProcessingDuration
	return math.Max(0, math.Min(1, p))
}

func (m *Processor) Tooltip(env *Env, c *Cell) string {
	name := displayName(m.Def)
	if c.SelectedRecipeID != "" {
		name = fmt.Sprintf("%s [%s]", name, c.SelectedRecipeID)
	}
	if cur := m.processing(c); cur != nil {
		return fmt.Sprintf("%s: processing %s (%d%%), %d queued", name, cur.ItemType, int(m.Progress(env, c)*100), len(c.WaitingItems))
	}
	if c.MachineState == MachineProcessing {
		return fmt.Sprintf("%s: receiving, %d queued", name, len(c.WaitingItems))
	}
	return fmt.Sprintf("%s: idle, %d queued", name, len(c.WaitingItems))
}
