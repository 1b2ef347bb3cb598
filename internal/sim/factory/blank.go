package factory

// Blank is the behavior of a cell without a machine. Idle items stranded on it are discarded
// once their last move started more than BlankTimeout seconds ago.
type Blank struct{}

func (*Blank) machine()     {}
func (*Blank) Kind() string { return KindBlank }

func (*Blank) UpdateLogic(env *Env, c *Cell) {
	if env == nil || env.BlankTimeout <= 0 {
		return
	}
	now := env.now()
	for _, it := range c.idleItems() {
		// Zero means the move time was never recorded; treat as fresh.
		if it.MoveStartTime == 0 {
			continue
		}
		if now-it.MoveStartTime <= env.BlankTimeout {
			continue
		}
		c.RemoveItem(it.ID)
		env.emit(EventDiscarded, it, c.X, c.Y, "BLANK_TIMEOUT", 0)
	}
}

func (*Blank) OnItemArrived(*Env, *Cell, *Item) {}
func (*Blank) ProcessItem(*Env, *Cell, *Item)   {}
func (*Blank) Progress(*Env, *Cell) float64     { return -1 }
func (*Blank) Tooltip(*Env, *Cell) string       { return "Empty" }
