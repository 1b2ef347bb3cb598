package factory

import "fmt"

type MachineState uint8

const (
	MachineIdle MachineState = iota
	MachineReceiving
	MachineProcessing
)

func (s MachineState) String() string {
	switch s {
	case MachineIdle:
		return "IDLE"
	case MachineReceiving:
		return "RECEIVING"
	case MachineProcessing:
		return "PROCESSING"
	default:
		return "?"
	}
}

func ParseMachineState(s string) (MachineState, error) {
	for st := MachineIdle; st <= MachineProcessing; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return MachineIdle, fmt.Errorf("bad machine state %q", s)
}

// Cell is one grid position. Items holds what is physically in the cell (unordered);
// WaitingItems is the FIFO of items claimed by this cell's machine but not yet arrived.
type Cell struct {
	X, Y      int
	Direction Direction

	MachineID string
	Machine   Machine

	Items        []*Item
	WaitingItems []*Item
	MachineState MachineState

	// Sorting config: item types turned left/right of Direction.
	SortLeft  string
	SortRight string

	// Processor config. ActiveRecipeID is the recipe of the item being pulled or processed.
	SelectedRecipeID string
	ActiveRecipeID   string

	Crate *WasteCrate
}

func (c *Cell) FindItem(id string) (*Item, int) {
	for i, it := range c.Items {
		if it != nil && it.ID == id {
			return it, i
		}
	}
	return nil, -1
}

func (c *Cell) AddItem(it *Item) {
	if it == nil {
		return
	}
	if found, _ := c.FindItem(it.ID); found != nil {
		return
	}
	c.Items = append(c.Items, it)
}

// RemoveItem drops an item from Items by id. It reports whether the item was present.
func (c *Cell) RemoveItem(id string) bool {
	_, i := c.FindItem(id)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

func (c *Cell) FindWaiting(id string) (*Item, int) {
	for i, it := range c.WaitingItems {
		if it != nil && it.ID == id {
			return it, i
		}
	}
	return nil, -1
}

// AddToWaitingQueue appends an item at the tail of the waiting queue and marks its handoff
// pending. Items already queued are left untouched.
func (c *Cell) AddToWaitingQueue(it *Item, now float64) bool {
	if it == nil {
		return false
	}
	if found, _ := c.FindWaiting(it.ID); found != nil {
		return false
	}
	it.StackIndex = len(c.WaitingItems)
	it.Handoff = HandoffPending
	it.State = ItemWaiting
	it.WaitingStartTime = now
	c.WaitingItems = append(c.WaitingItems, it)
	return true
}

func (c *Cell) RemoveFromWaitingQueue(id string) (*Item, bool) {
	it, i := c.FindWaiting(id)
	if i < 0 {
		return nil, false
	}
	c.WaitingItems = append(c.WaitingItems[:i], c.WaitingItems[i+1:]...)
	c.reindexWaiting()
	return it, true
}

func (c *Cell) reindexWaiting() {
	for i, it := range c.WaitingItems {
		it.StackIndex = i
	}
}

func (c *Cell) Empty() bool { return len(c.Items) == 0 }

// idleItems copies the idle items so callers may mutate Items while iterating.
func (c *Cell) idleItems() []*Item {
	var out []*Item
	for _, it := range c.Items {
		if it != nil && it.State == ItemIdle {
			out = append(out, it)
		}
	}
	return out
}
