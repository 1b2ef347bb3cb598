package factory

import "fmt"

type ItemState uint8

const (
	ItemIdle ItemState = iota
	ItemMoving
	ItemWaiting
	ItemProcessing
)

func (s ItemState) String() string {
	switch s {
	case ItemIdle:
		return "IDLE"
	case ItemMoving:
		return "MOVING"
	case ItemWaiting:
		return "WAITING"
	case ItemProcessing:
		return "PROCESSING"
	default:
		return "?"
	}
}

func ParseItemState(s string) (ItemState, error) {
	for st := ItemIdle; st <= ItemProcessing; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return ItemIdle, fmt.Errorf("bad item state %q", s)
}

// Handoff marks an item that crossed the halfway point of a move into a processor.
// A pending item is owned by the destination's waiting queue, not by any cell's items.
type Handoff uint8

const (
	HandoffNone Handoff = iota
	HandoffPending
)

func (h Handoff) String() string {
	if h == HandoffPending {
		return "PENDING"
	}
	return "NONE"
}

func ParseHandoff(s string) (Handoff, error) {
	switch s {
	case "", "NONE":
		return HandoffNone, nil
	case "PENDING":
		return HandoffPending, nil
	default:
		return HandoffNone, fmt.Errorf("bad handoff %q", s)
	}
}

type Item struct {
	ID       string
	ItemType string

	X, Y  int
	State ItemState

	// Move endpoints and progress (meaningful while Moving, and while Waiting at halfway).
	SourceX, SourceY int
	TargetX, TargetY int
	MoveProgress     float64
	MoveStartTime    float64
	Handoff          Handoff

	// Position in the destination's waiting queue.
	StackIndex       int
	WaitingStartTime float64

	ProcessingStartTime float64
	ProcessingDuration  float64
}

func NewItem(id, itemType string, x, y int) *Item {
	return &Item{ID: id, ItemType: itemType, X: x, Y: y, SourceX: x, SourceY: y, TargetX: x, TargetY: y}
}

func (it *Item) IsHalfway() bool { return it != nil && it.Handoff == HandoffPending }
