package world

import (
	"encoding/json"
	"sort"

	"factorysim.ai/internal/observerproto"
	"factorysim.ai/internal/sim/factory"
)

// ObserverJoinRequest registers a read-only observer session that receives one TICK frame per tick.
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID     string
	TickOut       chan []byte
	IncludeEvents bool
}

type observerClient struct {
	id            string
	tickOut       chan []byte
	includeEvents bool
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	w.observers[req.SessionID] = &observerClient{
		id:            req.SessionID,
		tickOut:       req.TickOut,
		includeEvents: req.IncludeEvents,
	}
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

func (w *World) stepObservers(nowTick uint64) {
	if len(w.observers) == 0 {
		return
	}
	msg := w.buildTickMsg(nowTick)
	plain, err := json.Marshal(msg)
	if err != nil {
		return
	}
	var withEvents []byte
	for _, cl := range w.observers {
		if !cl.includeEvents || len(w.tickEvents) == 0 {
			sendLatest(cl.tickOut, plain)
			continue
		}
		if withEvents == nil {
			msg.Events = eventInfos(w.tickEvents)
			if withEvents, err = json.Marshal(msg); err != nil {
				withEvents = plain
			}
		}
		sendLatest(cl.tickOut, withEvents)
	}
}

func (w *World) buildTickMsg(nowTick uint64) observerproto.TickMsg {
	msg := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            nowTick,
		SimSeconds:      w.clock.T,
		Credits:         w.credits,
		WasteQueue:      append([]string(nil), w.wasteQueue...),
	}
	for _, c := range w.grid.Cells() {
		if c.MachineID == "" && len(c.Items) == 0 && len(c.WaitingItems) == 0 {
			continue
		}
		cs := observerproto.CellState{
			X:         c.X,
			Y:         c.Y,
			Machine:   c.MachineID,
			Kind:      c.Machine.Kind(),
			Direction: c.Direction.String(),
			State:     c.MachineState.String(),
			Progress:  c.Machine.Progress(w.env, c),
			Tooltip:   c.Machine.Tooltip(w.env, c),
		}
		for _, it := range c.Items {
			cs.Items = append(cs.Items, itemState(it))
		}
		for _, it := range c.WaitingItems {
			cs.Waiting = append(cs.Waiting, itemState(it))
		}
		msg.Cells = append(msg.Cells, cs)
	}
	return msg
}

func itemState(it *factory.Item) observerproto.ItemState {
	s := observerproto.ItemState{
		ID:         it.ID,
		Type:       it.ItemType,
		State:      it.State.String(),
		From:       [2]int{it.X, it.Y},
		To:         [2]int{it.X, it.Y},
		StackIndex: it.StackIndex,
	}
	if it.State == factory.ItemMoving || it.IsHalfway() {
		s.From = [2]int{it.SourceX, it.SourceY}
		s.To = [2]int{it.TargetX, it.TargetY}
		s.Progress = it.MoveProgress
	}
	return s
}

func eventInfos(evs []factory.Event) []observerproto.EventInfo {
	out := make([]observerproto.EventInfo, 0, len(evs))
	for _, ev := range evs {
		out = append(out, observerproto.EventInfo{
			Type:     ev.Type,
			ItemID:   ev.ItemID,
			ItemType: ev.ItemType,
			Pos:      [2]int{ev.X, ev.Y},
			Reason:   ev.Reason,
			Value:    ev.Value,
		})
	}
	return out
}

// Layout is the static shape of the grid: which machine sits where, and its facing.
// Machines and Directions are row-major; Machines holds palette indices (0 = blank).
type Layout struct {
	Width, Height int
	Palette       []string
	Machines      []uint16
	Directions    []uint16
}

// Layout returns the last published layout. Safe to call from any goroutine.
func (w *World) Layout() Layout {
	v, _ := w.layout.Load().(Layout)
	return v
}

func (w *World) publishLayout() {
	palette := []string{""}
	for id := range w.catalogs.Machines.ByID {
		palette = append(palette, id)
	}
	sort.Strings(palette[1:])
	index := make(map[string]uint16, len(palette))
	for i, id := range palette {
		index[id] = uint16(i)
	}

	cells := w.grid.Cells()
	l := Layout{
		Width:      w.grid.Width,
		Height:     w.grid.Height,
		Palette:    palette,
		Machines:   make([]uint16, len(cells)),
		Directions: make([]uint16, len(cells)),
	}
	for i, c := range cells {
		l.Machines[i] = index[c.MachineID]
		l.Directions[i] = uint16(c.Direction)
	}
	w.layout.Store(l)
}
