package factory

// TryStartMove starts moving an idle (or queued) item one cell along dir.
// A destination outside the grid is a normal "nothing to do": the item is left unchanged.
// The destination cell is not touched until the move reaches its halfway point.
// A queued item leaves its waiting queue and goes back to the cell it was leaving.
func TryStartMove(env *Env, it *Item, dir Direction) bool {
	if env == nil || it == nil || env.Grid == nil {
		return false
	}
	if it.State != ItemIdle && it.State != ItemWaiting {
		return false
	}
	dx, dy := dir.Delta()
	tx, ty := it.X+dx, it.Y+dy
	if !env.Grid.InBounds(tx, ty) {
		return false
	}
	if it.State == ItemWaiting {
		unqueue(env, it)
	}
	it.State = ItemMoving
	it.SourceX, it.SourceY = it.X, it.Y
	it.TargetX, it.TargetY = tx, ty
	it.MoveProgress = 0
	it.MoveStartTime = env.now()
	it.Handoff = HandoffNone
	return true
}

// AdvanceMovement interpolates every moving item by dt seconds. Items heading into a processor
// stop at the halfway point and are registered in the processor's waiting queue; they resume
// only once the processor pulls them. Items reaching progress 1 are transferred to the
// destination cell and its machine's OnItemArrived runs.
//
// Items are collected in grid scan order before any of them moves, so an item that arrives and
// immediately starts a new move is not advanced twice in one call.
func AdvanceMovement(env *Env, dt float64) {
	if env == nil || env.Grid == nil || dt <= 0 {
		return
	}
	step := 1.0
	if env.MoveSeconds > 0 {
		step = dt / env.MoveSeconds
	}

	var moving []*Item
	for _, c := range env.Grid.Cells() {
		for _, it := range c.Items {
			if it != nil && it.State == ItemMoving {
				moving = append(moving, it)
			}
		}
		for _, it := range c.WaitingItems {
			if it != nil && it.State == ItemMoving {
				moving = append(moving, it)
			}
		}
	}

	for _, it := range moving {
		if it.State != ItemMoving {
			continue
		}
		dest := env.Grid.At(it.TargetX, it.TargetY)
		if dest == nil {
			// Target left the grid (should not happen: bounds are fixed). Park the item.
			it.State = ItemIdle
			continue
		}
		p := it.MoveProgress + step
		if it.Handoff == HandoffNone && p >= 0.5 && isProcessor(dest) {
			handoff(env, it, dest)
			continue
		}
		if p < 1 {
			it.MoveProgress = p
			continue
		}
		it.MoveProgress = 1
		arrive(env, it, dest)
	}
}

func handoff(env *Env, it *Item, dest *Cell) {
	if it.MoveProgress < 0.5 {
		it.MoveProgress = 0.5
	}
	if src := env.Grid.At(it.SourceX, it.SourceY); src != nil {
		src.RemoveItem(it.ID)
	}
	if !dest.AddToWaitingQueue(it, env.now()) {
		// Already queued here: only the state was lost.
		it.Handoff = HandoffPending
		it.State = ItemWaiting
		return
	}
	env.emit(EventHandoff, it, dest.X, dest.Y, "", 0)
	if p, ok := dest.Machine.(*Processor); ok {
		p.checkRecipe(env, dest, it)
	}
}

func unqueue(env *Env, it *Item) {
	if holder, queued := env.Grid.Locate(it.ID); holder != nil && queued {
		holder.RemoveFromWaitingQueue(it.ID)
	}
	if src := env.Grid.At(it.X, it.Y); src != nil {
		src.AddItem(it)
	}
}

func arrive(env *Env, it *Item, dest *Cell) {
	if it.Handoff == HandoffPending {
		// Ownership already moved to dest's waiting queue at halfway.
		it.X, it.Y = dest.X, dest.Y
		dest.Machine.OnItemArrived(env, dest, it)
		return
	}
	if src := env.Grid.At(it.SourceX, it.SourceY); src != nil {
		src.RemoveItem(it.ID)
	}
	it.X, it.Y = dest.X, dest.Y
	it.State = ItemIdle
	dest.AddItem(it)
	env.emit(EventMoved, it, dest.X, dest.Y, "", 0)
	dest.Machine.OnItemArrived(env, dest, it)
}
