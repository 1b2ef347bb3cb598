package factory

import "testing"

func TestTryStartMove_OutOfBoundsIsNoop(t *testing.T) {
	r := newRig(t, 2, 1)
	it := r.item("can", 1, 0)
	r.clock.T = 3

	if TryStartMove(r.env, it, Right) {
		t.Fatalf("move off the grid should fail")
	}
	if it.State != ItemIdle || it.MoveStartTime != 0 || it.TargetX != 1 {
		t.Fatalf("item mutated by failed move: %+v", it)
	}
}

func TestTryStartMove_SetsMoveFields(t *testing.T) {
	r := newRig(t, 3, 3)
	it := r.item("can", 1, 1)
	it.MoveProgress = 0.7
	r.clock.T = 4.5

	if !TryStartMove(r.env, it, Up) {
		t.Fatalf("expected move to start")
	}
	if it.State != ItemMoving {
		t.Fatalf("state: got %s", it.State)
	}
	if it.SourceX != 1 || it.SourceY != 1 || it.TargetX != 1 || it.TargetY != 2 {
		t.Fatalf("endpoints: %+v", it)
	}
	if it.MoveProgress != 0 || it.MoveStartTime != 4.5 {
		t.Fatalf("progress=%v start=%v", it.MoveProgress, it.MoveStartTime)
	}
	// The destination is untouched until the move completes.
	if dst := r.env.Grid.At(1, 2); len(dst.Items) != 0 || len(dst.WaitingItems) != 0 {
		t.Fatalf("destination mutated at move start")
	}
	// A moving item cannot start another move.
	if TryStartMove(r.env, it, Down) {
		t.Fatalf("moving item restarted")
	}
}

func TestTryStartMove_NilInputs(t *testing.T) {
	r := newRig(t, 2, 2)
	if TryStartMove(r.env, nil, Up) {
		t.Fatalf("nil item moved")
	}
	if TryStartMove(nil, NewItem("x", "can", 0, 0), Up) {
		t.Fatalf("nil env moved")
	}
	c := r.place(0, 0, "shredder", Right)
	c.Machine.OnItemArrived(r.env, c, nil)
	c.Machine.ProcessItem(r.env, c, nil)
	s := r.place(1, 0, "seller", Right)
	s.Machine.OnItemArrived(r.env, s, nil)
	s.Machine.ProcessItem(r.env, s, nil)
	sp := r.place(0, 1, "spawner", Right)
	sp.Machine.OnItemArrived(r.env, sp, nil)
	sp.Machine.ProcessItem(r.env, sp, nil)
}

func TestAdvanceMovement_TransfersOwnershipAtArrival(t *testing.T) {
	r := newRig(t, 3, 1)
	r.place(0, 0, "conveyor", Right)
	r.place(1, 0, "conveyor", Right)
	it := r.item("can", 0, 0)
	r.tick(0.1) // conveyor starts the move

	if it.State != ItemMoving {
		t.Fatalf("state after update: %s", it.State)
	}
	r.tick(0.5)
	if c, _ := r.env.Grid.Locate(it.ID); c == nil || c.X != 0 {
		t.Fatalf("item should still be owned by source mid-move, got %+v", c)
	}
	r.tick(0.5)
	c, queued := r.env.Grid.Locate(it.ID)
	if c == nil || queued || c.X != 1 {
		t.Fatalf("item should be owned by (1,0) after arrival, got %+v queued=%v", c, queued)
	}
	// The conveyor forwards on arrival without pausing.
	if it.State != ItemMoving || it.TargetX != 2 {
		t.Fatalf("arrival did not forward: %+v", it)
	}
	if r.countEvents(EventMoved) != 1 {
		t.Fatalf("moved events: %d", r.countEvents(EventMoved))
	}
	assertUnique(t, r.env.Grid)
}

func TestAdvanceMovement_HalfwayHandoffIntoProcessor(t *testing.T) {
	r := newRig(t, 2, 1)
	r.place(0, 0, "conveyor", Right)
	p := r.place(1, 0, "shredder", Right)
	p.MachineState = MachineProcessing // busy: the item must wait at halfway
	p.ActiveRecipeID = "shred_can"
	busy := NewItem("busy", "can", 1, 0)
	busy.State = ItemProcessing
	busy.ProcessingDuration = 100
	p.AddItem(busy)

	it := r.item("can", 0, 0)
	if !TryStartMove(r.env, it, Right) {
		t.Fatalf("move did not start")
	}
	r.clock.T = 1
	AdvanceMovement(r.env, 0.3)
	if len(p.WaitingItems) != 0 {
		t.Fatalf("queued before halfway")
	}
	AdvanceMovement(r.env, 0.9) // would overshoot to 1.2; must stop at 0.5
	if !it.IsHalfway() || it.State != ItemWaiting || it.MoveProgress != 0.5 {
		t.Fatalf("expected halfway wait, got %+v", it)
	}
	if got, _ := p.FindWaiting(it.ID); got == nil || it.StackIndex != 0 {
		t.Fatalf("item not in waiting queue")
	}
	if src := r.env.Grid.At(0, 0); len(src.Items) != 0 {
		t.Fatalf("item still in source items after handoff")
	}
	if it.WaitingStartTime != 1 {
		t.Fatalf("waiting start: %v", it.WaitingStartTime)
	}
	// Waiting items are not advanced.
	AdvanceMovement(r.env, 5)
	if it.MoveProgress != 0.5 {
		t.Fatalf("waiting item advanced to %v", it.MoveProgress)
	}
	assertUnique(t, r.env.Grid)
}

// queueAtBusyShredder parks a can at halfway in front of a busy shredder at (1,0).
func queueAtBusyShredder(t *testing.T) (*rig, *Cell, *Item) {
	t.Helper()
	r := newRig(t, 2, 2)
	r.place(0, 0, "conveyor", Right)
	p := r.place(1, 0, "shredder", Right)
	r.place(0, 1, "conveyor", Up)
	r.place(1, 1, "conveyor", Up)
	p.MachineState = MachineProcessing
	p.ActiveRecipeID = "shred_can"
	busy := NewItem("busy", "can", 1, 0)
	busy.State = ItemProcessing
	busy.ProcessingDuration = 100
	p.AddItem(busy)

	it := r.item("can", 0, 0)
	if !TryStartMove(r.env, it, Right) {
		t.Fatalf("move did not start")
	}
	AdvanceMovement(r.env, 0.6)
	if it.State != ItemWaiting || len(p.WaitingItems) != 1 {
		t.Fatalf("expected queued item, got %+v queue=%d", it, len(p.WaitingItems))
	}
	return r, p, it
}

func TestTryStartMove_ResumeQueuedItemElsewhere(t *testing.T) {
	r, p, it := queueAtBusyShredder(t)

	if !TryStartMove(r.env, it, Up) {
		t.Fatalf("resume did not start")
	}
	if len(p.WaitingItems) != 0 {
		t.Fatalf("resumed item still queued")
	}
	if c, queued := r.env.Grid.Locate(it.ID); c == nil || queued || c.X != 0 || c.Y != 0 {
		t.Fatalf("resumed item should be held by (0,0), got %+v queued=%v", c, queued)
	}
	if it.State != ItemMoving || it.Handoff != HandoffNone || it.MoveProgress != 0 {
		t.Fatalf("resume state: %+v", it)
	}

	AdvanceMovement(r.env, 1.0)
	c, queued := r.env.Grid.Locate(it.ID)
	if c == nil || queued || c.X != 0 || c.Y != 1 {
		t.Fatalf("item should be owned by (0,1), got %+v queued=%v", c, queued)
	}
	assertUnique(t, r.env.Grid)
}

func TestTryStartMove_ResumeQueuedItemTowardSameProcessor(t *testing.T) {
	r, p, it := queueAtBusyShredder(t)

	// Out of bounds: nothing changes, the item stays queued.
	if TryStartMove(r.env, it, Left) {
		t.Fatalf("out-of-bounds resume started")
	}
	if len(p.WaitingItems) != 1 || it.State != ItemWaiting {
		t.Fatalf("failed resume changed the queue: %+v", it)
	}

	if !TryStartMove(r.env, it, Right) {
		t.Fatalf("resume did not start")
	}
	r.clock.T = 2
	AdvanceMovement(r.env, 0.6)
	if it.State != ItemWaiting || it.Handoff != HandoffPending || it.MoveProgress != 0.5 {
		t.Fatalf("expected second halfway wait, got %+v", it)
	}
	if len(p.WaitingItems) != 1 || it.WaitingStartTime != 2 {
		t.Fatalf("queue=%d waiting start=%v", len(p.WaitingItems), it.WaitingStartTime)
	}
	for i := 0; i < 5; i++ {
		AdvanceMovement(r.env, 0.5)
	}
	if got := r.countEvents(EventHandoff); got != 2 {
		t.Fatalf("handoff events: %d", got)
	}
	assertUnique(t, r.env.Grid)

	// The waiting timeout still sweeps it.
	r.clock.T = 100
	p.Machine.(*Processor).CheckWaitingItemTimeouts(r.env, p)
	if c, _ := r.env.Grid.Locate(it.ID); c != nil {
		t.Fatalf("timed-out item still held by (%d,%d)", c.X, c.Y)
	}
}
