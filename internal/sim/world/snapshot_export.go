package world

import (
	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/factory"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			LevelID: w.levelID,
			Tick:    nowTick,
		},
		Seed:                    w.cfg.Seed,
		TickRate:                w.cfg.TickRateHz,
		ItemMoveSeconds:         w.cfg.ItemMoveSeconds,
		WaitingTimeoutSeconds:   w.cfg.WaitingTimeoutSeconds,
		BlankCellTimeoutSeconds: w.cfg.BlankCellTimeoutSeconds,
		SnapshotEveryTicks:      w.cfg.SnapshotEveryTicks,
		Width:                   w.grid.Width,
		Height:                  w.grid.Height,
		Credits:                 w.credits,
		WasteQueue:              append([]string(nil), w.wasteQueue...),
		Counters: snapshot.CountersV1{
			NextItem: w.nextItemNum,
			RNGDraws: w.rng.draws,
		},
	}
	for _, c := range w.grid.Cells() {
		if c.MachineID == "" && len(c.Items) == 0 && len(c.WaitingItems) == 0 {
			continue
		}
		s.Cells = append(s.Cells, exportCell(c))
	}
	return s
}

func exportCell(c *factory.Cell) snapshot.CellV1 {
	out := snapshot.CellV1{
		X:              c.X,
		Y:              c.Y,
		Machine:        c.MachineID,
		Direction:      c.Direction.String(),
		MachineState:   c.MachineState.String(),
		SortLeft:       c.SortLeft,
		SortRight:      c.SortRight,
		SelectedRecipe: c.SelectedRecipeID,
		ActiveRecipe:   c.ActiveRecipeID,
	}
	if c.Crate != nil {
		rem := make(map[string]int, len(c.Crate.Remaining))
		for k, v := range c.Crate.Remaining {
			rem[k] = v
		}
		out.Crate = &snapshot.CrateV1{DefID: c.Crate.DefID, Remaining: rem}
	}
	for _, it := range c.Items {
		out.Items = append(out.Items, exportItem(it))
	}
	for _, it := range c.WaitingItems {
		out.Waiting = append(out.Waiting, exportItem(it))
	}
	switch m := c.Machine.(type) {
	case *factory.Spawner:
		out.LastSpawnTime = m.LastSpawnTime
	case *factory.Seller:
		out.Sold = m.Sold
		out.Earned = m.Earned
	}
	return out
}

func exportItem(it *factory.Item) snapshot.ItemV1 {
	return snapshot.ItemV1{
		ID:                  it.ID,
		Type:                it.ItemType,
		X:                   it.X,
		Y:                   it.Y,
		State:               it.State.String(),
		SourceX:             it.SourceX,
		SourceY:             it.SourceY,
		TargetX:             it.TargetX,
		TargetY:             it.TargetY,
		MoveProgress:        it.MoveProgress,
		MoveStartTime:       it.MoveStartTime,
		Handoff:             it.Handoff.String(),
		StackIndex:          it.StackIndex,
		WaitingStartTime:    it.WaitingStartTime,
		ProcessingStartTime: it.ProcessingStartTime,
		ProcessingDuration:  it.ProcessingDuration,
	}
}
