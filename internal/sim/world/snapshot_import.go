package world

import (
	"fmt"

	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/factory"
)

// NewFromSnapshot builds a world whose state is the snapshot's. Config values not carried by
// the snapshot (e.g. the world id when empty) come from cfg.
func NewFromSnapshot(cfg WorldConfig, cats *catalogs.Catalogs, s snapshot.SnapshotV1) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	if s.Header.WorldID != "" {
		cfg.ID = s.Header.WorldID
	}
	cfg.TickRateHz = s.TickRate
	cfg.Seed = s.Seed
	cfg.ItemMoveSeconds = s.ItemMoveSeconds
	cfg.WaitingTimeoutSeconds = s.WaitingTimeoutSeconds
	cfg.BlankCellTimeoutSeconds = s.BlankCellTimeoutSeconds
	if s.SnapshotEveryTicks > 0 {
		cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}
	cfg.applyDefaults()

	w := newWorld(cfg, cats)
	if err := w.ImportSnapshot(s); err != nil {
		return nil, err
	}
	return w, nil
}

// ImportSnapshot replaces the world state. It must not be called while Run is active.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	if s.Seed != w.cfg.Seed {
		return fmt.Errorf("snapshot seed %d does not match world seed %d", s.Seed, w.cfg.Seed)
	}
	g, err := factory.NewGrid(s.Width, s.Height)
	if err != nil {
		return fmt.Errorf("snapshot grid: %w", err)
	}

	seen := map[string]bool{}
	for _, cs := range s.Cells {
		c := g.At(cs.X, cs.Y)
		if c == nil {
			return fmt.Errorf("snapshot cell (%d,%d) out of bounds", cs.X, cs.Y)
		}
		if err := w.importCell(c, cs, seen); err != nil {
			return fmt.Errorf("snapshot cell (%d,%d): %w", cs.X, cs.Y, err)
		}
	}

	w.levelID = s.Header.LevelID
	w.credits = s.Credits
	w.wasteQueue = append([]string(nil), s.WasteQueue...)
	w.nextItemNum = s.Counters.NextItem
	w.rng.restore(w.cfg.Seed, s.Counters.RNGDraws)
	w.tick.Store(s.Header.Tick + 1)
	w.clock.T = w.now(s.Header.Tick + 1)
	w.attachGrid(g)
	return nil
}

func (w *World) importCell(c *factory.Cell, cs snapshot.CellV1, seen map[string]bool) error {
	dir, err := factory.ParseDirection(cs.Direction)
	if err != nil {
		return err
	}
	state, err := factory.ParseMachineState(cs.MachineState)
	if err != nil {
		return err
	}
	if cs.Machine != "" {
		def, ok := w.catalogs.Machine(cs.Machine)
		if !ok {
			return fmt.Errorf("unknown machine %q", cs.Machine)
		}
		m, err := factory.NewMachine(def)
		if err != nil {
			return err
		}
		switch mm := m.(type) {
		case *factory.Spawner:
			mm.LastSpawnTime = cs.LastSpawnTime
		case *factory.Seller:
			mm.Sold = cs.Sold
			mm.Earned = cs.Earned
		}
		c.MachineID = def.ID
		c.Machine = m
	}
	c.Direction = dir
	c.MachineState = state
	c.SortLeft = cs.SortLeft
	c.SortRight = cs.SortRight
	c.SelectedRecipeID = cs.SelectedRecipe
	c.ActiveRecipeID = cs.ActiveRecipe
	if cs.Crate != nil {
		wc := &factory.WasteCrate{DefID: cs.Crate.DefID, Remaining: map[string]int{}}
		for k, v := range cs.Crate.Remaining {
			if v > 0 {
				wc.Remaining[k] = v
			}
		}
		c.Crate = wc
	}

	for _, iv := range cs.Items {
		it, err := importItem(iv, seen)
		if err != nil {
			return err
		}
		c.Items = append(c.Items, it)
	}
	for _, iv := range cs.Waiting {
		it, err := importItem(iv, seen)
		if err != nil {
			return err
		}
		c.WaitingItems = append(c.WaitingItems, it)
	}
	return nil
}

func importItem(iv snapshot.ItemV1, seen map[string]bool) (*factory.Item, error) {
	if iv.ID == "" {
		return nil, fmt.Errorf("item without id")
	}
	if seen[iv.ID] {
		return nil, fmt.Errorf("item %s held twice", iv.ID)
	}
	seen[iv.ID] = true
	st, err := factory.ParseItemState(iv.State)
	if err != nil {
		return nil, err
	}
	h, err := factory.ParseHandoff(iv.Handoff)
	if err != nil {
		return nil, err
	}
	return &factory.Item{
		ID:                  iv.ID,
		ItemType:            iv.Type,
		X:                   iv.X,
		Y:                   iv.Y,
		State:               st,
		SourceX:             iv.SourceX,
		SourceY:             iv.SourceY,
		TargetX:             iv.TargetX,
		TargetY:             iv.TargetY,
		MoveProgress:        iv.MoveProgress,
		MoveStartTime:       iv.MoveStartTime,
		Handoff:             h,
		StackIndex:          iv.StackIndex,
		WaitingStartTime:    iv.WaitingStartTime,
		ProcessingStartTime: iv.ProcessingStartTime,
		ProcessingDuration:  iv.ProcessingDuration,
	}, nil
}
