package world

import (
	"context"
	"errors"
	"fmt"

	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/factory"
)

// CellConfig is an editor change to a placed machine, applied at a tick boundary.
// An empty Direction keeps the current facing; the sorting and recipe fields replace
// the current values (empty clears them).
type CellConfig struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction,omitempty"`
	SortLeft  string `json:"sort_left,omitempty"`
	SortRight string `json:"sort_right,omitempty"`
	Recipe    string `json:"recipe,omitempty"`
}

type reconfigureReq struct {
	Config CellConfig
	Resp   chan error
}

// RequestReconfigure queues a cell change for the next tick and waits until it is applied.
// It is safe to call from other goroutines.
func (w *World) RequestReconfigure(ctx context.Context, cfg CellConfig) error {
	if w == nil || w.reconfigure == nil {
		return errors.New("reconfigure not available")
	}
	resp := make(chan error, 1)
	select {
	case w.reconfigure <- reconfigureReq{Config: cfg, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) applyCellConfig(cfg CellConfig) error {
	c := w.grid.At(cfg.X, cfg.Y)
	if c == nil {
		return fmt.Errorf("out of bounds")
	}
	if c.MachineID == "" {
		return fmt.Errorf("no machine")
	}
	def, ok := w.catalogs.Machine(c.MachineID)
	if !ok {
		return fmt.Errorf("unknown machine %q", c.MachineID)
	}

	dir := c.Direction
	if cfg.Direction != "" {
		d, err := factory.ParseDirection(cfg.Direction)
		if err != nil {
			return err
		}
		dir = d
	}
	if (cfg.SortLeft != "" || cfg.SortRight != "") && def.Kind != catalogs.KindSorting {
		return fmt.Errorf("sorting config on %s", def.Kind)
	}
	if cfg.Recipe != "" {
		r, ok := w.catalogs.RecipeByID(cfg.Recipe)
		if !ok {
			return fmt.Errorf("unknown recipe %q", cfg.Recipe)
		}
		if r.Machine != c.MachineID {
			return fmt.Errorf("recipe %q belongs to %q", cfg.Recipe, r.Machine)
		}
	}

	c.Direction = dir
	c.SortLeft = cfg.SortLeft
	c.SortRight = cfg.SortRight
	if def.Kind == catalogs.KindProcessor {
		// The recipe of an item already granted or processing is kept in ActiveRecipeID.
		c.SelectedRecipeID = cfg.Recipe
	}
	return nil
}
