package world

import "factorysim.ai/internal/sim/tuning"

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64

	ItemMoveSeconds         float64
	WaitingTimeoutSeconds   float64
	BlankCellTimeoutSeconds float64

	// Operational parameters. These are included in snapshots for deterministic replay/resume.
	SnapshotEveryTicks int
}

// ConfigFromTuning builds a world config from the tuning file values.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                      id,
		TickRateHz:              t.TickRateHz,
		Seed:                    t.Seed,
		ItemMoveSeconds:         t.ItemMoveSeconds,
		WaitingTimeoutSeconds:   t.WaitingTimeoutSeconds,
		BlankCellTimeoutSeconds: t.BlankCellTimeoutSeconds,
		SnapshotEveryTicks:      t.SnapshotEveryTicks,
	}
}

func (c *WorldConfig) applyDefaults() {
	d := tuning.Defaults()
	if c.ID == "" {
		c.ID = "factory_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.ItemMoveSeconds <= 0 {
		c.ItemMoveSeconds = d.ItemMoveSeconds
	}
	if c.WaitingTimeoutSeconds <= 0 {
		c.WaitingTimeoutSeconds = d.WaitingTimeoutSeconds
	}
	if c.BlankCellTimeoutSeconds <= 0 {
		c.BlankCellTimeoutSeconds = d.BlankCellTimeoutSeconds
	}
	if c.SnapshotEveryTicks < 0 {
		c.SnapshotEveryTicks = 0
	}
}

// dt is the simulated seconds covered by one tick.
func (c WorldConfig) dt() float64 { return 1.0 / float64(c.TickRateHz) }
