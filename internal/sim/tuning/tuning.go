package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	// Seconds an item needs to travel from one cell center to the next.
	ItemMoveSeconds float64 `yaml:"item_move_seconds"`

	// Age after which a pending item is dropped from a processor's waiting queue.
	WaitingTimeoutSeconds float64 `yaml:"waiting_timeout_seconds"`
	// Age (since its last move started) after which an idle item on a blank cell is discarded.
	BlankCellTimeoutSeconds float64 `yaml:"blank_cell_timeout_seconds"`

	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`
	Seed               int64 `yaml:"seed"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:              20,
		ItemMoveSeconds:         1.0,
		WaitingTimeoutSeconds:   15,
		BlankCellTimeoutSeconds: 10 + 1,
		SnapshotEveryTicks:      6000,
		Seed:                    1337,
	}
}

// ApplyDefaults fills zero fields from Defaults.
func (t *Tuning) ApplyDefaults() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.ItemMoveSeconds <= 0 {
		t.ItemMoveSeconds = d.ItemMoveSeconds
	}
	if t.WaitingTimeoutSeconds <= 0 {
		t.WaitingTimeoutSeconds = d.WaitingTimeoutSeconds
	}
	if t.BlankCellTimeoutSeconds <= 0 {
		t.BlankCellTimeoutSeconds = d.BlankCellTimeoutSeconds
	}
	if t.SnapshotEveryTicks < 0 {
		t.SnapshotEveryTicks = 0
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.ApplyDefaults()
	return t, nil
}
