package level

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/factory"
)

// Level is a factory layout: grid size, placed machines and the starting economy.
type Level struct {
	ID         string     `yaml:"id"`
	Width      int        `yaml:"width"`
	Height     int        `yaml:"height"`
	Credits    int        `yaml:"credits"`
	WasteQueue []string   `yaml:"waste_queue"`
	Cells      []CellSpec `yaml:"cells"`
}

// CellSpec places one machine. Cells not listed are blank.
type CellSpec struct {
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
	Machine   string `yaml:"machine"`
	Direction string `yaml:"direction"`

	WasteCrate string `yaml:"waste_crate,omitempty"`
	SortLeft   string `yaml:"sort_left,omitempty"`
	SortRight  string `yaml:"sort_right,omitempty"`
	Recipe     string `yaml:"recipe,omitempty"`
}

// Registry is the subset of the rule catalogs a level is checked against.
type Registry interface {
	Machine(id string) (catalogs.MachineDef, bool)
	RecipeByID(id string) (catalogs.RecipeDef, bool)
	WasteCrate(id string) (catalogs.WasteCrateDef, bool)
}

func Load(path string) (Level, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Level{}, err
	}
	lvl, err := Parse(raw)
	if err != nil {
		return Level{}, fmt.Errorf("%s: %w", path, err)
	}
	return lvl, nil
}

// Parse decodes a level document. Unknown keys are rejected.
func Parse(raw []byte) (Level, error) {
	var lvl Level
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&lvl); err != nil {
		return Level{}, fmt.Errorf("decode level: %w", err)
	}
	return lvl, nil
}

func (c CellSpec) Dir() (factory.Direction, error) {
	return factory.ParseDirection(c.Direction)
}

// Validate checks the layout against the grid bounds and the registry.
func (l Level) Validate(reg Registry) error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("level %q: bad size %dx%d", l.ID, l.Width, l.Height)
	}
	if l.Credits < 0 {
		return fmt.Errorf("level %q: negative credits", l.ID)
	}
	for i, id := range l.WasteQueue {
		if _, ok := reg.WasteCrate(id); !ok {
			return fmt.Errorf("level %q: waste_queue[%d]: unknown crate %q", l.ID, i, id)
		}
	}

	seen := map[[2]int]bool{}
	for i, c := range l.Cells {
		where := fmt.Sprintf("level %q: cells[%d] (%d,%d)", l.ID, i, c.X, c.Y)
		if c.X < 0 || c.Y < 0 || c.X >= l.Width || c.Y >= l.Height {
			return fmt.Errorf("%s: out of bounds", where)
		}
		key := [2]int{c.X, c.Y}
		if seen[key] {
			return fmt.Errorf("%s: duplicate cell", where)
		}
		seen[key] = true

		def, ok := reg.Machine(c.Machine)
		if !ok {
			return fmt.Errorf("%s: unknown machine %q", where, c.Machine)
		}
		if _, err := c.Dir(); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if c.WasteCrate != "" {
			if def.Kind != catalogs.KindSpawner {
				return fmt.Errorf("%s: waste_crate on non-spawner %q", where, c.Machine)
			}
			if _, ok := reg.WasteCrate(c.WasteCrate); !ok {
				return fmt.Errorf("%s: unknown waste crate %q", where, c.WasteCrate)
			}
		}
		if (c.SortLeft != "" || c.SortRight != "") && def.Kind != catalogs.KindSorting {
			return fmt.Errorf("%s: sorting config on non-sorter %q", where, c.Machine)
		}
		if c.Recipe != "" {
			r, ok := reg.RecipeByID(c.Recipe)
			if !ok {
				return fmt.Errorf("%s: unknown recipe %q", where, c.Recipe)
			}
			if r.Machine != c.Machine {
				return fmt.Errorf("%s: recipe %q belongs to %q", where, c.Recipe, r.Machine)
			}
		}
	}
	return nil
}
