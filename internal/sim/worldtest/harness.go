package worldtest

import (
	"os"
	"path/filepath"
	"testing"

	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/factory"
	"factorysim.ai/internal/sim/level"
	world "factorysim.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Step()/StepFor() advance via StepOnce() and record digests
// - machine events are captured through the audit logger hook
// - Snapshot() exports at the last completed tick so an import resumes at CurrentTick
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	Digests []string
	Events  []world.AuditEntry
}

// RepoRoot walks up from the working directory to the directory holding go.mod.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate go.mod from %s", dir)
		}
		dir = parent
	}
}

func LoadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join(RepoRoot(t), "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func LoadLevel(t *testing.T, name string) level.Level {
	t.Helper()
	lvl, err := level.Load(filepath.Join(RepoRoot(t), "configs", "levels", name+".yaml"))
	if err != nil {
		t.Fatalf("load level: %v", err)
	}
	return lvl
}

func NewHarness(t *testing.T, cfg world.WorldConfig, levelName string) *Harness {
	t.Helper()
	cats := LoadCatalogs(t)
	w, err := world.New(cfg, cats, LoadLevel(t, levelName))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, cats)
}

// NewHarnessWithWorld wraps an already-constructed world, e.g. one resumed from a snapshot.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	h := &Harness{T: t, Cats: cats, W: w}
	w.SetAuditLogger(h)
	return h
}

// WriteAudit implements world.AuditLogger.
func (h *Harness) WriteAudit(e world.AuditEntry) error {
	h.Events = append(h.Events, e)
	return nil
}

func (h *Harness) Step(reconfigs ...world.CellConfig) string {
	h.T.Helper()
	_, d := h.W.StepOnce(reconfigs)
	h.Digests = append(h.Digests, d)
	h.AssertItemsHeldOnce()
	return d
}

func (h *Harness) StepFor(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step()
	}
}

// StepSeconds advances by the number of ticks covering secs of sim time.
func (h *Harness) StepSeconds(secs float64) {
	h.T.Helper()
	h.StepFor(int(secs * float64(h.W.Config().TickRateHz)))
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

// CountEvents counts captured events of a type, optionally restricted to an item type.
func (h *Harness) CountEvents(typ, itemType string) int {
	n := 0
	for _, e := range h.Events {
		if e.Type == typ && (itemType == "" || e.ItemType == itemType) {
			n++
		}
	}
	return n
}

// AssertItemsHeldOnce fails if any item id appears in more than one place
// (a cell's items or a waiting queue) across the grid.
func (h *Harness) AssertItemsHeldOnce() {
	h.T.Helper()
	seen := map[string][2]int{}
	check := func(c *factory.Cell, it *factory.Item) {
		if prev, dup := seen[it.ID]; dup {
			h.T.Fatalf("tick %d: item %s held at (%d,%d) and (%d,%d)", h.W.CurrentTick(), it.ID, prev[0], prev[1], c.X, c.Y)
		}
		seen[it.ID] = [2]int{c.X, c.Y}
	}
	for _, c := range h.W.Grid().Cells() {
		for _, it := range c.Items {
			check(c, it)
		}
		for _, it := range c.WaitingItems {
			check(c, it)
		}
	}
}
