package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	persistlog "factorysim.ai/internal/persistence/log"
	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "reconfigure":
			reconfigureCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// inspectCmd prints a snapshot as one JSON line per occupied cell.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (used to find the latest snapshot)")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		path = latestSnapshot(filepath.Join(*dataDir, "worlds", *worldID))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	inspect(os.Stdout, snap)
}

func inspect(out io.Writer, snap snapshot.SnapshotV1) {
	printJSON(out, struct {
		Header     snapshot.Header `json:"header"`
		Seed       int64           `json:"seed"`
		Width      int             `json:"width"`
		Height     int             `json:"height"`
		Credits    int             `json:"credits"`
		WasteQueue []string        `json:"waste_queue"`
	}{snap.Header, snap.Seed, snap.Width, snap.Height, snap.Credits, snap.WasteQueue})

	for _, c := range snap.Cells {
		types := make([]string, 0, len(c.Items))
		for _, it := range c.Items {
			types = append(types, it.Type+":"+it.State)
		}
		waiting := make([]string, 0, len(c.Waiting))
		for _, it := range c.Waiting {
			waiting = append(waiting, it.Type)
		}
		printJSON(out, struct {
			X       int      `json:"x"`
			Y       int      `json:"y"`
			Machine string   `json:"machine,omitempty"`
			Dir     string   `json:"dir"`
			State   string   `json:"state"`
			Recipe  string   `json:"recipe,omitempty"`
			Items   []string `json:"items,omitempty"`
			Waiting []string `json:"waiting,omitempty"`
			Sold    int      `json:"sold,omitempty"`
			Earned  int      `json:"earned,omitempty"`
		}{c.X, c.Y, c.Machine, c.Direction, c.MachineState, c.SelectedRecipe, types, waiting, c.Sold, c.Earned})
	}
}

// auditCmd scans the audit log files directly, without the sqlite index.
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	typ := fs.String("type", "", "event type filter, e.g. ITEM_SOLD (optional)")
	itemID := fs.String("item_id", "", "item id filter (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	dir := filepath.Join(*dataDir, "worlds", *worldID, persistlog.AuditPrefix)
	f := auditFilter{Type: strings.TrimSpace(*typ), ItemID: strings.TrimSpace(*itemID), Since: *sinceTick, To: *toTick}
	n, err := scanAudit(dir, f, func(e world.AuditEntry) { printJSON(os.Stdout, e) })
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "matched %d entries\n", n)
}

type auditFilter struct {
	Type   string
	ItemID string
	Since  uint64
	To     uint64
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.ItemID != "" && e.ItemID != f.ItemID {
		return false
	}
	if e.Tick < f.Since {
		return false
	}
	return f.To == 0 || e.Tick <= f.To
}

func scanAudit(dir string, f auditFilter, fn func(world.AuditEntry)) (int, error) {
	files, err := persistlog.ListFiles(dir, persistlog.AuditPrefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, path := range files {
		err := persistlog.ReadAuditFile(path, func(e world.AuditEntry) error {
			if f.To != 0 && e.Tick > f.To {
				return persistlog.ErrStop
			}
			if f.match(e) {
				n++
				fn(e)
			}
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
