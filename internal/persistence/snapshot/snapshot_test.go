package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "42.snap.zst")
	in := SnapshotV1{
		Header:     Header{Version: Version, WorldID: "w1", LevelID: "line", Tick: 42},
		Seed:       7,
		TickRate:   20,
		Width:      3,
		Height:     1,
		Credits:    135,
		WasteQueue: []string{"can_crate"},
		Cells: []CellV1{
			{
				X: 0, Y: 0, Machine: "spawner", Direction: "RIGHT", MachineState: "IDLE",
				Crate:         &CrateV1{DefID: "mixed", Remaining: map[string]int{"can": 3, "metal": 1}},
				LastSpawnTime: 2.0,
			},
			{
				X: 1, Y: 0, Machine: "shredder", Direction: "RIGHT", MachineState: "PROCESSING",
				Waiting: []ItemV1{{ID: "I000002", Type: "can", State: "WAITING", MoveProgress: 0.5, Handoff: "PENDING"}},
			},
		},
		Counters: CountersV1{NextItem: 2, RNGDraws: 5},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h.Tick != 42 || h.LevelID != "line" {
		t.Fatalf("header: %+v", h)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Credits != 135 || len(out.Cells) != 2 || out.Counters.RNGDraws != 5 {
		t.Fatalf("snapshot: %+v", out)
	}
	if out.Cells[0].Crate == nil || out.Cells[0].Crate.Remaining["can"] != 3 {
		t.Fatalf("crate lost: %+v", out.Cells[0])
	}
	if len(out.Cells[1].Waiting) != 1 || out.Cells[1].Waiting[0].MoveProgress != 0.5 {
		t.Fatalf("waiting lost: %+v", out.Cells[1])
	}
	if out.Cells[1].Crate != nil {
		t.Fatalf("nil crate decoded as %+v", out.Cells[1].Crate)
	}
}

func TestReadSnapshot_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 99}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}
