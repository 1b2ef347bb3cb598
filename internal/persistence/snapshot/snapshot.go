package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	LevelID string `json:"level_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed     int64 `json:"seed"`
	TickRate int   `json:"tick_rate_hz"`

	// Operational parameters (captured for deterministic replay/resume).
	ItemMoveSeconds         float64 `json:"item_move_seconds"`
	WaitingTimeoutSeconds   float64 `json:"waiting_timeout_seconds"`
	BlankCellTimeoutSeconds float64 `json:"blank_cell_timeout_seconds"`
	SnapshotEveryTicks      int     `json:"snapshot_every_ticks,omitempty"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Credits    int      `json:"credits"`
	WasteQueue []string `json:"waste_queue,omitempty"`

	// Cells with a machine or holding items, in row-major order.
	Cells []CellV1 `json:"cells"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextItem uint64 `json:"next_item"`
	// Values drawn from the seeded RNG since the world started.
	RNGDraws uint64 `json:"rng_draws"`
}

type CellV1 struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Machine   string `json:"machine,omitempty"`
	Direction string `json:"direction"`

	MachineState string `json:"machine_state"`

	SortLeft       string `json:"sort_left,omitempty"`
	SortRight      string `json:"sort_right,omitempty"`
	SelectedRecipe string `json:"selected_recipe,omitempty"`
	ActiveRecipe   string `json:"active_recipe,omitempty"`

	Crate *CrateV1 `json:"crate,omitempty"`

	Items   []ItemV1 `json:"items,omitempty"`
	Waiting []ItemV1 `json:"waiting,omitempty"`

	// Machine-local state.
	LastSpawnTime float64 `json:"last_spawn_time,omitempty"`
	Sold          int     `json:"sold,omitempty"`
	Earned        int     `json:"earned,omitempty"`
}

type CrateV1 struct {
	DefID     string         `json:"def_id"`
	Remaining map[string]int `json:"remaining"`
}

type ItemV1 struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	State string `json:"state"`

	SourceX       int     `json:"source_x"`
	SourceY       int     `json:"source_y"`
	TargetX       int     `json:"target_x"`
	TargetY       int     `json:"target_y"`
	MoveProgress  float64 `json:"move_progress"`
	MoveStartTime float64 `json:"move_start_time"`
	Handoff       string  `json:"handoff,omitempty"`

	StackIndex          int     `json:"stack_index"`
	WaitingStartTime    float64 `json:"waiting_start_time,omitempty"`
	ProcessingStartTime float64 `json:"processing_start_time,omitempty"`
	ProcessingDuration  float64 `json:"processing_duration,omitempty"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; gob also contains the header.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
