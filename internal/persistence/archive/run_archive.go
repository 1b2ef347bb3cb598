package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"factorysim.ai/internal/persistence/snapshot"
)

type RunArchiveMeta struct {
	RunID     string `json:"run_id"`
	WorldID   string `json:"world_id"`
	LevelID   string `json:"level_id"`
	EndTick   uint64 `json:"end_tick"`
	Seed      int64  `json:"seed"`
	Credits   int    `json:"credits"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// ArchiveRunSnapshot keeps the newest snapshot of a run under `worldDir/archives/run_<runID>/`.
// Older snapshots of the same run are replaced, so the directory always holds the run's last
// known state. Snapshots older than the archived one are ignored.
func ArchiveRunSnapshot(worldDir, runID, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	if runID == "" {
		return "", false, fmt.Errorf("archive: empty run id")
	}
	archiveDir := filepath.Join(worldDir, "archives", "run_"+runID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	metaPath := filepath.Join(archiveDir, "meta.json")
	prev, hasPrev := readMeta(metaPath)
	if hasPrev && prev.EndTick > snap.Header.Tick {
		return "", false, nil
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	tmp := dst + ".tmp"
	if err := copyFile(snapshotPath, tmp); err != nil {
		return "", false, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", false, err
	}
	if hasPrev && prev.Snapshot != "" && prev.Snapshot != filepath.Base(dst) {
		_ = os.Remove(filepath.Join(archiveDir, prev.Snapshot))
	}

	meta := RunArchiveMeta{
		RunID:     runID,
		WorldID:   snap.Header.WorldID,
		LevelID:   snap.Header.LevelID,
		EndTick:   snap.Header.Tick,
		Seed:      snap.Seed,
		Credits:   snap.Credits,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(metaPath, b, 0o644)
	}

	return dst, true, nil
}

// ReadRunMeta returns the archive metadata of a run, if present.
func ReadRunMeta(worldDir, runID string) (RunArchiveMeta, bool) {
	return readMeta(filepath.Join(worldDir, "archives", "run_"+runID, "meta.json"))
}

func readMeta(path string) (RunArchiveMeta, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RunArchiveMeta{}, false
	}
	var m RunArchiveMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return RunArchiveMeta{}, false
	}
	return m, true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
