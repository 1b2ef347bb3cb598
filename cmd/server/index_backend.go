package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"factorysim.ai/internal/persistence/indexdb"
	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/tuning"
	"factorysim.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	BeginRun(info indexdb.RunInfo) (string, error)
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Sales(ctx context.Context) ([]indexdb.SaleSummary, error)
	Stats() indexdb.Stats
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("FS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported FS_INDEX_BACKEND: %s", backend)
	}
}
