package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"factorysim.ai/internal/persistence/snapshot"
	"factorysim.ai/internal/sim/catalogs"
	"factorysim.ai/internal/sim/level"
	"factorysim.ai/internal/sim/world"
)

func newRunningWorld(t *testing.T) *world.World {
	t.Helper()
	configDir := filepath.Join("..", "..", "configs")
	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	lvl, err := level.Load(filepath.Join(configDir, "levels", "recycling_line.yaml"))
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "test", TickRateHz: 100, Seed: 7}, cats, lvl)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	w.SetSnapshotSink(make(chan snapshot.SnapshotV1, 4))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func doLocal(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:50000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestAdminState(t *testing.T) {
	w := newRunningWorld(t)
	mux := http.NewServeMux()
	registerAdminRoutes(mux, w, nil, nil)

	rr := doLocal(t, mux, http.MethodGet, "/admin/v1/state", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var got struct {
		WorldID string `json:"world_id"`
		LevelID string `json:"level_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.WorldID != "test" || got.LevelID == "" {
		t.Fatalf("state = %+v", got)
	}
}

func TestAdminReconfigure(t *testing.T) {
	w := newRunningWorld(t)
	mux := http.NewServeMux()
	registerAdminRoutes(mux, w, nil, nil)

	rr := doLocal(t, mux, http.MethodPost, "/admin/v1/reconfigure", `{"x":2,"y":1,"sort_left":"can"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doLocal(t, mux, http.MethodPost, "/admin/v1/reconfigure", `{"x":0,"y":0,"direction":"UP"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank cell: status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doLocal(t, mux, http.MethodPost, "/admin/v1/reconfigure", `{`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status = %d", rr.Code)
	}

	rr = doLocal(t, mux, http.MethodGet, "/admin/v1/reconfigure", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: status = %d", rr.Code)
	}
}

func TestAdminSnapshot(t *testing.T) {
	w := newRunningWorld(t)
	mux := http.NewServeMux()
	registerAdminRoutes(mux, w, nil, nil)

	start := time.Now()
	rr := doLocal(t, mux, http.MethodPost, "/admin/v1/snapshot", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if body := rr.Body.String(); !strings.Contains(body, `"digest":"`) || !strings.Contains(body, `"reconfigs_applied":0`) {
		t.Fatalf("body = %s", body)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("snapshot took too long")
	}
}

func TestAdminSales_IndexDisabled(t *testing.T) {
	w := newRunningWorld(t)
	mux := http.NewServeMux()
	registerAdminRoutes(mux, w, nil, nil)

	rr := doLocal(t, mux, http.MethodGet, "/admin/v1/sales", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAdminRoutes_RejectNonLoopback(t *testing.T) {
	w := newRunningWorld(t)
	mux := http.NewServeMux()
	registerAdminRoutes(mux, w, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestLatestSnapshot_PicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	if got := latestSnapshot(dir); got != "" {
		t.Fatalf("empty dir: %q", got)
	}
	snaps := filepath.Join(dir, "snapshots")
	for _, name := range []string{"900.snap.zst", "12000.snap.zst", "notes.txt", "abc.snap.zst"} {
		writeEmpty(t, filepath.Join(snaps, name))
	}
	if got := filepath.Base(latestSnapshot(dir)); got != "12000.snap.zst" {
		t.Fatalf("latest = %s", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("FS_TEST_BOOL", "false")
	if envBool("FS_TEST_BOOL", true) {
		t.Fatalf("want false")
	}
	t.Setenv("FS_TEST_BOOL", "garbage")
	if !envBool("FS_TEST_BOOL", true) {
		t.Fatalf("invalid value should use default")
	}
	t.Setenv("DEPLOY_ENV", "production")
	if defaultEnableAdminHTTP() {
		t.Fatalf("admin http must default off in production")
	}
}

func writeEmpty(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
