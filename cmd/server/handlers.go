package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"factorysim.ai/internal/sim/world"
	"factorysim.ai/internal/transport/observer"
)

// registerAdminRoutes mounts the local-only admin endpoints. None of them affect determinism:
// reconfigure requests are applied at a tick boundary and recorded in the tick log.
func registerAdminRoutes(mux *http.ServeMux, w *world.World, idx runtimeIndex, logger *log.Logger) {
	mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		resp := struct {
			WorldID string             `json:"world_id"`
			LevelID string             `json:"level_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: w.Config().ID,
			LevelID: w.LevelID(),
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		writeJSON(rw, http.StatusOK, resp)
	}))

	mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		receipt, err := w.RequestSnapshot(ctx)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": receipt.Tick, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "snapshot": receipt})
	}))

	mux.HandleFunc("/admin/v1/reconfigure", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var cfg world.CellConfig
		body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
		if err == nil {
			err = json.Unmarshal(body, &cfg)
		}
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := w.RequestReconfigure(ctx, cfg); err != nil {
			code := http.StatusUnprocessableEntity
			if ctx.Err() != nil {
				code = http.StatusServiceUnavailable
			}
			writeJSON(rw, code, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		if logger != nil {
			logger.Printf("reconfigured (%d,%d)", cfg.X, cfg.Y)
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
	}))

	mux.HandleFunc("/admin/v1/sales", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "index disabled"})
			return
		}
		rows, err := idx.Sales(r.Context())
		if err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "sales": rows})
	}))

	obsSrv := observer.NewServer(w, logger)
	mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}
