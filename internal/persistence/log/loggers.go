package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"factorysim.ai/internal/sim/world"
)

const (
	TickPrefix  = "ticks"
	AuditPrefix = "audit"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named <prefix>-YYYY-MM-DD-HH.jsonl.zst.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	buf     *bufio.Writer
}

func NewJSONLZstdWriter(dir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Dir() string { return w.dir }

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour || w.buf == nil {
		if err := w.openLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *JSONLZstdWriter) openLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	// Each open appends a new zstd frame; readers decode concatenated frames.
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.buf = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.buf != nil {
		err = w.buf.Flush()
		w.buf = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	return err
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickLogger writes one replay entry per tick under <worldDir>/ticks.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, TickPrefix), TickPrefix)}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error { return l.w.Write(e) }
func (l *TickLogger) Dir() string                          { return l.w.Dir() }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes machine events (spawns, sales, discards...) under <worldDir>/audit.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, AuditPrefix), AuditPrefix)}
}

func (l *AuditLogger) WriteAudit(e world.AuditEntry) error { return l.w.Write(e) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }
