package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"factorysim.ai/internal/sim/world"
)

// ListFiles returns the <prefix>-*.jsonl.zst files in dir, oldest hour first.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadTickFile calls fn for every entry of a tick log file, in order.
// fn may return ErrStop to end the scan early without error.
func ReadTickFile(path string, fn func(world.TickLogEntry) error) error {
	return readJSONL(path, func(line []byte) error {
		var e world.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		return fn(e)
	})
}

// ReadAuditFile calls fn for every entry of an audit log file, in order.
func ReadAuditFile(path string, fn func(world.AuditEntry) error) error {
	return readJSONL(path, func(line []byte) error {
		var e world.AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		return fn(e)
	})
}

// ErrStop ends a Read*File scan early.
var ErrStop = errors.New("stop")

func readJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return sc.Err()
}
