// Package encoding packs per-cell grid columns for the observer bootstrap.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRuns writes (value, run_len) uvarint pairs over vals and returns them base64 encoded.
func EncodeRuns(vals []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(vals); {
		v := vals[i]
		run := 1
		for i+run < len(vals) && vals[i+run] == v {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRuns reverses EncodeRuns. The decoded length must equal cells (width*height).
func DecodeRuns(b64 string, cells int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, cells)
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFF {
			return nil, fmt.Errorf("value too large: %d", v)
		}
		if run == 0 || run > uint64(cells-len(out)) {
			return nil, fmt.Errorf("bad run length %d at cell %d", run, len(out))
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(v))
		}
	}
	if len(out) != cells {
		return nil, fmt.Errorf("decoded %d cells, want %d", len(out), cells)
	}
	return out, nil
}
