package som

import (
	"encoding/binary"
	"fmt"
)

// String table layout: each entry is a 4-byte big-endian length word followed
// by the string bytes, a NUL terminator, and padding to a 4-byte boundary.
// Name offsets stored in dictionary records point at the string bytes, not at
// the length word; offset 0 with an empty table means "no name".

// stringAt resolves a name offset within a string table.
func stringAt(table []byte, off uint32) (string, error) {
	if off == 0 && len(table) == 0 {
		return "", nil
	}
	if int(off) > len(table) {
		return "", fmt.Errorf("som: string offset %#x outside table of %d bytes", off, len(table))
	}
	end := int(off)
	for end < len(table) && table[end] != 0 {
		end++
	}
	if end == len(table) {
		return "", fmt.Errorf("som: unterminated string at offset %#x", off)
	}
	return string(table[off:end]), nil
}

// StringTable builds a deduplicated string table.
type StringTable struct {
	buf  []byte
	offs map[string]uint32
}

// Add records s and returns its name offset. Repeated strings share one
// entry.
func (t *StringTable) Add(s string) uint32 {
	if t.offs == nil {
		t.offs = map[string]uint32{}
	}
	if off, ok := t.offs[s]; ok {
		return off
	}
	t.buf = binary.BigEndian.AppendUint32(t.buf, uint32(len(s)))
	off := uint32(len(t.buf))
	t.buf = append(t.buf, s...)
	t.buf = append(t.buf, 0)
	for len(t.buf)%4 != 0 {
		t.buf = append(t.buf, 0)
	}
	t.offs[s] = off
	return off
}

// Bytes returns the serialized table.
func (t *StringTable) Bytes() []byte { return t.buf }
