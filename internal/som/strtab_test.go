package som

import (
	"encoding/binary"
	"testing"
)

func TestStringTableLayout(t *testing.T) {
	var tab StringTable
	off1 := tab.Add("$CODE$")
	off2 := tab.Add("main")
	off3 := tab.Add("$CODE$") // duplicate shares the first entry

	if off3 != off1 {
		t.Errorf("duplicate got offset %d, want %d", off3, off1)
	}
	if off1 != 4 {
		t.Errorf("first offset = %d, want 4 (past the length word)", off1)
	}

	buf := tab.Bytes()
	if len(buf)%4 != 0 {
		t.Errorf("table length %d not word aligned", len(buf))
	}
	if n := binary.BigEndian.Uint32(buf[0:]); n != 6 {
		t.Errorf("first length word = %d, want 6", n)
	}

	for off, want := range map[uint32]string{off1: "$CODE$", off2: "main"} {
		got, err := stringAt(buf, off)
		if err != nil {
			t.Errorf("stringAt(%d): %v", off, err)
			continue
		}
		if got != want {
			t.Errorf("stringAt(%d) = %q, want %q", off, got, want)
		}
	}
}

func TestStringAtErrors(t *testing.T) {
	if _, err := stringAt([]byte{'a', 'b'}, 0); err == nil {
		t.Error("unterminated string accepted")
	}
	if _, err := stringAt([]byte{0}, 5); err == nil {
		t.Error("out-of-range offset accepted")
	}
	if s, err := stringAt(nil, 0); err != nil || s != "" {
		t.Errorf("empty table: %q, %v", s, err)
	}
}
