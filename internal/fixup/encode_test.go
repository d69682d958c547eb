package fixup

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeSkipVariants(t *testing.T) {
	// One DP_RELATIVE fixup (symbol 0, one byte, never cached) placed at
	// increasing distances exercises every skip operand size.
	tests := []struct {
		dist uint32
		want []byte
	}{
		{0, nil},                                   // adjacent, no skip
		{4, []byte{0x00}},                          // (4/4)-1 = 0
		{0x60, []byte{0x17}},                       // (0x60/4)-1 = 23, last one-byte form
		{0x64, []byte{0x18, 0x18}},                 // n = 24 spills to two bytes
		{0x100, []byte{0x18, 0x3f}},                // n = 0x3f
		{0x1000, []byte{0x1b, 0xff}},               // n = 0x3ff, last two-byte form
		{0x1004, []byte{0x1c, 0x04, 0x00}},         // n = 0x400 spills to three bytes
		{0xc0000, []byte{0x1e, 0xff, 0xff}},        // n = 0x2ffff, last three-byte form
		{0xc0004, []byte{0x1f, 0x0c, 0x00, 0x03}},  // arbitrary form, n = dist-1
		{2, []byte{0x1f, 0x00, 0x00, 0x01}},        // unaligned distance
		{0x1000000, []byte{0x1f, 0xff, 0xff, 0xff}}, // exactly one maximal chunk
	}
	for _, tt := range tests {
		relocs := []Reloc{{Address: tt.dist, Kind: KindDPRelative, SymIndex: 0}}
		got, err := Encode(relocs, tt.dist+4)
		if err != nil {
			t.Errorf("dist %#x: %v", tt.dist, err)
			continue
		}
		want := append(append([]byte{}, tt.want...), 0x50) // DP_RELATIVE short form, sym 0
		if !bytes.Equal(got, want) {
			t.Errorf("dist %#x: got % x, want % x", tt.dist, got, want)
		}
	}
}

func TestEncodeTrailingSkip(t *testing.T) {
	// Un-relocated space after the last fixup is closed out.
	relocs := []Reloc{{Address: 0, Kind: KindDPRelative, SymIndex: 1}}
	got, err := Encode(relocs, 12)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x51, 0x00} // fixup covers 4, skip the remaining 8
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestEncodeBackReference(t *testing.T) {
	// An identical multi-byte fixup repeats as a single R_PREV_FIXUP byte.
	relocs := []Reloc{
		{Address: 0, Kind: KindDataOneSymbol, SymIndex: 0x42},
		{Address: 4, Kind: KindDataOneSymbol, SymIndex: 0x42},
		{Address: 8, Kind: KindDataOneSymbol, SymIndex: 0x43},
		{Address: 12, Kind: KindDataOneSymbol, SymIndex: 0x42}, // still cached, now slot 1
	}
	got, err := Encode(relocs, 16)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x25, 0x42, // DATA_ONE_SYMBOL sym 0x42
		0xd3,       // slot 0 replay
		0x25, 0x43, // different symbol, full emission
		0xd4, // sym 0x42 demoted to slot 1 by the insert above
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestEncodeOneByteNeverCached(t *testing.T) {
	// Short-form DP_RELATIVE fixups are one byte; repeating one must not
	// produce a back-reference.
	relocs := []Reloc{
		{Address: 0, Kind: KindDPRelative, SymIndex: 7},
		{Address: 4, Kind: KindDPRelative, SymIndex: 7},
	}
	got, err := Encode(relocs, 8)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x57, 0x57}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestEncodeSymbolSizeClasses(t *testing.T) {
	tests := []struct {
		sym  int32
		want []byte
	}{
		{0x1f, []byte{0x50 + 0x1f}},                  // short form ceiling
		{0x20, []byte{0x70, 0x20}},                   // one-byte index
		{0xff, []byte{0x70, 0xff}},
		{0x100, []byte{0x71, 0x00, 0x01, 0x00}},      // three-byte index
		{0xffffff, []byte{0x71, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		got, err := Encode([]Reloc{{Kind: KindDPRelative, SymIndex: tt.sym}}, 4)
		if err != nil {
			t.Errorf("sym %#x: %v", tt.sym, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("sym %#x: got % x, want % x", tt.sym, got, tt.want)
		}
	}

	_, err := Encode([]Reloc{{Kind: KindDPRelative, SymIndex: 0x1000000}}, 4)
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("sym 0x1000000: got %v, want ErrOutOfRange", err)
	}
}

func TestEncodeCalls(t *testing.T) {
	tests := []struct {
		name string
		r    Reloc
		want []byte
	}{
		{
			"simple two args",
			Reloc{Kind: KindPCRelCall, SymIndex: 9, Addend: CallAddend(1<<8|1<<6, 0)},
			[]byte{0x32, 0x09},
		},
		{
			"simple with return",
			Reloc{Kind: KindAbsCall, SymIndex: 2, Addend: CallAddend(1<<8|1, 0)},
			[]byte{0x46, 0x02},
		},
		{
			"hard small symbol",
			Reloc{Kind: KindPCRelCall, SymIndex: 5, Addend: CallAddend(0xe<<6, 0)},
			[]byte{0x3b, 0x68, 0x05}, // type 360 = 0x168
		},
		{
			"hard large symbol",
			Reloc{Kind: KindPCRelCall, SymIndex: 0x1234, Addend: CallAddend(0xe<<6, 0)},
			[]byte{0x3d, 0x68, 0x00, 0x12, 0x34},
		},
		{
			"simple pattern forced hard by symbol size",
			Reloc{Kind: KindPCRelCall, SymIndex: 0x200, Addend: CallAddend(0, 0)},
			[]byte{0x3c, 0x00, 0x00, 0x02, 0x00},
		},
	}
	for _, tt := range tests {
		got, err := Encode([]Reloc{tt.r}, 4)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s: got % x, want % x", tt.name, got, tt.want)
		}
	}
}

func TestEncodeAddendOverride(t *testing.T) {
	tests := []struct {
		addend int64
		want   []byte
	}{
		{0x7f, []byte{0xca, 0x7f}},
		{-1, []byte{0xca, 0xff}},
		{-0x80, []byte{0xca, 0x80}},
		{0x80, []byte{0xcb, 0x00, 0x80}},
		{-0x8000, []byte{0xcb, 0x80, 0x00}},
		{0x12345, []byte{0xcc, 0x01, 0x23, 0x45}},
		{0x1234567, []byte{0xcd, 0x01, 0x23, 0x45, 0x67}},
		{-0x800001, []byte{0xcd, 0xff, 0x7f, 0xff, 0xff}},
	}
	for _, tt := range tests {
		got, err := Encode([]Reloc{{Kind: KindDataOneSymbol, SymIndex: 1, Addend: tt.addend}}, 4)
		if err != nil {
			t.Errorf("addend %#x: %v", tt.addend, err)
			continue
		}
		want := append(append([]byte{}, tt.want...), 0x25, 0x01)
		if !bytes.Equal(got, want) {
			t.Errorf("addend %#x: got % x, want % x", tt.addend, got, want)
		}
	}
}

func TestEncodeEntryExit(t *testing.T) {
	relocs := []Reloc{
		{Address: 0, Kind: KindEntry, Addend: 0x11223344},
		{Address: 8, Kind: KindExit, Addend: 0x55667788},
	}
	got, err := Encode(relocs, 8)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0xb3, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, // entry + both unwind words
		0x01, // skip 8
		0xb6, // exit marker
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestEncodeUnmatchedEntry(t *testing.T) {
	_, err := Encode([]Reloc{{Kind: KindEntry, Addend: 1}}, 4)
	if !errors.Is(err, ErrUnmatchedEntry) {
		t.Errorf("got %v, want ErrUnmatchedEntry", err)
	}
}

func TestEncodeModeStateTracking(t *testing.T) {
	// The initial rounding mode is N and the initial call mode is short
	// PC-relative; only changes are emitted.
	relocs := []Reloc{
		{Address: 0, Kind: KindNMode},         // redundant, dropped
		{Address: 0, Kind: KindShortPCRelMode}, // redundant, dropped
		{Address: 0, Kind: KindDMode},
		{Address: 0, Kind: KindDMode}, // redundant after the first
		{Address: 0, Kind: KindLongPCRelMode},
		{Address: 0, Kind: KindNMode}, // back to N, emitted
	}
	got, err := Encode(relocs, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xc7, 0x3f, 0xc5}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestEncodeEndTryVariants(t *testing.T) {
	tests := []struct {
		addend int64
		want   []byte
	}{
		{0, []byte{0xb8}},
		{4, []byte{0xb9, 0x01}},
		{1020, []byte{0xb9, 0xff}},
		{1024, []byte{0xba, 0x00, 0x01, 0x00}},
	}
	for _, tt := range tests {
		got, err := Encode([]Reloc{{Kind: KindEndTry, Addend: tt.addend}}, 0)
		if err != nil {
			t.Errorf("addend %d: %v", tt.addend, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("addend %d: got % x, want % x", tt.addend, got, tt.want)
		}
	}

	if _, err := Encode([]Reloc{{Kind: KindEndTry, Addend: 3}}, 0); !errors.Is(err, ErrBadAddend) {
		t.Errorf("unaligned addend: got %v, want ErrBadAddend", err)
	}
}

func TestEncodeStatementVariants(t *testing.T) {
	tests := []struct {
		line int64
		want []byte
	}{
		{42, []byte{0xbd, 0x2a}},
		{0x1234, []byte{0xbe, 0x12, 0x34}},
		{0x123456, []byte{0xbf, 0x12, 0x34, 0x56}},
	}
	for _, tt := range tests {
		got, err := Encode([]Reloc{{Kind: KindStatement, Addend: tt.line}}, 0)
		if err != nil {
			t.Errorf("line %d: %v", tt.line, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("line %d: got % x, want % x", tt.line, got, tt.want)
		}
	}
}

func TestEncodeOrderingAndBounds(t *testing.T) {
	relocs := []Reloc{
		{Address: 8, Kind: KindDPRelative, SymIndex: 0},
		{Address: 4, Kind: KindDPRelative, SymIndex: 0},
	}
	if _, err := Encode(relocs, 16); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("descending addresses: got %v, want ErrOutOfOrder", err)
	}

	relocs = []Reloc{{Address: 14, Kind: KindDPRelative, SymIndex: 0}}
	if _, err := Encode(relocs, 16); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("patch past subspace end: got %v, want ErrOutOfRange", err)
	}
}

func TestEncodeMissingSymbol(t *testing.T) {
	for _, k := range []Kind{KindDPRelative, KindDataOneSymbol, KindPCRelCall, KindDataGPRel} {
		_, err := Encode([]Reloc{{Kind: k, SymIndex: NoSymbol}}, 4)
		if !errors.Is(err, ErrNoSymbol) {
			t.Errorf("%s without symbol: got %v, want ErrNoSymbol", k, err)
		}
	}
}

func TestEncodeUnsupportedKind(t *testing.T) {
	_, err := Encode([]Reloc{{Kind: KindComment}}, 0)
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("got %v, want ErrUnsupportedKind", err)
	}
}
