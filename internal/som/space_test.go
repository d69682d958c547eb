package som

import (
	"encoding/binary"
	"testing"
)

func TestSpaceFlagPacking(t *testing.T) {
	sp := Space{
		IsDefined:   true,
		IsPrivate:   true,
		SortKey:     0x42,
		SpaceNumber: 7,
	}
	rec := make([]byte, SpaceRecordSize)
	sp.put(rec, 0x10)

	flags := binary.BigEndian.Uint32(rec[4:])
	if flags != 0x80000000|0x40000000|0x42<<8 {
		t.Errorf("flags = %#08x", flags)
	}

	got := parseSpace(rec)
	if !got.IsDefined || !got.IsPrivate || got.HasIntermediateCode {
		t.Errorf("flag bits lost: %+v", got)
	}
	if got.SortKey != 0x42 || got.SpaceNumber != 7 || got.nameOff != 0x10 {
		t.Errorf("fields lost: %+v", got)
	}
}

func TestSubspaceFlagPacking(t *testing.T) {
	ss := Subspace{
		AccessControl:  0x2c, // execute-only code
		IsLoadable:     true,
		Quadrant:       1,
		CodeOnly:       true,
		SortKey:        8,
		IsComdat:       true,
		SubspaceStart:  0x1000,
		SubspaceLength: 0x200,
		Alignment:      8,
		SpaceIndex:     3,
	}
	rec := make([]byte, SubspaceRecordSize)
	ss.put(rec, 0x20)

	flags := binary.BigEndian.Uint32(rec[4:])
	want := uint32(0x2c)<<25 | 1<<21 | 1<<19 | 1<<16 | 8<<8 | 1<<4
	if flags != want {
		t.Errorf("flags = %#08x, want %#08x", flags, want)
	}

	got := parseSubspace(rec)
	if got.AccessControl != 0x2c || !got.IsLoadable || got.Quadrant != 1 ||
		!got.CodeOnly || got.SortKey != 8 || !got.IsComdat {
		t.Errorf("flag bits lost: %+v", got)
	}
	if got.MemoryResident || got.IsCommon || got.IsFirst || got.Continuation {
		t.Errorf("spurious flag bits: %+v", got)
	}
	if got.SubspaceStart != 0x1000 || got.SubspaceLength != 0x200 ||
		got.Alignment != 8 || got.SpaceIndex != 3 || got.nameOff != 0x20 {
		t.Errorf("fields lost: %+v", got)
	}
}

func TestSymbolFlagPacking(t *testing.T) {
	sym := Symbol{
		Type:       STEntry,
		Scope:      ScopeUniversal,
		CheckLevel: 3,
		ArgReloc:   0x155,
		Info:       2,
		Value:      0x4010,
	}
	rec := make([]byte, SymbolRecordSize)
	sym.put(rec, 0x30, 0)

	flags := binary.BigEndian.Uint32(rec[0:])
	want := uint32(STEntry)<<24 | uint32(ScopeUniversal)<<20 | 3<<17 | 0x155
	if flags != want {
		t.Errorf("flags = %#08x, want %#08x", flags, want)
	}

	got := parseSymbol(rec)
	if got.Type != STEntry || got.Scope != ScopeUniversal || got.CheckLevel != 3 {
		t.Errorf("type/scope lost: %+v", got)
	}
	if got.ArgReloc != 0x155 || got.Info != 2 || got.Value != 0x4010 || got.nameOff != 0x30 {
		t.Errorf("fields lost: %+v", got)
	}
	if got.Hidden || got.MustQualify || got.IsCommon {
		t.Errorf("spurious flag bits: %+v", got)
	}
}

func TestSymbolTypeNames(t *testing.T) {
	if STMillicode.String() != "MILLICODE" {
		t.Errorf("STMillicode = %q", STMillicode.String())
	}
	if ScopeUnsat.String() != "UNSAT" {
		t.Errorf("ScopeUnsat = %q", ScopeUnsat.String())
	}
	if SymbolType(63).String() != "UNKNOWN" {
		t.Errorf("unknown type = %q", SymbolType(63).String())
	}
}
