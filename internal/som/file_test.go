package som

import (
	"testing"

	"somtool/internal/fixup"
	"somtool/internal/somfmt"
)

func buildTestObject(t *testing.T) []byte {
	t.Helper()
	code := make([]byte, 16)
	data := []byte{
		0x00, 0x00, 0x00, 0x00,
		0xca, 0xfe, 0xba, 0xbe, // hidden addend for the reloc at offset 4
		0x00, 0x00, 0x00, 0x00,
	}
	b := Builder{
		Aux: &AuxHeaders{Version: "somtool test object"},
		Spaces: []BuildSpace{
			{
				Space: Space{Name: "$TEXT$", IsDefined: true},
				Subspaces: []BuildSubspace{{
					Subspace: Subspace{
						Name:       "$CODE$",
						IsLoadable: true,
						CodeOnly:   true,
						Alignment:  4,
					},
					Contents: code,
					Relocs: []fixup.Reloc{
						{Address: 0, Kind: fixup.KindPCRelCall, SymIndex: 0,
							Addend: fixup.CallAddend(1<<8, 0)},
						{Address: 8, Kind: fixup.KindDPRelative, SymIndex: 1},
					},
				}},
			},
			{
				Space: Space{Name: "$PRIVATE$", IsDefined: true, IsPrivate: true},
				Subspaces: []BuildSubspace{{
					Subspace: Subspace{Name: "$DATA$", Alignment: 8},
					Contents: data,
					Relocs: []fixup.Reloc{
						{Address: 4, Kind: fixup.KindDataOneSymbol, SymIndex: 2},
					},
				}},
			},
		},
		Symbols: []Symbol{
			{Name: "printf", Type: STCode, Scope: ScopeUnsat},
			{Name: "global_table", Type: STData, Scope: ScopeUniversal, Info: 1},
			{Name: "main", Type: STEntry, Scope: ScopeUniversal, ArgReloc: 0x100},
		},
	}
	out, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return out
}

func TestWriteParseRoundTrip(t *testing.T) {
	raw := buildTestObject(t)
	f, err := Parse(raw, somfmt.Options{Mode: somfmt.ModeStrict})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Diags) != 0 {
		t.Errorf("strict parse produced diags: %v", f.Diags)
	}
	if f.Header.SOMLength != uint32(len(raw)) {
		t.Errorf("SOMLength = %d, file is %d bytes", f.Header.SOMLength, len(raw))
	}
	if f.Header.Magic != MagicRelocatable || f.Header.SystemID != SystemPARISC11 {
		t.Errorf("default ids wrong: %#x %#x", f.Header.Magic, f.Header.SystemID)
	}
	if f.Aux.Version != "somtool test object" {
		t.Errorf("version aux = %q", f.Aux.Version)
	}

	if len(f.Spaces) != 2 || len(f.Subspaces) != 2 || len(f.Symbols) != 3 {
		t.Fatalf("dictionary sizes: %d spaces, %d subspaces, %d symbols",
			len(f.Spaces), len(f.Subspaces), len(f.Symbols))
	}
	if f.Spaces[0].Name != "$TEXT$" || f.Subspaces[0].Name != "$CODE$" {
		t.Errorf("names: %q / %q", f.Spaces[0].Name, f.Subspaces[0].Name)
	}
	if sp := f.SpaceOf(1); sp == nil || sp.Name != "$PRIVATE$" {
		t.Errorf("SpaceOf(1) = %+v", sp)
	}
	if f.Symbols[2].Name != "main" || f.Symbols[2].ArgReloc != 0x100 {
		t.Errorf("symbol 2 = %+v", f.Symbols[2])
	}

	// Loadable contents land on a page boundary.
	if off := f.Subspaces[0].FileLocInitValue; off%PageSize != 0 {
		t.Errorf("loadable contents at %#x, not page aligned", off)
	}
	contents, err := f.Contents(0)
	if err != nil || len(contents) != 16 {
		t.Errorf("Contents(0): %d bytes, %v", len(contents), err)
	}
}

func TestFileRelocations(t *testing.T) {
	raw := buildTestObject(t)
	f, err := Parse(raw, somfmt.Options{Mode: somfmt.ModeStrict})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	n, err := f.CountFixups(0)
	if err != nil {
		t.Fatalf("CountFixups(0): %v", err)
	}
	if n != 2 {
		t.Errorf("CountFixups(0) = %d, want 2", n)
	}

	res, err := f.Relocations(0)
	if err != nil {
		t.Fatalf("Relocations(0): %v", err)
	}
	if len(res.Relocs) != 2 {
		t.Fatalf("got %d relocs, want 2", len(res.Relocs))
	}
	call := res.Relocs[0]
	if call.Kind != fixup.KindPCRelCall || call.SymIndex != 0 {
		t.Errorf("reloc 0 = %+v", call)
	}
	if bits := fixup.CallArgBits(call.Addend); bits != 1<<8 {
		t.Errorf("call arg bits %#x, want 0x100", bits)
	}

	// The data reloc was written with a zero addend; decoding recovers the
	// real addend from the subspace contents at the patch site.
	res, err = f.Relocations(1)
	if err != nil {
		t.Fatalf("Relocations(1): %v", err)
	}
	if len(res.Relocs) != 1 {
		t.Fatalf("got %d relocs, want 1", len(res.Relocs))
	}
	r := res.Relocs[0]
	if r.Kind != fixup.KindDataOneSymbol || r.Address != 4 || r.SymIndex != 2 {
		t.Errorf("data reloc = %+v", r)
	}
	if r.Addend != 0xcafebabe {
		t.Errorf("hidden addend = %#x, want 0xcafebabe", r.Addend)
	}

	if name := f.SymbolName(r.SymIndex); name != "main" {
		t.Errorf("SymbolName(%d) = %q", r.SymIndex, name)
	}
	if name := f.SymbolName(99); name != "sym#99" {
		t.Errorf("SymbolName(99) = %q", name)
	}
}

func TestParseToleratesBadChecksum(t *testing.T) {
	raw := buildTestObject(t)
	raw[17] ^= 0x08 // corrupt a header word without touching magic/version

	if _, err := Parse(raw, somfmt.Options{Mode: somfmt.ModeStrict}); err == nil {
		t.Error("strict parse accepted a bad checksum")
	}

	f, err := Parse(raw, somfmt.Options{Mode: somfmt.ModeBestEffort})
	if err != nil {
		t.Fatalf("best-effort parse: %v", err)
	}
	found := false
	for _, d := range f.Diags {
		if d.Kind == somfmt.DiagChecksum {
			found = true
		}
	}
	if !found {
		t.Errorf("no checksum diag: %v", f.Diags)
	}
}

func TestParseTruncatedTables(t *testing.T) {
	raw := buildTestObject(t)
	// Cut the file inside the dictionaries.
	cut := raw[:HeaderSize+16]

	if _, err := Parse(cut, somfmt.Options{Mode: somfmt.ModeStrict}); err == nil {
		t.Error("strict parse accepted truncated tables")
	}

	f, err := Parse(cut, somfmt.Options{Mode: somfmt.ModeBestEffort})
	if err != nil {
		t.Fatalf("best-effort parse: %v", err)
	}
	if len(f.Spaces) != 0 || len(f.Symbols) != 0 {
		t.Errorf("truncated tables still produced records")
	}
	if len(f.Diags) == 0 {
		t.Error("no diagnostics for truncated tables")
	}
}
