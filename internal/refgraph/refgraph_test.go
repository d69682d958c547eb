package refgraph

import (
	"reflect"
	"testing"

	"github.com/zboralski/lattice"

	"somtool/internal/fixup"
	"somtool/internal/som"
	"somtool/internal/somfmt"
)

func testFile(t *testing.T) *som.File {
	t.Helper()
	b := som.Builder{
		Spaces: []som.BuildSpace{{
			Space: som.Space{Name: "$TEXT$", IsDefined: true},
			Subspaces: []som.BuildSubspace{{
				Subspace: som.Subspace{Name: "$CODE$", IsLoadable: true},
				Contents: make([]byte, 32),
				Relocs: []fixup.Reloc{
					{Address: 0, Kind: fixup.KindPCRelCall, SymIndex: 0,
						Addend: fixup.CallAddend(1<<8, 0)},
					{Address: 8, Kind: fixup.KindPCRelCall, SymIndex: 0,
						Addend: fixup.CallAddend(1<<8, 0)},
					{Address: 16, Kind: fixup.KindDPRelative, SymIndex: 1},
					{Address: 20, Kind: fixup.KindStatement, Addend: 3,
						SymIndex: fixup.NoSymbol}, // no symbol, not a reference
				},
			}},
		}},
		Symbols: []som.Symbol{
			{Name: "malloc", Type: som.STCode, Scope: som.ScopeUnsat},
			{Name: "table", Type: som.STData, Scope: som.ScopeUniversal},
		},
	}
	raw, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f, err := som.Parse(raw, somfmt.Options{Mode: somfmt.ModeStrict})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}

func TestBuildGraph(t *testing.T) {
	f := testFile(t)
	res, err := Build(f, somfmt.ModeStrict)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(res.Graph.Nodes) != 1 || res.Graph.Nodes[0] != "$TEXT$:$CODE$" {
		t.Errorf("nodes = %v", res.Graph.Nodes)
	}

	// Two calls to malloc collapse into one edge after Dedup; the DP
	// reference to table stays separate.
	want := []lattice.Edge{
		{Caller: "$TEXT$:$CODE$", Callee: "malloc"},
		{Caller: "$TEXT$:$CODE$", Callee: "table"},
	}
	if len(res.Graph.Edges) != len(want) {
		t.Fatalf("edges = %v, want %v", res.Graph.Edges, want)
	}
	for _, e := range want {
		found := false
		for _, g := range res.Graph.Edges {
			if reflect.DeepEqual(g, e) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing edge %v in %v", e, res.Graph.Edges)
		}
	}

	// The flat reference list keeps every site, including the duplicate
	// call.
	if len(res.Refs) != 3 {
		t.Fatalf("refs = %+v, want 3 entries", res.Refs)
	}
	if res.Refs[0].Symbol != "malloc" || res.Refs[0].Kind != "PCREL_CALL" || res.Refs[0].Address != 0 {
		t.Errorf("ref 0 = %+v", res.Refs[0])
	}
	if res.Refs[2].Symbol != "table" || res.Refs[2].Kind != "DP_RELATIVE" {
		t.Errorf("ref 2 = %+v", res.Refs[2])
	}
}

func TestReferenceKinds(t *testing.T) {
	for _, k := range []fixup.Kind{
		fixup.KindPCRelCall, fixup.KindAbsCall, fixup.KindDataOneSymbol,
		fixup.KindCodePlabel, fixup.KindDPRelative,
	} {
		if !referenceKind(k) {
			t.Errorf("%s should be a reference kind", k)
		}
	}
	for _, k := range []fixup.Kind{
		fixup.KindStatement, fixup.KindEntry, fixup.KindNoRelocation,
	} {
		if referenceKind(k) {
			t.Errorf("%s should not be a reference kind", k)
		}
	}
}
