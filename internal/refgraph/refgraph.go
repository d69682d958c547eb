// Package refgraph builds a symbol reference graph from an object's
// relocations: each subspace that references a symbol through a call or data
// relocation contributes an edge from the subspace to the symbol's defining
// name.
package refgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"somtool/internal/fixup"
	"somtool/internal/som"
	"somtool/internal/somfmt"
)

// Ref is one symbol reference found in a fixup stream.
type Ref struct {
	Space    string `json:"space"`
	Subspace string `json:"subspace"`
	Address  uint32 `json:"address"`
	Symbol   string `json:"symbol"`
	SymIndex int32  `json:"sym_index"`
	Kind     string `json:"kind"`
}

// Result is the reference graph plus the flat reference list it was built
// from.
type Result struct {
	Graph *lattice.Graph
	Refs  []Ref
	Diags []somfmt.Diag
}

// referenceKind reports whether a relocation kind names another symbol in a
// way worth graphing: calls, procedure labels, and direct data references.
func referenceKind(k fixup.Kind) bool {
	switch k {
	case fixup.KindPCRelCall, fixup.KindAbsCall, fixup.KindMilliRel,
		fixup.KindDataOneSymbol, fixup.KindDataPlabel, fixup.KindCodePlabel,
		fixup.KindDPRelative, fixup.KindDataGPRel, fixup.KindDLTRel,
		fixup.KindCodeOneSymbol:
		return true
	}
	return false
}

// Build decodes every subspace's fixup stream and assembles the reference
// graph. In best-effort mode a subspace whose stream fails to decode is
// dropped with a diagnostic; strict mode fails.
func Build(f *som.File, mode somfmt.Mode) (*Result, error) {
	g := &lattice.Graph{}
	res := &Result{Graph: g}
	var diags somfmt.Diags

	for i := range f.Subspaces {
		ss := &f.Subspaces[i]
		if ss.FixupRequestQuantity == 0 {
			continue
		}
		node := subspaceNode(f, i)
		g.Nodes = append(g.Nodes, node)

		dec, err := f.Relocations(i)
		if err != nil {
			if mode == somfmt.ModeStrict {
				return nil, err
			}
			diags.Addf(uint64(ss.FixupRequestIndex), somfmt.DiagInvalid,
				"subspace %s: %v", node, err)
			continue
		}
		for _, r := range dec.Relocs {
			if !referenceKind(r.Kind) || r.SymIndex < 0 {
				continue
			}
			sym := f.SymbolName(r.SymIndex)
			space := ""
			if sp := f.SpaceOf(i); sp != nil {
				space = sp.Name
			}
			res.Refs = append(res.Refs, Ref{
				Space:    space,
				Subspace: ss.Name,
				Address:  r.Address,
				Symbol:   sym,
				SymIndex: r.SymIndex,
				Kind:     r.Kind.String(),
			})
			g.Edges = append(g.Edges, lattice.Edge{Caller: node, Callee: sym})
		}
	}
	g.Dedup()
	res.Diags = diags.Items()
	return res, nil
}

// subspaceNode names a subspace unambiguously even when the dictionary
// repeats subspace names across spaces.
func subspaceNode(f *som.File, i int) string {
	ss := &f.Subspaces[i]
	if sp := f.SpaceOf(i); sp != nil && sp.Name != "" {
		return sp.Name + ":" + ss.Name
	}
	if ss.Name != "" {
		return ss.Name
	}
	return fmt.Sprintf("subspace#%d", i)
}
