// Package render produces Graphviz DOT output from reference graphs.
package render

import (
	"fmt"
	"sort"
	"strings"

	"somtool/internal/refgraph"
)

// dotEscape escapes a string for use in DOT double-quoted labels.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

// dotID creates a safe DOT identifier from a node name.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

func isCallKind(kind string) bool {
	switch kind {
	case "PCREL_CALL", "ABS_CALL", "MILLI_REL":
		return true
	}
	return false
}

// RefGraphDOT renders the reference graph as DOT. Subspace nodes are boxes,
// symbol nodes are ellipses; call references and data references get distinct
// edge colors, and unsatisfied symbols are flagged with the import color.
// maxEdges limits output size (0 = all).
func RefGraphDOT(res *refgraph.Result, unsat map[string]bool, title string, t Theme, maxEdges int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph refs {\n")
	fmt.Fprintf(&b, "  label=%q;\n", title)
	fmt.Fprintf(&b, "  rankdir=LR;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [fontname=\"Helvetica\" color=%q fontcolor=%q];\n", t.NodeBorder, t.TextColor)

	// Subspace nodes come from the graph's node list; symbol nodes are
	// whatever the edges reach.
	subspaces := map[string]bool{}
	for _, n := range res.Graph.Nodes {
		subspaces[n] = true
		fmt.Fprintf(&b, "  %s [shape=box style=filled fillcolor=%q label=\"%s\"];\n",
			dotID(n), t.SubspaceFill, dotEscape(n))
	}

	symbols := map[string]bool{}
	for _, e := range res.Graph.Edges {
		if !subspaces[e.Callee] {
			symbols[e.Callee] = true
		}
	}
	names := make([]string, 0, len(symbols))
	for s := range symbols {
		names = append(names, s)
	}
	sort.Strings(names)
	for _, s := range names {
		if unsat[s] {
			fmt.Fprintf(&b, "  %s [shape=ellipse fontcolor=%q label=\"%s\"];\n",
				dotID(s), t.ExternalText, dotEscape(s))
		} else {
			fmt.Fprintf(&b, "  %s [shape=ellipse style=filled fillcolor=%q label=\"%s\"];\n",
				dotID(s), t.NodeFill, dotEscape(s))
		}
	}

	// Edge kind lookup: the deduped graph loses per-edge kinds, so recover
	// them from the reference list. A pair referenced both ways counts as
	// a call.
	kinds := map[[2]string]string{}
	for _, r := range res.Refs {
		key := [2]string{r.Space + ":" + r.Subspace, r.Symbol}
		if isCallKind(r.Kind) || kinds[key] == "" {
			kinds[key] = r.Kind
		}
	}

	count := 0
	for _, e := range res.Graph.Edges {
		if maxEdges > 0 && count >= maxEdges {
			fmt.Fprintf(&b, "  // %d more edges elided\n", len(res.Graph.Edges)-count)
			break
		}
		count++
		color := t.EdgeData
		if isCallKind(kinds[[2]string{e.Caller, e.Callee}]) {
			color = t.EdgeCall
		}
		if unsat[e.Callee] {
			color = t.EdgeImport
		}
		fmt.Fprintf(&b, "  %s -> %s [color=%q];\n", dotID(e.Caller), dotID(e.Callee), color)
	}
	fmt.Fprintf(&b, "}\n")
	return b.String()
}
