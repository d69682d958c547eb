package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"somtool/internal/output"
	"somtool/internal/refgraph"
	"somtool/internal/render"
	"somtool/internal/som"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	in := fs.String("in", "", "path to SOM object")
	outDir := fs.String("out", "", "output directory")
	maxEdges := fs.Int("max-edges", 0, "limit DOT edges (0 = all)")
	strict, maxSteps := parseModeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("--in is required")
	}
	if *outDir == "" {
		return fmt.Errorf("--out is required")
	}

	opts := modeOptions(*strict, *maxSteps)
	f, err := som.Open(*in, opts)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	res, err := refgraph.Build(f, opts.Mode)
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}

	// Unsatisfied symbols get flagged in the rendering.
	unsat := map[string]bool{}
	for i := range f.Symbols {
		if f.Symbols[i].Scope == som.ScopeUnsat {
			unsat[f.Symbols[i].Name] = true
		}
	}

	if err := output.WriteJSON(filepath.Join(*outDir, "graph.json"), res.Graph); err != nil {
		return err
	}
	if err := output.WriteJSONL(filepath.Join(*outDir, "refs.jsonl"), res.Refs); err != nil {
		return err
	}
	dot := render.RefGraphDOT(res, unsat, filepath.Base(*in), render.Slate, *maxEdges)
	if err := output.WriteText(filepath.Join(*outDir, "refgraph.dot"), dot); err != nil {
		return err
	}

	fmt.Printf("%d nodes, %d edges, %d references\n",
		len(res.Graph.Nodes), len(res.Graph.Edges), len(res.Refs))
	for _, d := range res.Diags {
		fmt.Printf("diag: %s\n", d)
	}
	return nil
}
