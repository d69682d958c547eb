package main

import (
	"flag"
	"fmt"
	"path/filepath"

	"somtool/internal/output"
	"somtool/internal/som"
)

type symbolEntry struct {
	Index int `json:"index"`
	som.Symbol
	Type  string `json:"type"`
	Scope string `json:"scope"`
}

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	in := fs.String("in", "", "path to SOM object")
	outDir := fs.String("out", "", "output directory")
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

	f, err := som.Open(*in, modeOptions(*strict, *maxSteps))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	if err := output.WriteJSON(filepath.Join(*outDir, "header.json"), f.Header); err != nil {
		return err
	}
	if err := output.WriteJSON(filepath.Join(*outDir, "spaces.json"), f.Spaces); err != nil {
		return err
	}
	if err := output.WriteJSON(filepath.Join(*outDir, "subspaces.json"), f.Subspaces); err != nil {
		return err
	}

	syms := make([]symbolEntry, len(f.Symbols))
	for i, s := range f.Symbols {
		syms[i] = symbolEntry{
			Index:  i,
			Symbol: s,
			Type:   s.Type.String(),
			Scope:  s.Scope.String(),
		}
	}
	if err := output.WriteJSON(filepath.Join(*outDir, "symbols.json"), syms); err != nil {
		return err
	}

	if len(f.Diags) > 0 {
		if err := output.WriteJSONL(filepath.Join(*outDir, "diags.jsonl"), f.Diags); err != nil {
			return err
		}
	}
	fmt.Printf("wrote %d spaces, %d subspaces, %d symbols to %s\n",
		len(f.Spaces), len(f.Subspaces), len(f.Symbols), *outDir)
	return nil
}
