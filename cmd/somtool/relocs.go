package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"somtool/internal/fixup"
	"somtool/internal/output"
	"somtool/internal/som"
)

type relocRecord struct {
	Subspace string `json:"subspace"`
	Address  uint32 `json:"address"`
	Kind     string `json:"kind"`
	SymIndex int32  `json:"sym_index"`
	Symbol   string `json:"symbol,omitempty"`
	Addend   int64  `json:"addend"`
}

func cmdRelocs(args []string) error {
	fs := flag.NewFlagSet("relocs", flag.ExitOnError)
	in := fs.String("in", "", "path to SOM object")
	sub := fs.Int("sub", -1, "subspace index (-1 = all)")
	jsonl := fs.Bool("jsonl", false, "output as JSONL")
	outPath := fs.String("out", "", "output file for --jsonl (default stdout)")
	strict, maxSteps := parseModeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("--in is required")
	}

	f, err := som.Open(*in, modeOptions(*strict, *maxSteps))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	var records []relocRecord
	for i := range f.Subspaces {
		if *sub >= 0 && i != *sub {
			continue
		}
		ss := &f.Subspaces[i]
		if ss.FixupRequestQuantity == 0 {
			continue
		}
		res, err := f.Relocations(i)
		if err != nil {
			if *strict {
				return err
			}
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			continue
		}
		for _, d := range res.Diags {
			fmt.Fprintf(os.Stderr, "diag: subspace %s: %s\n", ss.Name, d)
		}
		for _, r := range res.Relocs {
			rec := relocRecord{
				Subspace: ss.Name,
				Address:  r.Address,
				Kind:     r.Kind.String(),
				SymIndex: r.SymIndex,
				Addend:   r.Addend,
			}
			if r.SymIndex != fixup.NoSymbol {
				rec.Symbol = f.SymbolName(r.SymIndex)
			}
			records = append(records, rec)
		}
	}

	if *jsonl {
		if *outPath != "" {
			return output.WriteJSONL(*outPath, records)
		}
		enc := json.NewEncoder(os.Stdout)
		for i := range records {
			if err := enc.Encode(records[i]); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range records {
		sym := r.Symbol
		if sym == "" {
			sym = "-"
		}
		fmt.Printf("%-16s 0x%08x %-18s %-24s %#x\n", r.Subspace, r.Address, r.Kind, sym, r.Addend)
	}
	return nil
}
