package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"somtool/internal/som"
	"somtool/internal/somfmt"
)

type scanReport struct {
	Magic     string        `json:"magic"`
	System    string        `json:"system"`
	VersionID uint32        `json:"version_id"`
	Length    uint32        `json:"som_length"`
	Exec      *som.ExecAux  `json:"exec,omitempty"`
	Version   string        `json:"version,omitempty"`
	Spaces    int           `json:"spaces"`
	Subspaces int           `json:"subspaces"`
	Symbols   int           `json:"symbols"`
	Fixups    []fixupCounts `json:"fixups"`
	Diags     []somfmt.Diag `json:"diags,omitempty"`
}

type fixupCounts struct {
	Subspace string `json:"subspace"`
	Bytes    uint32 `json:"stream_bytes"`
	Relocs   int    `json:"relocs"`
}

func parseModeFlags(fs *flag.FlagSet) (strict *bool, maxSteps *int) {
	strict = fs.Bool("strict", false, "fail on first structural error")
	maxSteps = fs.Int("max-steps", 0, "relocation cap per subspace")
	return
}

func modeOptions(strict bool, maxSteps int) somfmt.Options {
	opts := somfmt.Options{Mode: somfmt.ModeBestEffort, MaxSteps: maxSteps}
	if strict {
		opts.Mode = somfmt.ModeStrict
	}
	return opts
}

func cmdScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	in := fs.String("in", "", "path to SOM object")
	jsonOut := fs.Bool("json", false, "output as JSON")
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

	rep := scanReport{
		Magic:     f.Header.MagicName(),
		System:    f.Header.SystemName(),
		VersionID: f.Header.VersionID,
		Length:    f.Header.SOMLength,
		Exec:      f.Aux.Exec,
		Version:   f.Aux.Version,
		Spaces:    len(f.Spaces),
		Subspaces: len(f.Subspaces),
		Symbols:   len(f.Symbols),
		Diags:     f.Diags,
	}
	for i := range f.Subspaces {
		ss := &f.Subspaces[i]
		if ss.FixupRequestQuantity == 0 {
			continue
		}
		n, err := f.CountFixups(i)
		if err != nil {
			if *strict {
				return err
			}
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			n = -1
		}
		rep.Fixups = append(rep.Fixups, fixupCounts{
			Subspace: ss.Name,
			Bytes:    ss.FixupRequestQuantity,
			Relocs:   n,
		})
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Printf("%s, %s, version %d, %d bytes\n", rep.Magic, rep.System, rep.VersionID, rep.Length)
	if rep.Version != "" {
		fmt.Printf("built by: %s\n", rep.Version)
	}
	if rep.Exec != nil {
		fmt.Printf("exec: text %d bytes @ 0x%08x, data %d bytes @ 0x%08x, bss %d, entry 0x%x\n",
			rep.Exec.TextSize, rep.Exec.TextMem,
			rep.Exec.DataSize, rep.Exec.DataMem,
			rep.Exec.BSSSize, rep.Exec.EntryOffset)
	}
	fmt.Printf("%d spaces, %d subspaces, %d symbols\n", rep.Spaces, rep.Subspaces, rep.Symbols)

	for i := range f.Spaces {
		sp := &f.Spaces[i]
		fmt.Printf("  space %-16s number=%d subspaces=%d\n", sp.Name, sp.SpaceNumber, sp.SubspaceQuantity)
	}
	for _, fc := range rep.Fixups {
		fmt.Printf("  subspace %-16s fixup stream %6d bytes, %d relocs\n", fc.Subspace, fc.Bytes, fc.Relocs)
	}
	for _, d := range rep.Diags {
		fmt.Fprintf(os.Stderr, "diag: %s\n", d)
	}
	return nil
}
