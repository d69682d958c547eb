package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"somtool/internal/fixup"
	"somtool/internal/som"
)

// cmdVerify decodes every fixup stream, re-encodes the result, and compares
// the bytes. An exact match proves the codec preserves the stream; known
// lossy spots (redundant mode changes in the input, non-minimal skips,
// hidden addends that were also written as explicit overrides) are reported
// as "differs" with the first mismatching offset rather than failing.
func cmdVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	in := fs.String("in", "", "path to SOM object")
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

	identical, differing, failed := 0, 0, 0
	for i := range f.Subspaces {
		ss := &f.Subspaces[i]
		if ss.FixupRequestQuantity == 0 {
			continue
		}
		res, err := f.Relocations(i)
		if err != nil {
			failed++
			fmt.Printf("FAIL  %-16s decode: %v\n", ss.Name, err)
			if *strict {
				return err
			}
			continue
		}

		relocs := res.Relocs
		if contents, err := f.Contents(i); err == nil && len(contents) > 0 {
			relocs = stripHiddenAddends(relocs, contents)
		}

		size := ss.SubspaceLength
		if size == 0 {
			size = ss.InitializationLength
		}
		reenc, err := fixup.Encode(relocs, size)
		if err != nil {
			failed++
			fmt.Printf("FAIL  %-16s re-encode: %v\n", ss.Name, err)
			continue
		}

		orig, err := f.RawFixups(i)
		if err != nil {
			failed++
			fmt.Printf("FAIL  %-16s %v\n", ss.Name, err)
			continue
		}
		if bytes.Equal(orig, reenc) {
			identical++
			fmt.Printf("OK    %-16s %d relocs, %d bytes\n", ss.Name, len(res.Relocs), len(orig))
			continue
		}
		differing++
		off := 0
		for off < len(orig) && off < len(reenc) && orig[off] == reenc[off] {
			off++
		}
		fmt.Printf("DIFF  %-16s %d relocs, %d -> %d bytes, first difference at %d\n",
			ss.Name, len(res.Relocs), len(orig), len(reenc), off)
	}

	fmt.Printf("%d identical, %d differing, %d failed\n", identical, differing, failed)
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}

// stripHiddenAddends zeroes the addend of data relocations whose value is
// already present in the subspace contents at the patch site, so re-encoding
// does not add an override record the original stream never had.
func stripHiddenAddends(relocs []fixup.Reloc, contents []byte) []fixup.Reloc {
	out := make([]fixup.Reloc, len(relocs))
	copy(out, relocs)
	for i := range out {
		r := &out[i]
		if r.Kind != fixup.KindDataOneSymbol || r.Addend == 0 {
			continue
		}
		if int(r.Address)+4 <= len(contents) &&
			int64(binary.BigEndian.Uint32(contents[r.Address:])) == r.Addend {
			r.Addend = 0
		}
	}
	return out
}
