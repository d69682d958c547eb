package som

import (
	"errors"
	"fmt"
	"os"

	"somtool/internal/fixup"
	"somtool/internal/somfmt"
)

var ErrBadDictionary = errors.New("som: dictionary outside file")

// File is a parsed SOM object. Dictionaries are materialized eagerly; fixup
// streams and subspace contents are touched only on demand.
type File struct {
	Header    *Header
	Aux       *AuxHeaders
	Spaces    []Space
	Subspaces []Subspace
	Symbols   []Symbol
	Diags     []somfmt.Diag

	data []byte
	opts somfmt.Options

	// fixupCounts caches CountFixups results per subspace; -1 = not yet
	// counted.
	fixupCounts []int
}

// Open reads and parses the file at path.
func Open(path string, opts somfmt.Options) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, opts)
}

// Parse parses a SOM object from memory. In strict mode any structural
// damage fails the parse; in best-effort mode recoverable damage (bad
// checksum, tables running off the end) is recorded as diagnostics and the
// affected tables come back empty.
func Parse(data []byte, opts somfmt.Options) (*File, error) {
	var diags somfmt.Diags

	h, checksumOK, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if !checksumOK {
		if opts.Mode == somfmt.ModeStrict {
			return nil, ErrChecksum
		}
		diags.Add(0, somfmt.DiagChecksum, "header checksum mismatch")
	}

	f := &File{Header: h, data: data, opts: opts}

	f.Aux, err = parseAuxHeaders(data, h.AuxHeaderLocation, h.AuxHeaderSize, opts.Mode, &diags)
	if err != nil {
		return nil, err
	}

	spaceStrings, err := tableBytes(data, h.SpaceStringsLocation, uint64(h.SpaceStringsSize), "space strings", opts.Mode, &diags)
	if err != nil {
		return nil, err
	}
	symbolStrings, err := tableBytes(data, h.SymbolStringsLocation, uint64(h.SymbolStringsSize), "symbol strings", opts.Mode, &diags)
	if err != nil {
		return nil, err
	}

	spaceRecs, err := tableBytes(data, h.SpaceLocation, uint64(h.SpaceTotal)*SpaceRecordSize, "space dictionary", opts.Mode, &diags)
	if err != nil {
		return nil, err
	}
	for off := 0; off+SpaceRecordSize <= len(spaceRecs); off += SpaceRecordSize {
		sp := parseSpace(spaceRecs[off:])
		sp.Name = resolveName(spaceStrings, sp.nameOff, uint64(h.SpaceLocation)+uint64(off), &diags)
		f.Spaces = append(f.Spaces, sp)
	}

	subRecs, err := tableBytes(data, h.SubspaceLocation, uint64(h.SubspaceTotal)*SubspaceRecordSize, "subspace dictionary", opts.Mode, &diags)
	if err != nil {
		return nil, err
	}
	for off := 0; off+SubspaceRecordSize <= len(subRecs); off += SubspaceRecordSize {
		ss := parseSubspace(subRecs[off:])
		ss.Name = resolveName(spaceStrings, ss.nameOff, uint64(h.SubspaceLocation)+uint64(off), &diags)
		f.Subspaces = append(f.Subspaces, ss)
	}

	symRecs, err := tableBytes(data, h.SymbolLocation, uint64(h.SymbolTotal)*SymbolRecordSize, "symbol dictionary", opts.Mode, &diags)
	if err != nil {
		return nil, err
	}
	for off := 0; off+SymbolRecordSize <= len(symRecs); off += SymbolRecordSize {
		sym := parseSymbol(symRecs[off:])
		sym.Name = resolveName(symbolStrings, sym.nameOff, uint64(h.SymbolLocation)+uint64(off), &diags)
		if sym.qualOff != 0 {
			sym.Qualifier = resolveName(symbolStrings, sym.qualOff, uint64(h.SymbolLocation)+uint64(off), &diags)
		}
		f.Symbols = append(f.Symbols, sym)
	}

	f.fixupCounts = make([]int, len(f.Subspaces))
	for i := range f.fixupCounts {
		f.fixupCounts[i] = -1
	}
	f.Diags = diags.Items()
	return f, nil
}

func tableBytes(data []byte, loc uint32, size uint64, what string, mode somfmt.Mode, diags *somfmt.Diags) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	if uint64(loc)+size > uint64(len(data)) {
		if mode == somfmt.ModeStrict {
			return nil, fmt.Errorf("%w: %s [%#x,+%#x)", ErrBadDictionary, what, loc, size)
		}
		diags.Addf(uint64(loc), somfmt.DiagTruncated, "%s extends past end of file", what)
		return nil, nil
	}
	return data[loc : uint64(loc)+size], nil
}

func resolveName(table []byte, off uint32, recOff uint64, diags *somfmt.Diags) string {
	s, err := stringAt(table, off)
	if err != nil {
		diags.Addf(recOff, somfmt.DiagInvalid, "%v", err)
		return ""
	}
	return s
}

// fixupStream returns the raw fixup bytes for subspace i, which may be empty.
func (f *File) fixupStream(i int) ([]byte, error) {
	ss := &f.Subspaces[i]
	if ss.FixupRequestQuantity == 0 {
		return nil, nil
	}
	start := uint64(f.Header.FixupRequestLocation) + uint64(ss.FixupRequestIndex)
	end := start + uint64(ss.FixupRequestQuantity)
	if end > uint64(len(f.data)) {
		return nil, fmt.Errorf("som: subspace %d fixup stream [%#x,+%#x) outside file",
			i, start, ss.FixupRequestQuantity)
	}
	return f.data[start:end], nil
}

func (f *File) fixupOptions(i int) fixup.Options {
	ss := &f.Subspaces[i]
	return fixup.Options{
		Mode:        f.opts.Mode,
		SymbolCount: len(f.Symbols),
		MaxRelocs:   f.opts.EffectiveMaxSteps(),
		Contents: func() ([]byte, error) {
			if ss.InitializationLength == 0 {
				return nil, nil
			}
			start := uint64(ss.FileLocInitValue)
			end := start + uint64(ss.InitializationLength)
			if end > uint64(len(f.data)) {
				return nil, fmt.Errorf("som: subspace %d contents [%#x,+%#x) outside file",
					i, start, ss.InitializationLength)
			}
			return f.data[start:end], nil
		},
	}
}

// RawFixups returns the raw fixup stream bytes for subspace i.
func (f *File) RawFixups(i int) ([]byte, error) {
	if i < 0 || i >= len(f.Subspaces) {
		return nil, fmt.Errorf("som: subspace index %d out of range", i)
	}
	return f.fixupStream(i)
}

// CountFixups counts the relocations in subspace i without materializing
// them. The first call decodes the stream in count mode; the result is
// cached.
func (f *File) CountFixups(i int) (int, error) {
	if i < 0 || i >= len(f.Subspaces) {
		return 0, fmt.Errorf("som: subspace index %d out of range", i)
	}
	if n := f.fixupCounts[i]; n >= 0 {
		return n, nil
	}
	stream, err := f.fixupStream(i)
	if err != nil {
		return 0, err
	}
	n, err := fixup.Count(stream, f.fixupOptions(i))
	if err != nil {
		return 0, fmt.Errorf("som: subspace %d (%s): %w", i, f.Subspaces[i].Name, err)
	}
	f.fixupCounts[i] = n
	return n, nil
}

// Relocations decodes subspace i's fixup stream into normalized relocations.
func (f *File) Relocations(i int) (*fixup.DecodeResult, error) {
	if i < 0 || i >= len(f.Subspaces) {
		return nil, fmt.Errorf("som: subspace index %d out of range", i)
	}
	stream, err := f.fixupStream(i)
	if err != nil {
		return nil, err
	}
	res, err := fixup.Decode(stream, f.fixupOptions(i))
	if err != nil {
		return nil, fmt.Errorf("som: subspace %d (%s): %w", i, f.Subspaces[i].Name, err)
	}
	f.fixupCounts[i] = res.Count
	return res, nil
}

// Contents returns subspace i's initialized contents, or nil when it has
// none.
func (f *File) Contents(i int) ([]byte, error) {
	if i < 0 || i >= len(f.Subspaces) {
		return nil, fmt.Errorf("som: subspace index %d out of range", i)
	}
	return f.fixupOptions(i).Contents()
}

// SpaceOf returns the space owning subspace i, or nil when the record's
// space index is damaged.
func (f *File) SpaceOf(i int) *Space {
	if i < 0 || i >= len(f.Subspaces) {
		return nil
	}
	si := f.Subspaces[i].SpaceIndex
	if si >= uint32(len(f.Spaces)) {
		return nil
	}
	return &f.Spaces[si]
}

// SymbolName returns the name of symbol index i, or a placeholder.
func (f *File) SymbolName(i int32) string {
	if i < 0 || int(i) >= len(f.Symbols) {
		return fmt.Sprintf("sym#%d", i)
	}
	return f.Symbols[i].Name
}
