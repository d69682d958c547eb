package som

import (
	"errors"
	"fmt"

	"somtool/internal/fixup"
)

// PageSize is the alignment applied to loadable subspace contents so the
// loader can map them directly.
const PageSize = 4096

var ErrNoSpaces = errors.New("som: nothing to write")

// BuildSubspace is a subspace under construction: its dictionary metadata,
// its initialized contents, and the relocations to compress into a fixup
// stream. Index and location fields of the embedded record are computed by
// Build and need not be set.
type BuildSubspace struct {
	Subspace
	Contents []byte
	Relocs   []fixup.Reloc
}

// BuildSpace groups subspaces under one space dictionary entry.
type BuildSpace struct {
	Space
	Subspaces []BuildSubspace
}

// Builder assembles a SOM object. The zero value plus at least one space is
// usable; magic and ids default to a PA-RISC 1.1 relocatable.
type Builder struct {
	SystemID  uint16
	Magic     uint16
	VersionID uint32

	FileTimeSecs  uint32
	FileTimeNanos uint32

	EntrySpace    uint32
	EntrySubspace uint32
	EntryOffset   uint32
	PresumedDP    uint32

	Aux *AuxHeaders

	Spaces  []BuildSpace
	Symbols []Symbol
}

// Build lays out and serializes the object: header, aux headers, space and
// subspace dictionaries, space strings, symbol dictionary, symbol strings,
// fixup streams, then subspace contents with loadable contents page-aligned.
// Header table fields are backpatched and the checksum is computed last.
func (b *Builder) Build() ([]byte, error) {
	if len(b.Spaces) == 0 {
		return nil, ErrNoSpaces
	}

	magic := b.Magic
	if magic == 0 {
		magic = MagicRelocatable
	}
	systemID := b.SystemID
	if systemID == 0 {
		systemID = SystemPARISC11
	}
	versionID := b.VersionID
	if versionID == 0 {
		versionID = VersionNew
	}

	// Flatten subspaces in space order and rebuild the index fields.
	type flatSub struct {
		*BuildSubspace
		stream []byte
	}
	var subs []flatSub
	spaces := make([]Space, len(b.Spaces))
	for si := range b.Spaces {
		sp := &b.Spaces[si]
		spaces[si] = sp.Space
		spaces[si].SubspaceIndex = uint32(len(subs))
		spaces[si].SubspaceQuantity = uint32(len(sp.Subspaces))
		for ci := range sp.Subspaces {
			c := &sp.Subspaces[ci]
			c.SpaceIndex = uint32(si)
			subs = append(subs, flatSub{BuildSubspace: c})
		}
	}

	// String tables.
	var spaceStrings, symbolStrings StringTable
	spaceNameOffs := make([]uint32, len(spaces))
	for i := range spaces {
		spaceNameOffs[i] = spaceStrings.Add(spaces[i].Name)
	}
	subNameOffs := make([]uint32, len(subs))
	for i := range subs {
		subNameOffs[i] = spaceStrings.Add(subs[i].Name)
	}
	symNameOffs := make([]uint32, len(b.Symbols))
	symQualOffs := make([]uint32, len(b.Symbols))
	for i := range b.Symbols {
		symNameOffs[i] = symbolStrings.Add(b.Symbols[i].Name)
		if b.Symbols[i].Qualifier != "" {
			symQualOffs[i] = symbolStrings.Add(b.Symbols[i].Qualifier)
		}
	}

	// Compress each subspace's relocations. The encoder owns a fresh
	// queue per subspace, so back-references never cross boundaries.
	var fixupArea []byte
	for i := range subs {
		c := subs[i]
		size := c.SubspaceLength
		if size == 0 {
			size = uint32(len(c.Contents))
			c.Subspace.SubspaceLength = size
		}
		if len(c.Relocs) == 0 {
			continue
		}
		stream, err := fixup.Encode(c.Relocs, size)
		if err != nil {
			return nil, fmt.Errorf("som: subspace %q: %w", c.Name, err)
		}
		subs[i].stream = stream
		subs[i].FixupRequestIndex = uint32(len(fixupArea))
		subs[i].FixupRequestQuantity = uint32(len(stream))
		fixupArea = append(fixupArea, stream...)
	}

	// Layout.
	aux := appendAuxHeaders(nil, b.Aux)
	cur := uint32(HeaderSize)

	auxLoc := cur
	cur += uint32(len(aux))

	spaceLoc := cur
	cur += uint32(len(spaces)) * SpaceRecordSize

	subspaceLoc := cur
	cur += uint32(len(subs)) * SubspaceRecordSize

	spaceStringsLoc := cur
	cur += uint32(len(spaceStrings.Bytes()))

	symbolLoc := cur
	cur += uint32(len(b.Symbols)) * SymbolRecordSize

	symbolStringsLoc := cur
	cur += uint32(len(symbolStrings.Bytes()))

	fixupLoc := cur
	cur += uint32(len(fixupArea))

	for i := range subs {
		c := subs[i]
		if len(c.Contents) == 0 {
			subs[i].FileLocInitValue = 0
			subs[i].InitializationLength = 0
			continue
		}
		if c.IsLoadable {
			cur = (cur + PageSize - 1) &^ (PageSize - 1)
		}
		subs[i].FileLocInitValue = cur
		subs[i].InitializationLength = uint32(len(c.Contents))
		cur += uint32(len(c.Contents))
	}
	total := cur

	// Serialize in offset order.
	out := make([]byte, total)
	copy(out[auxLoc:], aux)
	for i := range spaces {
		spaces[i].put(out[spaceLoc+uint32(i)*SpaceRecordSize:], spaceNameOffs[i])
	}
	for i := range subs {
		subs[i].Subspace.put(out[subspaceLoc+uint32(i)*SubspaceRecordSize:], subNameOffs[i])
	}
	copy(out[spaceStringsLoc:], spaceStrings.Bytes())
	for i := range b.Symbols {
		b.Symbols[i].put(out[symbolLoc+uint32(i)*SymbolRecordSize:], symNameOffs[i], symQualOffs[i])
	}
	copy(out[symbolStringsLoc:], symbolStrings.Bytes())
	copy(out[fixupLoc:], fixupArea)
	for i := range subs {
		if len(subs[i].Contents) > 0 {
			copy(out[subs[i].FileLocInitValue:], subs[i].Contents)
		}
	}

	h := Header{
		SystemID:  systemID,
		Magic:     magic,
		VersionID: versionID,

		FileTimeSecs:  b.FileTimeSecs,
		FileTimeNanos: b.FileTimeNanos,

		EntrySpace:    b.EntrySpace,
		EntrySubspace: b.EntrySubspace,
		EntryOffset:   b.EntryOffset,
		PresumedDP:    b.PresumedDP,

		AuxHeaderLocation: auxLoc,
		AuxHeaderSize:     uint32(len(aux)),

		SOMLength: total,

		SpaceLocation:    spaceLoc,
		SpaceTotal:       uint32(len(spaces)),
		SubspaceLocation: subspaceLoc,
		SubspaceTotal:    uint32(len(subs)),

		SpaceStringsLocation: spaceStringsLoc,
		SpaceStringsSize:     uint32(len(spaceStrings.Bytes())),

		SymbolLocation: symbolLoc,
		SymbolTotal:    uint32(len(b.Symbols)),

		SymbolStringsLocation: symbolStringsLoc,
		SymbolStringsSize:     uint32(len(symbolStrings.Bytes())),

		FixupRequestLocation: fixupLoc,
		FixupRequestTotal:    uint32(len(fixupArea)),
	}
	if len(aux) == 0 {
		h.AuxHeaderLocation = 0
	}
	h.Put(out)
	return out, nil
}
