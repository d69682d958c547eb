package som

import "encoding/binary"

// On-disk record sizes.
const (
	SpaceRecordSize    = 36
	SubspaceRecordSize = 40
)

// Space is one entry of the space dictionary. The flag word packs, from the
// most significant bit down: defined, private, intermediate-code, tspecific,
// 12 reserved bits, an 8-bit sort key, 8 reserved bits.
type Space struct {
	Name                string `json:"name"`
	nameOff             uint32
	IsDefined           bool  `json:"is_defined"`
	IsPrivate           bool  `json:"is_private"`
	HasIntermediateCode bool  `json:"has_intermediate_code,omitempty"`
	IsTSpecific         bool  `json:"is_tspecific,omitempty"`
	SortKey             uint8 `json:"sort_key"`

	SpaceNumber uint32 `json:"space_number"`

	SubspaceIndex    uint32 `json:"subspace_index"`
	SubspaceQuantity uint32 `json:"subspace_quantity"`

	LoaderFixIndex      uint32 `json:"-"`
	LoaderFixQuantity   uint32 `json:"-"`
	InitPointerIndex    uint32 `json:"-"`
	InitPointerQuantity uint32 `json:"-"`
}

const (
	spaceDefined      = 1 << 31
	spacePrivate      = 1 << 30
	spaceIntermediate = 1 << 29
	spaceTSpecific    = 1 << 28
	spaceSortShift    = 8
)

func parseSpace(rec []byte) Space {
	flags := binary.BigEndian.Uint32(rec[4:])
	return Space{
		nameOff:             binary.BigEndian.Uint32(rec[0:]),
		IsDefined:           flags&spaceDefined != 0,
		IsPrivate:           flags&spacePrivate != 0,
		HasIntermediateCode: flags&spaceIntermediate != 0,
		IsTSpecific:         flags&spaceTSpecific != 0,
		SortKey:             uint8(flags >> spaceSortShift),

		SpaceNumber:         binary.BigEndian.Uint32(rec[8:]),
		SubspaceIndex:       binary.BigEndian.Uint32(rec[12:]),
		SubspaceQuantity:    binary.BigEndian.Uint32(rec[16:]),
		LoaderFixIndex:      binary.BigEndian.Uint32(rec[20:]),
		LoaderFixQuantity:   binary.BigEndian.Uint32(rec[24:]),
		InitPointerIndex:    binary.BigEndian.Uint32(rec[28:]),
		InitPointerQuantity: binary.BigEndian.Uint32(rec[32:]),
	}
}

func (sp *Space) put(rec []byte, nameOff uint32) {
	var flags uint32
	if sp.IsDefined {
		flags |= spaceDefined
	}
	if sp.IsPrivate {
		flags |= spacePrivate
	}
	if sp.HasIntermediateCode {
		flags |= spaceIntermediate
	}
	if sp.IsTSpecific {
		flags |= spaceTSpecific
	}
	flags |= uint32(sp.SortKey) << spaceSortShift

	binary.BigEndian.PutUint32(rec[0:], nameOff)
	binary.BigEndian.PutUint32(rec[4:], flags)
	binary.BigEndian.PutUint32(rec[8:], sp.SpaceNumber)
	binary.BigEndian.PutUint32(rec[12:], sp.SubspaceIndex)
	binary.BigEndian.PutUint32(rec[16:], sp.SubspaceQuantity)
	binary.BigEndian.PutUint32(rec[20:], sp.LoaderFixIndex)
	binary.BigEndian.PutUint32(rec[24:], sp.LoaderFixQuantity)
	binary.BigEndian.PutUint32(rec[28:], sp.InitPointerIndex)
	binary.BigEndian.PutUint32(rec[32:], sp.InitPointerQuantity)
}

// Subspace is one entry of the subspace dictionary. The flag word packs, from
// the most significant bit down: 7 access-control bits, memory-resident,
// dup-common, common, loadable, a 2-bit quadrant, initially-frozen, first,
// code-only, an 8-bit sort key, replicate-init, continuation, tspecific,
// comdat, 4 reserved bits.
type Subspace struct {
	Name    string `json:"name"`
	nameOff uint32

	SpaceIndex uint32 `json:"space_index"`

	AccessControl   uint8 `json:"access"`
	MemoryResident  bool  `json:"memory_resident,omitempty"`
	DupCommon       bool  `json:"dup_common,omitempty"`
	IsCommon        bool  `json:"is_common,omitempty"`
	IsLoadable      bool  `json:"is_loadable"`
	Quadrant        uint8 `json:"quadrant"`
	InitiallyFrozen bool  `json:"initially_frozen,omitempty"`
	IsFirst         bool  `json:"is_first,omitempty"`
	CodeOnly        bool  `json:"code_only,omitempty"`
	SortKey         uint8 `json:"sort_key"`
	ReplicateInit   bool  `json:"replicate_init,omitempty"`
	Continuation    bool  `json:"continuation,omitempty"`
	IsTSpecific     bool  `json:"is_tspecific,omitempty"`
	IsComdat        bool  `json:"is_comdat,omitempty"`

	// FileLocInitValue is the file offset of the subspace's initialized
	// contents; InitializationLength is their size in bytes.
	FileLocInitValue     uint32 `json:"file_loc"`
	InitializationLength uint32 `json:"init_length"`

	SubspaceStart  uint32 `json:"start"`
	SubspaceLength uint32 `json:"length"`
	Alignment      uint32 `json:"alignment"`

	FixupRequestIndex    uint32 `json:"fixup_index"`
	FixupRequestQuantity uint32 `json:"fixup_quantity"`
}

const (
	subAccessShift  = 25 // 7 bits
	subMemResident  = 1 << 24
	subDupCommon    = 1 << 23
	subIsCommon     = 1 << 22
	subIsLoadable   = 1 << 21
	subQuadShift    = 19 // 2 bits
	subFrozen       = 1 << 18
	subIsFirst      = 1 << 17
	subCodeOnly     = 1 << 16
	subSortShift    = 8 // 8 bits
	subReplicate    = 1 << 7
	subContinuation = 1 << 6
	subTSpecific    = 1 << 5
	subComdat       = 1 << 4
)

func parseSubspace(rec []byte) Subspace {
	flags := binary.BigEndian.Uint32(rec[4:])
	return Subspace{
		SpaceIndex: binary.BigEndian.Uint32(rec[0:]),

		AccessControl:   uint8(flags >> subAccessShift),
		MemoryResident:  flags&subMemResident != 0,
		DupCommon:       flags&subDupCommon != 0,
		IsCommon:        flags&subIsCommon != 0,
		IsLoadable:      flags&subIsLoadable != 0,
		Quadrant:        uint8(flags >> subQuadShift & 3),
		InitiallyFrozen: flags&subFrozen != 0,
		IsFirst:         flags&subIsFirst != 0,
		CodeOnly:        flags&subCodeOnly != 0,
		SortKey:         uint8(flags >> subSortShift),
		ReplicateInit:   flags&subReplicate != 0,
		Continuation:    flags&subContinuation != 0,
		IsTSpecific:     flags&subTSpecific != 0,
		IsComdat:        flags&subComdat != 0,

		FileLocInitValue:     binary.BigEndian.Uint32(rec[8:]),
		InitializationLength: binary.BigEndian.Uint32(rec[12:]),
		SubspaceStart:        binary.BigEndian.Uint32(rec[16:]),
		SubspaceLength:       binary.BigEndian.Uint32(rec[20:]),
		Alignment:            binary.BigEndian.Uint32(rec[24:]),
		nameOff:              binary.BigEndian.Uint32(rec[28:]),
		FixupRequestIndex:    binary.BigEndian.Uint32(rec[32:]),
		FixupRequestQuantity: binary.BigEndian.Uint32(rec[36:]),
	}
}

func (ss *Subspace) put(rec []byte, nameOff uint32) {
	flags := uint32(ss.AccessControl&0x7f) << subAccessShift
	if ss.MemoryResident {
		flags |= subMemResident
	}
	if ss.DupCommon {
		flags |= subDupCommon
	}
	if ss.IsCommon {
		flags |= subIsCommon
	}
	if ss.IsLoadable {
		flags |= subIsLoadable
	}
	flags |= uint32(ss.Quadrant&3) << subQuadShift
	if ss.InitiallyFrozen {
		flags |= subFrozen
	}
	if ss.IsFirst {
		flags |= subIsFirst
	}
	if ss.CodeOnly {
		flags |= subCodeOnly
	}
	flags |= uint32(ss.SortKey) << subSortShift
	if ss.ReplicateInit {
		flags |= subReplicate
	}
	if ss.Continuation {
		flags |= subContinuation
	}
	if ss.IsTSpecific {
		flags |= subTSpecific
	}
	if ss.IsComdat {
		flags |= subComdat
	}

	binary.BigEndian.PutUint32(rec[0:], ss.SpaceIndex)
	binary.BigEndian.PutUint32(rec[4:], flags)
	binary.BigEndian.PutUint32(rec[8:], ss.FileLocInitValue)
	binary.BigEndian.PutUint32(rec[12:], ss.InitializationLength)
	binary.BigEndian.PutUint32(rec[16:], ss.SubspaceStart)
	binary.BigEndian.PutUint32(rec[20:], ss.SubspaceLength)
	binary.BigEndian.PutUint32(rec[24:], ss.Alignment)
	binary.BigEndian.PutUint32(rec[28:], nameOff)
	binary.BigEndian.PutUint32(rec[32:], ss.FixupRequestIndex)
	binary.BigEndian.PutUint32(rec[36:], ss.FixupRequestQuantity)
}
