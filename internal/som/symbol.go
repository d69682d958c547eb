package som

import "encoding/binary"

const SymbolRecordSize = 20

// SymbolType is the 6-bit symbol_type field.
type SymbolType uint8

const (
	STNull SymbolType = iota
	STAbsolute
	STData
	STCode
	STPriProg
	STSecProg
	STEntry
	STStorage
	STStub
	STModule
	STSymExt
	STArgExt
	STMillicode
	STPlabel
	STOCShared
	STOCPrivate
)

var symbolTypeNames = map[SymbolType]string{
	STNull:      "NULL",
	STAbsolute:  "ABSOLUTE",
	STData:      "DATA",
	STCode:      "CODE",
	STPriProg:   "PRI_PROG",
	STSecProg:   "SEC_PROG",
	STEntry:     "ENTRY",
	STStorage:   "STORAGE",
	STStub:      "STUB",
	STModule:    "MODULE",
	STSymExt:    "SYM_EXT",
	STArgExt:    "ARG_EXT",
	STMillicode: "MILLICODE",
	STPlabel:    "PLABEL",
	STOCShared:  "OC_SHR",
	STOCPrivate: "OC_PRI",
}

func (t SymbolType) String() string {
	if s, ok := symbolTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// SymbolScope is the 4-bit symbol_scope field.
type SymbolScope uint8

const (
	ScopeUnsat SymbolScope = iota
	ScopeExternal
	ScopeLocal
	ScopeUniversal
)

func (s SymbolScope) String() string {
	switch s {
	case ScopeUnsat:
		return "UNSAT"
	case ScopeExternal:
		return "EXTERNAL"
	case ScopeLocal:
		return "LOCAL"
	case ScopeUniversal:
		return "UNIVERSAL"
	}
	return "UNKNOWN"
}

// Symbol is one entry of the symbol dictionary. The flag word packs, from the
// most significant bit down: hidden, secondary-def, a 6-bit type, a 4-bit
// scope, a 3-bit check level, must-qualify, initially-frozen, memory-resident,
// common, dup-common, 2 xleast bits, and 10 argument-relocation bits.
type Symbol struct {
	Name      string `json:"name"`
	Qualifier string `json:"qualifier,omitempty"`
	nameOff   uint32
	qualOff   uint32

	Hidden          bool        `json:"hidden,omitempty"`
	SecondaryDef    bool        `json:"secondary_def,omitempty"`
	Type            SymbolType  `json:"-"`
	Scope           SymbolScope `json:"-"`
	CheckLevel      uint8       `json:"check_level,omitempty"`
	MustQualify     bool        `json:"must_qualify,omitempty"`
	InitiallyFrozen bool        `json:"initially_frozen,omitempty"`
	MemoryResident  bool        `json:"memory_resident,omitempty"`
	IsCommon        bool        `json:"is_common,omitempty"`
	DupCommon       bool        `json:"dup_common,omitempty"`
	XLeast          uint8       `json:"xleast,omitempty"`
	ArgReloc        uint16      `json:"arg_reloc,omitempty"`

	// Info is the symbol_info word: for most symbols the owning subspace
	// index in the low 24 bits, with comdat and extension bits on top.
	Info  uint32 `json:"info"`
	Value uint32 `json:"value"`
}

const (
	symHidden       = 1 << 31
	symSecondaryDef = 1 << 30
	symTypeShift    = 24 // 6 bits
	symScopeShift   = 20 // 4 bits
	symCheckShift   = 17 // 3 bits
	symMustQualify  = 1 << 16
	symFrozen       = 1 << 15
	symMemResident  = 1 << 14
	symIsCommon     = 1 << 13
	symDupCommon    = 1 << 12
	symXLeastShift  = 10 // 2 bits
	symArgRelocMask = 0x3ff
)

func parseSymbol(rec []byte) Symbol {
	flags := binary.BigEndian.Uint32(rec[0:])
	return Symbol{
		Hidden:          flags&symHidden != 0,
		SecondaryDef:    flags&symSecondaryDef != 0,
		Type:            SymbolType(flags >> symTypeShift & 0x3f),
		Scope:           SymbolScope(flags >> symScopeShift & 0xf),
		CheckLevel:      uint8(flags >> symCheckShift & 7),
		MustQualify:     flags&symMustQualify != 0,
		InitiallyFrozen: flags&symFrozen != 0,
		MemoryResident:  flags&symMemResident != 0,
		IsCommon:        flags&symIsCommon != 0,
		DupCommon:       flags&symDupCommon != 0,
		XLeast:          uint8(flags >> symXLeastShift & 3),
		ArgReloc:        uint16(flags & symArgRelocMask),

		nameOff: binary.BigEndian.Uint32(rec[4:]),
		qualOff: binary.BigEndian.Uint32(rec[8:]),
		Info:    binary.BigEndian.Uint32(rec[12:]),
		Value:   binary.BigEndian.Uint32(rec[16:]),
	}
}

func (sym *Symbol) put(rec []byte, nameOff, qualOff uint32) {
	var flags uint32
	if sym.Hidden {
		flags |= symHidden
	}
	if sym.SecondaryDef {
		flags |= symSecondaryDef
	}
	flags |= uint32(sym.Type&0x3f) << symTypeShift
	flags |= uint32(sym.Scope&0xf) << symScopeShift
	flags |= uint32(sym.CheckLevel&7) << symCheckShift
	if sym.MustQualify {
		flags |= symMustQualify
	}
	if sym.InitiallyFrozen {
		flags |= symFrozen
	}
	if sym.MemoryResident {
		flags |= symMemResident
	}
	if sym.IsCommon {
		flags |= symIsCommon
	}
	if sym.DupCommon {
		flags |= symDupCommon
	}
	flags |= uint32(sym.XLeast&3) << symXLeastShift
	flags |= uint32(sym.ArgReloc) & symArgRelocMask

	binary.BigEndian.PutUint32(rec[0:], flags)
	binary.BigEndian.PutUint32(rec[4:], nameOff)
	binary.BigEndian.PutUint32(rec[8:], qualOff)
	binary.BigEndian.PutUint32(rec[12:], sym.Info)
	binary.BigEndian.PutUint32(rec[16:], sym.Value)
}

// TypeName is Type rendered for JSON output.
func (sym Symbol) TypeName() string { return sym.Type.String() }

// ScopeName is Scope rendered for JSON output.
func (sym Symbol) ScopeName() string { return sym.Scope.String() }
