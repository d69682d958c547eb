// Package fixup implements the SOM relocation (fixup) stream codec.
//
// A fixup stream is a byte-oriented micro-program: every byte is an opcode
// whose operands are described by a small postfix format program from a static
// 256-entry table. Decoding runs the programs over an interpreter with 26
// named registers and a value stack; encoding produces the same compressed
// byte stream, including the 4-slot previous-fixup back-reference cache.
package fixup

import "somtool/internal/somfmt"

// Kind identifies the relocation class an opcode belongs to.
type Kind uint8

const (
	KindNoRelocation Kind = iota
	KindZeroes
	KindUninit
	KindRelocation
	KindDataOneSymbol
	KindDataPlabel
	KindSpaceRef
	KindRepeatedInit
	KindPCRelCall
	KindShortPCRelMode
	KindLongPCRelMode
	KindAbsCall
	KindDPRelative
	KindDataGPRel
	KindDLTRel
	KindCodeOneSymbol
	KindMilliRel
	KindCodePlabel
	KindBreakpoint
	KindEntry
	KindAltEntry
	KindExit
	KindBeginTry
	KindEndTry
	KindBeginBrtab
	KindEndBrtab
	KindStatement
	KindDataExpr
	KindCodeExpr
	KindFSel
	KindLSel
	KindRSel
	KindNMode
	KindSMode
	KindDMode
	KindRMode
	KindDataOverride
	KindTranslated
	KindAuxUnwind
	KindComp1
	KindComp2
	KindComp3
	KindPrevFixup
	KindSecStmt
	KindN0Sel
	KindN1Sel
	KindLinetab
	KindLinetabEsc
	KindLTPOverride
	KindComment
	KindReserved
)

var kindNames = map[Kind]string{
	KindNoRelocation:   "NO_RELOCATION",
	KindZeroes:         "ZEROES",
	KindUninit:         "UNINIT",
	KindRelocation:     "RELOCATION",
	KindDataOneSymbol:  "DATA_ONE_SYMBOL",
	KindDataPlabel:     "DATA_PLABEL",
	KindSpaceRef:       "SPACE_REF",
	KindRepeatedInit:   "REPEATED_INIT",
	KindPCRelCall:      "PCREL_CALL",
	KindShortPCRelMode: "SHORT_PCREL_MODE",
	KindLongPCRelMode:  "LONG_PCREL_MODE",
	KindAbsCall:        "ABS_CALL",
	KindDPRelative:     "DP_RELATIVE",
	KindDataGPRel:      "DATA_GPREL",
	KindDLTRel:         "DLT_REL",
	KindCodeOneSymbol:  "CODE_ONE_SYMBOL",
	KindMilliRel:       "MILLI_REL",
	KindCodePlabel:     "CODE_PLABEL",
	KindBreakpoint:     "BREAKPOINT",
	KindEntry:          "ENTRY",
	KindAltEntry:       "ALT_ENTRY",
	KindExit:           "EXIT",
	KindBeginTry:       "BEGIN_TRY",
	KindEndTry:         "END_TRY",
	KindBeginBrtab:     "BEGIN_BRTAB",
	KindEndBrtab:       "END_BRTAB",
	KindStatement:      "STATEMENT",
	KindDataExpr:       "DATA_EXPR",
	KindCodeExpr:       "CODE_EXPR",
	KindFSel:           "FSEL",
	KindLSel:           "LSEL",
	KindRSel:           "RSEL",
	KindNMode:          "N_MODE",
	KindSMode:          "S_MODE",
	KindDMode:          "D_MODE",
	KindRMode:          "R_MODE",
	KindDataOverride:   "DATA_OVERRIDE",
	KindTranslated:     "TRANSLATED",
	KindAuxUnwind:      "AUX_UNWIND",
	KindComp1:          "COMP1",
	KindComp2:          "COMP2",
	KindComp3:          "COMP3",
	KindPrevFixup:      "PREV_FIXUP",
	KindSecStmt:        "SEC_STMT",
	KindN0Sel:          "N0SEL",
	KindN1Sel:          "N1SEL",
	KindLinetab:        "LINETAB",
	KindLinetabEsc:     "LINETAB_ESC",
	KindLTPOverride:    "LTP_OVERRIDE",
	KindComment:        "COMMENT",
	KindReserved:       "RESERVED",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// NoSymbol marks a relocation that carries no symbol reference.
const NoSymbol = int32(-1)

// Reloc is one normalized relocation decoded from (or encodable into) a
// subspace's fixup stream.
type Reloc struct {
	// Address is the offset of the patched location within the subspace.
	// Addresses are non-decreasing within one stream.
	Address uint32 `json:"address"`
	Kind    Kind   `json:"-"`
	Addend  int64  `json:"addend"`
	// SymIndex is the symbol-dictionary index the relocation refers to,
	// or NoSymbol.
	SymIndex int32 `json:"sym_index"`
}

// KindName is Kind rendered for JSON output.
func (r Reloc) KindName() string { return r.Kind.String() }

// The arg-reloc bits of a call relocation live in the high bits of the
// addend, above the 22-bit displacement field.
const (
	argRelocShift = 22
	argRelocMask  = 0x3ff
	addendMask    = (1 << argRelocShift) - 1
)

// CallArgBits extracts the 10 argument-relocation bits from a call addend.
func CallArgBits(addend int64) uint32 {
	return uint32(addend>>argRelocShift) & argRelocMask
}

// CallAddend packs argument-relocation bits and a displacement into a call
// relocation addend.
func CallAddend(argBits uint32, disp int64) int64 {
	return int64(argBits&argRelocMask)<<argRelocShift | (disp & addendMask)
}

// Options controls fixup stream decoding.
type Options struct {
	Mode somfmt.Mode
	// SymbolCount bounds symbol indexes read from the stream; negative
	// means the symbol dictionary size is unknown and indexes are not
	// validated.
	SymbolCount int
	// Contents lazily loads the subspace's raw contents. It is consulted
	// only for the DATA_ONE_SYMBOL zero-addend fallback, at most once per
	// decode pass; the loaded bytes are dropped when the pass returns.
	Contents func() ([]byte, error)
	// MaxRelocs caps the number of materialized relocations; 0 = no cap.
	MaxRelocs int
}
