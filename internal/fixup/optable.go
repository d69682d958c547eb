package fixup

// Fixup opcode bases. An opcode class occupies a contiguous run of byte
// values; the offset within the run selects the operand encoding variant
// (and, for the short forms, encodes a small operand directly).
const (
	OpNoRelocation   = 0x00 // 0x00-0x1f
	OpZeroes         = 0x20 // 0x20-0x21
	OpUninit         = 0x22 // 0x22-0x23
	OpRelocation     = 0x24
	OpDataOneSymbol  = 0x25 // 0x25-0x26
	OpDataPlabel     = 0x27 // 0x27-0x28
	OpSpaceRef       = 0x29
	OpRepeatedInit   = 0x2a // 0x2a-0x2d
	OpPCRelCall      = 0x30 // 0x30-0x3d
	OpShortPCRelMode = 0x3e
	OpLongPCRelMode  = 0x3f
	OpAbsCall        = 0x40 // 0x40-0x4d
	OpDPRelative     = 0x50 // 0x50-0x71
	OpDataGPRel      = 0x72
	OpDLTRel         = 0x75 // 0x75-0x76
	OpCodeOneSymbol  = 0x80 // 0x80-0xa1
	OpMilliRel       = 0xae // 0xae-0xaf
	OpCodePlabel     = 0xb0 // 0xb0-0xb1
	OpBreakpoint     = 0xb2
	OpEntry          = 0xb3 // 0xb3-0xb4
	OpAltEntry       = 0xb5
	OpExit           = 0xb6
	OpBeginTry       = 0xb7
	OpEndTry         = 0xb8 // 0xb8-0xba
	OpBeginBrtab     = 0xbb
	OpEndBrtab       = 0xbc
	OpStatement      = 0xbd // 0xbd-0xbf
	OpDataExpr       = 0xc0
	OpCodeExpr       = 0xc1
	OpFSel           = 0xc2
	OpLSel           = 0xc3
	OpRSel           = 0xc4
	OpNMode          = 0xc5
	OpSMode          = 0xc6
	OpDMode          = 0xc7
	OpRMode          = 0xc8
	OpDataOverride   = 0xc9 // 0xc9-0xcd
	OpTranslated     = 0xce
	OpAuxUnwind      = 0xcf
	OpComp1          = 0xd0
	OpComp2          = 0xd1
	OpComp3          = 0xd2
	OpPrevFixup      = 0xd3 // 0xd3-0xd6
	OpSecStmt        = 0xd7
	OpN0Sel          = 0xd8
	OpN1Sel          = 0xd9
	OpLinetab        = 0xda
	OpLinetabEsc     = 0xdb
	OpLTPOverride    = 0xdc
	OpComment        = 0xdd
	// 0xde-0xff reserved
)

// format pairs an opcode-class index with the postfix program that drives the
// interpreter. The program is data, not code: uppercase letters push a
// register, a lowercase letter 'a'+n reads n big-endian stream bytes, digits
// push a decimal literal, '+' '*' '<' operate on the stack, and '=' assigns
// the top of stack to the letter that opened the expression. An empty program
// is a bare one-byte opcode. "P" marks the previous-fixup back-reference
// class.
type format struct {
	class   uint8
	program string
}

// formats maps every opcode byte to its operand encoding. Indexed by the
// opcode value; entries for reserved opcodes are empty.
var formats = [256]format{
	// R_NO_RELOCATION. Short form: the opcode encodes (skip/4)-1 directly.
	0x00: {0, "LD1+4*="},
	0x01: {1, "LD1+4*="},
	0x02: {2, "LD1+4*="},
	0x03: {3, "LD1+4*="},
	0x04: {4, "LD1+4*="},
	0x05: {5, "LD1+4*="},
	0x06: {6, "LD1+4*="},
	0x07: {7, "LD1+4*="},
	0x08: {8, "LD1+4*="},
	0x09: {9, "LD1+4*="},
	0x0a: {10, "LD1+4*="},
	0x0b: {11, "LD1+4*="},
	0x0c: {12, "LD1+4*="},
	0x0d: {13, "LD1+4*="},
	0x0e: {14, "LD1+4*="},
	0x0f: {15, "LD1+4*="},
	0x10: {16, "LD1+4*="},
	0x11: {17, "LD1+4*="},
	0x12: {18, "LD1+4*="},
	0x13: {19, "LD1+4*="},
	0x14: {20, "LD1+4*="},
	0x15: {21, "LD1+4*="},
	0x16: {22, "LD1+4*="},
	0x17: {23, "LD1+4*="},
	// Two-byte skip: L = ((class<<8 | b) + 1) * 4.
	0x18: {0, "LD8<b+1+4*="},
	0x19: {1, "LD8<b+1+4*="},
	0x1a: {2, "LD8<b+1+4*="},
	0x1b: {3, "LD8<b+1+4*="},
	// Three-byte skip: L = ((class<<16 | c) + 1) * 4.
	0x1c: {0, "LD16<c+1+4*="},
	0x1d: {1, "LD16<c+1+4*="},
	0x1e: {2, "LD16<c+1+4*="},
	// Four-byte skip, arbitrary distance: L = d + 1.
	0x1f: {0, "Ld1+="},

	// R_ZEROES.
	0x20: {0, "Lb1+4*="},
	0x21: {1, "Ld1+="},
	// R_UNINIT.
	0x22: {0, "Lb1+4*="},
	0x23: {1, "Ld1+="},
	// R_RELOCATION.
	0x24: {0, "L4="},
	// R_DATA_ONE_SYMBOL.
	0x25: {0, "L4=Sb="},
	0x26: {1, "L4=Sd="},
	// R_DATA_PLABEL.
	0x27: {0, "L4=Sb="},
	0x28: {1, "L4=Sd="},
	// R_SPACE_REF.
	0x29: {0, "L4="},
	// R_REPEATED_INIT.
	0x2a: {0, "L4=Mb1+4*="},
	0x2b: {1, "Lb4*=Mb1+L*="},
	0x2c: {2, "Lb4*=Md1+4*="},
	0x2d: {3, "Ld1+=Me1+="},

	// R_PCREL_CALL. First ten variants carry a simple arg-reloc type in the
	// class index; the last four use the hard mixed-radix encoding with an
	// extra type byte and a one- or three-byte symbol index.
	0x30: {0, "L4=RD=Sb="},
	0x31: {1, "L4=RD=Sb="},
	0x32: {2, "L4=RD=Sb="},
	0x33: {3, "L4=RD=Sb="},
	0x34: {4, "L4=RD=Sb="},
	0x35: {5, "L4=RD=Sb="},
	0x36: {6, "L4=RD=Sb="},
	0x37: {7, "L4=RD=Sb="},
	0x38: {8, "L4=RD=Sb="},
	0x39: {9, "L4=RD=Sb="},
	0x3a: {0, "L4=RD8<b+=Sb="},
	0x3b: {1, "L4=RD8<b+=Sb="},
	0x3c: {0, "L4=RD8<b+=Sd="},
	0x3d: {1, "L4=RD8<b+=Sd="},
	// R_SHORT_PCREL_MODE / R_LONG_PCREL_MODE.
	0x3e: {0, ""},
	0x3f: {0, ""},

	// R_ABS_CALL. Same shape as R_PCREL_CALL.
	0x40: {0, "L4=RD=Sb="},
	0x41: {1, "L4=RD=Sb="},
	0x42: {2, "L4=RD=Sb="},
	0x43: {3, "L4=RD=Sb="},
	0x44: {4, "L4=RD=Sb="},
	0x45: {5, "L4=RD=Sb="},
	0x46: {6, "L4=RD=Sb="},
	0x47: {7, "L4=RD=Sb="},
	0x48: {8, "L4=RD=Sb="},
	0x49: {9, "L4=RD=Sb="},
	0x4a: {0, "L4=RD8<b+=Sb="},
	0x4b: {1, "L4=RD8<b+=Sb="},
	0x4c: {0, "L4=RD8<b+=Sd="},
	0x4d: {1, "L4=RD8<b+=Sd="},

	// R_DP_RELATIVE. Short form: the class index IS the symbol index.
	0x50: {0, "L4=SD="},
	0x51: {1, "L4=SD="},
	0x52: {2, "L4=SD="},
	0x53: {3, "L4=SD="},
	0x54: {4, "L4=SD="},
	0x55: {5, "L4=SD="},
	0x56: {6, "L4=SD="},
	0x57: {7, "L4=SD="},
	0x58: {8, "L4=SD="},
	0x59: {9, "L4=SD="},
	0x5a: {10, "L4=SD="},
	0x5b: {11, "L4=SD="},
	0x5c: {12, "L4=SD="},
	0x5d: {13, "L4=SD="},
	0x5e: {14, "L4=SD="},
	0x5f: {15, "L4=SD="},
	0x60: {16, "L4=SD="},
	0x61: {17, "L4=SD="},
	0x62: {18, "L4=SD="},
	0x63: {19, "L4=SD="},
	0x64: {20, "L4=SD="},
	0x65: {21, "L4=SD="},
	0x66: {22, "L4=SD="},
	0x67: {23, "L4=SD="},
	0x68: {24, "L4=SD="},
	0x69: {25, "L4=SD="},
	0x6a: {26, "L4=SD="},
	0x6b: {27, "L4=SD="},
	0x6c: {28, "L4=SD="},
	0x6d: {29, "L4=SD="},
	0x6e: {30, "L4=SD="},
	0x6f: {31, "L4=SD="},
	0x70: {32, "L4=Sb="},
	0x71: {33, "L4=Sd="},

	// R_DATA_GPREL.
	0x72: {0, "L4=Sd="},
	// R_DLT_REL.
	0x75: {0, "L4=Sb="},
	0x76: {1, "L4=Sd="},

	// R_CODE_ONE_SYMBOL. Same shape as R_DP_RELATIVE.
	0x80: {0, "L4=SD="},
	0x81: {1, "L4=SD="},
	0x82: {2, "L4=SD="},
	0x83: {3, "L4=SD="},
	0x84: {4, "L4=SD="},
	0x85: {5, "L4=SD="},
	0x86: {6, "L4=SD="},
	0x87: {7, "L4=SD="},
	0x88: {8, "L4=SD="},
	0x89: {9, "L4=SD="},
	0x8a: {10, "L4=SD="},
	0x8b: {11, "L4=SD="},
	0x8c: {12, "L4=SD="},
	0x8d: {13, "L4=SD="},
	0x8e: {14, "L4=SD="},
	0x8f: {15, "L4=SD="},
	0x90: {16, "L4=SD="},
	0x91: {17, "L4=SD="},
	0x92: {18, "L4=SD="},
	0x93: {19, "L4=SD="},
	0x94: {20, "L4=SD="},
	0x95: {21, "L4=SD="},
	0x96: {22, "L4=SD="},
	0x97: {23, "L4=SD="},
	0x98: {24, "L4=SD="},
	0x99: {25, "L4=SD="},
	0x9a: {26, "L4=SD="},
	0x9b: {27, "L4=SD="},
	0x9c: {28, "L4=SD="},
	0x9d: {29, "L4=SD="},
	0x9e: {30, "L4=SD="},
	0x9f: {31, "L4=SD="},
	0xa0: {32, "L4=Sb="},
	0xa1: {33, "L4=Sd="},

	// R_MILLI_REL.
	0xae: {0, "L4=Sb="},
	0xaf: {1, "L4=Sd="},
	// R_CODE_PLABEL.
	0xb0: {0, "L4=Sb="},
	0xb1: {1, "L4=Sd="},
	// R_BREAKPOINT.
	0xb2: {0, "L4="},
	// R_ENTRY. T carries the frame unwind word, U the persistent unwind bits
	// shared with the matching R_EXIT.
	0xb3: {0, "Te=Ue="},
	0xb4: {1, "Uf="},
	// R_ALT_ENTRY / R_EXIT / R_BEGIN_TRY.
	0xb5: {0, ""},
	0xb6: {0, ""},
	0xb7: {0, ""},
	// R_END_TRY. Operand is the handler offset divided by 4.
	0xb8: {0, "R0="},
	0xb9: {1, "Rb4*="},
	0xba: {2, "Rd4*="},
	// R_BEGIN_BRTAB / R_END_BRTAB.
	0xbb: {0, ""},
	0xbc: {0, ""},
	// R_STATEMENT.
	0xbd: {0, "Ob="},
	0xbe: {1, "Oc="},
	0xbf: {2, "Od="},
	// R_DATA_EXPR / R_CODE_EXPR.
	0xc0: {0, "L4="},
	0xc1: {0, "L4="},
	// Field selectors and rounding modes.
	0xc2: {0, ""},
	0xc3: {0, ""},
	0xc4: {0, ""},
	0xc5: {0, ""},
	0xc6: {0, ""},
	0xc7: {0, ""},
	0xc8: {0, ""},
	// R_DATA_OVERRIDE. Sets V, consumed by the next data relocation.
	0xc9: {0, "V0="},
	0xca: {1, "Vb="},
	0xcb: {2, "Vc="},
	0xcc: {3, "Vd="},
	0xcd: {4, "Ve="},
	// R_TRANSLATED.
	0xce: {0, ""},
	// R_AUX_UNWIND.
	0xcf: {0, "Sd=Ve=Ee="},
	// R_COMP1 / R_COMP2 / R_COMP3. O is validated against the per-class
	// linker-expression opcode tables.
	0xd0: {0, "Ob="},
	0xd1: {0, "Ob=Sd="},
	0xd2: {0, "Ob=Ve="},
	// R_PREV_FIXUP. The class index is the queue slot to replay.
	0xd3: {0, "P"},
	0xd4: {1, "P"},
	0xd5: {2, "P"},
	0xd6: {3, "P"},
	// R_SEC_STMT / R_N0SEL / R_N1SEL.
	0xd7: {0, ""},
	0xd8: {0, ""},
	0xd9: {0, ""},
	// R_LINETAB / R_LINETAB_ESC.
	0xda: {0, "Eb=Sd=Ve="},
	0xdb: {0, "Eb=Mb="},
	// R_LTP_OVERRIDE / R_COMMENT.
	0xdc: {0, ""},
	0xdd: {0, "Ob=Ve="},
}

// KindOf classifies an opcode byte.
func KindOf(op byte) Kind {
	switch {
	case op <= 0x1f:
		return KindNoRelocation
	case op <= 0x21:
		return KindZeroes
	case op <= 0x23:
		return KindUninit
	case op == OpRelocation:
		return KindRelocation
	case op <= 0x26:
		return KindDataOneSymbol
	case op <= 0x28:
		return KindDataPlabel
	case op == OpSpaceRef:
		return KindSpaceRef
	case op <= 0x2d:
		return KindRepeatedInit
	case op <= 0x2f:
		return KindReserved
	case op <= 0x3d:
		return KindPCRelCall
	case op == OpShortPCRelMode:
		return KindShortPCRelMode
	case op == OpLongPCRelMode:
		return KindLongPCRelMode
	case op <= 0x4d:
		return KindAbsCall
	case op <= 0x4f:
		return KindReserved
	case op <= 0x71:
		return KindDPRelative
	case op == OpDataGPRel:
		return KindDataGPRel
	case op <= 0x74:
		return KindReserved
	case op <= 0x76:
		return KindDLTRel
	case op <= 0x7f:
		return KindReserved
	case op <= 0xa1:
		return KindCodeOneSymbol
	case op <= 0xad:
		return KindReserved
	case op <= 0xaf:
		return KindMilliRel
	case op <= 0xb1:
		return KindCodePlabel
	case op == OpBreakpoint:
		return KindBreakpoint
	case op <= 0xb4:
		return KindEntry
	case op == OpAltEntry:
		return KindAltEntry
	case op == OpExit:
		return KindExit
	case op == OpBeginTry:
		return KindBeginTry
	case op <= 0xba:
		return KindEndTry
	case op == OpBeginBrtab:
		return KindBeginBrtab
	case op == OpEndBrtab:
		return KindEndBrtab
	case op <= 0xbf:
		return KindStatement
	case op == OpDataExpr:
		return KindDataExpr
	case op == OpCodeExpr:
		return KindCodeExpr
	case op == OpFSel:
		return KindFSel
	case op == OpLSel:
		return KindLSel
	case op == OpRSel:
		return KindRSel
	case op == OpNMode:
		return KindNMode
	case op == OpSMode:
		return KindSMode
	case op == OpDMode:
		return KindDMode
	case op == OpRMode:
		return KindRMode
	case op <= 0xcd:
		return KindDataOverride
	case op == OpTranslated:
		return KindTranslated
	case op == OpAuxUnwind:
		return KindAuxUnwind
	case op == OpComp1:
		return KindComp1
	case op == OpComp2:
		return KindComp2
	case op == OpComp3:
		return KindComp3
	case op <= 0xd6:
		return KindPrevFixup
	case op == OpSecStmt:
		return KindSecStmt
	case op == OpN0Sel:
		return KindN0Sel
	case op == OpN1Sel:
		return KindN1Sel
	case op == OpLinetab:
		return KindLinetab
	case op == OpLinetabEsc:
		return KindLinetabEsc
	case op == OpLTPOverride:
		return KindLTPOverride
	case op == OpComment:
		return KindComment
	default:
		return KindReserved
	}
}

// Linker-expression sub-opcode tables for R_COMP1/2/3, sorted and terminated
// by a sentinel larger than any byte. The O-register side effect normalizes a
// raw sub-opcode to the greatest table entry not exceeding it.
var (
	comp1Opcodes = []int{
		0x00, 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48,
		0x49, 0x4a, 0x4b, 0x60, 0x80, 0xa0, 0xc0, compSentinel,
	}
	comp2Opcodes = []int{0x00, 0x80, 0x82, 0xc0, compSentinel}
	comp3Opcodes = []int{0x00, 0x02, compSentinel}
)

const compSentinel = 0x100

// normalizeCompOp returns the greatest table entry that is <= the masked
// sub-opcode. The tables open with 0, so the scan cannot step off the front.
func normalizeCompOp(table []int, v byte) int {
	i := 0
	for table[i] <= int(v) {
		i++
	}
	return table[i-1]
}
