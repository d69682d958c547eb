package fixup

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfOrder reports relocations whose addresses decrease.
	ErrOutOfOrder = errors.New("fixup: relocation addresses out of order")
	// ErrOutOfRange reports a relocation outside the subspace, or a field
	// value too large for any operand encoding.
	ErrOutOfRange = errors.New("fixup: value out of range")
	// ErrUnmatchedEntry reports an R_ENTRY with no later R_EXIT in the
	// same subspace.
	ErrUnmatchedEntry = errors.New("fixup: R_ENTRY without matching R_EXIT")
	// ErrUnsupportedKind reports a relocation kind the stream encoder has
	// no emission rule for.
	ErrUnsupportedKind = errors.New("fixup: relocation kind not encodable")
	// ErrNoSymbol reports a relocation that requires a symbol index but
	// carries none.
	ErrNoSymbol = errors.New("fixup: relocation requires a symbol index")
	// ErrBadAddend reports an addend that the kind's operand encoding
	// cannot represent.
	ErrBadAddend = errors.New("fixup: addend not representable")
)

// The encoder accumulates bytes in a fixed-size working buffer, exactly large
// enough that the queue's back-references always point into live bytes. When
// the buffer approaches capacity it is flushed to the output and the queue is
// reset with it; the cache's reach is therefore bounded by flush granularity.
// The headroom covers the largest single relocation plus the skip chunking
// for a maximal gap.
const (
	encodeBufSize  = 4096
	encodeHeadroom = 512
)

type encoder struct {
	out []byte
	buf []byte
	q   RelocQueue
}

func (e *encoder) flushIfNeeded() {
	if len(e.buf)+encodeHeadroom > encodeBufSize {
		e.out = append(e.out, e.buf...)
		e.buf = e.buf[:0]
		e.q.Reset()
	}
}

// emitRaw appends bytes without consulting the previous-fixup cache.
// One-byte fixups are never cached.
func (e *encoder) emitRaw(b ...byte) {
	e.buf = append(e.buf, b...)
}

// emitQueued appends a multi-byte fixup, collapsing it to a one-byte
// R_PREV_FIXUP when an identical fixup is still cached.
func (e *encoder) emitQueued(b []byte) {
	if i := e.q.Find(e.buf, b); i >= 0 {
		e.buf = append(e.buf, OpPrevFixup+byte(i))
		e.q.Promote(i)
		return
	}
	start := len(e.buf)
	e.buf = append(e.buf, b...)
	e.q.Insert(start, len(b))
}

// skip emits R_NO_RELOCATION fixups covering dist bytes of un-relocated
// space, always choosing the smallest variant that represents the distance
// exactly.
func (e *encoder) skip(dist uint32) {
	// Chunk giant gaps into maximal 4-byte skips. After the first chunk
	// the cache collapses the repeats to one byte each, which is what
	// keeps the headroom bound valid.
	for dist >= 0x1000000 {
		dist -= 0x1000000
		e.emitQueued([]byte{OpNoRelocation + 31, 0xff, 0xff, 0xff})
	}
	if dist == 0 {
		return
	}
	if dist&3 == 0 && dist <= 0xc0000 {
		n := dist>>2 - 1
		switch {
		case dist <= 0x60:
			e.emitRaw(OpNoRelocation + byte(n))
		case dist <= 0x1000:
			e.emitQueued([]byte{OpNoRelocation + 24 + byte(n>>8), byte(n)})
		default:
			e.emitQueued([]byte{OpNoRelocation + 28 + byte(n>>16), byte(n >> 8), byte(n)})
		}
		return
	}
	n := dist - 1
	e.emitQueued([]byte{OpNoRelocation + 31, byte(n >> 16), byte(n >> 8), byte(n)})
}

// addendOverride emits the smallest R_DATA_OVERRIDE carrying v for the next
// data relocation. v must be nonzero; a zero addend needs no override.
func (e *encoder) addendOverride(v int64) {
	switch {
	case v >= -0x80 && v < 0x80:
		e.emitQueued([]byte{OpDataOverride + 1, byte(v)})
	case v >= -0x8000 && v < 0x8000:
		e.emitQueued([]byte{OpDataOverride + 2, byte(v >> 8), byte(v)})
	case v >= -0x800000 && v < 0x800000:
		e.emitQueued([]byte{OpDataOverride + 3, byte(v >> 16), byte(v >> 8), byte(v)})
	default:
		e.emitQueued([]byte{OpDataOverride + 4, byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	}
}

// call emits a PCREL_CALL or ABS_CALL fixup, picking the simple two-byte form
// when the argument-relocation pattern and symbol index allow it.
func (e *encoder) call(base byte, r Reloc) error {
	if r.SymIndex < 0 {
		return fmt.Errorf("%w: %s at 0x%x", ErrNoSymbol, r.Kind, r.Address)
	}
	sym := uint32(r.SymIndex)
	argBits := CallArgBits(r.Addend)

	if sym < 0x100 {
		if t := simpleCallType(argBits); t >= 0 {
			e.emitQueued([]byte{base + byte(t), byte(sym)})
			return nil
		}
	}

	t := hardCallType(argBits)
	op := base + 10
	if sym >= 0x100 {
		op += 2
	}
	if t >= 0x100 {
		op++
	}
	if sym < 0x100 {
		e.emitQueued([]byte{op, byte(t), byte(sym)})
		return nil
	}
	if sym >= 1<<24 {
		return fmt.Errorf("%w: call symbol index %#x at 0x%x", ErrOutOfRange, sym, r.Address)
	}
	e.emitQueued([]byte{op, byte(t), byte(sym >> 16), byte(sym >> 8), byte(sym)})
	return nil
}

// symReloc emits a fixup whose base class has the 0x20-short / one-byte /
// three-byte symbol-index variants (DP_RELATIVE, CODE_ONE_SYMBOL).
func (e *encoder) symReloc(base byte, r Reloc) error {
	if r.SymIndex < 0 {
		return fmt.Errorf("%w: %s at 0x%x", ErrNoSymbol, r.Kind, r.Address)
	}
	if r.Addend != 0 {
		e.addendOverride(r.Addend)
	}
	sym := uint32(r.SymIndex)
	switch {
	case sym < 0x20:
		e.emitRaw(base + byte(sym))
	case sym < 0x100:
		e.emitQueued([]byte{base + 32, byte(sym)})
	case sym < 1<<24:
		e.emitQueued([]byte{base + 33, byte(sym >> 16), byte(sym >> 8), byte(sym)})
	default:
		return fmt.Errorf("%w: symbol index %#x at 0x%x", ErrOutOfRange, sym, r.Address)
	}
	return nil
}

// dataReloc emits a fixup with the one-byte / three-byte symbol-index
// variants (DATA_ONE_SYMBOL, plabels, DLT_REL, MILLI_REL).
func (e *encoder) dataReloc(base byte, r Reloc) error {
	if r.SymIndex < 0 {
		return fmt.Errorf("%w: %s at 0x%x", ErrNoSymbol, r.Kind, r.Address)
	}
	if r.Addend != 0 {
		e.addendOverride(r.Addend)
	}
	sym := uint32(r.SymIndex)
	switch {
	case sym < 0x100:
		e.emitQueued([]byte{base, byte(sym)})
	case sym < 1<<24:
		e.emitQueued([]byte{base + 1, byte(sym >> 16), byte(sym >> 8), byte(sym)})
	default:
		return fmt.Errorf("%w: symbol index %#x at 0x%x", ErrOutOfRange, sym, r.Address)
	}
	return nil
}

// dataBytes returns how many subspace bytes a relocation kind patches, which
// is how far its opcode advances the running offset.
func dataBytes(k Kind) uint32 {
	switch k {
	case KindRelocation, KindDataOneSymbol, KindDataPlabel, KindSpaceRef,
		KindPCRelCall, KindAbsCall, KindDPRelative, KindDataGPRel,
		KindDLTRel, KindCodeOneSymbol, KindMilliRel, KindCodePlabel,
		KindBreakpoint, KindDataExpr, KindCodeExpr:
		return 4
	default:
		return 0
	}
}

// markerOps maps the parameterless one-byte relocation kinds to their opcode.
var markerOps = map[Kind]byte{
	KindAltEntry:    OpAltEntry,
	KindExit:        OpExit,
	KindBeginTry:    OpBeginTry,
	KindBeginBrtab:  OpBeginBrtab,
	KindEndBrtab:    OpEndBrtab,
	KindFSel:        OpFSel,
	KindLSel:        OpLSel,
	KindRSel:        OpRSel,
	KindN0Sel:       OpN0Sel,
	KindN1Sel:       OpN1Sel,
	KindSecStmt:     OpSecStmt,
	KindTranslated:  OpTranslated,
	KindLTPOverride: OpLTPOverride,
}

// Encode serializes an address-ordered relocation list into a subspace's
// compressed fixup stream, covering the whole subspace of sectionSize bytes
// (trailing un-relocated space is closed with a final skip). The
// previous-fixup cache starts empty and is reset at every buffer flush, which
// keeps the emitted bytes identical to streams produced by the reference
// toolchain.
func Encode(relocs []Reloc, sectionSize uint32) ([]byte, error) {
	e := encoder{buf: make([]byte, 0, encodeBufSize)}

	var offset uint32
	roundingMode := KindNMode
	callMode := KindShortPCRelMode

	for i, r := range relocs {
		e.flushIfNeeded()

		if r.Address < offset {
			return nil, fmt.Errorf("%w: %s at 0x%x after offset 0x%x",
				ErrOutOfOrder, r.Kind, r.Address, offset)
		}
		consumed := dataBytes(r.Kind)
		if uint64(r.Address)+uint64(consumed) > uint64(sectionSize) {
			return nil, fmt.Errorf("%w: %s at 0x%x in subspace of 0x%x bytes",
				ErrOutOfRange, r.Kind, r.Address, sectionSize)
		}
		e.skip(r.Address - offset)
		offset = r.Address + consumed

		var err error
		switch r.Kind {
		case KindPCRelCall:
			err = e.call(OpPCRelCall, r)
		case KindAbsCall:
			err = e.call(OpAbsCall, r)
		case KindDPRelative:
			err = e.symReloc(OpDPRelative, r)
		case KindCodeOneSymbol:
			err = e.symReloc(OpCodeOneSymbol, r)
		case KindDataOneSymbol:
			err = e.dataReloc(OpDataOneSymbol, r)
		case KindDataPlabel:
			err = e.dataReloc(OpDataPlabel, r)
		case KindCodePlabel:
			err = e.dataReloc(OpCodePlabel, r)
		case KindDLTRel:
			err = e.dataReloc(OpDLTRel, r)
		case KindMilliRel:
			err = e.dataReloc(OpMilliRel, r)
		case KindDataGPRel:
			if r.SymIndex < 0 {
				err = fmt.Errorf("%w: %s at 0x%x", ErrNoSymbol, r.Kind, r.Address)
				break
			}
			if r.Addend != 0 {
				e.addendOverride(r.Addend)
			}
			sym := uint32(r.SymIndex)
			if sym >= 1<<24 {
				err = fmt.Errorf("%w: symbol index %#x at 0x%x", ErrOutOfRange, sym, r.Address)
				break
			}
			e.emitQueued([]byte{OpDataGPRel, byte(sym >> 16), byte(sym >> 8), byte(sym)})

		case KindEntry:
			err = e.entry(relocs, i, r)
		case KindExit:
			// The addend already rode out inline with the matching
			// R_ENTRY; the exit itself is a bare marker.
			e.emitRaw(OpExit)

		case KindNMode, KindSMode, KindDMode, KindRMode:
			if r.Kind != roundingMode {
				e.emitRaw(roundingOp(r.Kind))
				roundingMode = r.Kind
			}
		case KindShortPCRelMode, KindLongPCRelMode:
			if r.Kind != callMode {
				if r.Kind == KindShortPCRelMode {
					e.emitRaw(OpShortPCRelMode)
				} else {
					e.emitRaw(OpLongPCRelMode)
				}
				callMode = r.Kind
			}

		case KindEndTry:
			err = e.endTry(r)
		case KindStatement:
			err = e.statement(r)

		case KindBreakpoint, KindDataExpr, KindCodeExpr, KindSpaceRef, KindRelocation:
			if r.Addend != 0 {
				e.addendOverride(r.Addend)
			}
			e.emitRaw(kindOp(r.Kind))

		default:
			if op, ok := markerOps[r.Kind]; ok {
				e.emitRaw(op)
				break
			}
			err = fmt.Errorf("%w: %s at 0x%x", ErrUnsupportedKind, r.Kind, r.Address)
		}
		if err != nil {
			return nil, err
		}
	}

	e.flushIfNeeded()
	if sectionSize > offset {
		e.skip(sectionSize - offset)
	}
	e.out = append(e.out, e.buf...)
	return e.out, nil
}

// entry emits an R_ENTRY with its 64 bits of unwind data: the entry's own
// frame word followed by the unwind word of the next R_EXIT in the list.
func (e *encoder) entry(relocs []Reloc, i int, r Reloc) error {
	var exit *Reloc
	for j := i + 1; j < len(relocs); j++ {
		if relocs[j].Kind == KindExit {
			exit = &relocs[j]
			break
		}
	}
	if exit == nil {
		return fmt.Errorf("%w: at 0x%x", ErrUnmatchedEntry, r.Address)
	}
	if uint64(r.Addend) > 0xffffffff || uint64(exit.Addend) > 0xffffffff {
		return fmt.Errorf("%w: unwind words at 0x%x", ErrBadAddend, r.Address)
	}
	t := uint32(r.Addend)
	u := uint32(exit.Addend)
	e.emitQueued([]byte{OpEntry,
		byte(t >> 24), byte(t >> 16), byte(t >> 8), byte(t),
		byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)})
	return nil
}

// endTry emits an R_END_TRY; the addend is the handler offset, always a
// multiple of four.
func (e *encoder) endTry(r Reloc) error {
	if r.Addend < 0 || r.Addend&3 != 0 {
		return fmt.Errorf("%w: END_TRY addend %#x at 0x%x", ErrBadAddend, r.Addend, r.Address)
	}
	v := uint64(r.Addend) >> 2
	switch {
	case v == 0:
		e.emitRaw(OpEndTry)
	case v < 0x100:
		e.emitQueued([]byte{OpEndTry + 1, byte(v)})
	case v < 1<<24:
		e.emitQueued([]byte{OpEndTry + 2, byte(v >> 16), byte(v >> 8), byte(v)})
	default:
		return fmt.Errorf("%w: END_TRY addend %#x at 0x%x", ErrBadAddend, r.Addend, r.Address)
	}
	return nil
}

// statement emits an R_STATEMENT with the smallest line-number operand.
func (e *encoder) statement(r Reloc) error {
	v := uint64(r.Addend)
	switch {
	case v < 0x100:
		e.emitQueued([]byte{OpStatement, byte(v)})
	case v < 0x10000:
		e.emitQueued([]byte{OpStatement + 1, byte(v >> 8), byte(v)})
	case v < 1<<24:
		e.emitQueued([]byte{OpStatement + 2, byte(v >> 16), byte(v >> 8), byte(v)})
	default:
		return fmt.Errorf("%w: STATEMENT line %#x at 0x%x", ErrBadAddend, r.Addend, r.Address)
	}
	return nil
}

func roundingOp(k Kind) byte {
	switch k {
	case KindNMode:
		return OpNMode
	case KindSMode:
		return OpSMode
	case KindDMode:
		return OpDMode
	default:
		return OpRMode
	}
}

func kindOp(k Kind) byte {
	switch k {
	case KindBreakpoint:
		return OpBreakpoint
	case KindDataExpr:
		return OpDataExpr
	case KindCodeExpr:
		return OpCodeExpr
	case KindSpaceRef:
		return OpSpaceRef
	default:
		return OpRelocation
	}
}
