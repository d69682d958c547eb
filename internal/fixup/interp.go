package fixup

import (
	"errors"
	"fmt"

	"somtool/internal/somfmt"
)

var (
	// ErrTruncated reports a fixup stream that ended in the middle of an
	// opcode's operands.
	ErrTruncated = errors.New("fixup: truncated stream")
	// ErrStackFault reports interpreter value-stack underflow or overflow.
	ErrStackFault = errors.New("fixup: interpreter stack fault")
	// ErrBadProgram reports a malformed format program. The programs are
	// static table data, so this can only mean the table was corrupted by
	// an edit; it is still checked rather than trusted.
	ErrBadProgram = errors.New("fixup: malformed format program")
)

// stackDepth bounds the interpreter value stack. The deepest program in the
// table pushes well under this.
const stackDepth = 20

// Register indexes for the registers with assignment side effects.
const (
	regD = 'D' - 'A' // opcode class index, loaded before each opcode
	regL = 'L' - 'A' // input length; advances the output offset
	regO = 'O' - 'A' // linker-expression sub-opcode
	regR = 'R' - 'A' // call-argument type / END_TRY handler offset
	regS = 'S' - 'A' // symbol index
	regT = 'T' - 'A' // R_ENTRY frame unwind word
	regU = 'U' - 'A' // unwind bits; the only register that persists
	regV = 'V' - 'A' // addend / R_DATA_OVERRIDE value
)

// machine is the interpreter state threaded through one decode pass.
type machine struct {
	regs  [26]int64
	stack [stackDepth]int64
	sp    int

	// offset is the running output offset within the subspace; every L
	// assignment advances it.
	offset int64
	// unwind carries the U register across fixups.
	unwind int64

	// pending is the relocation being materialized, or nil in count mode
	// and for non-materializing opcodes.
	pending *Reloc

	symbolCount int
	mode        somfmt.Mode
	diags       *somfmt.Diags
}

func (m *machine) push(v int64) error {
	if m.sp >= stackDepth {
		return fmt.Errorf("%w: overflow", ErrStackFault)
	}
	m.stack[m.sp] = v
	m.sp++
	return nil
}

func (m *machine) pop() (int64, error) {
	if m.sp == 0 {
		return 0, fmt.Errorf("%w: underflow", ErrStackFault)
	}
	m.sp--
	return m.stack[m.sp], nil
}

// run interprets one opcode's format program against the stream. The program
// is a sequence of assignments: a target register letter, a postfix
// expression, and '='.
func (m *machine) run(program string, s *somfmt.Stream, op byte) error {
	i := 0
	for i < len(program) {
		target := program[i]
		i++
		if target < 'A' || target > 'Z' {
			return fmt.Errorf("%w: bad assignment target %q", ErrBadProgram, target)
		}

		for i < len(program) && program[i] != '=' {
			c := program[i]
			i++
			switch {
			case c >= 'A' && c <= 'Z':
				if err := m.push(m.regs[c-'A']); err != nil {
					return err
				}
			case c >= 'a' && c <= 'z':
				// 'a'+n reads n big-endian bytes from the stream.
				width := int(c - 'a')
				v, err := s.ReadUintN(width)
				if err != nil {
					return fmt.Errorf("%w: %d-byte operand at offset %d", ErrTruncated, width, s.Position())
				}
				sv := int64(v)
				if target == 'V' {
					sv = somfmt.SignExtend(v, width*8)
				}
				if err := m.push(sv); err != nil {
					return err
				}
			case c >= '0' && c <= '9':
				v := int64(c - '0')
				for i < len(program) && program[i] >= '0' && program[i] <= '9' {
					v = v*10 + int64(program[i]-'0')
					i++
				}
				if err := m.push(v); err != nil {
					return err
				}
			case c == '+' || c == '*' || c == '<':
				b, err := m.pop()
				if err != nil {
					return err
				}
				a, err := m.pop()
				if err != nil {
					return err
				}
				switch c {
				case '+':
					a += b
				case '*':
					a *= b
				case '<':
					a <<= uint64(b) & 63
				}
				if err := m.push(a); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%w: operator %q", ErrBadProgram, c)
			}
		}
		if i >= len(program) {
			return fmt.Errorf("%w: missing '='", ErrBadProgram)
		}
		i++ // consume '='

		v, err := m.pop()
		if err != nil {
			return err
		}
		m.regs[target-'A'] = v
		m.assign(target, v, op)
	}
	return nil
}

// assign applies the register-specific side effects of an '=' store.
func (m *machine) assign(target byte, v int64, op byte) {
	switch target {
	case 'L':
		m.offset += v

	case 'S':
		if m.pending == nil {
			return
		}
		if m.symbolCount > 0 && (v < 0 || v >= int64(m.symbolCount)) {
			m.diags.Addf(uint64(m.offset), somfmt.DiagOutOfRange,
				"symbol index %d outside dictionary of %d", v, m.symbolCount)
			return
		}
		m.pending.SymIndex = int32(v)

	case 'R':
		kind := KindOf(op)
		if kind != KindPCRelCall && kind != KindAbsCall {
			// END_TRY reuses R for its handler offset; no unpacking.
			return
		}
		if m.pending == nil {
			return
		}
		var bits uint32
		if (kind == KindPCRelCall && op < OpPCRelCall+10) ||
			(kind == KindAbsCall && op < OpAbsCall+10) {
			bits = decodeSimpleArgBits(v)
		} else {
			bits = decodeHardArgBits(v)
		}
		m.pending.Addend = CallAddend(bits, 0)

	case 'O':
		switch op {
		case OpComp1:
			m.regs[regO] = int64(normalizeCompOp(comp1Opcodes, byte(v)))
		case OpComp2:
			m.regs[regO] = int64(normalizeCompOp(comp2Opcodes, byte(v)))
		case OpComp3:
			m.regs[regO] = int64(normalizeCompOp(comp3Opcodes, byte(v)))
		}

	case 'U':
		m.unwind = v
	}
}
