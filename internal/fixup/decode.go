package fixup

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"somtool/internal/somfmt"
)

var debugFixup = os.Getenv("SOMTOOL_DEBUG_FIXUP") != ""

// ErrTooManyRelocs reports a stream that materializes more relocations than
// the caller allowed.
var ErrTooManyRelocs = errors.New("fixup: too many relocations")

// DecodeResult holds the outcome of one fixup stream decode pass.
type DecodeResult struct {
	Relocs []Reloc
	Count  int
	Diags  []somfmt.Diag
}

// Count runs the stream in count-only mode. It consumes the same bytes and
// produces the same relocation count as Decode; callers use it to size
// allocations before materializing.
func Count(stream []byte, opts Options) (int, error) {
	res, err := decode(stream, opts, true)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Decode materializes a subspace's fixup stream into normalized relocations.
// The stream is untrusted input: structural damage (truncation, stack faults)
// fails the decode with an error, while an R_PREV_FIXUP referencing an empty
// queue slot is skipped with a diagnostic in best-effort mode, matching how
// broken and fuzzed object files are conventionally tolerated.
func Decode(stream []byte, opts Options) (*DecodeResult, error) {
	return decode(stream, opts, false)
}

func decode(data []byte, opts Options, justCount bool) (*DecodeResult, error) {
	s := somfmt.NewStream(data)
	var q RelocQueue
	var diags somfmt.Diags
	res := &DecodeResult{}

	m := machine{
		symbolCount: opts.SymbolCount,
		mode:        opts.Mode,
		diags:       &diags,
	}

	// Section contents for the DATA_ONE_SYMBOL zero-addend fallback are
	// loaded at most once and dropped when this pass returns.
	var contents []byte
	contentsTried := false
	loadContents := func() []byte {
		if contentsTried || opts.Contents == nil {
			return contents
		}
		contentsTried = true
		c, err := opts.Contents()
		if err != nil {
			diags.Addf(uint64(m.offset), somfmt.DiagTruncated, "subspace contents: %v", err)
			return nil
		}
		contents = c
		return contents
	}

	for s.Remaining() > 0 {
		start := s.Position()
		op, err := s.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: opcode at offset %d", ErrTruncated, start)
		}
		f := formats[op]
		prev := false

		// R_PREV_FIXUP replays a cached fixup: redirect the cursor into
		// the queue's stored byte range and re-read the real opcode.
		if f.program == "P" {
			slot := int(f.class)
			qs, _, ok := q.Entry(slot)
			if !ok {
				if opts.Mode == somfmt.ModeStrict {
					return nil, fmt.Errorf("fixup: prev-fixup slot %d empty at offset %d", slot, start)
				}
				diags.Addf(uint64(start), somfmt.DiagBadBackRef,
					"prev-fixup slot %d is empty, opcode skipped", slot)
				continue
			}
			q.Promote(slot)
			prev = true
			s.SetPosition(qs)
			op, err = s.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("%w: cached opcode at offset %d", ErrTruncated, qs)
			}
			f = formats[op]
		}

		kind := KindOf(op)
		if kind == KindReserved {
			diags.Addf(uint64(start), somfmt.DiagInvalid, "reserved fixup opcode 0x%02x", op)
		}

		// Per-opcode register priming. Only L, D, and U are touched here;
		// everything else survives until a materialized relocation resets
		// it, which is how R_DATA_OVERRIDE's V value reaches the next data
		// relocation.
		m.regs[regL] = 0
		m.regs[regD] = int64(f.class)
		m.regs[regU] = m.unwind

		materialize := kind != KindNoRelocation && kind != KindDataOverride
		m.pending = nil
		if materialize && !justCount {
			if opts.MaxRelocs > 0 && len(res.Relocs) >= opts.MaxRelocs {
				return nil, fmt.Errorf("%w: cap %d at offset %d", ErrTooManyRelocs, opts.MaxRelocs, start)
			}
			res.Relocs = append(res.Relocs, Reloc{
				Address:  uint32(m.offset),
				Kind:     kind,
				SymIndex: NoSymbol,
			})
			m.pending = &res.Relocs[len(res.Relocs)-1]
		}

		if err := m.run(f.program, s, op); err != nil {
			return nil, fmt.Errorf("opcode 0x%02x (%s) at offset %d: %w", op, kind, start, err)
		}

		if debugFixup {
			fmt.Fprintf(os.Stderr, "FIXUP op=0x%02x %-16s off=0x%06x len=%d prev=%v\n",
				op, kind, m.offset, s.Position()-start, prev)
		}

		if prev {
			// Resume after the single back-reference byte, not after the
			// replayed fixup.
			s.SetPosition(start + 1)
		} else if s.Position() > start+1 {
			// Multi-byte fixups become back-reference candidates;
			// one-byte fixups are never cached.
			q.Insert(start, s.Position()-start)
		}

		if !materialize {
			continue
		}
		res.Count++
		if m.pending != nil {
			finalizeAddend(&m, m.pending, loadContents)
		}
		// Reset everything except the unwind carry.
		m.regs = [26]int64{}
		m.sp = 0
	}

	res.Diags = diags.Items()
	return res, nil
}

// finalizeAddend applies the per-kind addend rule once an opcode's program
// has run.
func finalizeAddend(m *machine, r *Reloc, loadContents func() []byte) {
	switch r.Kind {
	case KindEntry:
		r.Addend = m.regs[regT]
	case KindExit:
		r.Addend = m.regs[regU]
	case KindPCRelCall, KindAbsCall:
		// Already unpacked by the R side effect.
	case KindEndTry:
		r.Addend = m.regs[regR]
	case KindStatement:
		r.Addend = m.regs[regO]
	case KindDataOneSymbol:
		// An explicit R_DATA_OVERRIDE wins; a zero addend falls back to
		// the 4 bytes hidden in the subspace contents at the patch site.
		r.Addend = m.regs[regV]
		if r.Addend != 0 {
			return
		}
		contents := loadContents()
		if contents == nil {
			return
		}
		if int(r.Address)+4 <= len(contents) {
			r.Addend = int64(binary.BigEndian.Uint32(contents[r.Address:]))
		} else {
			m.diags.Addf(uint64(r.Address), somfmt.DiagTruncated,
				"contents too short for hidden addend at 0x%x", r.Address)
		}
	default:
		r.Addend = m.regs[regV]
	}
}
