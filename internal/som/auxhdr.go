package som

import (
	"encoding/binary"
	"fmt"

	"somtool/internal/somfmt"
)

// Auxiliary header types.
const (
	AuxExecType    = 4
	AuxVersionType = 6
)

// aux id flag bits in the type word.
const (
	auxMandatory = 1 << 31
	auxCopy      = 1 << 30
	auxAppend    = 1 << 29
	auxIgnore    = 1 << 28
	auxTypeMask  = 0xffff
)

const auxIDSize = 8

// ExecAux is the HP-UX exec auxiliary header carried by executables: segment
// sizes, their memory and file locations, and the program entry point.
type ExecAux struct {
	TextSize    uint32 `json:"text_size"`
	TextMem     uint32 `json:"text_mem"`
	TextFile    uint32 `json:"text_file"`
	DataSize    uint32 `json:"data_size"`
	DataMem     uint32 `json:"data_mem"`
	DataFile    uint32 `json:"data_file"`
	BSSSize     uint32 `json:"bss_size"`
	EntryOffset uint32 `json:"entry"`
	Flags       uint32 `json:"flags"`
	DataFill    uint32 `json:"bfill"`
}

const execAuxSize = 40

// AuxHeaders holds the recognized auxiliary headers; unknown types are
// skipped by their declared length.
type AuxHeaders struct {
	Exec    *ExecAux
	Version string
	Skipped int
}

// parseAuxHeaders walks the aux header area. Damage inside the area is
// tolerated in best-effort mode: the walk stops with a diagnostic rather than
// failing the whole file.
func parseAuxHeaders(data []byte, loc, size uint32, mode somfmt.Mode, diags *somfmt.Diags) (*AuxHeaders, error) {
	out := &AuxHeaders{}
	if size == 0 {
		return out, nil
	}
	if uint64(loc)+uint64(size) > uint64(len(data)) {
		if mode == somfmt.ModeStrict {
			return nil, fmt.Errorf("som: aux header area [%#x,+%#x) outside file", loc, size)
		}
		diags.Addf(uint64(loc), somfmt.DiagTruncated, "aux header area extends past end of file")
		return out, nil
	}

	s := somfmt.NewStreamAt(data[:loc+size], int(loc))
	for s.Remaining() >= auxIDSize {
		typeWord, _ := s.ReadUint32()
		length, _ := s.ReadUint32()
		body, err := s.ReadBytes(int(length))
		if err != nil {
			if mode == somfmt.ModeStrict {
				return nil, fmt.Errorf("som: aux header type %d: declared length %d overruns area", typeWord&auxTypeMask, length)
			}
			diags.Addf(uint64(s.Position()), somfmt.DiagTruncated,
				"aux header type %d length %d overruns area", typeWord&auxTypeMask, length)
			return out, nil
		}

		switch typeWord & auxTypeMask {
		case AuxExecType:
			if len(body) < execAuxSize {
				diags.Addf(uint64(s.Position()), somfmt.DiagTruncated,
					"exec aux header %d bytes, want %d", len(body), execAuxSize)
				continue
			}
			out.Exec = &ExecAux{
				TextSize:    binary.BigEndian.Uint32(body[0:]),
				TextMem:     binary.BigEndian.Uint32(body[4:]),
				TextFile:    binary.BigEndian.Uint32(body[8:]),
				DataSize:    binary.BigEndian.Uint32(body[12:]),
				DataMem:     binary.BigEndian.Uint32(body[16:]),
				DataFile:    binary.BigEndian.Uint32(body[20:]),
				BSSSize:     binary.BigEndian.Uint32(body[24:]),
				EntryOffset: binary.BigEndian.Uint32(body[28:]),
				Flags:       binary.BigEndian.Uint32(body[32:]),
				DataFill:    binary.BigEndian.Uint32(body[36:]),
			}
		case AuxVersionType:
			// A length word followed by the string, padded to a word.
			if len(body) < 4 {
				diags.Addf(uint64(s.Position()), somfmt.DiagTruncated, "version aux header too short")
				continue
			}
			n := binary.BigEndian.Uint32(body[0:])
			if int(n) > len(body)-4 {
				n = uint32(len(body) - 4)
			}
			out.Version = string(body[4 : 4+n])
		default:
			out.Skipped++
		}
	}
	return out, nil
}

// appendAuxHeaders serializes the recognized aux headers in emission order.
func appendAuxHeaders(buf []byte, a *AuxHeaders) []byte {
	if a == nil {
		return buf
	}
	if a.Exec != nil {
		buf = binary.BigEndian.AppendUint32(buf, auxMandatory|AuxExecType)
		buf = binary.BigEndian.AppendUint32(buf, execAuxSize)
		for _, v := range []uint32{
			a.Exec.TextSize, a.Exec.TextMem, a.Exec.TextFile,
			a.Exec.DataSize, a.Exec.DataMem, a.Exec.DataFile,
			a.Exec.BSSSize, a.Exec.EntryOffset, a.Exec.Flags, a.Exec.DataFill,
		} {
			buf = binary.BigEndian.AppendUint32(buf, v)
		}
	}
	if a.Version != "" {
		body := len(a.Version) + 4
		padded := (body + 3) &^ 3
		buf = binary.BigEndian.AppendUint32(buf, AuxVersionType)
		buf = binary.BigEndian.AppendUint32(buf, uint32(padded))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(a.Version)))
		buf = append(buf, a.Version...)
		for i := body; i < padded; i++ {
			buf = append(buf, 0)
		}
	}
	return buf
}
