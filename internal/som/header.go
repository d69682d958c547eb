// Package som implements the SOM object-file container: the 128-byte file
// header, auxiliary headers, space/subspace/symbol dictionaries, string
// tables, and the layout engine that writes them back out. Relocation streams
// themselves are handled by internal/fixup; this package locates them and
// hands them over.
package som

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed file header size: 32 big-endian words, the
	// last being an XOR checksum of the preceding 31.
	HeaderSize = 128
)

// Magic numbers (a_magic field).
const (
	MagicRelocatable = 0x0106
	MagicExec        = 0x0107
	MagicShared      = 0x0108
	MagicDemand      = 0x010b
)

// System ids (target architecture).
const (
	SystemPARISC10 = 0x020b
	SystemPARISC11 = 0x0210
	SystemPARISC20 = 0x0214
)

// Version ids.
const (
	VersionOld = 85082112
	VersionNew = 87102412
)

var (
	ErrShortHeader = errors.New("som: file too small for header")
	ErrBadMagic    = errors.New("som: unrecognized magic number")
	ErrBadVersion  = errors.New("som: unrecognized version id")
	ErrChecksum    = errors.New("som: header checksum mismatch")
)

// Header is the SOM file header. All location fields are absolute file
// offsets; the *Total fields count records, the *Size fields count bytes.
type Header struct {
	SystemID  uint16
	Magic     uint16
	VersionID uint32

	FileTimeSecs  uint32
	FileTimeNanos uint32

	EntrySpace    uint32
	EntrySubspace uint32
	EntryOffset   uint32

	AuxHeaderLocation uint32
	AuxHeaderSize     uint32

	SOMLength  uint32
	PresumedDP uint32

	SpaceLocation    uint32
	SpaceTotal       uint32
	SubspaceLocation uint32
	SubspaceTotal    uint32

	LoaderFixupLocation uint32
	LoaderFixupTotal    uint32

	SpaceStringsLocation uint32
	SpaceStringsSize     uint32

	InitArrayLocation uint32
	InitArrayTotal    uint32

	CompilerLocation uint32
	CompilerTotal    uint32

	SymbolLocation uint32
	SymbolTotal    uint32

	FixupRequestLocation uint32
	FixupRequestTotal    uint32

	SymbolStringsLocation uint32
	SymbolStringsSize     uint32

	UnloadableSpLocation uint32
	UnloadableSpSize     uint32

	Checksum uint32
}

// checksumOf XORs the first 31 words of a serialized header. A valid header
// stores that value in word 32, so XORing all 32 words yields zero.
func checksumOf(buf []byte) uint32 {
	var sum uint32
	for i := 0; i < HeaderSize-4; i += 4 {
		sum ^= binary.BigEndian.Uint32(buf[i:])
	}
	return sum
}

func validMagic(m uint16) bool {
	switch m {
	case MagicRelocatable, MagicExec, MagicShared, MagicDemand:
		return true
	}
	return false
}

// ParseHeader decodes and validates the file header. A checksum mismatch is
// reported via the returned bool so callers can choose to tolerate it; magic
// and version problems are hard errors.
func ParseHeader(data []byte) (*Header, bool, error) {
	if len(data) < HeaderSize {
		return nil, false, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(data))
	}
	h := &Header{
		SystemID:  binary.BigEndian.Uint16(data[0:]),
		Magic:     binary.BigEndian.Uint16(data[2:]),
		VersionID: binary.BigEndian.Uint32(data[4:]),

		FileTimeSecs:  binary.BigEndian.Uint32(data[8:]),
		FileTimeNanos: binary.BigEndian.Uint32(data[12:]),

		EntrySpace:    binary.BigEndian.Uint32(data[16:]),
		EntrySubspace: binary.BigEndian.Uint32(data[20:]),
		EntryOffset:   binary.BigEndian.Uint32(data[24:]),

		AuxHeaderLocation: binary.BigEndian.Uint32(data[28:]),
		AuxHeaderSize:     binary.BigEndian.Uint32(data[32:]),

		SOMLength:  binary.BigEndian.Uint32(data[36:]),
		PresumedDP: binary.BigEndian.Uint32(data[40:]),

		SpaceLocation:    binary.BigEndian.Uint32(data[44:]),
		SpaceTotal:       binary.BigEndian.Uint32(data[48:]),
		SubspaceLocation: binary.BigEndian.Uint32(data[52:]),
		SubspaceTotal:    binary.BigEndian.Uint32(data[56:]),

		LoaderFixupLocation: binary.BigEndian.Uint32(data[60:]),
		LoaderFixupTotal:    binary.BigEndian.Uint32(data[64:]),

		SpaceStringsLocation: binary.BigEndian.Uint32(data[68:]),
		SpaceStringsSize:     binary.BigEndian.Uint32(data[72:]),

		InitArrayLocation: binary.BigEndian.Uint32(data[76:]),
		InitArrayTotal:    binary.BigEndian.Uint32(data[80:]),

		CompilerLocation: binary.BigEndian.Uint32(data[84:]),
		CompilerTotal:    binary.BigEndian.Uint32(data[88:]),

		SymbolLocation: binary.BigEndian.Uint32(data[92:]),
		SymbolTotal:    binary.BigEndian.Uint32(data[96:]),

		FixupRequestLocation: binary.BigEndian.Uint32(data[100:]),
		FixupRequestTotal:    binary.BigEndian.Uint32(data[104:]),

		SymbolStringsLocation: binary.BigEndian.Uint32(data[108:]),
		SymbolStringsSize:     binary.BigEndian.Uint32(data[112:]),

		UnloadableSpLocation: binary.BigEndian.Uint32(data[116:]),
		UnloadableSpSize:     binary.BigEndian.Uint32(data[120:]),

		Checksum: binary.BigEndian.Uint32(data[124:]),
	}
	if !validMagic(h.Magic) {
		return nil, false, fmt.Errorf("%w: %#04x", ErrBadMagic, h.Magic)
	}
	if h.VersionID != VersionOld && h.VersionID != VersionNew {
		return nil, false, fmt.Errorf("%w: %d", ErrBadVersion, h.VersionID)
	}
	checksumOK := checksumOf(data) == h.Checksum
	return h, checksumOK, nil
}

// Put serializes the header into buf, computing and storing the checksum.
// buf must hold at least HeaderSize bytes.
func (h *Header) Put(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:], h.SystemID)
	binary.BigEndian.PutUint16(buf[2:], h.Magic)
	binary.BigEndian.PutUint32(buf[4:], h.VersionID)
	binary.BigEndian.PutUint32(buf[8:], h.FileTimeSecs)
	binary.BigEndian.PutUint32(buf[12:], h.FileTimeNanos)
	binary.BigEndian.PutUint32(buf[16:], h.EntrySpace)
	binary.BigEndian.PutUint32(buf[20:], h.EntrySubspace)
	binary.BigEndian.PutUint32(buf[24:], h.EntryOffset)
	binary.BigEndian.PutUint32(buf[28:], h.AuxHeaderLocation)
	binary.BigEndian.PutUint32(buf[32:], h.AuxHeaderSize)
	binary.BigEndian.PutUint32(buf[36:], h.SOMLength)
	binary.BigEndian.PutUint32(buf[40:], h.PresumedDP)
	binary.BigEndian.PutUint32(buf[44:], h.SpaceLocation)
	binary.BigEndian.PutUint32(buf[48:], h.SpaceTotal)
	binary.BigEndian.PutUint32(buf[52:], h.SubspaceLocation)
	binary.BigEndian.PutUint32(buf[56:], h.SubspaceTotal)
	binary.BigEndian.PutUint32(buf[60:], h.LoaderFixupLocation)
	binary.BigEndian.PutUint32(buf[64:], h.LoaderFixupTotal)
	binary.BigEndian.PutUint32(buf[68:], h.SpaceStringsLocation)
	binary.BigEndian.PutUint32(buf[72:], h.SpaceStringsSize)
	binary.BigEndian.PutUint32(buf[76:], h.InitArrayLocation)
	binary.BigEndian.PutUint32(buf[80:], h.InitArrayTotal)
	binary.BigEndian.PutUint32(buf[84:], h.CompilerLocation)
	binary.BigEndian.PutUint32(buf[88:], h.CompilerTotal)
	binary.BigEndian.PutUint32(buf[92:], h.SymbolLocation)
	binary.BigEndian.PutUint32(buf[96:], h.SymbolTotal)
	binary.BigEndian.PutUint32(buf[100:], h.FixupRequestLocation)
	binary.BigEndian.PutUint32(buf[104:], h.FixupRequestTotal)
	binary.BigEndian.PutUint32(buf[108:], h.SymbolStringsLocation)
	binary.BigEndian.PutUint32(buf[112:], h.SymbolStringsSize)
	binary.BigEndian.PutUint32(buf[116:], h.UnloadableSpLocation)
	binary.BigEndian.PutUint32(buf[120:], h.UnloadableSpSize)
	h.Checksum = checksumOf(buf)
	binary.BigEndian.PutUint32(buf[124:], h.Checksum)
}

// MagicName renders the magic number for display.
func (h *Header) MagicName() string {
	switch h.Magic {
	case MagicRelocatable:
		return "relocatable"
	case MagicExec:
		return "executable"
	case MagicShared:
		return "shared executable"
	case MagicDemand:
		return "demand-load executable"
	}
	return fmt.Sprintf("unknown(%#04x)", h.Magic)
}

// SystemName renders the system id for display.
func (h *Header) SystemName() string {
	switch h.SystemID {
	case SystemPARISC10:
		return "PA-RISC 1.0"
	case SystemPARISC11:
		return "PA-RISC 1.1"
	case SystemPARISC20:
		return "PA-RISC 2.0"
	}
	return fmt.Sprintf("unknown(%#04x)", h.SystemID)
}
