package fixup

import (
	"errors"
	"testing"

	"somtool/internal/somfmt"
)

func TestRunArithmetic(t *testing.T) {
	// Postfix programs: registers push, digits push literals, operators
	// fold, '=' stores.
	var diags somfmt.Diags
	m := machine{diags: &diags}
	m.regs[regD] = 3

	s := somfmt.NewStream([]byte{0x12})
	// L = ((D<<8 | byte) + 1) * 4 = ((3<<8|0x12)+1)*4 = 0x313*4
	if err := m.run("LD8<b+1+4*=", s, 0x1b); err != nil {
		t.Fatal(err)
	}
	if m.regs[regL] != 0x313*4 {
		t.Errorf("L = %#x, want %#x", m.regs[regL], 0x313*4)
	}
	if m.offset != 0x313*4 {
		t.Errorf("offset = %#x, want %#x", m.offset, 0x313*4)
	}
	if m.sp != 0 {
		t.Errorf("stack not drained: sp = %d", m.sp)
	}
}

func TestRunMultiDigitLiteral(t *testing.T) {
	var diags somfmt.Diags
	m := machine{diags: &diags}
	s := somfmt.NewStream(nil)
	// Two-digit literal 16.
	if err := m.run("V16=", s, 0xc9); err != nil {
		t.Fatal(err)
	}
	if m.regs[regV] != 16 {
		t.Errorf("V = %d, want 16", m.regs[regV])
	}
}

func TestRunSignExtendsOnlyV(t *testing.T) {
	var diags somfmt.Diags
	m := machine{diags: &diags}

	// The same 0xff operand byte is signed for V and unsigned elsewhere.
	s := somfmt.NewStream([]byte{0xff, 0xff})
	if err := m.run("Vb=Sb=", s, 0xca); err != nil {
		t.Fatal(err)
	}
	if m.regs[regV] != -1 {
		t.Errorf("V = %d, want -1", m.regs[regV])
	}
	if m.regs[regS] != 0xff {
		t.Errorf("S = %d, want 255", m.regs[regS])
	}
}

func TestRunTruncatedOperand(t *testing.T) {
	var diags somfmt.Diags
	m := machine{diags: &diags}
	s := somfmt.NewStream([]byte{0x01}) // 'd' needs three bytes
	if err := m.run("Ld1+=", s, 0x1f); !errors.Is(err, ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestRunBadProgram(t *testing.T) {
	var diags somfmt.Diags
	for _, program := range []string{
		"?b=", // bad target
		"L4",  // missing '='
		"L^=", // bad operator
	} {
		m := machine{diags: &diags}
		s := somfmt.NewStream(nil)
		if err := m.run(program, s, 0); !errors.Is(err, ErrBadProgram) {
			t.Errorf("%q: got %v, want ErrBadProgram", program, err)
		}
	}
}

func TestRunStackFault(t *testing.T) {
	var diags somfmt.Diags
	m := machine{diags: &diags}
	s := somfmt.NewStream(nil)
	// '+' with one operand underflows.
	if err := m.run("L4+=", s, 0); !errors.Is(err, ErrStackFault) {
		t.Errorf("got %v, want ErrStackFault", err)
	}
}

func TestNormalizeCompOp(t *testing.T) {
	tests := []struct {
		table []int
		v     byte
		want  int
	}{
		{comp1Opcodes, 0x00, 0x00},
		{comp1Opcodes, 0x3f, 0x00}, // below the 0x40 run, floors to 0
		{comp1Opcodes, 0x44, 0x44}, // exact hit
		{comp1Opcodes, 0x5f, 0x4b}, // between 0x4b and 0x60
		{comp1Opcodes, 0xff, 0xc0},
		{comp2Opcodes, 0x81, 0x80},
		{comp3Opcodes, 0x01, 0x00},
		{comp3Opcodes, 0xf0, 0x02},
	}
	for _, tt := range tests {
		if got := normalizeCompOp(tt.table, tt.v); got != tt.want {
			t.Errorf("normalizeCompOp(%#x) = %#x, want %#x", tt.v, got, tt.want)
		}
	}
}
