package fixup

// Call-argument relocation bit packing.
//
// A call relocation carries 10 argument-relocation bits: four 2-bit argument
// slots (bits [9:8], [7:6], [5:4], [3:2]) and a 2-bit return slot (bits
// [1:0]). The stream encodes them in one of two ways: a "simple" form where
// the opcode offset directly names one of five common argument patterns
// (optionally +5 for a live return slot), and a "hard" form that packs two
// independent argument-slot pairs in a mixed base-40 / base-4 radix with 0xE
// as the "both slots carry a double" sentinel.

// simpleArgPatterns[n] is the arg-bits pattern for n register arguments.
var simpleArgPatterns = [5]uint32{
	0,
	1 << 8,
	1<<8 | 1<<6,
	1<<8 | 1<<6 | 1<<4,
	1<<8 | 1<<6 | 1<<4 | 1<<2,
}

// simpleCallType maps arg-reloc bits to the simple encoding's type value
// 0..9, or -1 when the pattern needs the hard encoding.
func simpleCallType(argBits uint32) int {
	rtn := argBits & 0x3
	if rtn > 1 {
		return -1
	}
	for n, pattern := range simpleArgPatterns {
		if argBits&^uint32(1) == pattern {
			if rtn != 0 {
				return n + 5
			}
			return n
		}
	}
	return -1
}

// decodeSimpleArgBits inverts simpleCallType.
func decodeSimpleArgBits(callType int64) uint32 {
	var bits uint32
	if callType > 4 {
		callType -= 5
		bits |= 1
	}
	if callType >= 0 && callType <= 4 {
		bits |= simpleArgPatterns[callType]
	}
	return bits
}

// hardCallType packs arg-reloc bits into the hard encoding's type value.
// Each pair of argument slots collapses to 3*hi+lo (or 9 when the four bits
// are the 0xE double-precision sentinel); the first pair scales by 40, the
// second by 4, and the return slot rides in the low two bits.
func hardCallType(argBits uint32) int {
	t := int(argBits & 0x3)
	if argBits>>6&0xf == 0xe {
		t += 9 * 40
	} else {
		t += (3*int(argBits>>8&3) + int(argBits>>6&3)) * 40
	}
	if argBits>>2&0xf == 0xe {
		t += 9 * 4
	} else {
		t += (3*int(argBits>>4&3) + int(argBits>>2&3)) * 4
	}
	return t
}

// decodeHardArgBits inverts hardCallType.
func decodeHardArgBits(callType int64) uint32 {
	bits := uint32(callType) & 0x3
	tmp := callType >> 2

	tmp1 := tmp / 10
	tmp -= tmp1 * 10
	if tmp1 == 9 {
		bits |= 0xe << 6
	} else {
		tmp2 := tmp1 / 3
		tmp1 -= tmp2 * 3
		bits |= uint32(tmp2)<<8 | uint32(tmp1)<<6
	}

	if tmp == 9 {
		bits |= 0xe << 2
	} else {
		tmp2 := tmp / 3
		tmp -= tmp2 * 3
		bits |= uint32(tmp2)<<4 | uint32(tmp)<<2
	}
	return bits
}
