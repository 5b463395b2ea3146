package serial

import (
	"fmt"
	"io"
)

// MaxVarInt is the largest value representable by the 29-bit variable-length encoding.
const MaxVarInt = 1<<29 - 1

// appendVarInt encodes v using 1 to 4 bytes. The first three bytes carry 7 bits
// each with the high bit as continuation flag; a fourth byte carries 8 bits.
func appendVarInt(dst []byte, v uint32) []byte {
	switch {
	case v < 0x80:
		return append(dst, byte(v))
	case v < 0x4000:
		return append(dst, byte(v>>7)|0x80, byte(v&0x7f))
	case v < 0x200000:
		return append(dst, byte(v>>14)|0x80, byte(v>>7)|0x80, byte(v&0x7f))
	default:
		return append(dst, byte(v>>22)|0x80, byte(v>>15)|0x80, byte(v>>8)|0x80, byte(v))
	}
}

func readVarInt(r io.ByteReader) (uint32, error) {
	var v uint32
	for i := 0; i < 3; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b&0x80 == 0 {
			return v<<7 | uint32(b), nil
		}
		v = v<<7 | uint32(b&0x7f)
	}
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return v<<8 | uint32(b), nil
}

func checkVarInt(v int) error {
	if v < 0 || v > MaxVarInt {
		return fmt.Errorf("%w: varint %d out of range [0, %d]", ErrInvalidData, v, MaxVarInt)
	}
	return nil
}
