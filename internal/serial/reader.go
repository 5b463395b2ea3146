package serial

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Reader decodes data produced by Writer. Like Writer, its first error is sticky.
type Reader struct {
	r       *bufio.Reader
	reg     *Registry
	strings []string
	buf     [8]byte
	err     error
}

// NewReader creates a Reader on r. reg must match the registry used for writing.
func NewReader(r io.Reader, reg *Registry) *Reader {
	return &Reader{
		r:       bufio.NewReader(r),
		reg:     reg,
		strings: append(make([]string, 0, len(reg.dictionary)), reg.dictionary...),
	}
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(err error) {
	if r.err != nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: %w", ErrInvalidData, io.ErrUnexpectedEOF)
	}
	r.err = err
}

func (r *Reader) read(n int) []byte {
	if r.err != nil {
		return nil
	}
	if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
		r.fail(err)
		return nil
	}
	return r.buf[:n]
}

// ReadVarInt reads a 29-bit variable-length integer.
func (r *Reader) ReadVarInt() int {
	if r.err != nil {
		return 0
	}
	v, err := readVarInt(r.r)
	if err != nil {
		r.fail(err)
		return 0
	}
	return int(v)
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() uint8 {
	b := r.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadBool reads a byte written by WriteBool.
func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

// ReadInt32 reads a little-endian int32.
func (r *Reader) ReadInt32() int32 {
	b := r.read(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

// ReadInt64 reads a little-endian int64.
func (r *Reader) ReadInt64() int64 {
	b := r.read(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// ReadFloat64 reads a little-endian IEEE 754 double.
func (r *Reader) ReadFloat64() float64 {
	b := r.read(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// ReadString reads an inline or back-referenced string.
func (r *Reader) ReadString() string {
	h := r.ReadVarInt()
	if r.err != nil {
		return ""
	}
	if h&1 == 0 {
		idx := h >> 1
		if idx >= len(r.strings) {
			r.fail(fmt.Errorf("%w: string reference %d out of range", ErrInvalidData, idx))
			return ""
		}
		return r.strings[idx]
	}
	n := h >> 1
	if n == 0 {
		return ""
	}
	// The buffer grows with the bytes actually read, so a corrupt length
	// fails at end of input instead of allocating up front.
	var b strings.Builder
	if _, err := io.CopyN(&b, r.r, int64(n)); err != nil {
		r.fail(err)
		return ""
	}
	s := b.String()
	r.strings = append(r.strings, s)
	return s
}

// ReadElement reads an element written by WriteElement.
func (r *Reader) ReadElement() Element {
	id := r.ReadVarInt()
	if r.err != nil {
		return nil
	}
	reg, err := r.reg.byTypeID(id)
	if err != nil {
		r.fail(err)
		return nil
	}
	if reg.factored != nil {
		factor := r.ReadElement()
		if r.err != nil {
			return nil
		}
		return r.decode(reg, factor)
	}
	return r.decode(reg, nil)
}

func (r *Reader) decode(reg *registration, factor Element) Element {
	var (
		e   Element
		err error
	)
	if reg.factored != nil {
		e, err = reg.factored(factor, r)
	} else {
		e, err = reg.decode(r)
	}
	if err != nil {
		r.fail(err)
		return nil
	}
	if r.err != nil {
		return nil
	}
	return e
}

// ReadElements reads a collection written by WriteElements.
func (r *Reader) ReadElements() []Element {
	runs := r.ReadVarInt()
	var out []Element
	for i := 0; i < runs && r.err == nil; i++ {
		reg, err := r.reg.byTypeID(r.ReadVarInt())
		if r.err != nil {
			break
		}
		if err != nil {
			r.fail(err)
			break
		}
		var factor Element
		if reg.factored != nil {
			factor = r.ReadElement()
		}
		n := r.ReadVarInt()
		for j := 0; j < n && r.err == nil; j++ {
			if e := r.decode(reg, factor); e != nil {
				out = append(out, e)
			}
		}
	}
	if r.err != nil {
		return nil
	}
	return out
}

// ReadCollection reads a collection and asserts every element to T.
func ReadCollection[T Element](r *Reader) []T {
	elements := r.ReadElements()
	out := make([]T, 0, len(elements))
	for _, e := range elements {
		t, ok := e.(T)
		if !ok {
			r.fail(fmt.Errorf("%w: unexpected element %T", ErrInvalidData, e))
			return nil
		}
		out = append(out, t)
	}
	return out
}
