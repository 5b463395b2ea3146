package serial

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
)

// Writer encodes primitives and registered elements. The first error is
// sticky: once set, subsequent writes are no-ops and Err reports it.
type Writer struct {
	w       *bufio.Writer
	reg     *Registry
	strings map[string]int
	buf     []byte
	err     error
}

// NewWriter creates a Writer on w using reg for element type IDs.
func NewWriter(w io.Writer, reg *Registry) *Writer {
	sw := &Writer{
		w:       bufio.NewWriter(w),
		reg:     reg,
		strings: make(map[string]int, len(reg.dictionary)),
		buf:     make([]byte, 0, 8),
	}
	for _, s := range reg.dictionary {
		sw.intern(s)
	}
	return sw
}

// Err returns the first error encountered.
func (w *Writer) Err() error {
	return w.err
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(p); err != nil {
		w.err = err
	}
}

// WriteVarInt writes v as a 29-bit variable-length integer.
func (w *Writer) WriteVarInt(v int) {
	if err := checkVarInt(v); err != nil {
		w.fail(err)
		return
	}
	w.buf = appendVarInt(w.buf[:0], uint32(v))
	w.write(w.buf)
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf[:0], v)
	w.write(w.buf)
}

// WriteBool writes b as a single byte.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteUint8(1)
		return
	}
	w.WriteUint8(0)
}

// WriteInt32 writes v in little-endian order.
func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf[:0], uint32(v))
	w.write(w.buf)
}

// WriteInt64 writes v in little-endian order.
func (w *Writer) WriteInt64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf[:0], uint64(v))
	w.write(w.buf)
}

// WriteFloat64 writes the IEEE 754 bits of v in little-endian order.
func (w *Writer) WriteFloat64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf[:0], math.Float64bits(v))
	w.write(w.buf)
}

func (w *Writer) intern(s string) {
	if _, ok := w.strings[s]; !ok {
		w.strings[s] = len(w.strings)
	}
}

// WriteString writes s inline on first occurrence and as a back-reference to
// the string table afterwards. Empty strings are never interned.
func (w *Writer) WriteString(s string) {
	if s == "" {
		w.WriteVarInt(1)
		return
	}
	if idx, ok := w.strings[s]; ok {
		w.WriteVarInt(idx << 1)
		return
	}
	if len(s) > MaxVarInt>>1 {
		w.fail(fmt.Errorf("%w: string of %d bytes too long", ErrInvalidData, len(s)))
		return
	}
	w.WriteVarInt(len(s)<<1 | 1)
	w.write([]byte(s))
	w.intern(s)
}

// WriteElement writes e prefixed by its registered type ID. Factored elements
// also carry their factor before the payload.
func (w *Writer) WriteElement(e Element) {
	if w.err != nil {
		return
	}
	reg, err := w.reg.lookup(e)
	if err != nil {
		w.fail(err)
		return
	}
	w.WriteVarInt(reg.id)
	if reg.factored != nil {
		w.WriteElement(e.(FactoredElement).Factor())
	}
	e.Encode(w)
}

type run struct {
	reg    *registration
	factor Element
	items  []Element
}

// WriteElements writes a collection grouped into consecutive runs of equal
// type and factor. Element order is preserved.
func (w *Writer) WriteElements(elements []Element) {
	if w.err != nil {
		return
	}
	var runs []*run
	for _, e := range elements {
		reg, err := w.reg.lookup(e)
		if err != nil {
			w.fail(err)
			return
		}
		var factor Element
		if reg.factored != nil {
			factor = e.(FactoredElement).Factor()
		}
		if n := len(runs); n > 0 && runs[n-1].reg == reg && sameFactor(runs[n-1].factor, factor) {
			runs[n-1].items = append(runs[n-1].items, e)
			continue
		}
		runs = append(runs, &run{reg: reg, factor: factor, items: []Element{e}})
	}
	w.WriteVarInt(len(runs))
	for _, r := range runs {
		w.WriteVarInt(r.reg.id)
		if r.reg.factored != nil {
			w.WriteElement(r.factor)
		}
		w.WriteVarInt(len(r.items))
		for _, e := range r.items {
			e.Encode(w)
		}
	}
}

// WriteCollection writes a typed slice with WriteElements.
func WriteCollection[T Element](w *Writer, items []T) {
	elements := make([]Element, len(items))
	for i, it := range items {
		elements[i] = it
	}
	w.WriteElements(elements)
}

func sameFactor(a, b Element) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
