package serial

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type name struct{ value string }

func (n name) Encode(w *Writer) { w.WriteString(n.value) }

func decodeName(r *Reader) (Element, error) { return name{value: r.ReadString()}, nil }

type member struct {
	owner name
	field string
	size  int32
}

func (m member) Factor() Element { return m.owner }

func (m member) Encode(w *Writer) {
	w.WriteString(m.field)
	w.WriteInt32(m.size)
}

func decodeMember(factor Element, r *Reader) (Element, error) {
	owner, ok := factor.(name)
	if !ok {
		return nil, ErrInvalidData
	}
	return member{owner: owner, field: r.ReadString(), size: r.ReadInt32()}, nil
}

type unregistered struct{}

func (unregistered) Encode(*Writer) {}

func testRegistry(dict ...string) *Registry {
	reg := NewRegistry(dict...)
	reg.Register(name{}, decodeName)
	reg.RegisterFactored(member{}, decodeMember)
	return reg
}

func TestVarIntEncoding(t *testing.T) {
	tests := []struct {
		value int
		want  []byte
	}{
		{0, []byte{0x00}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x81, 0x00}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x81, 0x80, 0x00}},
		{0x1fffff, []byte{0xff, 0xff, 0x7f}},
		{0x200000, []byte{0x80, 0xc0, 0x80, 0x00}},
		{MaxVarInt, []byte{0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		w := NewWriter(&buf, NewRegistry())
		w.WriteVarInt(tt.value)
		if err := w.Flush(); err != nil {
			t.Fatalf("WriteVarInt(%d): %v", tt.value, err)
		}
		if !bytes.Equal(buf.Bytes(), tt.want) {
			t.Errorf("WriteVarInt(%d) = % x, want % x", tt.value, buf.Bytes(), tt.want)
		}

		r := NewReader(bytes.NewReader(buf.Bytes()), NewRegistry())
		if got := r.ReadVarInt(); got != tt.value || r.Err() != nil {
			t.Errorf("ReadVarInt() = %d, %v; want %d", got, r.Err(), tt.value)
		}
	}
}

func TestVarIntOutOfRange(t *testing.T) {
	for _, v := range []int{-1, MaxVarInt + 1} {
		w := NewWriter(&bytes.Buffer{}, NewRegistry())
		w.WriteVarInt(v)
		if !errors.Is(w.Err(), ErrInvalidData) {
			t.Errorf("WriteVarInt(%d) error = %v, want ErrInvalidData", v, w.Err())
		}
	}
}

func TestStringInterning(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, NewRegistry())
	w.WriteString("ab")
	w.WriteString("")
	w.WriteString("ab")
	w.WriteString("cd")
	w.WriteString("cd")
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	want := []byte{0x05, 'a', 'b', 0x01, 0x00, 0x05, 'c', 'd', 0x02}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded = % x, want % x", buf.Bytes(), want)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), NewRegistry())
	var got []string
	for i := 0; i < 5; i++ {
		got = append(got, r.ReadString())
	}
	if diff := cmp.Diff([]string{"ab", "", "ab", "cd", "cd"}, got); diff != "" {
		t.Errorf("ReadString mismatch (-want +got):\n%s", diff)
	}
}

func TestDictionarySeedsStringTable(t *testing.T) {
	reg := NewRegistry("string", "error", "string")

	var buf bytes.Buffer
	w := NewWriter(&buf, reg)
	w.WriteString("error")
	w.WriteString("fresh")
	w.WriteString("fresh")
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	// "error" is index 1 of the de-duplicated dictionary, "fresh" becomes index 2.
	want := []byte{0x02, 0x0b, 'f', 'r', 'e', 's', 'h', 0x04}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded = % x, want % x", buf.Bytes(), want)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), reg)
	for _, s := range []string{"error", "fresh", "fresh"} {
		if got := r.ReadString(); got != s {
			t.Errorf("ReadString() = %q, want %q", got, s)
		}
	}
}

func TestElementCollectionRoundTrip(t *testing.T) {
	reg := testRegistry()
	a, b := name{"pkg/a"}, name{"pkg/b"}
	in := []Element{
		member{owner: a, field: "X", size: 1},
		member{owner: a, field: "Y", size: 2},
		member{owner: b, field: "X", size: 3},
		name{"loose"},
		member{owner: a, field: "Z", size: -4},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, reg)
	w.WriteElements(in)
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), reg)
	out := r.ReadElements()
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out, cmp.AllowUnexported(name{}, member{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Four runs: [a:X,Y] [b:X] [loose] [a:Z]
	if got := buf.Bytes()[0]; got != 4 {
		t.Errorf("run count = %d, want 4", got)
	}
}

func TestFactorWrittenOncePerRun(t *testing.T) {
	reg := testRegistry()
	owner := name{"a-rather-long-owner-name"}

	encode := func(n int) int {
		items := make([]member, n)
		for i := range items {
			items[i] = member{owner: owner, field: "f"}
		}
		var buf bytes.Buffer
		w := NewWriter(&buf, reg)
		WriteCollection(w, items)
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		return buf.Len()
	}

	one, three := encode(1), encode(3)
	// Each extra element adds the interned field reference plus four bytes of size.
	if three-one != 2*(1+4) {
		t.Errorf("size growth = %d bytes, want %d", three-one, 2*(1+4))
	}
}

func TestUnregisteredElement(t *testing.T) {
	_, err := Marshal(testRegistry(), unregistered{})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Marshal() error = %v, want ErrUnknownType", err)
	}
}

func TestUnknownTypeID(t *testing.T) {
	_, err := Unmarshal(testRegistry(), []byte{0x7f})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Unmarshal() error = %v, want ErrUnknownType", err)
	}
}

func TestTruncatedInput(t *testing.T) {
	reg := testRegistry()
	data, err := Marshal(reg, name{"truncated"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Unmarshal(reg, data[:len(data)-3])
	if !errors.Is(err, ErrInvalidData) {
		t.Errorf("Unmarshal() error = %v, want ErrInvalidData", err)
	}
}

func TestStringLengthBeyondInput(t *testing.T) {
	// A header announcing a string of MaxVarInt>>1 bytes followed by two bytes.
	data := appendVarInt(nil, MaxVarInt)
	data = append(data, 'a', 'b')
	r := NewReader(bytes.NewReader(data), testRegistry())
	if got := r.ReadString(); got != "" {
		t.Errorf("ReadString() = %q, want empty", got)
	}
	if !errors.Is(r.Err(), ErrInvalidData) {
		t.Errorf("Err() = %v, want ErrInvalidData", r.Err())
	}
}

func TestFingerprint(t *testing.T) {
	reg := testRegistry()
	f1, err := Fingerprint(reg, member{owner: name{"a"}, field: "x"})
	if err != nil {
		t.Fatal(err)
	}
	f2, _ := Fingerprint(reg, member{owner: name{"a"}, field: "x"})
	f3, _ := Fingerprint(reg, member{owner: name{"a"}, field: "y"})
	if f1 != f2 {
		t.Error("equal elements produced different fingerprints")
	}
	if f1 == f3 {
		t.Error("different elements produced the same fingerprint")
	}
}

func TestRegistryFingerprintTracksLayout(t *testing.T) {
	other := NewRegistry()
	other.RegisterFactored(member{}, decodeMember)
	other.Register(name{}, decodeName)

	if testRegistry().Fingerprint() == other.Fingerprint() {
		t.Error("registration order does not affect the registry fingerprint")
	}
	if testRegistry().Fingerprint() != testRegistry().Fingerprint() {
		t.Error("identical registries have different fingerprints")
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	reg := testRegistry()
	reg.Register(name{}, decodeName)
}
