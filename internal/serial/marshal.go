package serial

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Marshal encodes e as a standalone record with its own string table.
func Marshal(reg *Registry, e Element) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf, reg)
	w.WriteElement(e)
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", e, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a record produced by Marshal.
func Unmarshal(reg *Registry, data []byte) (Element, error) {
	r := NewReader(bytes.NewReader(data), reg)
	e := r.ReadElement()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to decode element: %w", err)
	}
	return e, nil
}

// UnmarshalAs decodes a record and asserts its type.
func UnmarshalAs[T Element](reg *Registry, data []byte) (T, error) {
	var zero T
	e, err := Unmarshal(reg, data)
	if err != nil {
		return zero, err
	}
	t, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("%w: decoded %T, want %T", ErrInvalidData, e, zero)
	}
	return t, nil
}

// Fingerprint returns a hex digest of the canonical encoding of e. Two
// elements with equal fingerprints are structurally identical.
func Fingerprint(reg *Registry, e Element) (string, error) {
	data, err := Marshal(reg, e)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
