package sim

import (
	"encoding/hex"
	"errors"
)

// Flags are the access conditions of an elementary file.
type Flags uint8

const (
	ReadOnly Flags = 1 << iota
	NeedPIN
)

// padByte fills unused file space, as on a blank card.
const padByte = 0xff

var (
	errOddHex     = errors.New("hex payload has odd length")
	errBadHex     = errors.New("payload is not hex")
	errTooLong    = errors.New("payload longer than record")
	errBadRecord  = errors.New("record number out of range")
	errRecordKind = errors.New("file is not record structured")
)

// File is an elementary file: either *Transparent (one blob) or *Records
// (fixed-size records). Callers switch on the concrete type.
type File interface {
	ID() uint16
	Flags() Flags
	// Size is the number of bytes the file occupies.
	Size() int
}

// Transparent is a dedicated (binary) EF.
type Transparent struct {
	id    uint16
	flags Flags
	data  []byte
}

// NewTransparent creates a binary EF holding data.
func NewTransparent(id uint16, flags Flags, data []byte) *Transparent {
	return &Transparent{id: id, flags: flags, data: append([]byte(nil), data...)}
}

func (f *Transparent) ID() uint16 { return f.id }
func (f *Transparent) Flags() Flags { return f.flags }
func (f *Transparent) Size() int { return len(f.data) }

// Bytes returns a copy of the content.
func (f *Transparent) Bytes() []byte { return append([]byte(nil), f.data...) }

// update replaces the content; the blob is reallocated when the length
// changes.
func (f *Transparent) update(hexData string) error {
	data, err := decodeHex(hexData)
	if err != nil {
		return err
	}
	if len(data) != len(f.data) {
		f.data = make([]byte, len(data))
	}
	copy(f.data, data)
	return nil
}

// Records is a linear fixed or cyclic EF.
type Records struct {
	id      uint16
	flags   Flags
	cyclic  bool
	recLen  int
	records [][]byte
}

// NewLinear creates an empty linear fixed EF with records of recLen bytes.
func NewLinear(id uint16, flags Flags, recLen int) *Records {
	return &Records{id: id, flags: flags, recLen: recLen}
}

// NewCyclic creates an empty cyclic EF.
func NewCyclic(id uint16, flags Flags, recLen int) *Records {
	return &Records{id: id, flags: flags, recLen: recLen, cyclic: true}
}

func (f *Records) ID() uint16 { return f.id }
func (f *Records) Flags() Flags { return f.flags }
func (f *Records) Size() int { return f.recLen * len(f.records) }
func (f *Records) RecordLen() int { return f.recLen }
func (f *Records) Count() int { return len(f.records) }
func (f *Records) Cyclic() bool { return f.cyclic }

// Record returns a copy of record n (1-based).
func (f *Records) Record(n int) ([]byte, error) {
	if n < 1 || n > len(f.records) {
		return nil, errBadRecord
	}
	return append([]byte(nil), f.records[n-1]...), nil
}

// Put writes hexData at the start of record n, growing the file with padded
// records when n is past the end. Bytes beyond the payload keep their value.
func (f *Records) Put(n int, hexData string) error {
	if n < 1 || n > 0xff {
		return errBadRecord
	}
	data, err := decodeHex(hexData)
	if err != nil {
		return err
	}
	if len(data) > f.recLen {
		return errTooLong
	}
	for len(f.records) < n {
		rec := make([]byte, f.recLen)
		for i := range rec {
			rec[i] = padByte
		}
		f.records = append(f.records, rec)
	}
	copy(f.records[n-1], data)
	return nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 == 1 {
		return nil, errOddHex
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errBadHex
	}
	return data, nil
}
