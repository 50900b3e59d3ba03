package internal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	jsoniter "github.com/json-iterator/go"
)

// Kind tells a put from a tombstone. There are exactly two kinds.
type Kind uint8

const (
	KindPut Kind = iota + 1
	KindTombstone
)

func (k Kind) String() string {
	switch k {
	case KindPut:
		return "put"
	case KindTombstone:
		return "del"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func parseKind(op string) (Kind, bool) {
	switch op {
	case "put":
		return KindPut, true
	case "del":
		return KindTombstone, true
	default:
		return 0, false
	}
}

// Record is one immutable log entry.
type Record struct {
	Kind  Kind
	Key   string
	Value string
}

func PutRecord(key, value string) Record {
	return Record{Kind: KindPut, Key: key, Value: value}
}

func TombstoneRecord(key string) Record {
	return Record{Kind: KindTombstone, Key: key}
}

var recordJSON = jsoniter.Config{
	EscapeHTML:              false,
	MarshalFloatWith6Digits: false,
	DisallowUnknownFields:   true,
	CaseSensitive:           true,
	SortMapKeys:             false,
}.Froze()

// wireRecord is the on-disk JSON object. Records are written back to back
// with no separator; JSON's own nesting tells where each one ends.
type wireRecord struct {
	Op    string  `json:"op"`
	Key   string  `json:"key"`
	Value *string `json:"value,omitempty"`
	Sum   uint64  `json:"sum"`
}

func checksum(kind Kind, key, value string) uint64 {
	var lenBuf [binary.MaxVarintLen64]byte
	d := xxhash.New()
	d.Write([]byte{byte(kind)})
	n := binary.PutUvarint(lenBuf[:], uint64(len(key)))
	d.Write(lenBuf[:n])
	d.WriteString(key)
	d.WriteString(value)
	return d.Sum64()
}

func encodeRecord(r Record) ([]byte, error) {
	w := wireRecord{
		Op:  r.Kind.String(),
		Key: r.Key,
		Sum: checksum(r.Kind, r.Key, r.Value),
	}
	switch r.Kind {
	case KindPut:
		value := r.Value
		w.Value = &value
	case KindTombstone:
	default:
		return nil, fmt.Errorf("can not encode record of %s", r.Kind)
	}
	return recordJSON.Marshal(&w)
}

// decodeError is returned when bytes are present but are not a valid record.
type decodeError struct{ reason string }

func (e *decodeError) Error() string { return e.reason }

// truncatedTail is returned by the scanner when input ends inside a record.
type truncatedTail struct{ size int64 }

func (e *truncatedTail) Error() string {
	return fmt.Sprintf("input ends inside a record after %d bytes", e.size)
}

// unmarshalRecord turns the bytes of exactly one JSON value into a Record
// and verifies its checksum.
func unmarshalRecord(raw []byte) (Record, error) {
	var w wireRecord
	if err := recordJSON.Unmarshal(raw, &w); err != nil {
		return Record{}, &decodeError{fmt.Sprintf("invalid record: %v", err)}
	}

	kind, ok := parseKind(w.Op)
	if !ok {
		return Record{}, &decodeError{fmt.Sprintf("unknown record op %q", w.Op)}
	}

	r := Record{Kind: kind, Key: w.Key}
	switch kind {
	case KindPut:
		if w.Value == nil {
			return Record{}, &decodeError{"put record without value"}
		}
		r.Value = *w.Value
	case KindTombstone:
		if w.Value != nil {
			return Record{}, &decodeError{"tombstone record with value"}
		}
	}

	if checksum(r.Kind, r.Key, r.Value) != w.Sum {
		return Record{}, &decodeError{fmt.Sprintf("checksum mismatch for key %q", r.Key)}
	}
	return r, nil
}

// decodeRecord decodes data that must hold exactly one record.
func decodeRecord(data []byte) (Record, error) {
	iter := recordJSON.BorrowIterator(data)
	defer recordJSON.ReturnIterator(iter)

	raw := iter.SkipAndReturnBytes()
	if iter.Error != nil {
		if iter.Error == io.EOF {
			return Record{}, &decodeError{"truncated record"}
		}
		return Record{}, &decodeError{iter.Error.Error()}
	}
	if iter.WhatIsNext() != jsoniter.InvalidValue || iter.Error != io.EOF {
		return Record{}, &decodeError{"trailing bytes after record"}
	}
	return unmarshalRecord(raw)
}

// sourceReader feeds the parser and keeps the bytes it handed out that no
// returned record has accounted for yet. On a parse failure those bytes tell
// a clean end of input from a record cut short.
type sourceReader struct {
	r       io.Reader
	pending []byte
	eof     bool
	err     error
}

func (r *sourceReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.pending = append(r.pending, p[:n]...)
	switch {
	case err == io.EOF:
		r.eof = true
	case err != nil && r.err == nil:
		r.err = err
	}
	return n, err
}

func (r *sourceReader) consume(n int64) {
	r.pending = r.pending[n:]
	if len(r.pending) == 0 {
		r.pending = nil
	}
}

// recordScanner reads records one by one from a continuous stream and
// reports how many bytes each one occupied.
type recordScanner struct {
	src    *sourceReader
	iter   *jsoniter.Iterator
	offset int64
}

func newRecordScanner(r io.Reader, bufSize int) *recordScanner {
	src := &sourceReader{r: r}
	return &recordScanner{
		src:  src,
		iter: jsoniter.Parse(recordJSON, src, bufSize),
	}
}

// Offset is the number of bytes consumed by records returned so far.
func (s *recordScanner) Offset() int64 {
	return s.offset
}

// Next returns the next record and its encoded length. It returns io.EOF at
// a clean end of input, *truncatedTail when the input stops in the middle of
// a record, and *decodeError for anything else that fails to parse.
func (s *recordScanner) Next() (Record, int64, error) {
	raw := s.iter.SkipAndReturnBytes()

	if s.src.err != nil {
		return Record{}, 0, s.src.err
	}
	if s.iter.Error != nil {
		// the parser only asks for more input when the current value is
		// unfinished, so running dry means whatever is left is a tail
		if s.src.eof {
			rest := bytes.TrimSpace(s.src.pending)
			if len(rest) == 0 {
				return Record{}, 0, io.EOF
			}
			return Record{}, 0, &truncatedTail{size: int64(len(s.src.pending))}
		}
		return Record{}, 0, &decodeError{s.iter.Error.Error()}
	}

	size := int64(len(raw))
	r, err := unmarshalRecord(raw)
	if err != nil {
		return Record{}, 0, err
	}
	s.src.consume(size)
	s.offset += size
	return r, size, nil
}

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}
