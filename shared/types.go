package shared

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation on a store that has been closed.
var ErrClosed = errors.New("store is closed")

type ErrKeyNotFound struct{ Key string }

func (e *ErrKeyNotFound) Error() string {
	return fmt.Sprintf("key %q can not be found", e.Key)
}

// ErrUnexpectedRecord means the index pointed at a record that is not a put.
// It signals that the index and the log went out of sync.
type ErrUnexpectedRecord struct {
	Key     string
	Segment uint64
	Offset  int64
}

func (e *ErrUnexpectedRecord) Error() string {
	return fmt.Sprintf("unexpected record for key %q at segment %d offset %d", e.Key, e.Segment, e.Offset)
}

// ErrCorruptRecord reports bytes that do not decode as a well-formed record.
type ErrCorruptRecord struct {
	Segment uint64
	Offset  int64
	Reason  string
}

func (e *ErrCorruptRecord) Error() string {
	return fmt.Sprintf("corrupt record in segment %d at offset %d: %s", e.Segment, e.Offset, e.Reason)
}

type ErrStoreLocked struct{ Path string }

func (e *ErrStoreLocked) Error() string {
	return fmt.Sprintf("store %q is locked by another instance", e.Path)
}
