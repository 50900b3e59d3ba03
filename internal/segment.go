package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/hasssanezzz/logcache/shared"
	"go.uber.org/zap"
)

// Location is the byte range of one record inside one segment.
type Location struct {
	Segment uint64
	Offset  int64
	Length  int64
}

// Segment is one append-only log file. Only the active segment has a writer.
type Segment struct {
	id      uint64
	path    string
	writer  *positionedWriter
	reader  *positionedReader
	bufSize int
	logger  *zap.SugaredLogger
}

func segmentPath(dir string, id uint64, ext string) string {
	return filepath.Join(dir, strconv.FormatUint(id, 10)+ext)
}

// createSegment opens (creating if absent) the file of id for appending and,
// through a second handle, for reading.
func createSegment(id uint64, dir string, config *shared.EngineConfig, logger *zap.SugaredLogger) (*Segment, error) {
	path := segmentPath(dir, id, config.SegmentExt)

	wf, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("segment can not create file %q: %w", path, err)
	}
	writer, err := newPositionedWriter(wf, config.SyncWrites)
	if err != nil {
		wf.Close()
		return nil, fmt.Errorf("segment can not seek file %q: %w", path, err)
	}

	rf, err := os.Open(path)
	if err != nil {
		wf.Close()
		return nil, fmt.Errorf("segment can not open file %q for reading: %w", path, err)
	}
	reader, err := newPositionedReader(rf, config.ReadBufferSize)
	if err != nil {
		wf.Close()
		rf.Close()
		return nil, fmt.Errorf("segment can not seek file %q: %w", path, err)
	}

	logger.Debugw("segment created", "id", id, "path", path)
	return &Segment{
		id:      id,
		path:    path,
		writer:  writer,
		reader:  reader,
		bufSize: config.ReadBufferSize,
		logger:  logger,
	}, nil
}

// openSegment opens an existing segment file with a read cursor only.
func openSegment(id uint64, dir string, config *shared.EngineConfig, logger *zap.SugaredLogger) (*Segment, error) {
	path := segmentPath(dir, id, config.SegmentExt)

	rf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("segment can not open file %q: %w", path, err)
	}
	reader, err := newPositionedReader(rf, config.ReadBufferSize)
	if err != nil {
		rf.Close()
		return nil, fmt.Errorf("segment can not seek file %q: %w", path, err)
	}

	return &Segment{
		id:      id,
		path:    path,
		reader:  reader,
		bufSize: config.ReadBufferSize,
		logger:  logger,
	}, nil
}

func (s *Segment) ID() uint64 {
	return s.id
}

func (s *Segment) Sealed() bool {
	return s.writer == nil
}

// append encodes r onto the end of the segment. The returned Location is not
// durable until flush succeeds.
func (s *Segment) append(r Record) (Location, error) {
	if s.writer == nil {
		return Location{}, fmt.Errorf("segment %d is sealed", s.id)
	}

	data, err := encodeRecord(r)
	if err != nil {
		return Location{}, err
	}

	offset := s.writer.Pos()
	n, err := s.writer.Write(data)
	if err != nil {
		return Location{}, fmt.Errorf("segment %d can not append record: %w", s.id, err)
	}
	return Location{Segment: s.id, Offset: offset, Length: int64(n)}, nil
}

func (s *Segment) flush() error {
	if s.writer == nil {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("segment %d can not flush: %w", s.id, err)
	}
	return nil
}

// seal flushes and drops the write cursor.
func (s *Segment) seal() error {
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	if err != nil {
		return fmt.Errorf("segment %d can not seal: %w", s.id, err)
	}
	return nil
}

// readAt reads and decodes exactly the record stored at loc.
func (s *Segment) readAt(loc Location) (Record, error) {
	if _, err := s.reader.Seek(loc.Offset, io.SeekStart); err != nil {
		return Record{}, fmt.Errorf("segment %d can not seek to %d: %w", s.id, loc.Offset, err)
	}

	buf := make([]byte, loc.Length)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, &shared.ErrCorruptRecord{Segment: s.id, Offset: loc.Offset, Reason: "record extends past end of segment"}
		}
		return Record{}, fmt.Errorf("segment %d can not read at %d: %w", s.id, loc.Offset, err)
	}

	r, err := decodeRecord(buf)
	if err != nil {
		return Record{}, &shared.ErrCorruptRecord{Segment: s.id, Offset: loc.Offset, Reason: err.Error()}
	}
	return r, nil
}

// replay reads the segment from the start and calls fn for every record in
// file order. A record cut short by the end of the file ends the log; any
// other undecodable bytes are an error. It returns the number of bytes
// covered by whole records.
func (s *Segment) replay(fn func(Record, Location) error) (int64, error) {
	if _, err := s.reader.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("segment %d can not seek to start: %w", s.id, err)
	}

	scanner := newRecordScanner(s.reader, s.bufSize)
	for {
		offset := scanner.Offset()
		r, n, err := scanner.Next()
		if err != nil {
			var tail *truncatedTail
			switch {
			case err == io.EOF:
				return offset, nil
			case errors.As(err, &tail):
				s.logger.Warnw("ignoring truncated record at end of segment",
					"segment", s.id, "offset", offset, "bytes", tail.size)
				return offset, nil
			case isDecodeError(err):
				return offset, &shared.ErrCorruptRecord{Segment: s.id, Offset: offset, Reason: err.Error()}
			default:
				return offset, fmt.Errorf("segment %d can not read at %d: %w", s.id, offset, err)
			}
		}

		if err := fn(r, Location{Segment: s.id, Offset: offset, Length: n}); err != nil {
			return offset, err
		}
	}
}

// size is the number of bytes currently in the segment file.
func (s *Segment) size() (int64, error) {
	if s.writer != nil {
		return s.writer.Pos(), nil
	}
	info, err := s.reader.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("segment %d can not stat: %w", s.id, err)
	}
	return info.Size(), nil
}

func (s *Segment) close() error {
	var err error
	if s.writer != nil {
		err = s.writer.Close()
		s.writer = nil
	}
	if cerr := s.reader.Close(); err == nil {
		err = cerr
	}
	return err
}

// discardSegment removes the file of id. The segment must not be referenced
// by the index anymore.
func discardSegment(id uint64, dir, ext string) error {
	path := segmentPath(dir, id, ext)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("can not discard segment %q: %w", path, err)
	}
	return nil
}

// listSegments returns the ids of every segment file in dir, ascending.
// Files that are not named <id><ext> are skipped.
func listSegments(dir, ext string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("can not list segments in %q: %w", dir, err)
	}

	ids := []uint64{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		stem, ok := strings.CutSuffix(name, ext)
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(stem, 10, 64)
		if err != nil || strconv.FormatUint(id, 10) != stem {
			continue
		}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids, nil
}
