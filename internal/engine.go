package internal

import (
	"fmt"
	"os"
	"slices"

	"github.com/hasssanezzz/logcache/shared"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Store is an append-only log key-value engine over a directory of segments.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	Config shared.EngineConfig

	index       *Index
	segments    map[uint64]*Segment
	active      *Segment
	stale       uint64
	compactions uint64
	lock        *dirLock
	logger      *zap.SugaredLogger
	closed      bool
}

// Stats is a snapshot of the store's bookkeeping.
type Stats struct {
	Keys          int    `json:"keys"`
	StaleBytes    uint64 `json:"staleBytes"`
	Segments      int    `json:"segments"`
	ActiveSegment uint64 `json:"activeSegment"`
	DiskBytes     int64  `json:"diskBytes"`
	Compactions   uint64 `json:"compactions"`
}

// Open loads every segment found in homepath, rebuilds the index by replaying
// them in id order and starts a fresh active segment.
func Open(homepath string, configs ...shared.EngineConfig) (*Store, error) {
	config := shared.DefaultConfig
	if len(configs) > 0 {
		config = configs[0]
	}
	config.Homepath = homepath
	config.Normalize()

	s := &Store{
		Config:   config,
		index:    NewIndex(),
		segments: map[uint64]*Segment{},
		logger:   config.Logger.Sugar().Named("store"),
	}

	if err := os.MkdirAll(homepath, 0755); err != nil {
		return nil, fmt.Errorf("store can not create directory (%q): %w", homepath, err)
	}

	lock, err := lockDir(homepath)
	if err != nil {
		return nil, err
	}
	s.lock = lock

	if err := s.load(); err != nil {
		return nil, multierr.Append(err, s.closeAll())
	}

	s.logger.Infow("store opened",
		"path", homepath,
		"segments", len(s.segments),
		"keys", s.index.Len(),
		"staleBytes", s.stale,
		"active", s.active.id,
	)
	return s, nil
}

func (s *Store) load() error {
	ids, err := listSegments(s.Config.Homepath, s.Config.SegmentExt)
	if err != nil {
		return err
	}

	for _, id := range ids {
		seg, err := openSegment(id, s.Config.Homepath, &s.Config, s.logger)
		if err != nil {
			return err
		}
		s.segments[id] = seg

		if _, err := seg.replay(s.apply); err != nil {
			return fmt.Errorf("store can not replay segment %d: %w", id, err)
		}
	}

	var next uint64 = 1
	if len(ids) > 0 {
		next = ids[len(ids)-1] + 1
	}
	active, err := createSegment(next, s.Config.Homepath, &s.Config, s.logger)
	if err != nil {
		return err
	}
	s.segments[next] = active
	s.active = active
	return nil
}

// apply folds one record into the index and the stale-byte count. Replay and
// live writes both go through it.
func (s *Store) apply(r Record, loc Location) error {
	switch r.Kind {
	case KindPut:
		s.applyPut(r.Key, loc)
	case KindTombstone:
		s.applyTombstone(r.Key, loc)
	default:
		return &shared.ErrCorruptRecord{Segment: loc.Segment, Offset: loc.Offset, Reason: r.Kind.String()}
	}
	return nil
}

func (s *Store) applyPut(key string, loc Location) {
	if old, replaced := s.index.Set(key, loc); replaced {
		s.stale += uint64(old.Length)
	}
}

func (s *Store) applyTombstone(key string, loc Location) {
	if old, removed := s.index.Delete(key); removed {
		s.stale += uint64(old.Length)
	}
	// a tombstone is never live data
	s.stale += uint64(loc.Length)
}

func (s *Store) Get(key string) (string, bool, error) {
	if s.closed {
		return "", false, shared.ErrClosed
	}

	loc, ok := s.index.Get(key)
	if !ok {
		return "", false, nil
	}

	r, err := s.readAt(loc)
	if err != nil {
		return "", false, fmt.Errorf("store can not read key (%q): %w", key, err)
	}

	// the index only ever points at puts
	if r.Kind != KindPut || r.Key != key {
		return "", false, &shared.ErrUnexpectedRecord{Key: key, Segment: loc.Segment, Offset: loc.Offset}
	}
	return r.Value, true, nil
}

// Set appends a put to the active segment, makes it durable, then points the
// index at it. It may compact before returning.
func (s *Store) Set(key, value string) error {
	if s.closed {
		return shared.ErrClosed
	}

	loc, err := s.active.append(PutRecord(key, value))
	if err != nil {
		return fmt.Errorf("store can not write key (%q): %w", key, err)
	}
	if err := s.active.flush(); err != nil {
		return fmt.Errorf("store can not write key (%q): %w", key, err)
	}

	s.applyPut(key, loc)
	return s.maybeCompact()
}

// Remove appends a tombstone for key. It fails with *shared.ErrKeyNotFound
// when the key is not live.
func (s *Store) Remove(key string) error {
	if s.closed {
		return shared.ErrClosed
	}

	if !s.index.Contains(key) {
		return &shared.ErrKeyNotFound{Key: key}
	}

	loc, err := s.active.append(TombstoneRecord(key))
	if err != nil {
		return fmt.Errorf("store can not remove key (%q): %w", key, err)
	}
	if err := s.active.flush(); err != nil {
		return fmt.Errorf("store can not remove key (%q): %w", key, err)
	}

	s.applyTombstone(key, loc)
	if !s.Config.CompactOnRemove {
		return nil
	}
	return s.maybeCompact()
}

func (s *Store) Contains(key string) bool {
	return !s.closed && s.index.Contains(key)
}

// Keys returns every live key in ascending order.
func (s *Store) Keys() []string {
	if s.closed {
		return nil
	}
	return s.index.Keys()
}

func (s *Store) StaleBytes() uint64 {
	return s.stale
}

// SegmentIDs returns the ids of all open segments, ascending.
func (s *Store) SegmentIDs() []uint64 {
	ids := make([]uint64, 0, len(s.segments))
	for id := range s.segments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) Stats() (Stats, error) {
	if s.closed {
		return Stats{}, shared.ErrClosed
	}

	diskBytes, err := s.diskBytes()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Keys:          s.index.Len(),
		StaleBytes:    s.stale,
		Segments:      len(s.segments),
		ActiveSegment: s.active.id,
		DiskBytes:     diskBytes,
		Compactions:   s.compactions,
	}, nil
}

func (s *Store) diskBytes() (int64, error) {
	var total int64
	for _, seg := range s.segments {
		size, err := seg.size()
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

func (s *Store) readAt(loc Location) (Record, error) {
	seg, ok := s.segments[loc.Segment]
	if !ok {
		return Record{}, fmt.Errorf("segment %d is not open", loc.Segment)
	}
	return seg.readAt(loc)
}

func (s *Store) maybeCompact() error {
	if s.stale <= s.Config.CompactionThreshold {
		return nil
	}
	return s.Compact()
}

// Compact copies every live record, in key order, into a new segment, starts
// another new segment as the active one and discards all older segments.
func (s *Store) Compact() error {
	if s.closed {
		return shared.ErrClosed
	}

	staleBefore := s.stale
	sizeBefore, sizeErr := s.diskBytes()
	old := s.SegmentIDs()

	targetID, activeID := s.active.id+1, s.active.id+2
	target, err := createSegment(targetID, s.Config.Homepath, &s.Config, s.logger)
	if err != nil {
		return fmt.Errorf("store can not compact: %w", err)
	}
	active, err := createSegment(activeID, s.Config.Homepath, &s.Config, s.logger)
	if err != nil {
		return multierr.Combine(
			fmt.Errorf("store can not compact: %w", err),
			s.dropSegment(target),
		)
	}

	// copy first and only point the index at target once it is durable
	moved := make([]Location, 0, s.index.Len())
	err = s.index.Walk(func(key string, loc Location) error {
		r, err := s.readAt(loc)
		if err != nil {
			return err
		}
		if r.Kind != KindPut || r.Key != key {
			return &shared.ErrUnexpectedRecord{Key: key, Segment: loc.Segment, Offset: loc.Offset}
		}
		newLoc, err := target.append(r)
		if err != nil {
			return err
		}
		moved = append(moved, newLoc)
		return nil
	})
	if err == nil {
		err = target.seal()
	}
	if err == nil && s.Config.SyncWrites {
		// the new file names must be durable before the old files go away
		err = syncDir(s.Config.Homepath)
	}
	if err != nil {
		return multierr.Combine(
			fmt.Errorf("store can not compact: %w", err),
			s.dropSegment(target),
			s.dropSegment(active),
		)
	}

	i := 0
	s.index.Update(func(string, Location) Location {
		loc := moved[i]
		i++
		return loc
	})

	var discardErr error
	for _, id := range old {
		seg := s.segments[id]
		delete(s.segments, id)
		discardErr = multierr.Append(discardErr, seg.close())
		discardErr = multierr.Append(discardErr, discardSegment(id, s.Config.Homepath, s.Config.SegmentExt))
		s.logger.Debugw("segment discarded", "id", id)
	}

	s.segments[targetID] = target
	s.segments[activeID] = active
	s.active = active
	s.stale = 0
	s.compactions++

	fields := []any{
		"discarded", len(old),
		"keys", s.index.Len(),
		"staleBefore", staleBefore,
	}
	sizeAfter, err := s.diskBytes()
	if sizeErr = multierr.Append(sizeErr, err); sizeErr != nil {
		fields = append(fields, "sizeError", sizeErr)
	} else {
		fields = append(fields, "bytesBefore", sizeBefore, "bytesAfter", sizeAfter)
	}
	s.logger.Infow("compaction finished", fields...)

	if discardErr != nil {
		return fmt.Errorf("store can not discard compacted segments: %w", discardErr)
	}
	return nil
}

// dropSegment closes and deletes a segment that never became part of the store.
func (s *Store) dropSegment(seg *Segment) error {
	return multierr.Append(seg.close(), discardSegment(seg.id, s.Config.Homepath, s.Config.SegmentExt))
}

// Close flushes the active segment, closes every file and releases the
// directory lock. Calling it twice is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.active != nil {
		err = s.active.flush()
	}
	err = multierr.Append(err, s.closeAll())
	if err == nil {
		s.logger.Infow("store closed", "path", s.Config.Homepath)
	}
	return err
}

func (s *Store) closeAll() error {
	var err error
	for _, id := range s.SegmentIDs() {
		err = multierr.Append(err, s.segments[id].close())
	}
	err = multierr.Append(err, s.lock.release())
	return err
}
