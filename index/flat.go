package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/dshills/embedbridge/core"
	"github.com/google/uuid"
)

// compactThreshold is the number of dead slots that triggers compaction
const compactThreshold = 1024

// Neighbor is one search hit
type Neighbor struct {
	Record   core.StoredRecord
	Distance float32
}

// Segment implements brute-force exact search over the records of one
// collection. Records live in slots addressed by offset; offsets grow with
// insertion order and the live bitmap marks occupied slots.
type Segment struct {
	mu          sync.RWMutex
	collection  uuid.UUID
	space       core.Space
	logPosition int64
	slots       []core.StoredRecord
	offsets     map[string]uint32
	live        *roaring.Bitmap
	nextSeq     uint64
}

// NewSegment creates an empty segment for a collection
func NewSegment(collection core.Collection) *Segment {
	return &Segment{
		collection:  collection.ID,
		space:       collection.Configuration.Space(),
		logPosition: collection.LogPosition,
		offsets:     make(map[string]uint32),
		live:        roaring.New(),
		nextSeq:     1,
	}
}

// LoadSegment builds a segment from stored records in insertion order
func LoadSegment(collection core.Collection, records []core.StoredRecord) *Segment {
	s := NewSegment(collection)
	s.slots = make([]core.StoredRecord, 0, len(records))
	for _, rec := range records {
		s.appendLocked(rec)
	}
	return s
}

// CollectionID returns the collection the segment belongs to
func (s *Segment) CollectionID() uuid.UUID {
	return s.collection
}

// LogPosition returns the collection log position the segment reflects
func (s *Segment) LogPosition() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logPosition
}

// Size returns the number of live records
func (s *Segment) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.live.GetCardinality())
}

// NextSeq returns the sequence number the next new record will receive
func (s *Segment) NextSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSeq
}

// Lookup returns the live record with the given id
func (s *Segment) Lookup(id string) (core.StoredRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off, ok := s.offsets[id]
	if !ok {
		return core.StoredRecord{}, false
	}
	return s.slots[off], true
}

// IDs returns the ids of the live records in insertion order
func (s *Segment) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, s.live.GetCardinality())
	it := s.live.Iterator()
	for it.HasNext() {
		ids = append(ids, s.slots[it.Next()].ID)
	}
	return ids
}

func (s *Segment) appendLocked(rec core.StoredRecord) {
	off := uint32(len(s.slots))
	s.slots = append(s.slots, rec)
	s.offsets[rec.ID] = off
	s.live.Add(off)
	if rec.Seq >= s.nextSeq {
		s.nextSeq = rec.Seq + 1
	}
}

// Apply writes puts and deletes and advances the log position. A put for a
// live id with the same sequence number replaces the record in place.
func (s *Segment) Apply(puts []core.StoredRecord, deletes []string, logPosition int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range deletes {
		off, ok := s.offsets[id]
		if !ok {
			continue
		}
		s.live.Remove(off)
		s.slots[off] = core.StoredRecord{}
		delete(s.offsets, id)
	}

	for _, rec := range puts {
		if off, ok := s.offsets[rec.ID]; ok {
			if s.slots[off].Seq == rec.Seq {
				s.slots[off] = rec
				continue
			}
			s.live.Remove(off)
			s.slots[off] = core.StoredRecord{}
		}
		s.appendLocked(rec)
	}

	s.logPosition = logPosition
	if dead := len(s.slots) - int(s.live.GetCardinality()); dead > compactThreshold && dead > len(s.slots)/2 {
		s.compactLocked()
	}
}

// compactLocked drops dead slots, keeping insertion order
func (s *Segment) compactLocked() {
	slots := make([]core.StoredRecord, 0, s.live.GetCardinality())
	it := s.live.Iterator()
	for it.HasNext() {
		slots = append(slots, s.slots[it.Next()])
	}

	s.slots = slots
	s.offsets = make(map[string]uint32, len(slots))
	for i, rec := range slots {
		s.offsets[rec.ID] = uint32(i)
	}
	s.live = roaring.New()
	s.live.AddRange(0, uint64(len(slots)))
}

// Filter returns the offsets of live records that are in ids (when ids is
// non-nil) and match where (when where is non-nil).
func (s *Segment) Filter(ids []string, where core.Where) *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(ids, where)
}

func (s *Segment) filterLocked(ids []string, where core.Where) *roaring.Bitmap {
	candidates := s.live.Clone()
	if ids != nil {
		wanted := roaring.New()
		for _, id := range ids {
			if off, ok := s.offsets[id]; ok {
				wanted.Add(off)
			}
		}
		candidates.And(wanted)
	}
	if where == nil {
		return candidates
	}
	return s.evaluate(where, candidates)
}

// evaluate narrows candidates to the offsets matching w
func (s *Segment) evaluate(w core.Where, candidates *roaring.Bitmap) *roaring.Bitmap {
	if c, ok := w.(*core.Composite); ok {
		if c.Op == core.OpOr {
			result := roaring.New()
			for _, child := range c.Children {
				result.Or(s.evaluate(child, candidates))
			}
			return result
		}
		result := candidates
		for _, child := range c.Children {
			if result.IsEmpty() {
				break
			}
			result = s.evaluate(child, result)
		}
		return result
	}

	result := roaring.New()
	it := candidates.Iterator()
	for it.HasNext() {
		off := it.Next()
		if w.Matches(&s.slots[off].Record) {
			result.Add(off)
		}
	}
	return result
}

// Get returns the matching records in insertion order after skipping
// offset records and taking at most limit (nil for no limit).
func (s *Segment) Get(ids []string, where core.Where, offset int, limit *int) []core.StoredRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.filterLocked(ids, where)
	var out []core.StoredRecord
	it := matches.Iterator()
	skipped := 0
	for it.HasNext() {
		off := it.Next()
		if skipped < offset {
			skipped++
			continue
		}
		if limit != nil && len(out) >= *limit {
			break
		}
		out = append(out, s.slots[off])
	}
	return out
}

// Count returns the number of records matching ids and where
func (s *Segment) Count(ids []string, where core.Where) int {
	return int(s.Filter(ids, where).GetCardinality())
}

// Search returns the k nearest records to query among those matching ids
// and where, ordered by ascending distance. Ties keep insertion order.
func (s *Segment) Search(query []float32, k int, ids []string, where core.Where) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.filterLocked(ids, where)
	results := make([]Neighbor, 0, matches.GetCardinality())
	it := matches.Iterator()
	for it.HasNext() {
		rec := s.slots[it.Next()]
		distance, err := core.CalculateDistance(query, rec.Embedding, s.space)
		if err != nil {
			return nil, fmt.Errorf("distance calculation failed for %s: %w", rec.ID, err)
		}
		results = append(results, Neighbor{Record: rec, Distance: distance})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}
