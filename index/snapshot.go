package index

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/dshills/embedbridge/core"
	"github.com/google/uuid"
)

// snapshotVersion is bumped when the snapshot layout changes
const snapshotVersion = 1

// ErrStaleSnapshot is returned when a snapshot does not match the
// collection it is loaded for
var ErrStaleSnapshot = errors.New("stale segment snapshot")

// segmentState represents the serializable state of a Segment
type segmentState struct {
	Version     int                 `json:"version"`
	Collection  uuid.UUID           `json:"collection"`
	Space       core.Space          `json:"space"`
	LogPosition int64               `json:"log_position"`
	NextSeq     uint64              `json:"next_seq"`
	Slots       []core.StoredRecord `json:"slots"`
	Live        []byte              `json:"live"`
}

// Serialize encodes the segment and compresses it with c
func (s *Segment) Serialize(c Compression) ([]byte, error) {
	s.mu.RLock()
	live, err := s.live.ToBytes()
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("failed to serialize live set: %w", err)
	}
	state := segmentState{
		Version:     snapshotVersion,
		Collection:  s.collection,
		Space:       s.space,
		LogPosition: s.logPosition,
		NextSeq:     s.nextSeq,
		Slots:       s.slots,
		Live:        live,
	}
	data, err := json.Marshal(state)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal segment: %w", err)
	}

	return compress(c, data)
}

// DeserializeSegment restores a segment snapshot. It fails with
// ErrStaleSnapshot unless the snapshot belongs to collection and reflects
// its current log position.
func DeserializeSegment(collection core.Collection, data []byte) (*Segment, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}

	var state segmentState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segment: %w", err)
	}
	if state.Version != snapshotVersion || state.Collection != collection.ID ||
		state.LogPosition != collection.LogPosition {
		return nil, ErrStaleSnapshot
	}

	live := roaring.New()
	if err := live.UnmarshalBinary(state.Live); err != nil {
		return nil, fmt.Errorf("failed to restore live set: %w", err)
	}

	s := NewSegment(collection)
	s.slots = state.Slots
	s.live = live
	s.nextSeq = state.NextSeq
	it := live.Iterator()
	for it.HasNext() {
		off := it.Next()
		if int(off) >= len(s.slots) {
			return nil, fmt.Errorf("live offset %d out of range", off)
		}
		s.offsets[s.slots[off].ID] = off
	}
	return s, nil
}
