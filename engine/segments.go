package engine

import (
	"context"
	"errors"

	"github.com/dshills/embedbridge/core"
	"github.com/dshills/embedbridge/index"
	"go.uber.org/zap"
)

// segment returns the segment of a collection, reloading it when the cached
// copy lags behind the collection log position.
func (f *Frontend) segment(ctx context.Context, collection core.Collection) (*index.Segment, error) {
	if seg, ok := f.segments.Get(collection.ID); ok && seg.LogPosition() == collection.LogPosition {
		return seg, nil
	}

	seg, err := f.loadSegment(ctx, collection)
	if err != nil {
		return nil, err
	}

	for _, old := range f.segments.Put(seg) {
		f.saveSnapshot(ctx, old)
	}
	return seg, nil
}

// loadSegment restores a segment from its snapshot, falling back to the
// stored records when the snapshot is missing or stale.
func (f *Frontend) loadSegment(ctx context.Context, collection core.Collection) (*index.Segment, error) {
	data, err := f.persistence.LoadIndexState(ctx, collection.ID)
	if err != nil {
		return nil, err
	}
	if data != nil {
		seg, err := index.DeserializeSegment(collection, data)
		if err == nil {
			return seg, nil
		}
		if !errors.Is(err, index.ErrStaleSnapshot) {
			f.logger.Warn("discarding unreadable segment snapshot",
				zap.Stringer("collection", collection.ID),
				zap.Error(err))
		}
	}

	records, err := f.persistence.LoadRecords(ctx, collection.ID)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("rebuilt segment from records",
		zap.Stringer("collection", collection.ID),
		zap.Int("records", len(records)),
		zap.Int64("log_position", collection.LogPosition))
	return index.LoadSegment(collection, records), nil
}

// saveSnapshot persists a segment snapshot if it still matches its
// collection. Failures are logged; the records remain authoritative.
func (f *Frontend) saveSnapshot(ctx context.Context, seg *index.Segment) {
	collection, err := f.persistence.LoadCollection(ctx, seg.CollectionID())
	if err != nil || collection.LogPosition != seg.LogPosition() {
		return
	}

	data, err := seg.Serialize(f.config.Compression)
	if err == nil {
		err = f.persistence.SaveIndexState(ctx, seg.CollectionID(), data)
	}
	if err != nil {
		f.logger.Warn("failed to save segment snapshot",
			zap.Stringer("collection", seg.CollectionID()),
			zap.Error(err))
	}
}
