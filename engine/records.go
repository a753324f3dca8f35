package engine

import (
	"context"
	"fmt"

	"github.com/dshills/embedbridge/core"
	"github.com/dshills/embedbridge/index"
	"github.com/google/uuid"
)

// mutation resolves a write against the current segment into the records
// to put and the ids to delete. It may fix the collection dimension.
type mutation func(collection *core.Collection, seg *index.Segment) (puts []core.StoredRecord, deletes []string, err error)

// write runs a mutation under the persistence lock and applies its effects
// to persistence and then to the cached segment.
func (f *Frontend) write(ctx context.Context, tenant, database string, id uuid.UUID, mutate mutation) error {
	if err := f.checkOpen(); err != nil {
		return err
	}

	f.persistence.Lock()
	defer f.persistence.Unlock()

	collection, err := f.collection(ctx, tenant, database, id)
	if err != nil {
		return err
	}
	seg, err := f.segment(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to load segment: %w", err)
	}

	next := collection
	puts, deletes, err := mutate(&next, seg)
	if err != nil {
		return err
	}
	if len(puts) == 0 && len(deletes) == 0 {
		return nil
	}

	next.LogPosition = collection.LogPosition + 1
	if err := f.persistence.ApplyRecords(ctx, next, puts, deletes); err != nil {
		return fmt.Errorf("failed to apply records: %w", err)
	}
	seg.Apply(puts, deletes, next.LogPosition)
	return nil
}

// checkDimension validates an embedding and fixes the collection dimension
// on the first write.
func checkDimension(collection *core.Collection, embedding []float32) error {
	if collection.Dimension == nil {
		dim := len(embedding)
		collection.Dimension = &dim
		return nil
	}
	return core.ValidateDimension(embedding, collection.Dimension)
}

// Add inserts records. Ids that already exist are skipped.
func (f *Frontend) Add(ctx context.Context, req core.AddRecordsRequest) error {
	return f.write(ctx, req.Tenant, req.Database, req.CollectionID,
		func(collection *core.Collection, seg *index.Segment) ([]core.StoredRecord, []string, error) {
			for _, r := range req.Records {
				if err := checkDimension(collection, r.Embedding); err != nil {
					return nil, nil, err
				}
			}

			seq := seg.NextSeq()
			seen := make(map[string]struct{}, len(req.Records))
			puts := make([]core.StoredRecord, 0, len(req.Records))
			for _, r := range req.Records {
				if _, ok := seen[r.ID]; ok {
					continue
				}
				seen[r.ID] = struct{}{}
				if _, exists := seg.Lookup(r.ID); exists {
					continue
				}
				r.Metadata = r.Metadata.Clone()
				puts = append(puts, core.StoredRecord{Seq: seq, Record: r})
				seq++
			}
			return puts, nil, nil
		})
}

// applyUpdate merges an update into an existing record
func applyUpdate(existing core.Record, u core.RecordUpdate) core.Record {
	out := existing
	if u.Embedding != nil {
		out.Embedding = u.Embedding
	}
	if u.Document != nil {
		out.Document = u.Document
	}
	if u.URI != nil {
		out.URI = u.URI
	}
	if u.Metadata != nil {
		out.Metadata = existing.Metadata.Merge(u.Metadata)
	}
	return out
}

// Update changes existing records. Unknown ids are ignored.
func (f *Frontend) Update(ctx context.Context, req core.UpdateRecordsRequest) error {
	return f.write(ctx, req.Tenant, req.Database, req.CollectionID,
		func(collection *core.Collection, seg *index.Segment) ([]core.StoredRecord, []string, error) {
			puts := make([]core.StoredRecord, 0, len(req.Records))
			for _, u := range req.Records {
				if u.Embedding != nil {
					if err := checkDimension(collection, u.Embedding); err != nil {
						return nil, nil, err
					}
				}
				existing, ok := seg.Lookup(u.ID)
				if !ok {
					continue
				}
				puts = append(puts, core.StoredRecord{Seq: existing.Seq, Record: applyUpdate(existing.Record, u)})
			}
			return puts, nil, nil
		})
}

// Upsert updates existing records and inserts the others
func (f *Frontend) Upsert(ctx context.Context, req core.UpsertRecordsRequest) error {
	return f.write(ctx, req.Tenant, req.Database, req.CollectionID,
		func(collection *core.Collection, seg *index.Segment) ([]core.StoredRecord, []string, error) {
			seq := seg.NextSeq()
			puts := make([]core.StoredRecord, 0, len(req.Records))
			for _, u := range req.Records {
				if u.Embedding != nil {
					if err := checkDimension(collection, u.Embedding); err != nil {
						return nil, nil, err
					}
				}
				if existing, ok := seg.Lookup(u.ID); ok {
					puts = append(puts, core.StoredRecord{Seq: existing.Seq, Record: applyUpdate(existing.Record, u)})
					continue
				}
				if u.Embedding == nil {
					return nil, nil, fmt.Errorf("%w: record %s has no embedding", core.ErrInvalidEmbedding, u.ID)
				}
				puts = append(puts, core.StoredRecord{Seq: seq, Record: core.Record{
					ID:        u.ID,
					Embedding: u.Embedding,
					Document:  u.Document,
					URI:       u.URI,
					Metadata:  u.Metadata.ToMetadata(),
				}})
				seq++
			}
			return puts, nil, nil
		})
}

// Delete removes the records matching ids and where. Without either, every
// record of the collection is removed.
func (f *Frontend) Delete(ctx context.Context, req core.DeleteRecordsRequest) error {
	return f.write(ctx, req.Tenant, req.Database, req.CollectionID,
		func(collection *core.Collection, seg *index.Segment) ([]core.StoredRecord, []string, error) {
			matches := seg.Get(req.IDs, req.Where, 0, nil)
			deletes := make([]string, 0, len(matches))
			for _, r := range matches {
				deletes = append(deletes, r.ID)
			}
			return nil, deletes, nil
		})
}
