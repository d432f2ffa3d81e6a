// Batch: an explicit value aggregating many per-series writes into one
// commit payload and one revision file, in place of thread-local batch
// state threaded implicitly through call sites. Grounded on
// original_source/lakota/batch.py's Batch.append/extend/flush and its
// validate-everything-then-apply shape.
package lakota

import "fmt"

type batchRow struct {
	label   string
	start   []any
	stop    []any
	digests map[string]string
	length  int64
}

// Batch buffers writes against one collection and commits them all as
// a single revision on Flush. Not safe for concurrent use by multiple
// goroutines; callers that need that coordinate externally.
type Batch struct {
	collection *Collection
	root       bool
	rows       []batchRow
}

// NewBatch returns an empty Batch bound to collection. When root is
// true, Flush ignores any existing leaf revision and writes a new root
// revision instead of overlaying onto the current history, as Squash
// does when replacing a collection's history wholesale.
func NewBatch(collection *Collection, root bool) *Batch {
	return &Batch{collection: collection, root: root}
}

// Append validates and buffers a write of f under label. Column blobs
// are written immediately (write-before-publish); only the commit
// overlay is deferred to Flush.
func (b *Batch) Append(label string, f Frame) error {
	if label == "" {
		return ErrInvalidLabel
	}
	if f.Empty() {
		return nil
	}
	schema := b.collection.schema
	if !f.Schema.Equal(schema) {
		return fmt.Errorf("%w: batch append for %q", ErrSchemaMismatch, label)
	}
	start, stop, digests, length, err := writeFrame(b.collection.pod, schema, f)
	if err != nil {
		return err
	}
	b.rows = append(b.rows, batchRow{label: label, start: start, stop: stop, digests: digests, length: length})
	return nil
}

// Extend appends the buffered rows of other batches onto b.
func (b *Batch) Extend(others ...*Batch) {
	for _, o := range others {
		b.rows = append(b.rows, o.rows...)
	}
}

// Flush combines every buffered row into one commit, overlaying each
// in append order onto the collection's current leaf (or a fresh
// commit if root or there is no leaf yet), and writes one revision.
// The batch is empty after Flush returns successfully.
func (b *Batch) Flush() ([]Revision, error) {
	if len(b.rows) == 0 {
		return nil, nil
	}
	changelog := b.collection.changelog
	schema := b.collection.schema

	var leaf Revision
	var haveLeaf bool
	if !b.root {
		var err error
		leaf, haveLeaf, err = changelog.Leaf()
		if err != nil {
			return nil, err
		}
	}

	rows := b.rows
	var last *Commit
	var parents []string
	if haveLeaf {
		payload, err := changelog.pod.Read(leaf.Filename())
		if err != nil {
			return nil, fmt.Errorf("lakota: batch flush: read leaf: %w", err)
		}
		last, err = DecodeCommit(schema, payload)
		if err != nil {
			return nil, err
		}
		parents = []string{leaf.Child}
	} else {
		first := rows[0]
		last = CommitOne(schema, first.label, first.start, first.stop, first.digests, first.length, ClosureBoth)
		rows = rows[1:]
	}

	for _, r := range rows {
		var err error
		last, err = last.Update(r.label, r.start, r.stop, r.digests, r.length, ClosureBoth)
		if err != nil {
			return nil, err
		}
	}

	payload, err := last.Encode()
	if err != nil {
		return nil, err
	}
	revs, err := changelog.Commit(payload, parents)
	if err != nil {
		return nil, err
	}
	b.rows = nil
	return revs, nil
}
