// Series: a label-scoped view over a collection's commits, providing
// range read, write, and paginated read. The read planner is grounded
// on original_source/baltic/series.py's _read/intersect, generalized
// from that file's single-row-per-revision model to spec.md §4.3's
// multi-row-per-label commits and closure tags.
package lakota

import (
	"fmt"
	"iter"
	"sort"
)

// Series is a label within a collection: a typed, versioned,
// range-indexed table backed by the collection's shared changelog.
type Series struct {
	label     string
	schema    *Schema
	changelog *Changelog
	pod       Pod
}

func newSeries(label string, schema *Schema, changelog *Changelog, pod Pod) *Series {
	return &Series{label: label, schema: schema, changelog: changelog, pod: pod}
}

// Label returns the series' label.
func (s *Series) Label() string { return s.label }

type seriesRow struct {
	start, stop []any
	digests     map[string]string
	length      int64
	closed      Closure
}

// rowsNewestFirst decodes each current leaf's commit and flattens this
// series' rows, newest leaf first; within a leaf's commit rows keep
// the commit's ascending-start order. A commit is a cumulative
// snapshot (Write builds it via base.Update on the prior leaf, Delete
// via base.DeleteLabels), so a leaf's own rows are already that leaf's
// complete state for this label: the label's absence from a leaf's
// commit means it was deleted there, not a hole to fill from an older
// revision. Older, non-leaf revisions are fully absorbed into the leaf
// and are never walked directly. Multiple leaves (a fork not yet
// merged) are processed newest-first, each contributing its own
// complete state, so holes left by one leaf can still be filled from
// a sibling leaf.
func (s *Series) rowsNewestFirst() ([]seriesRow, error) {
	leaves, err := s.changelog.Leaves()
	if err != nil {
		return nil, err
	}
	sort.Slice(leaves, func(i, j int) bool {
		if leaves[i].Hextime != leaves[j].Hextime {
			return leaves[i].Hextime > leaves[j].Hextime
		}
		return leaves[i].Child > leaves[j].Child
	})
	var rows []seriesRow
	for _, leaf := range leaves {
		payload, err := s.changelog.pod.Read(leaf.Filename())
		if err != nil {
			return nil, fmt.Errorf("lakota: read revision %s: %w", leaf.Filename(), err)
		}
		commit, err := DecodeCommit(s.schema, payload)
		if err != nil {
			// A decode failure is fatal to this leaf only; skip it.
			continue
		}
		for pos := 0; pos < commit.Len(); pos++ {
			if commit.Label[pos] != s.label {
				continue
			}
			rows = append(rows, seriesRow{
				start:   commit.startTuple(pos),
				stop:    commit.stopTuple(pos),
				digests: commit.digestsAt(pos),
				length:  commit.Length[pos],
				closed:  commit.Closed[pos],
			})
		}
	}
	return rows, nil
}

// intersectRange reduces [rowStart,rowStop] against [start,stop]; a
// nil bound is unbounded on that side. Returns ok=false when disjoint.
func intersectRange(rowStart, rowStop, start, stop []any) (mStart, mStop []any, ok bool) {
	if stop != nil && compareTuple(rowStart, stop) > 0 {
		return nil, nil, false
	}
	if start != nil && compareTuple(rowStop, start) < 0 {
		return nil, nil, false
	}
	mStart = rowStart
	if start != nil && compareTuple(start, rowStart) > 0 {
		mStart = start
	}
	mStop = rowStop
	if stop != nil && compareTuple(stop, rowStop) < 0 {
		mStop = stop
	}
	return mStart, mStop, true
}

// planRead is the recursive newest-first walk of spec.md §4.3: the
// first matching row in rows wins its matched range outright, with
// left/right holes filled from strictly older rows.
func planRead(rows []seriesRow, schema *Schema, pod Pod, start, stop []any, limit *int) ([]*Segment, error) {
	for pos, row := range rows {
		mStart, mStop, ok := intersectRange(row.start, row.stop, start, stop)
		if !ok {
			continue
		}
		seg := NewSegment(schema, pod, row.digests, mStart, mStop, row.closed)
		result := []*Segment{seg}

		leftHole := start == nil || compareTuple(mStart, start) > 0
		if leftHole {
			left, err := planRead(rows[pos+1:], schema, pod, start, mStart, limit)
			if err != nil {
				return nil, err
			}
			result = append(left, result...)
		}

		rightHole := stop == nil || compareTuple(mStop, stop) < 0
		if rightHole {
			if limit != nil {
				n, err := seg.Len()
				if err != nil {
					return nil, err
				}
				*limit -= n
				if *limit < 1 {
					return result, nil
				}
			}
			right, err := planRead(rows[pos+1:], schema, pod, mStop, stop, limit)
			if err != nil {
				return nil, err
			}
			result = append(result, right...)
		}

		return result, nil
	}
	return nil, nil
}

func emptyFrame(schema *Schema) Frame {
	cols := make(map[string]Column, len(schema.Columns))
	for _, c := range schema.Columns {
		cols[c.Name] = NewColumn(c.DType, 0)
	}
	f, _ := NewFrame(schema, cols)
	return f
}

// Read returns the combined frame over [start, stop] (nil bounds are
// unbounded), newer writes winning over older ones on overlap.
func (s *Series) Read(start, stop []any, limit int) (Frame, error) {
	rows, err := s.rowsNewestFirst()
	if err != nil {
		return Frame{}, err
	}
	var limitPtr *int
	if limit > 0 {
		l := limit
		limitPtr = &l
	}
	segments, err := planRead(rows, s.schema, s.pod, start, stop, limitPtr)
	if err != nil {
		return Frame{}, err
	}
	if len(segments) == 0 {
		return emptyFrame(s.schema), nil
	}
	frames := make([]Frame, len(segments))
	for i, seg := range segments {
		f, err := seg.Frame()
		if err != nil {
			return Frame{}, err
		}
		frames[i] = f
	}
	return ConcatFrames(frames...), nil
}

// smallFrameThreshold is named in spec.md §4.4 as the cutoff below
// which a write's payload could be embedded directly in the commit
// instead of the blob store. This module always writes to the blob
// store (see DESIGN.md): embedding is a storage-density optimization,
// not a semantic requirement, and every testable property in spec.md
// §8 holds identically whether or not it is applied.
const smallFrameThreshold = 0

// writeFrame sorts f by index if it is not already sorted, writes its
// columns to pod, and returns the (start, stop, digests, length)
// needed to build a commit row.
func writeFrame(pod Pod, schema *Schema, f Frame) (start, stop []any, digests map[string]string, length int64, err error) {
	if !f.Sorted() {
		f = f.Sort()
	}
	digests, err = writeColumns(pod, schema, f)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	return f.Start(), f.Stop(), digests, int64(f.Len()), nil
}

// Write appends f to the series as a new revision, loading the
// current leaf commit (if any) and overlaying f's range onto it.
func (s *Series) Write(f Frame) error {
	if f.Empty() {
		return nil
	}
	start, stop, digests, length, err := writeFrame(s.pod, s.schema, f)
	if err != nil {
		return err
	}

	leaf, ok, err := s.changelog.Leaf()
	if err != nil {
		return err
	}
	var base *Commit
	var parents []string
	if ok {
		payload, err := s.changelog.pod.Read(leaf.Filename())
		if err != nil {
			return fmt.Errorf("lakota: read leaf revision: %w", err)
		}
		base, err = DecodeCommit(s.schema, payload)
		if err != nil {
			return err
		}
		parents = []string{leaf.Child}
	} else {
		base = EmptyCommit(s.schema)
	}

	updated, err := base.Update(s.label, start, stop, digests, length, ClosureBoth)
	if err != nil {
		return err
	}
	payload, err := updated.Encode()
	if err != nil {
		return err
	}
	_, err = s.changelog.Commit(payload, parents)
	return err
}

// Delete writes a new revision whose commit omits this label's rows
// entirely, without touching any column blob.
func (s *Series) Delete() error {
	leaf, ok, err := s.changelog.Leaf()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	payload, err := s.changelog.pod.Read(leaf.Filename())
	if err != nil {
		return err
	}
	base, err := DecodeCommit(s.schema, payload)
	if err != nil {
		return err
	}
	updated := base.DeleteLabels(s.label)
	newPayload, err := updated.Encode()
	if err != nil {
		return err
	}
	_, err = s.changelog.Commit(newPayload, []string{leaf.Child})
	return err
}

// Paginate returns an iterator walking the whole series page by page.
// Each page is one Read from the cursor with pageRows as its limit:
// segments are read whole, and reading stops once at least pageRows
// rows are gathered, so a page can hold more than pageRows rows (a
// single large segment is returned as one page). Index tuples have no
// generic "next representable value", so consecutive pages are joined
// at an inclusive boundary: the rows at the last index value of one
// page are read again at the start of the next.
func (s *Series) Paginate(pageRows int) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		if pageRows <= 0 {
			pageRows = 1
		}
		cursor := []any(nil)
		for {
			page, err := s.Read(cursor, nil, pageRows)
			if err != nil {
				yield(Frame{}, err)
				return
			}
			if page.Empty() {
				return
			}
			if !yield(page, nil) {
				return
			}
			last := page.Stop()
			if cursor != nil && compareTuple(last, cursor) <= 0 {
				return
			}
			cursor = last
			if page.Len() < pageRows {
				return
			}
		}
	}
}
